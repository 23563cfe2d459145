// Package logger wires the process-wide zap logger.  Call Init once at
// startup; everything else logs through zap.S()/zap.L().
package logger

import "go.uber.org/zap"

// Init builds the global logger for the given environment and installs
// it with zap.ReplaceGlobals.  Production gets sampled JSON output,
// anything else a development console logger.  The returned sync
// function should be deferred in main.
func Init(env string) func() {
	var (
		lg  *zap.Logger
		err error
	)
	if env == "prod" {
		lg, err = zap.NewProduction()
	} else {
		lg, err = zap.NewDevelopment()
	}
	if err != nil {
		lg = zap.NewExample()
	}
	zap.ReplaceGlobals(lg)
	return func() { _ = lg.Sync() }
}

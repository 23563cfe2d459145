package main

import (
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/autoparc/fleet-reservation/internal/config"
	"github.com/autoparc/fleet-reservation/internal/database"
	"github.com/autoparc/fleet-reservation/internal/handler"
	"github.com/autoparc/fleet-reservation/internal/ledger"
	"github.com/autoparc/fleet-reservation/internal/logger"
	"github.com/autoparc/fleet-reservation/internal/middleware"
	"github.com/autoparc/fleet-reservation/internal/queue"
	"github.com/autoparc/fleet-reservation/internal/repository"
	"github.com/autoparc/fleet-reservation/internal/router"
	"github.com/autoparc/fleet-reservation/internal/service"
	"github.com/autoparc/fleet-reservation/internal/upload"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()
	sync := logger.Init(cfg.Env)
	defer sync()
	log := zap.S()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalw("database connect failed", "error", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting and response cache disabled")
	}

	saver, err := upload.NewSaver(cfg.UploadDir, int64(cfg.MaxUploadBytes))
	if err != nil {
		log.Fatalw("upload dir setup failed", "error", err)
	}

	store := repository.NewLedgerStore(db)
	fleet := ledger.New(store)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cached := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterFleet(e, handler.NewVehicleHandler(fleet, saver), cfg.JWTSecret, cached)
	router.RegisterReservations(e, handler.NewReservationHandler(fleet, service.PublishReservationDecided), cfg.JWTSecret)
	router.RegisterExports(e, handler.NewExportHandler(fleet), cfg.JWTSecret)
	router.RegisterAdmin(e, handler.NewAdminHandler(cfg, users), cfg.JWTSecret)

	// Audit consumer runs for the life of the process and reconnects on
	// broker trouble.
	go func() {
		if err := queue.StartDecisionConsumer(); err != nil {
			log.Warnw("decision consumer stopped", "error", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Infow("listening", "addr", addr, "env", cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatalw("server stopped", "error", err)
	}
}

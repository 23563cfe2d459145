// Package upload stores vehicle images on local disk.  Filenames are
// regenerated as UUIDs so user-supplied names never reach the
// filesystem.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrBadExtension is returned for files outside the image allow-list.
var ErrBadExtension = errors.New("unsupported file extension")

// ErrTooLarge is returned when the uploaded file exceeds the size cap.
var ErrTooLarge = errors.New("file too large")

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// Saver writes uploaded images under Dir, rejecting files over MaxBytes
// or with an extension outside the allow-list.
type Saver struct {
	Dir      string
	MaxBytes int64
}

// NewSaver returns a Saver and ensures the target directory exists.
func NewSaver(dir string, maxBytes int64) (*Saver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Saver{Dir: dir, MaxBytes: maxBytes}, nil
}

// AllowedName reports whether the original filename carries an accepted
// image extension.
func AllowedName(name string) bool {
	return allowedExt[strings.ToLower(filepath.Ext(name))]
}

// Save stores the uploaded file and returns the generated filename
// (not the full path) for persisting on the vehicle record.
func (s *Saver) Save(fh *multipart.FileHeader) (string, error) {
	if !AllowedName(fh.Filename) {
		return "", fmt.Errorf("%s: %w", fh.Filename, ErrBadExtension)
	}
	if s.MaxBytes > 0 && fh.Size > s.MaxBytes {
		return "", fmt.Errorf("%d bytes: %w", fh.Size, ErrTooLarge)
	}
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	dst, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	// Cap the copy as well: the header size is client-supplied.
	limit := io.Reader(src)
	if s.MaxBytes > 0 {
		limit = io.LimitReader(src, s.MaxBytes+1)
	}
	n, err := io.Copy(dst, limit)
	if err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	if s.MaxBytes > 0 && n > s.MaxBytes {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("%d bytes: %w", n, ErrTooLarge)
	}
	return name, nil
}

// Remove deletes a previously stored image, ignoring missing files.
func (s *Saver) Remove(name string) error {
	if name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.Dir, filepath.Base(name)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

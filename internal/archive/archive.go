// Package archive copies completed backtest result documents to cold storage.
package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/yourusername/quail/internal/config"
)

// ErrNotFound is returned by Read for a path with no stored document
var ErrNotFound = errors.New("archive object not found")

// Storage defines the interface for archive storage backends
type Storage interface {
	// Write stores data at the given path, replacing any previous object
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// Delete removes the data at the given path. Missing paths are not an error.
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// BacktestKey is the archive path of a backtest's result document
func BacktestKey(userID, backtestID uuid.UUID) string {
	return fmt.Sprintf("backtests/%s/%s.json", userID, backtestID)
}

// New builds the backend selected by cfg.Backend. It returns nil when the
// archive is disabled.
func New(ctx context.Context, cfg config.ArchiveConfig) (Storage, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Backend {
	case "", "local":
		store, err := NewLocalFS(cfg.Local.BasePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		store, err := NewS3(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported archive backend %q", cfg.Backend)
	}
}

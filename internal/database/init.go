package database

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/quail/internal/config"
)

// Initialize creates a database connection pool and warns when the schema
// is behind the embedded migrations.
func Initialize(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	pending, err := db.PendingMigrations(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if pending > 0 {
		log.WithField("pending", pending).Warn("Database migrations pending, run `quail migrate`")
	}

	return db, nil
}

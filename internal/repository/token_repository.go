package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/quail/internal/database"
	"github.com/yourusername/quail/internal/models"
)

// PostgresTokenRepository implements TokenRepository for PostgreSQL
type PostgresTokenRepository struct {
	db *database.DB
}

// NewPostgresTokenRepository creates a new token repository
func NewPostgresTokenRepository(db *database.DB) TokenRepository {
	return &PostgresTokenRepository{db: db}
}

// Create stores a refresh token hash
func (r *PostgresTokenRepository) Create(ctx context.Context, token *models.Token) error {
	query := `
		INSERT INTO tokens (id, user_id, token_hash, type, expires_at, is_revoked)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.Conn(ctx).QueryRow(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.Type, token.ExpiresAt, token.IsRevoked,
	).Scan(&token.CreatedAt)
	if err != nil {
		return mapWriteError(err, "failed to create token")
	}

	return nil
}

// GetByHash retrieves a token by the hash of its JWT
func (r *PostgresTokenRepository) GetByHash(ctx context.Context, hash string) (*models.Token, error) {
	query := `
		SELECT id, user_id, token_hash, type, expires_at, is_revoked, created_at
		FROM tokens WHERE token_hash = $1
	`

	token := &models.Token{}
	err := r.db.Conn(ctx).QueryRow(ctx, query, hash).Scan(
		&token.ID, &token.UserID, &token.TokenHash, &token.Type,
		&token.ExpiresAt, &token.IsRevoked, &token.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return token, nil
}

// Revoke marks a token revoked. Revoking twice is not an error.
func (r *PostgresTokenRepository) Revoke(ctx context.Context, hash string) error {
	commandTag, err := r.db.Conn(ctx).Exec(ctx, "UPDATE tokens SET is_revoked = TRUE WHERE token_hash = $1", hash)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// Consume revokes a live token. Concurrent callers race on the row lock and
// only the first one sees a row affected.
func (r *PostgresTokenRepository) Consume(ctx context.Context, hash string) error {
	commandTag, err := r.db.Conn(ctx).Exec(ctx,
		"UPDATE tokens SET is_revoked = TRUE WHERE token_hash = $1 AND NOT is_revoked", hash)
	if err != nil {
		return fmt.Errorf("failed to consume token: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return models.ErrUnauthorized
	}

	return nil
}

// DeleteExpired removes tokens that expired before the given time
func (r *PostgresTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	commandTag, err := r.db.Conn(ctx).Exec(ctx, "DELETE FROM tokens WHERE expires_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return commandTag.RowsAffected(), nil
}

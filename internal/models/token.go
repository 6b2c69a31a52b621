package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenTypeRefresh marks a persisted refresh token
const TokenTypeRefresh = "refresh"

// Token is a persisted refresh token. Only the hash of the JWT is stored.
type Token struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	Type      string    `db:"type"`
	ExpiresAt time.Time `db:"expires_at"`
	IsRevoked bool      `db:"is_revoked"`
	CreatedAt time.Time `db:"created_at"`
}

// Usable reports whether the token can still be exchanged at now.
func (t *Token) Usable(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiresAt)
}

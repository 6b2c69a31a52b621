// Package auth issues and verifies JWT access and refresh tokens and hashes
// passwords.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/yourusername/quail/internal/config"
)

// Token types carried in the typ claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken         = errors.New("invalid token")
	ErrWrongTokenType       = errors.New("wrong token type")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
)

// Claims is the JWT payload. Subject holds the user id and ID a unique jti.
type Claims struct {
	Email string `json:"email"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenPair is the result of a login or refresh
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenManager signs access and refresh tokens with separate secrets
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewTokenManager creates a token manager from the auth configuration
func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}
}

// IssuePair signs a fresh access and refresh token for a user
func (m *TokenManager) IssuePair(userID uuid.UUID, email string) (*TokenPair, error) {
	access, _, err := m.sign(userID, email, TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	refresh, expiresAt, err := m.sign(userID, email, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh, RefreshExpiresAt: expiresAt}, nil
}

func (m *TokenManager) sign(userID uuid.UUID, email, typ string) (string, time.Time, error) {
	secret, ttl := m.accessSecret, m.accessTTL
	if typ == TokenTypeRefresh {
		secret, ttl = m.refreshSecret, m.refreshTTL
	}

	now := m.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Email: email,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    m.issuer,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, expiresAt, nil
}

// ValidateAccess verifies an access token
func (m *TokenManager) ValidateAccess(tokenString string) (*Claims, error) {
	return m.validate(tokenString, m.accessSecret, TokenTypeAccess)
}

// ValidateRefresh verifies a refresh token
func (m *TokenManager) ValidateRefresh(tokenString string) (*Claims, error) {
	return m.validate(tokenString, m.refreshSecret, TokenTypeRefresh)
}

func (m *TokenManager) validate(tokenString string, secret []byte, typ string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSigningMethod
		}
		return secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != typ {
		return nil, ErrWrongTokenType
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	return claims, nil
}

// HashToken returns the hex SHA-256 of a token for storage and lookup
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

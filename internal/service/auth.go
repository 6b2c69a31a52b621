package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/quail/internal/auth"
	"github.com/yourusername/quail/internal/logger"
	"github.com/yourusername/quail/internal/metrics"
	"github.com/yourusername/quail/internal/models"
	"github.com/yourusername/quail/internal/repository"
)

// RegisterInput holds the fields of a new account
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// LoginResult is returned by a successful login
type LoginResult struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         *models.User `json:"user"`
}

// Tokens is returned by a successful refresh
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthService registers users and manages their token lifecycle
type AuthService struct {
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
	tx        repository.Transactor
	tokens    *auth.TokenManager
	passwords *auth.PasswordHasher
	audit     *logger.AuditLogger
	now       func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	repos *repository.Repositories,
	tokens *auth.TokenManager,
	passwords *auth.PasswordHasher,
	baseLogger *logrus.Logger,
) *AuthService {
	return &AuthService{
		userRepo:  repos.User,
		tokenRepo: repos.Token,
		tx:        repos.Tx,
		tokens:    tokens,
		passwords: passwords,
		audit:     logger.NewAuditLogger(baseLogger),
		now:       time.Now,
	}
}

// Register creates a user. A taken email yields models.ErrDuplicateKey.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	hash, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        normalizeEmail(input.Email),
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		metrics.RecordAuthEvent("register", "failure")
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	metrics.RecordAuthEvent("register", "success")
	s.audit.LogRegistration(user.ID.String(), user.Email)
	return user, nil
}

// Login verifies credentials and issues a token pair. Unknown emails and
// wrong passwords both yield models.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		s.rejectLogin(email, "unknown email")
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !s.passwords.Compare(user.PasswordHash, password) {
		s.rejectLogin(email, "wrong password")
		return nil, models.ErrInvalidCredentials
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	metrics.RecordAuthEvent("login", "success")
	s.audit.LogLogin(user.ID.String(), user.Email)
	return &LoginResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user,
	}, nil
}

// Refresh exchanges a valid refresh token for a new pair and revokes the
// presented one. Every rejection yields models.ErrUnauthorized.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	var pair *auth.TokenPair
	var userID uuid.UUID

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		user, hash, err := s.verifyRefresh(ctx, refreshToken)
		if err != nil {
			return err
		}
		userID = user.ID

		if err := s.tokenRepo.Consume(ctx, hash); err != nil {
			return err
		}

		pair, err = s.issue(ctx, user)
		return err
	})
	if err != nil {
		metrics.RecordAuthEvent("refresh", "failure")
		s.audit.LogRefreshRejected(err.Error())
		return nil, models.ErrUnauthorized
	}

	metrics.RecordAuthEvent("refresh", "success")
	s.audit.LogTokenRefresh(userID.String())
	return &Tokens{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	hash := auth.HashToken(refreshToken)

	record, err := s.tokenRepo.GetByHash(ctx, hash)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}

	if err := s.tokenRepo.Revoke(ctx, hash); err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	metrics.RecordAuthEvent("logout", "success")
	s.audit.LogLogout(record.UserID.String())
	return nil
}

// verifyRefresh checks the signature, the stored record and the user
func (s *AuthService) verifyRefresh(ctx context.Context, refreshToken string) (*models.User, string, error) {
	claims, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, "", err
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, "", fmt.Errorf("invalid subject: %w", err)
	}

	hash := auth.HashToken(refreshToken)
	record, err := s.tokenRepo.GetByHash(ctx, hash)
	if err != nil {
		return nil, "", fmt.Errorf("refresh token record: %w", err)
	}
	if record.UserID != userID || record.Type != models.TokenTypeRefresh {
		return nil, "", errors.New("refresh token does not match its record")
	}
	if !record.Usable(s.now()) {
		return nil, "", errors.New("refresh token revoked or expired")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("refresh token user: %w", err)
	}

	return user, hash, nil
}

// issue signs a pair and stores the refresh token hash
func (s *AuthService) issue(ctx context.Context, user *models.User) (*auth.TokenPair, error) {
	pair, err := s.tokens.IssuePair(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	record := &models.Token{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: auth.HashToken(pair.RefreshToken),
		Type:      models.TokenTypeRefresh,
		ExpiresAt: pair.RefreshExpiresAt,
	}
	if err := s.tokenRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return pair, nil
}

func (s *AuthService) rejectLogin(email, reason string) {
	metrics.RecordAuthEvent("login", "failure")
	s.audit.LogLoginFailure(email, reason)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

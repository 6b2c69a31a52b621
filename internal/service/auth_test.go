package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/quail/internal/auth"
	"github.com/yourusername/quail/internal/config"
	"github.com/yourusername/quail/internal/models"
	"github.com/yourusername/quail/internal/repository"
)

type authFixture struct {
	svc       *AuthService
	users     *MockUserRepository
	tokens    *MockTokenRepository
	manager   *auth.TokenManager
	passwords *auth.PasswordHasher
}

func newAuthFixture() *authFixture {
	cfg := config.AuthConfig{
		AccessSecret:  "access-secret-0123456789",
		RefreshSecret: "refresh-secret-0123456789",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    168 * time.Hour,
		Issuer:        "quail-test",
	}

	f := &authFixture{
		users:     &MockUserRepository{},
		tokens:    &MockTokenRepository{},
		manager:   auth.NewTokenManager(cfg),
		passwords: auth.NewPasswordHasher(4),
	}
	repos := &repository.Repositories{User: f.users, Token: f.tokens, Tx: passthroughTx{}}
	f.svc = NewAuthService(repos, f.manager, f.passwords, testLogger())
	return f
}

func (f *authFixture) user(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := f.passwords.Hash(password)
	require.NoError(t, err)
	return &models.User{ID: uuid.New(), Email: "trader@example.com", PasswordHash: hash, FirstName: "Ada", LastName: "Lovelace"}
}

func TestAuthService_Register(t *testing.T) {
	f := newAuthFixture()

	f.users.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "trader@example.com" && u.PasswordHash != "secret1"
	})).Return(nil)

	user, err := f.svc.Register(context.Background(), RegisterInput{
		Email: "  Trader@Example.com ", Password: "secret1", FirstName: "Ada", LastName: "Lovelace",
	})
	require.NoError(t, err)

	assert.Equal(t, "trader@example.com", user.Email)
	assert.True(t, f.passwords.Compare(user.PasswordHash, "secret1"))
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	f := newAuthFixture()
	f.users.On("Create", mock.Anything, mock.Anything).Return(models.ErrDuplicateKey)

	_, err := f.svc.Register(context.Background(), RegisterInput{Email: "a@b.c", Password: "secret1"})
	assert.ErrorIs(t, err, models.ErrDuplicateKey)
}

func TestAuthService_Login(t *testing.T) {
	f := newAuthFixture()
	user := f.user(t, "secret1")

	f.users.On("GetByEmail", mock.Anything, "trader@example.com").Return(user, nil)
	f.tokens.On("Create", mock.Anything, mock.MatchedBy(func(tok *models.Token) bool {
		return tok.UserID == user.ID && tok.Type == models.TokenTypeRefresh && len(tok.TokenHash) == 64
	})).Return(nil)

	result, err := f.svc.Login(context.Background(), "TRADER@example.com", "secret1")
	require.NoError(t, err)

	assert.Equal(t, user, result.User)
	claims, err := f.manager.ValidateAccess(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	f.tokens.AssertExpectations(t)
}

func TestAuthService_LoginRejected(t *testing.T) {
	f := newAuthFixture()
	user := f.user(t, "secret1")

	f.users.On("GetByEmail", mock.Anything, "trader@example.com").Return(user, nil)
	f.users.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, models.ErrNotFound)

	_, err := f.svc.Login(context.Background(), "trader@example.com", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	f.tokens.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthService_RefreshRotates(t *testing.T) {
	f := newAuthFixture()
	user := f.user(t, "secret1")

	pair, err := f.manager.IssuePair(user.ID, user.Email)
	require.NoError(t, err)
	hash := auth.HashToken(pair.RefreshToken)

	f.tokens.On("GetByHash", mock.Anything, hash).Return(&models.Token{
		UserID: user.ID, TokenHash: hash, Type: models.TokenTypeRefresh, ExpiresAt: time.Now().Add(time.Hour),
	}, nil)
	f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	f.tokens.On("Consume", mock.Anything, hash).Return(nil)
	f.tokens.On("Create", mock.Anything, mock.AnythingOfType("*models.Token")).Return(nil)

	tokens, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, tokens.RefreshToken)
	f.tokens.AssertCalled(t, "Consume", mock.Anything, hash)
}

func TestAuthService_RefreshLosesRotationRace(t *testing.T) {
	f := newAuthFixture()
	user := f.user(t, "secret1")

	pair, err := f.manager.IssuePair(user.ID, user.Email)
	require.NoError(t, err)
	hash := auth.HashToken(pair.RefreshToken)

	f.tokens.On("GetByHash", mock.Anything, hash).Return(&models.Token{
		UserID: user.ID, TokenHash: hash, Type: models.TokenTypeRefresh, ExpiresAt: time.Now().Add(time.Hour),
	}, nil)
	f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	f.tokens.On("Consume", mock.Anything, hash).Return(models.ErrUnauthorized)

	tokens, err := f.svc.Refresh(context.Background(), pair.RefreshToken)

	assert.Nil(t, tokens)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	f.tokens.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthService_RefreshRejected(t *testing.T) {
	f := newAuthFixture()
	user := f.user(t, "secret1")

	pair, err := f.manager.IssuePair(user.ID, user.Email)
	require.NoError(t, err)
	hash := auth.HashToken(pair.RefreshToken)

	tests := []struct {
		name   string
		token  string
		record *models.Token
	}{
		{"access token presented", pair.AccessToken, nil},
		{"garbage", "not-a-jwt", nil},
		{"revoked", pair.RefreshToken, &models.Token{UserID: user.ID, TokenHash: hash, Type: models.TokenTypeRefresh, ExpiresAt: time.Now().Add(time.Hour), IsRevoked: true}},
		{"expired record", pair.RefreshToken, &models.Token{UserID: user.ID, TokenHash: hash, Type: models.TokenTypeRefresh, ExpiresAt: time.Now().Add(-time.Minute)}},
		{"other user", pair.RefreshToken, &models.Token{UserID: uuid.New(), TokenHash: hash, Type: models.TokenTypeRefresh, ExpiresAt: time.Now().Add(time.Hour)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.tokens.ExpectedCalls = nil
			if tt.record != nil {
				f.tokens.On("GetByHash", mock.Anything, hash).Return(tt.record, nil)
			}

			tokens, err := f.svc.Refresh(context.Background(), tt.token)

			assert.Nil(t, tokens)
			assert.ErrorIs(t, err, models.ErrUnauthorized)
			f.tokens.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			f.tokens.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything)
		})
	}
}

func TestAuthService_Logout(t *testing.T) {
	f := newAuthFixture()
	userID := uuid.New()

	f.tokens.On("GetByHash", mock.Anything, auth.HashToken("known")).Return(&models.Token{UserID: userID}, nil)
	f.tokens.On("Revoke", mock.Anything, auth.HashToken("known")).Return(nil)
	f.tokens.On("GetByHash", mock.Anything, auth.HashToken("unknown")).Return(nil, models.ErrNotFound)

	assert.NoError(t, f.svc.Logout(context.Background(), "known"))
	assert.NoError(t, f.svc.Logout(context.Background(), "unknown"))
	f.tokens.AssertNumberOfCalls(t, "Revoke", 1)
}

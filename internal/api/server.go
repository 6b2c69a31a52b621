// Package api exposes the strategy, backtest and auth operations over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/quail/internal/auth"
	"github.com/yourusername/quail/internal/config"
	"github.com/yourusername/quail/internal/models"
	"github.com/yourusername/quail/internal/service"
)

// AuthService is the account operations used by the auth handlers
type AuthService interface {
	Register(ctx context.Context, input service.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.Tokens, error)
	Logout(ctx context.Context, refreshToken string) error
}

// StrategyService is the strategy operations used by the strategy handlers
type StrategyService interface {
	Create(ctx context.Context, userID uuid.UUID, input service.CreateStrategyInput) (*models.Strategy, error)
	FindAll(ctx context.Context, userID uuid.UUID) ([]*models.Strategy, error)
	FindOne(ctx context.Context, userID, id uuid.UUID) (*models.Strategy, error)
	Update(ctx context.Context, userID, id uuid.UUID, patch models.StrategyPatch) (*models.Strategy, error)
	Remove(ctx context.Context, userID, id uuid.UUID) error
}

// BacktestService is the backtest operations used by the backtest handlers
type BacktestService interface {
	Create(ctx context.Context, userID, strategyID uuid.UUID, input service.CreateBacktestInput) (*models.Backtest, error)
	FindAll(ctx context.Context, userID uuid.UUID, strategyID *uuid.UUID) ([]*models.Backtest, error)
	FindOne(ctx context.Context, userID, id uuid.UUID) (*models.Backtest, error)
	Remove(ctx context.Context, userID, id uuid.UUID) error
}

// EventSubscriber streams a user's backtest events
type EventSubscriber interface {
	Subscribe(userID uuid.UUID) (<-chan service.BacktestEvent, func())
}

// TokenValidator verifies access tokens
type TokenValidator interface {
	ValidateAccess(token string) (*auth.Claims, error)
}

// Deps holds everything the API server needs
type Deps struct {
	Config     *config.Config
	Auth       AuthService
	Strategies StrategyService
	Backtests  BacktestService
	Events     EventSubscriber
	Tokens     TokenValidator
	Logger     *logrus.Logger
}

// Server is the public HTTP API server
type Server struct {
	cfg        *config.Config
	auth       AuthService
	strategies StrategyService
	backtests  BacktestService
	events     EventSubscriber
	tokens     TokenValidator
	logger     *logrus.Logger
	validate   *requestValidator
	limiter    *RateLimiter
	upgrader   *websocket.Upgrader
	handler    http.Handler
	server     *http.Server
}

// NewServer builds the router and middleware chain
func NewServer(deps Deps) *Server {
	s := &Server{
		cfg:        deps.Config,
		auth:       deps.Auth,
		strategies: deps.Strategies,
		backtests:  deps.Backtests,
		events:     deps.Events,
		tokens:     deps.Tokens,
		logger:     deps.Logger,
		validate:   newRequestValidator(),
		upgrader:   newUpgrader(deps.Config.CORS.AllowedOrigins),
	}

	if deps.Config.RateLimit.Enabled {
		s.limiter = NewRateLimiter(deps.Config.RateLimit.RequestsPerSecond, deps.Config.RateLimit.Burst)
	}

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
	}).Handler(s.routes())

	return s
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	router.Use(requestID)
	router.Use(s.recovery)
	router.Use(s.accessLog)
	router.Use(instrument)
	if s.limiter != nil {
		router.Use(s.limiter.Middleware)
	}

	authRoutes := router.PathPrefix("/auth").Subrouter()
	authRoutes.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	authRoutes.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	authRoutes.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	authRoutes.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	strategies := router.PathPrefix("/strategies").Subrouter()
	strategies.Use(s.authenticate(false))
	strategies.HandleFunc("", s.handleCreateStrategy).Methods(http.MethodPost)
	strategies.HandleFunc("", s.handleListStrategies).Methods(http.MethodGet)
	strategies.HandleFunc("/{id}", s.handleGetStrategy).Methods(http.MethodGet)
	strategies.HandleFunc("/{id}", s.handleUpdateStrategy).Methods(http.MethodPut)
	strategies.HandleFunc("/{id}", s.handleDeleteStrategy).Methods(http.MethodDelete)

	backtests := router.PathPrefix("/backtests").Subrouter()
	backtests.Use(s.authenticate(false))
	backtests.HandleFunc("", s.handleCreateBacktest).Methods(http.MethodPost)
	backtests.HandleFunc("", s.handleListBacktests).Methods(http.MethodGet)
	backtests.HandleFunc("/{id}", s.handleGetBacktest).Methods(http.MethodGet)
	backtests.HandleFunc("/{id}", s.handleDeleteBacktest).Methods(http.MethodDelete)

	ws := router.PathPrefix("/ws").Subrouter()
	ws.Use(s.authenticate(true))
	ws.HandleFunc("/backtests", s.handleBacktestEvents).Methods(http.MethodGet)

	return router
}

// Handler returns the API handler including CORS
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves the API in the background until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.ServerAddr(),
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.WithField("addr", s.server.Addr).Info("API server starting")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("API server error")
		}
	}()

	return nil
}

// Shutdown gracefully stops the API server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("API server shutting down")
	return s.server.Shutdown(ctx)
}

package leanrunner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/quail/internal/config"
)

// BacktestRequest is the body of POST /backtest
type BacktestRequest struct {
	BacktestID     string  `json:"backtest_id" validate:"required"`
	StrategyCode   string  `json:"strategy_code" validate:"required"`
	StartDate      string  `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate        string  `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	InitialCapital float64 `json:"initial_capital,omitempty" validate:"gte=0"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Server accepts backtests, runs them in the background and reports their
// status until the entry expires
type Server struct {
	port     int
	store    *StatusStore
	engine   Engine
	logger   *logrus.Logger
	validate *validator.Validate
	handler  http.Handler
	server   *http.Server
	now      func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates the runner service
func NewServer(cfg config.LeanRunnerConfig, engine Engine, logger *logrus.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		port:     cfg.Port,
		store:    NewStatusStore(cfg.ResultTTL),
		engine:   engine,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
		baseCtx:  ctx,
		cancel:   cancel,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/backtest", s.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/backtest/{id}", s.handleStatus).Methods(http.MethodGet)
	s.handler = r

	return s
}

// Handler returns the service routes
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves in the background
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.WithField("port", s.port).Info("Runner service starting")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("Runner service error")
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for running backtests until
// ctx ends, after which they are cancelled
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.cancel()
		<-done
	}
	s.cancel()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Malformed JSON body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: err.Error()})
		return
	}

	if !s.store.Begin(req.BacktestID, s.now()) {
		writeJSON(w, http.StatusConflict, errorResponse{Detail: "Backtest already running"})
		return
	}

	s.wg.Add(1)
	go s.run(req)

	st, _ := s.store.Get(req.BacktestID)
	writeJSON(w, http.StatusOK, st.StatusResponse)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store.Get(mux.Vars(r)["id"])
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "Backtest not found"})
		return
	}
	writeJSON(w, http.StatusOK, st.StatusResponse)
}

func (s *Server) run(req BacktestRequest) {
	defer s.wg.Done()

	log := s.logger.WithField("backtest_id", req.BacktestID)
	start := s.now()

	defer func() {
		if p := recover(); p != nil {
			log.WithField("panic", p).Error("Backtest engine panicked")
			s.store.Fail(req.BacktestID, fmt.Sprintf("engine panic: %v", p))
		}
	}()

	result, err := s.engine.Run(s.baseCtx, req)
	if err != nil {
		log.WithError(err).Warn("Backtest failed")
		s.store.Fail(req.BacktestID, err.Error())
		return
	}

	log.WithField("duration", s.now().Sub(start).String()).Info("Backtest completed")
	s.store.Complete(req.BacktestID, result)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/yourusername/quail/internal/models"
	"github.com/yourusername/quail/internal/service"
)

func (s *Server) handleCreateBacktest(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req createBacktestRequest
	if err := s.validate.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, "Backtest")
		return
	}
	strategyID, err := uuid.Parse(req.StrategyID)
	if err != nil {
		s.writeError(w, r, models.NewValidationError("Strategy ID must be a valid UUID"), "Backtest")
		return
	}

	backtest, err := s.backtests.Create(r.Context(), userID, strategyID, service.CreateBacktestInput{Name: req.Name})
	if err != nil {
		s.writeError(w, r, err, "Strategy")
		return
	}

	writeData(w, http.StatusCreated, backtest)
}

func (s *Server) handleListBacktests(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var strategyID *uuid.UUID
	if raw := r.URL.Query().Get("strategyId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.writeError(w, r, models.NewValidationError("Strategy ID must be a valid UUID"), "Backtest")
			return
		}
		strategyID = &id
	}

	backtests, err := s.backtests.FindAll(r.Context(), userID, strategyID)
	if err != nil {
		s.writeError(w, r, err, "Backtest")
		return
	}

	writeData(w, http.StatusOK, backtests)
}

func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err, "Backtest")
		return
	}

	backtest, err := s.backtests.FindOne(r.Context(), userID, id)
	if err != nil {
		s.writeError(w, r, err, "Backtest")
		return
	}

	writeData(w, http.StatusOK, backtest)
}

func (s *Server) handleDeleteBacktest(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err, "Backtest")
		return
	}

	if err := s.backtests.Remove(r.Context(), userID, id); err != nil {
		s.writeError(w, r, err, "Backtest")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

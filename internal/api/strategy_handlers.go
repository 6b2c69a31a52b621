package api

import (
	"net/http"

	"github.com/yourusername/quail/internal/service"
)

func (s *Server) handleCreateStrategy(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req createStrategyRequest
	if err := s.validate.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, "Strategy")
		return
	}

	strategy, err := s.strategies.Create(r.Context(), userID, service.CreateStrategyInput{
		Name:        req.Name,
		Description: req.Description,
		Code:        req.Code,
	})
	if err != nil {
		s.writeError(w, r, err, "Strategy")
		return
	}

	writeData(w, http.StatusCreated, strategy)
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	strategies, err := s.strategies.FindAll(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err, "Strategy")
		return
	}

	writeData(w, http.StatusOK, strategies)
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err, "Strategy")
		return
	}

	strategy, err := s.strategies.FindOne(r.Context(), userID, id)
	if err != nil {
		s.writeError(w, r, err, "Strategy")
		return
	}

	writeData(w, http.StatusOK, strategy)
}

func (s *Server) handleUpdateStrategy(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err, "Strategy")
		return
	}

	var req updateStrategyRequest
	if err := s.validate.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, "Strategy")
		return
	}

	strategy, err := s.strategies.Update(r.Context(), userID, id, req.patch())
	if err != nil {
		s.writeError(w, r, err, "Strategy")
		return
	}

	writeData(w, http.StatusOK, strategy)
}

func (s *Server) handleDeleteStrategy(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err, "Strategy")
		return
	}

	if err := s.strategies.Remove(r.Context(), userID, id); err != nil {
		s.writeError(w, r, err, "Strategy")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

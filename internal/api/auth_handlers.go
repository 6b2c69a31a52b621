package api

import (
	"net/http"

	"github.com/yourusername/quail/internal/service"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.validate.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, "User")
		return
	}

	user, err := s.auth.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		s.writeError(w, r, err, "User with this email")
		return
	}

	writeData(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.validate.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, "User")
		return
	}

	result, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err, "User")
		return
	}

	writeData(w, http.StatusOK, result)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := s.validate.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, "Token")
		return
	}

	tokens, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err, "Token")
		return
	}

	writeData(w, http.StatusOK, tokens)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := s.validate.decode(w, r, &req); err != nil {
		s.writeError(w, r, err, "Token")
		return
	}

	if err := s.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		s.writeError(w, r, err, "Token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

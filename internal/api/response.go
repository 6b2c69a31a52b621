package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/quail/internal/models"
	"github.com/yourusername/quail/internal/service"
)

// Envelope wraps every JSON response body
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string, errs ...string) {
	writeJSON(w, status, Envelope{Success: false, Message: message, Errors: errs})
}

// writeError maps a service error to its HTTP status. resource names the
// entity in not-found and conflict messages.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, resource string) {
	var validationErr *models.ValidationError

	switch {
	case errors.As(err, &validationErr):
		writeMessage(w, http.StatusBadRequest, "Validation failed", validationErr.Messages...)
	case errors.Is(err, models.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, models.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, models.ErrNotFound):
		writeMessage(w, http.StatusNotFound, resource+" not found")
	case errors.Is(err, models.ErrDuplicateKey):
		writeMessage(w, http.StatusConflict, resource+" already exists")
	case errors.Is(err, service.ErrServiceClosed):
		writeMessage(w, http.StatusServiceUnavailable, "Service is shutting down")
	default:
		s.logger.WithFields(logrus.Fields{
			"request_id": RequestIDFromContext(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		}).WithError(err).Error("Request failed")
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dandantas/magpie/internal/model"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// writeDomainError maps the domain error taxonomy onto HTTP status codes
func writeDomainError(w http.ResponseWriter, err error) {
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, validationErr.Message)
		return
	}

	var notFoundErr *model.NotFoundError
	if errors.As(err, &notFoundErr) {
		writeError(w, http.StatusNotFound, notFoundErr.Message)
		return
	}

	var forbiddenErr *model.ForbiddenError
	if errors.As(err, &forbiddenErr) {
		writeError(w, http.StatusForbidden, forbiddenErr.Message)
		return
	}

	var conflictErr *model.ConflictError
	if errors.As(err, &conflictErr) {
		writeError(w, http.StatusConflict, conflictErr.Message)
		return
	}

	slog.Error("Unhandled request error", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

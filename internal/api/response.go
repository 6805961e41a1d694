package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

const (
	contentTypeJSON = "Content-Type"
	applicationJSON = "application/json"
)

// Error codes returned in the "error" field.
const (
	codeUnauthorized   = "unauthorized"
	codeInvalidSince   = "invalid_since"
	codeMissingUUIDs   = "missing_uuids"
	codeNotFound       = "not_found"
	codeInvalidJSON    = "invalid_json"
	codeInvalidRequest = "invalid_request"
	codeConflict       = "conflict"
	codeInternal       = "internal_error"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ListResponse wraps list and batch results.
type ListResponse[T any] struct {
	Results []T `json:"results"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(contentTypeJSON, applicationJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

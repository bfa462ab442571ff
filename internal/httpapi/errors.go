package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"ttsd/internal/resident"
	"ttsd/internal/service"
	"ttsd/internal/tts"
	"ttsd/internal/voices"
	"ttsd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case service.IsBadRequest(err):
		return http.StatusBadRequest
	case errors.Is(err, voices.ErrVoiceNotFound):
		return http.StatusNotFound
	case errors.Is(err, resident.ErrClosed), tts.IsWorkerUnavailable(err), resident.IsConstructionFailed(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &he):
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

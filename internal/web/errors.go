package web

// errors.go provides unified error response handling for the API.
//
// Handlers call respondError with the error they got. The error is logged
// with the request id, mapped to a user message via core.MapError and
// written as an ErrorResponse. statusFor picks the HTTP status from the
// sentinel the error wraps.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/tplimport/internal/core"
	"github.com/JonMunkholm/tplimport/internal/logging"
	"github.com/JonMunkholm/tplimport/internal/payload"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor maps an error returned by the service to an HTTP status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, payload.ErrInvalidPayload),
		errors.Is(err, core.ErrBatchTooLarge),
		errors.Is(err, core.ErrMalformedItem),
		errors.Is(err, core.ErrMalformedTree),
		errors.Is(err, core.ErrDuplicateTransientID):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err server-side and writes its user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request rejected", attrs...)
	}

	if statusCode == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, statusCode, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

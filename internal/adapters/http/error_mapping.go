package httpadapter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	var aiErr *domain.AIError
	if errors.As(err, &aiErr) {
		return aiErrorStatus(aiErr.Code)
	}
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrDocumentNotFound), domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func aiErrorStatus(code domain.AIErrorCode) int {
	switch code {
	case domain.AIRateLimited:
		return http.StatusTooManyRequests
	case domain.AIServiceUnavailable:
		return http.StatusServiceUnavailable
	case domain.AITimeout:
		return http.StatusGatewayTimeout
	case domain.AIInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// publicMessage is the text returned to clients. Server-side failures never
// expose the underlying error.
func publicMessage(err error, status int) string {
	var aiErr *domain.AIError
	if errors.As(err, &aiErr) {
		switch aiErr.Code {
		case domain.AIRateLimited:
			return "The assistant is busy right now. Please try again in a moment."
		case domain.AIInvalidRequest:
			return "The assistant could not process this request."
		default:
			return "The assistant is temporarily unavailable. Please try again later."
		}
	}
	switch {
	case status >= http.StatusInternalServerError:
		return "internal error"
	case status == http.StatusNotFound:
		return "not found"
	default:
		return err.Error()
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	attrs := []any{
		"request_id", requestIDFromContext(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed", attrs...)
	} else {
		slog.Warn("request_failed", attrs...)
	}

	payload := map[string]string{"error": publicMessage(err, status)}
	if code := domain.AIErrorCodeOf(err); code != domain.AIUnknown {
		payload["code"] = string(code)
	}
	writeJSON(w, status, payload)
}

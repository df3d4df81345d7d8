package openai

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/infrastructure/resilience"
)

func classifyError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
				RetryAfter:    statusErr.RetryAfter,
			}
		}
		return resilience.ErrorClassification{}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{RecordFailure: true}
}

// toAIError maps transport failures onto the provider-neutral error codes.
func toAIError(err error) error {
	if err == nil {
		return nil
	}
	var aiErr *domain.AIError
	if errors.As(err, &aiErr) {
		return err
	}
	return &domain.AIError{Code: codeFor(err), Provider: providerName, Err: err}
}

func codeFor(err error) domain.AIErrorCode {
	if resilience.IsCircuitOpen(err) {
		return domain.AIServiceUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.AITimeout
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			return domain.AIUnauthorized
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return domain.AIRateLimited
		case statusErr.StatusCode == http.StatusRequestTimeout || statusErr.StatusCode == http.StatusGatewayTimeout:
			return domain.AITimeout
		case statusErr.StatusCode >= 500:
			return domain.AIServiceUnavailable
		case statusErr.StatusCode >= 400:
			return domain.AIInvalidRequest
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.AITimeout
		}
		return domain.AIServiceUnavailable
	}
	return domain.AIUnknown
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

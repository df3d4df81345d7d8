package vertex

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/infrastructure/resilience"
)

func classifyError(err error) resilience.ErrorClassification {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded, codes.Aborted:
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied, codes.NotFound, codes.FailedPrecondition:
		return resilience.ErrorClassification{}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

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
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return domain.AIUnauthorized
	case codes.ResourceExhausted:
		return domain.AIRateLimited
	case codes.Unavailable, codes.Internal, codes.Aborted:
		return domain.AIServiceUnavailable
	case codes.InvalidArgument, codes.FailedPrecondition, codes.NotFound:
		return domain.AIInvalidRequest
	case codes.DeadlineExceeded:
		return domain.AITimeout
	}
	return domain.AIUnknown
}

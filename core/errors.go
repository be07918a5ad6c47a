package core

import (
	"errors"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ServiceErrorBadInput        = "MARKETO_BAD_INPUT"
	ServiceErrorNotConfigured   = "MARKETO_NOT_CONFIGURED"
	ServiceErrorNotFound        = "MARKETO_NOT_FOUND"
	ServiceErrorLeadNotFound    = "MARKETO_LEAD_NOT_FOUND"
	ServiceErrorUnauthorized    = "MARKETO_UNAUTHORIZED"
	ServiceErrorForbidden       = "MARKETO_FORBIDDEN"
	ServiceErrorRateLimited     = "MARKETO_RATE_LIMITED"
	ServiceErrorExternalFailure = "MARKETO_EXTERNAL_FAILURE"
	ServiceErrorOperationFailed = "MARKETO_OPERATION_FAILED"
	ServiceErrorInternal        = "MARKETO_INTERNAL_ERROR"
)

var (
	ErrNotConfigured = errors.New("core: marketo client credentials are not configured")
	ErrLeadNotFound  = errors.New("core: lead not found")
)

// MapError converts err into a go-errors envelope. Rich errors keep their
// category and only get missing codes filled in.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrNotConfigured):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorNotConfigured)
	case errors.Is(err, ErrLeadNotFound):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ServiceErrorLeadNotFound)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newServiceError(err.Error(), goerrors.CategoryRateLimit, ServiceErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

// RetryAfter reports the back-off carried by a rate limit error. The bool is
// false when err is not rate limited; the duration is zero when the error
// names no retry_after_ms.
func RetryAfter(err error) (time.Duration, bool) {
	var richErr *goerrors.Error
	if err == nil || !goerrors.As(err, &richErr) || richErr.Category != goerrors.CategoryRateLimit {
		return 0, false
	}
	var millis int64
	switch typed := richErr.Metadata["retry_after_ms"].(type) {
	case int64:
		millis = typed
	case int:
		millis = int64(typed)
	case float64:
		millis = int64(typed)
	}
	if millis < 0 {
		millis = 0
	}
	return time.Duration(millis) * time.Millisecond, true
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = ServiceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = DefaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func DefaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorBadInput
	case goerrors.CategoryNotFound:
		return ServiceErrorNotFound
	case goerrors.CategoryAuth:
		return ServiceErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ServiceErrorForbidden
	case goerrors.CategoryRateLimit:
		return ServiceErrorRateLimited
	case goerrors.CategoryOperation:
		return ServiceErrorOperationFailed
	case goerrors.CategoryExternal:
		return ServiceErrorExternalFailure
	default:
		return ServiceErrorInternal
	}
}

func ServiceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

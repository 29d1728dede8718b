package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/kjstillabower/weather-dashboard/internal/schema"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

// Error category constants used as metric labels (upstreamErrorsTotal).
const (
	ErrorCategoryTimeout      ErrorCategory = "timeout"
	ErrorCategoryCanceled     ErrorCategory = "canceled"
	ErrorCategoryNetwork      ErrorCategory = "network"
	ErrorCategoryUnauthorized ErrorCategory = "unauthorized"
	ErrorCategoryNotFound     ErrorCategory = "not_found"
	ErrorCategoryRateLimited  ErrorCategory = "rate_limited"
	ErrorCategoryUpstream4xx  ErrorCategory = "upstream_4xx"
	ErrorCategoryUpstream5xx  ErrorCategory = "upstream_5xx"
	ErrorCategoryParsing      ErrorCategory = "parsing"
	ErrorCategorySchema       ErrorCategory = "schema"
	ErrorCategoryInvalidInput ErrorCategory = "invalid_input"
	ErrorCategoryUnknown      ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCategoryTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrorCategoryCanceled
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Status == http.StatusUnauthorized || httpErr.Status == http.StatusForbidden:
			return ErrorCategoryUnauthorized
		case httpErr.Status == http.StatusNotFound:
			return ErrorCategoryNotFound
		case httpErr.Status == http.StatusTooManyRequests:
			return ErrorCategoryRateLimited
		case httpErr.Status >= 500:
			return ErrorCategoryUpstream5xx
		default:
			return ErrorCategoryUpstream4xx
		}
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return ErrorCategoryNetwork
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return ErrorCategoryParsing
	}

	var valErr *schema.ValidationError
	if errors.As(err, &valErr) {
		return ErrorCategorySchema
	}

	if errors.Is(err, validation.ErrInvalidCoordinates) ||
		errors.Is(err, validation.ErrLocationEmpty) ||
		errors.Is(err, validation.ErrLocationTooLong) ||
		errors.Is(err, validation.ErrLocationInvalidChars) ||
		errors.Is(err, ErrInvalidStyleID) {
		return ErrorCategoryInvalidInput
	}

	return ErrorCategoryUnknown
}

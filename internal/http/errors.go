package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/mapview"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/schema"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

// apiError is the response shape for a failed request.
type apiError struct {
	Status  int
	Code    string
	Message string
	// Path locates a schema mismatch inside the upstream body.
	Path string
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
	Path      string `json:"path,omitempty"`
}

// classify maps a service error onto its HTTP status and error code.
// Upstream messages never include request URLs, so API keys do not leak.
func classify(err error) apiError {
	var (
		httpErr  *client.HTTPError
		netErr   *client.NetworkError
		parseErr *client.ParseError
		valErr   *schema.ValidationError
	)
	switch {
	case errors.Is(err, validation.ErrInvalidCoordinates):
		return apiError{Status: http.StatusBadRequest, Code: "INVALID_COORDINATES", Message: err.Error()}
	case errors.Is(err, validation.ErrLocationEmpty),
		errors.Is(err, validation.ErrLocationTooLong),
		errors.Is(err, validation.ErrLocationInvalidChars):
		return apiError{Status: http.StatusBadRequest, Code: "INVALID_LOCATION", Message: err.Error()}
	case errors.Is(err, mapview.ErrInvalidMapType):
		return apiError{Status: http.StatusBadRequest, Code: "INVALID_MAP_TYPE", Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return apiError{Status: http.StatusGatewayTimeout, Code: "TIMEOUT", Message: "Request timed out"}
	case errors.As(err, &httpErr):
		switch httpErr.Status {
		case http.StatusNotFound:
			return apiError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: httpErr.Error()}
		case http.StatusUnauthorized:
			return apiError{Status: http.StatusBadGateway, Code: "UPSTREAM_UNAUTHORIZED", Message: "Upstream rejected the API key"}
		default:
			return apiError{Status: http.StatusBadGateway, Code: "UPSTREAM_HTTP_ERROR", Message: httpErr.Error()}
		}
	case errors.As(err, &netErr):
		return apiError{Status: http.StatusBadGateway, Code: "UPSTREAM_UNAVAILABLE", Message: fmt.Sprintf("Unable to reach %s service", netErr.Endpoint)}
	case errors.As(err, &parseErr):
		return apiError{Status: http.StatusBadGateway, Code: "UPSTREAM_BAD_RESPONSE", Message: fmt.Sprintf("Malformed %s response", parseErr.Endpoint)}
	case errors.As(err, &valErr):
		return apiError{Status: http.StatusBadGateway, Code: "UPSTREAM_SCHEMA_MISMATCH", Message: valErr.Error(), Path: valErr.Path}
	case errors.Is(err, context.Canceled):
		return apiError{Status: http.StatusServiceUnavailable, Code: "CANCELED", Message: "Request canceled"}
	default:
		return apiError{Status: http.StatusInternalServerError, Code: "INTERNAL", Message: "Internal error"}
	}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = gojson.NewEncoder(w).Encode(v)
}

// writeError writes e in the standard error format, tagged with the request
// correlation id.
func writeError(w http.ResponseWriter, r *http.Request, e apiError) {
	writeJSON(w, e.Status, errorBody{Error: errorDetail{
		Code:      e.Code,
		Message:   e.Message,
		RequestID: observability.CorrelationID(r.Context()),
		Path:      e.Path,
	}})
}

// writeServiceError classifies err, logs it and writes the error response.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	e := classify(err)
	logServiceError(r, e, err)
	writeError(w, r, e)
}

func logServiceError(r *http.Request, e apiError, err error) {
	logger := observability.LoggerFromContext(r.Context())
	fields := []zap.Field{
		zap.String("code", e.Code),
		zap.String("category", string(client.CategorizeError(err))),
		zap.Error(err),
	}
	if e.Status >= http.StatusInternalServerError {
		logger.Warn("request failed", fields...)
		return
	}
	logger.Debug("request rejected", fields...)
}

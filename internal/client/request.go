package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/schema"
)

const userAgent = "weather-dashboard/1.0"

// maxBodyBytes caps how much of an upstream body is read. Style documents are
// the largest payloads at a few hundred KiB.
const maxBodyBytes = 8 << 20

// requester issues a single GET and decodes the JSON body. It never retries
// and sets no timeout of its own; the caller's context bounds the call.
type requester struct {
	client *http.Client
}

func newRequester(httpClient *http.Client) requester {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return requester{client: httpClient}
}

func (r requester) getJSON(ctx context.Context, endpoint, rawURL string) (any, error) {
	logger := observability.LoggerFromContext(ctx)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if id := observability.CorrelationID(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}

	logger.Debug("upstream request", zap.String("endpoint", endpoint), zap.String("url", RedactURL(rawURL)))

	resp, err := r.client.Do(req)
	if err != nil {
		// url.Error embeds the full URL, key included.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		netErr := &NetworkError{Endpoint: endpoint, Err: err}
		recordUpstream(endpoint, "error", start, netErr)
		return nil, netErr
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		httpErr := &HTTPError{Endpoint: endpoint, Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode)}
		recordUpstream(endpoint, status, start, httpErr)
		return nil, httpErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		netErr := &NetworkError{Endpoint: endpoint, Err: fmt.Errorf("read body: %w", err)}
		recordUpstream(endpoint, "error", start, netErr)
		return nil, netErr
	}

	var v any
	if err := gojson.Unmarshal(body, &v); err != nil {
		parseErr := &ParseError{Endpoint: endpoint, Err: err}
		recordUpstream(endpoint, status, start, parseErr)
		return nil, parseErr
	}

	recordUpstream(endpoint, status, start, nil)
	return v, nil
}

// fetch performs one request and validates the body against s.
func fetch[T any](ctx context.Context, r requester, endpoint, rawURL string, s schema.Schema[T]) (T, error) {
	var zero T
	body, err := r.getJSON(ctx, endpoint, rawURL)
	if err != nil {
		return zero, err
	}
	res := s.Validate(body)
	if !res.OK() {
		observability.SchemaFailuresTotal.WithLabelValues(s.Name).Inc()
		observability.UpstreamErrorsTotal.WithLabelValues(endpoint, string(ErrorCategorySchema)).Inc()
		observability.LoggerFromContext(ctx).Warn("upstream response rejected",
			zap.String("endpoint", endpoint),
			zap.String("path", res.Err.Path),
			zap.String("reason", res.Err.Reason),
		)
		return zero, res.Err
	}
	return res.Value, nil
}

func recordUpstream(endpoint, status string, start time.Time, err error) {
	observability.UpstreamCallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.UpstreamDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.UpstreamErrorsTotal.WithLabelValues(endpoint, string(CategorizeError(err))).Inc()
	}
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// RedactURL replaces credential query values so a URL can be logged.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable url>"
	}
	q := u.Query()
	for _, k := range []string{"appid", "key"} {
		if q.Has(k) {
			q.Set(k, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

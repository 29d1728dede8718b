package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidStyleID is returned by GetStyle for an empty style id. No request is issued.
var ErrInvalidStyleID = errors.New("invalid style id")

// NetworkError is a transport failure: DNS, refused connection, reset,
// cancellation or an expired deadline. No HTTP status was received.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-2xx upstream response.
type HTTPError struct {
	Endpoint   string
	Status     int
	StatusText string
}

func (e *HTTPError) Error() string {
	text := e.StatusText
	if text == "" {
		text = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s: HTTP %d %s", e.Endpoint, e.Status, text)
}

// ParseError is a 2xx response whose body is not valid JSON.
type ParseError struct {
	Endpoint string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse response: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

package client

import (
	"context"
	"errors"
	"net/http"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kjstillabower/weather-dashboard/internal/config"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/schema"
)

const styleBody = `{"version": 8, "name": "Streets Dark", "sources": {"maptiler": {"type": "vector"}}, "layers": [{"id": "bg", "type": "background"}]}`

func counterValue(t *testing.T, schemaName string) float64 {
	t.Helper()
	return testutil.ToFloat64(observability.SchemaFailuresTotal.WithLabelValues(schemaName))
}

func TestGetStyle_Success(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, styleBody, func(r *http.Request) {
		if r.URL.Path != "/maps/streets-v4-dark/style.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "mt-key" {
			t.Errorf("key = %q, want mt-key", r.URL.Query().Get("key"))
		}
	})
	c := NewMapTilerClient(config.Credentials{MapTilerKey: "mt-key"}, srv.URL+"/", nil)

	got, err := c.GetStyle(context.Background(), "streets-v4-dark")
	if err != nil {
		t.Fatalf("GetStyle() error = %v", err)
	}
	if got.Version != 8 || got.Name != "Streets Dark" {
		t.Errorf("GetStyle() = %+v", got)
	}
	var raw map[string]any
	if err := gojson.Unmarshal(got.Raw, &raw); err != nil {
		t.Fatalf("Raw is not JSON: %v", err)
	}
	if _, ok := raw["sources"]; !ok {
		t.Errorf("Raw lost sources: %s", got.Raw)
	}
}

func TestGetStyle_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"forbidden", http.StatusForbidden, `{}`, func(err error) bool {
			var e *HTTPError
			return errors.As(err, &e) && e.Status == http.StatusForbidden
		}},
		{"missing layers", http.StatusOK, `{"version": 8, "sources": {}}`, func(err error) bool {
			var e *schema.ValidationError
			return errors.As(err, &e) && e.Path == "$.layers"
		}},
		{"not json", http.StatusOK, `<html>`, func(err error) bool {
			var e *ParseError
			return errors.As(err, &e)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.status, tt.body, nil)
			c := NewMapTilerClient(config.Credentials{MapTilerKey: "mt-key"}, srv.URL, nil)
			_, err := c.GetStyle(context.Background(), "streets-v4-dark")
			if !tt.check(err) {
				t.Errorf("GetStyle() error = %v (%T)", err, err)
			}
		})
	}
}

func TestGetStyle_EmptyID(t *testing.T) {
	srv, calls := newTestServer(t, http.StatusOK, styleBody, nil)
	c := NewMapTilerClient(config.Credentials{MapTilerKey: "mt-key"}, srv.URL, nil)
	if _, err := c.GetStyle(context.Background(), " "); !errors.Is(err, ErrInvalidStyleID) {
		t.Errorf("GetStyle() error = %v, want ErrInvalidStyleID", err)
	}
	if *calls != 0 {
		t.Errorf("requests = %d, want 0", *calls)
	}
}

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kjstillabower/weather-dashboard/internal/config"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/schema"
)

// StyleFetcher loads a vector map style by id.
type StyleFetcher interface {
	GetStyle(ctx context.Context, styleID string) (models.StyleDescriptor, error)
}

// MapTilerClient fetches MapLibre style documents from MapTiler.
type MapTilerClient struct {
	apiKey  string
	baseURL string
	r       requester
}

// NewMapTilerClient builds a style client for baseURL (for example
// https://api.maptiler.com).
func NewMapTilerClient(creds config.Credentials, baseURL string, httpClient *http.Client) *MapTilerClient {
	return &MapTilerClient{
		apiKey:  creds.MapTilerKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		r:       newRequester(httpClient),
	}
}

// GetStyle fetches and validates the style document for styleID.
func (c *MapTilerClient) GetStyle(ctx context.Context, styleID string) (models.StyleDescriptor, error) {
	styleID = strings.TrimSpace(styleID)
	if styleID == "" {
		return models.StyleDescriptor{}, ErrInvalidStyleID
	}
	q := url.Values{}
	q.Set("key", c.apiKey)
	u := fmt.Sprintf("%s/maps/%s/style.json?%s", c.baseURL, url.PathEscape(styleID), q.Encode())
	return fetch(ctx, c.r, EndpointStyle, u, schema.Style)
}

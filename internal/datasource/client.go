// Package datasource fetches JSON documents that components suspend on
// while they render.
package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	apperrors "github.com/conneroisu/seedling/internal/errors"
)

// DefaultTimeout bounds a single fetch.
const DefaultTimeout = 5 * time.Second

// maxBodySize caps how much of a response is decoded.
const maxBodySize = 10 << 20

// Client performs authenticated GET requests against a base URL.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
}

// New creates a client. An empty baseURL is rejected; callers that have no
// data source should not create a client.
func New(baseURL, token string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("data source base URL is empty")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid data source URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid data source URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("data source URL must have a valid hostname")
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: parsed,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Resolve joins p onto the base URL.
func (c *Client) Resolve(p string) string {
	u := *c.baseURL
	u.Path = path.Join("/", u.Path, p)
	if strings.HasSuffix(p, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// GetJSON fetches p relative to the base URL and decodes it into out. A 404
// becomes a not-found RenderError so the pipeline can apply its diagnostic
// policy; other non-2xx answers carry the upstream status.
func (c *Client) GetJSON(ctx context.Context, p string, out interface{}) error {
	target := c.Resolve(p)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.KindData, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		status := http.StatusBadGateway
		var netErr net.Error
		if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
			status = http.StatusGatewayTimeout
		}
		return apperrors.New(apperrors.KindData, status, "fetching %s: %v", p, err).WithCause(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.New(apperrors.KindData, http.StatusNotFound, "not found: %s", p)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return apperrors.New(apperrors.KindData, resp.StatusCode, "data source returned %d for %s", resp.StatusCode, p)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		return apperrors.New(apperrors.KindData, http.StatusBadGateway, "decoding %s: %v", p, err).WithCause(err)
	}
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/texpreview/internal/httputil"
	"github.com/pdiddy/texpreview/pkg/types"
)

// maxArtifactSize is the largest PDF accepted from the service. Larger
// responses are rejected rather than truncated.
var maxArtifactSize int64 = 64 << 20

// RemoteConverter posts LaTeX to an HTTP conversion service and reads the
// PDF from the response body.
type RemoteConverter struct {
	client *http.Client

	url        string
	apiKey     string
	userAgent  string
	maxRetries int
}

// Option configures a RemoteConverter.
type Option func(*RemoteConverter)

// WithClient replaces the HTTP client.
func WithClient(client *http.Client) Option {
	return func(c *RemoteConverter) {
		c.client = client
	}
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *RemoteConverter) {
		c.apiKey = key
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *RemoteConverter) {
		c.userAgent = ua
	}
}

// WithTimeout bounds each HTTP exchange. Zero keeps the client default.
func WithTimeout(d time.Duration) Option {
	return func(c *RemoteConverter) {
		if d > 0 {
			c.client = &http.Client{Transport: c.client.Transport, Timeout: d}
		}
	}
}

// WithMaxRetries sets how many times an HTTP 429 is retried.
func WithMaxRetries(n int) Option {
	return func(c *RemoteConverter) {
		c.maxRetries = n
	}
}

type convertRequest struct {
	LatexCode string `json:"latexCode"`
}

// NewRemoteConverter creates a converter for the service at url.
func NewRemoteConverter(url string, options ...Option) (*RemoteConverter, error) {
	if url == "" {
		return nil, errors.New("remote backend requires an endpoint url")
	}

	c := &RemoteConverter{
		client: http.DefaultClient,
		url:    url,
	}

	for _, option := range options {
		option(c)
	}

	return c, nil
}

// Convert sends source to the service. Any non-200 response is an error
// whose message is the response body, or the status text when it is empty.
func (c *RemoteConverter) Convert(ctx context.Context, source string) (*types.Artifact, error) {
	body, err := json.Marshal(convertRequest{LatexCode: source})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", types.ContentTypePDF)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("calling conversion service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, convertError(resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if int64(len(data)) > maxArtifactSize {
		return nil, fmt.Errorf("reading response: PDF exceeds %d bytes", maxArtifactSize)
	}

	return newArtifact(data)
}

func convertError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if msg := strings.TrimSpace(string(data)); msg != "" {
		return fmt.Errorf("conversion service: %s", msg)
	}

	return fmt.Errorf("conversion service: %s", http.StatusText(resp.StatusCode))
}

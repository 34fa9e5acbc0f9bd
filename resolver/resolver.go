// Package resolver is the client for the source-resolver service, which
// turns a remote track locator into metadata and a streamable URL.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TrackInfo is the metadata the resolver returns for a locator.
type TrackInfo struct {
	Title           string  `json:"title"`
	ThumbnailURL    string  `json:"thumbnailUrl"`
	DurationSeconds float64 `json:"durationSeconds"`
	UploaderName    string  `json:"uploaderName"`
}

// ResolveError is the structured error payload the service returns.
type ResolveError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Details string `json:"details"`
}

func (e *ResolveError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("resolver: %s: %s", e.Message, e.Details)
	}
	return fmt.Sprintf("resolver: %s", e.Message)
}

// Client talks to the resolver service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a resolver client for the service at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Resolve fetches metadata for a locator.
func (c *Client) Resolve(ctx context.Context, locator string) (*TrackInfo, error) {
	endpoint := fmt.Sprintf("%s/resolve?url=%s", c.baseURL, url.QueryEscape(locator))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build resolve request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", locator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var info TrackInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode resolve response: %w", err)
	}
	return &info, nil
}

// StreamURL derives the URL at which the resolved byte stream for a
// locator can be fetched. The URL is handed directly to the playback
// engine; the resolver performs the actual extraction server-side.
func (c *Client) StreamURL(locator string) string {
	return fmt.Sprintf("%s/stream?url=%s", c.baseURL, url.QueryEscape(locator))
}

// decodeError converts a non-200 response into a ResolveError, falling
// back to the HTTP status when the body is not the expected payload.
func decodeError(resp *http.Response) error {
	re := &ResolveError{Status: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(re); err != nil || re.Message == "" {
		re.Message = resp.Status
	}
	return re
}

// Package auth is the client for the device-flow authorization service
// that unlocks restricted remote sources. The playback engine never
// depends on it; it only ever receives a playable URL.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Status reports whether the resolver side holds valid credentials.
type Status struct {
	LoggedIn bool   `json:"loggedIn"`
	Name     string `json:"name,omitempty"`
}

// Flow holds what the user needs to complete a device-flow login.
type Flow struct {
	VerificationURL string `json:"verificationUrl"`
	UserCode        string `json:"userCode"`
}

// Error is the structured error payload the service returns.
type Error struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Details string `json:"details"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("auth: %s: %s", e.Message, e.Details)
	}
	return fmt.Sprintf("auth: %s", e.Message)
}

// Client talks to the authorization service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates an auth client for the service at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Status fetches the current login state.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.call(ctx, http.MethodGet, "/auth/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// StartFlow begins a device-flow login and returns the verification URL
// and user code to present to the user.
func (c *Client) StartFlow(ctx context.Context) (*Flow, error) {
	var fl Flow
	if err := c.call(ctx, http.MethodPost, "/auth/login", &fl); err != nil {
		return nil, err
	}
	return &fl, nil
}

// Logout discards the stored credentials.
func (c *Client) Logout(ctx context.Context) error {
	var out struct {
		Success bool `json:"success"`
	}
	if err := c.call(ctx, http.MethodPost, "/auth/logout", &out); err != nil {
		return err
	}
	if !out.Success {
		return &Error{Message: "logout did not succeed"}
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build auth request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ae := &Error{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(ae); err != nil || ae.Message == "" {
			ae.Message = resp.Status
		}
		return ae
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode auth response: %w", err)
	}
	return nil
}

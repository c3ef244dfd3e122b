// Package client talks to a running bridge over HTTP and WebSocket.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/michaelbrown/execbridge/internal/engine"
)

// DefaultURL is where a bridge listens with the default configuration.
const DefaultURL = "http://localhost:1987"

// Client posts fragments to a bridge.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for the bridge at baseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// Ping checks that the bridge is answering.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pinging bridge: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pinging bridge: unexpected status %s", resp.Status)
	}
	return nil
}

// Execute runs fragment on the bridge. A fragment that raises is not an
// error; its traceback is in the result.
func (c *Client) Execute(ctx context.Context, fragment string) (engine.Result, error) {
	var res engine.Result
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", strings.NewReader(fragment))
	if err != nil {
		return res, err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return res, fmt.Errorf("posting fragment: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusBadRequest:
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return res, fmt.Errorf("posting fragment: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return res, fmt.Errorf("decoding result: %w", err)
	}
	return res, nil
}

// WebSocketURL derives the streaming endpoint from an HTTP base URL.
func WebSocketURL(baseURL string) string {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/websocket/"
}

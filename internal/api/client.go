package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls the operator API of a running orchestrator.
type Client struct {
	baseURL string
	http    *http.Client
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

// NewClient creates a client for baseURL (e.g. "http://localhost:8080").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Start activates puzzle id.
func (c *Client) Start(ctx context.Context, id int) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/puzzles/%d/start", id), &out)
	return out, err
}

// Stop clears the active puzzle.
func (c *Client) Stop(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodPost, "/stop", &out)
	return out, err
}

// Reset resets the active puzzle.
func (c *Client) Reset(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodPost, "/reset", &out)
	return out, err
}

// TimerExpired reports an expired observer timer.
func (c *Client) TimerExpired(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodPost, "/timer_expired", &out)
	return out, err
}

// State returns the active puzzle's snapshot.
func (c *Client) State(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	err := c.do(ctx, http.MethodGet, "/state", &out)
	return out, err
}

// Puzzles lists the registered puzzles.
func (c *Client) Puzzles(ctx context.Context) (PuzzlesResponse, error) {
	var out PuzzlesResponse
	err := c.do(ctx, http.MethodGet, "/puzzles", &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach orchestrator at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

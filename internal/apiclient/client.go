// Package apiclient calls the companion API on behalf of a signed-in user.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
)

// Error is a decoded error envelope.
type Error struct {
	Status  int
	Kind    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d)", e.Kind, e.Status)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client. An empty token calls the API anonymously.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Entitlement fetches the caller's plan, quotas and today's usage.
func (c *Client) Entitlement(ctx context.Context) (domain.Entitlement, error) {
	var ent domain.Entitlement
	err := c.do(ctx, http.MethodGet, "/entitlement", nil, &ent)
	return ent, err
}

// Chat sends the conversation and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (string, error) {
	var resp domain.ChatResponse
	if err := c.do(ctx, http.MethodPost, "/ai-chat", req, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// AnalyzeMeal sends a meal photo for nutrition analysis.
func (c *Client) AnalyzeMeal(ctx context.Context, req domain.VisionRequest) (domain.VisionResult, error) {
	var result domain.VisionResult
	err := c.do(ctx, http.MethodPost, "/ai-vision", req, &result)
	return result, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &Error{Status: resp.StatusCode, Kind: http.StatusText(resp.StatusCode)}
		var env domain.ErrorEnvelope
		if json.NewDecoder(resp.Body).Decode(&env) == nil && env.Error != "" {
			apiErr.Kind = env.Error
			apiErr.Message = env.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

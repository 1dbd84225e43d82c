// Package client talks to the focusforge API on behalf of the sampler agent.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"example.com/focusforge/internal/api"
	"example.com/focusforge/internal/domain"
)

const maxErrorBody = 4 << 10

// Client calls the classify and update-time endpoints with a caller-supplied bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Client for baseURL. Every request is bounded by timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Classify posts a sample to /v1/classify.
func (c *Client) Classify(ctx context.Context, token string, req api.ClassifyRequest) (api.ClassifyResponse, error) {
	var out api.ClassifyResponse
	err := c.post(ctx, "/v1/classify", token, req, &out)
	return out, err
}

// UpdateTime posts one buffered activity to /v1/time/update-time.
func (c *Client) UpdateTime(ctx context.Context, token string, req api.UpdateTimeRequest) (api.SummaryView, error) {
	var out api.SummaryView
	err := c.post(ctx, "/v1/time/update-time", token, req, &out)
	return out, err
}

func (c *Client) post(ctx context.Context, path, token string, payload, out any) error {
	if strings.TrimSpace(token) == "" {
		return domain.ErrAuthMissing
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isNetworkError(err) {
			return domain.TransientError(err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}

// statusError turns a non-200 response into the matching domain error.
func statusError(path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Type   string `json:"type"`
		Detail string `json:"detail"`
	}
	detail := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil && payload.Detail != "" {
		detail = payload.Detail
	}
	detail = fmt.Sprintf("%s: status %d: %s", path, resp.StatusCode, detail)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &domain.Error{Kind: domain.ErrAuthMissing, Detail: detail}
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return &domain.Error{Kind: domain.ErrNoValidSignal, Detail: detail}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &domain.Error{Kind: domain.ErrTransientUpstream, Detail: detail}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &domain.Error{Kind: domain.ErrInvalidInput, Detail: detail}
	}
	return errors.New(detail)
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Package huggingface implements the text and activity classifiers on top of the
// Hugging Face zero-shot inference API.
package huggingface

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

	"example.com/focusforge/internal/classify"
	"example.com/focusforge/internal/domain"
)

const (
	DefaultBaseURL = "https://api-inference.huggingface.co"
	DefaultModel   = "facebook/bart-large-mnli"

	maxErrorBody = 4 << 10
)

var productivityLabels = []string{string(domain.LabelProductive), string(domain.LabelUnproductive)}

// Config configures the client.
type Config struct {
	BaseURL string
	Token   string
	Model   string
	Timeout time.Duration
}

// Client calls the zero-shot classification endpoint.
type Client struct {
	baseURL    string
	token      string
	model      string
	httpClient *http.Client
}

// NewClient constructs a Client, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
}

type zeroShotResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// ClassifyText implements classify.TextClassifier with the productive/unproductive candidates.
func (c *Client) ClassifyText(ctx context.Context, text string) (classify.Verdict, error) {
	label, score, err := c.zeroShot(ctx, text, productivityLabels)
	if err != nil {
		return classify.Verdict{}, err
	}
	parsed, ok := domain.ParseLabel(label)
	if !ok {
		return classify.Verdict{}, fmt.Errorf("huggingface: unexpected label %q", label)
	}
	return classify.Verdict{Label: parsed, Score: score}, nil
}

// ClassifyActivity implements classify.ActivityClassifier over domain.ActivityLabels.
func (c *Client) ClassifyActivity(ctx context.Context, text string) (classify.ActivityVerdict, error) {
	label, score, err := c.zeroShot(ctx, text, domain.ActivityLabels)
	if err != nil {
		return classify.ActivityVerdict{}, err
	}
	return classify.ActivityVerdict{ActivityType: domain.CanonicalActivity(label), Score: score}, nil
}

func (c *Client) zeroShot(ctx context.Context, text string, labels []string) (string, float64, error) {
	body, err := json.Marshal(zeroShotRequest{
		Inputs:     text,
		Parameters: zeroShotParameters{CandidateLabels: labels},
	})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/"+c.model, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isNetworkError(err) {
			return "", 0, domain.TransientError(err)
		}
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := fmt.Errorf("huggingface: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		// 503 is also returned while the model is loading.
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", 0, domain.TransientError(statusErr)
		}
		return "", 0, statusErr
	}

	var decoded zeroShotResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", 0, fmt.Errorf("huggingface: decode response: %w", err)
	}
	if len(decoded.Labels) == 0 || len(decoded.Labels) != len(decoded.Scores) {
		return "", 0, errors.New("huggingface: empty or mismatched labels")
	}
	return decoded.Labels[0], decoded.Scores[0], nil
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

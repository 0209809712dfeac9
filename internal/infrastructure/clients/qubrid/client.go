package qubrid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/radreference/internal/domain/providers"
	"github.com/zatekoja/radreference/internal/infrastructure/clients/aimetrics"
	"github.com/zatekoja/radreference/pkg/config"
)

const defaultEndpoint = "https://api.qubrid.com/v1/chat/completions"

// Client implements the Qubrid AI provider backend. Qubrid exposes only a
// bare chat-completions HTTP endpoint, no SDK.
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a new Qubrid client.
func NewClient(cfg *config.AIConfig) (*Client, error) {
	if cfg == nil || cfg.QubridAPIKey == "" {
		return nil, fmt.Errorf("%w: qubrid api key is required", providers.ErrAINotConfigured)
	}

	model := cfg.QubridModel
	if model == "" {
		model = "qubrid-chat"
	}

	return &Client{
		apiKey:     cfg.QubridAPIKey,
		model:      model,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{},
	}, nil
}

// Name returns the provider key.
func (c *Client) Name() string { return "qubrid" }

// Validate performs the short verdict call.
func (c *Client) Validate(ctx context.Context, prompt string, maxTokens int, timeout time.Duration) (string, error) {
	return c.complete(ctx, prompt, maxTokens, timeout)
}

// Generate performs the full card-generation completion.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int, timeout time.Duration) (string, error) {
	return c.complete(ctx, prompt, maxTokens, timeout)
}

type chatEnvelope struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, prompt string, maxTokens int, timeout time.Duration) (string, error) {
	payload := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens": maxTokens,
		"stream":     false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		aimetrics.RecordRequest(ctx, c.Name(), c.model, 0, time.Since(start), err)
		if isTimeout(err) {
			return "", fmt.Errorf("%w: %v", providers.ErrAITimeout, err)
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		aimetrics.RecordRequest(ctx, c.Name(), c.model, resp.StatusCode, time.Since(start), fmt.Errorf("status %d", resp.StatusCode))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", fmt.Errorf("%w: qubrid request failed with status %d", providers.ErrAINotConfigured, resp.StatusCode)
		}
		return "", fmt.Errorf("qubrid request failed with status %d", resp.StatusCode)
	}

	var envelope chatEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		aimetrics.RecordRequest(ctx, c.Name(), c.model, resp.StatusCode, time.Since(start), err)
		return "", err
	}

	aimetrics.RecordRequest(ctx, c.Name(), c.model, resp.StatusCode, time.Since(start), nil)

	if len(envelope.Choices) == 0 {
		return providers.EmptyCompletion, nil
	}
	text := strings.TrimSpace(envelope.Choices[0].Message.Content)
	if text == "" {
		return providers.EmptyCompletion, nil
	}
	return text, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

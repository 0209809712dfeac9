package openai

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

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements the OpenAI AI provider backend.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *tokenBucket
}

// NewClient creates a new OpenAI client.
func NewClient(cfg *config.AIConfig) (*Client, error) {
	if cfg == nil || cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: openai api key is required", providers.ErrAINotConfigured)
	}

	model := cfg.OpenAIModel
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Client{
		apiKey:  cfg.OpenAIAPIKey,
		model:   model,
		baseURL: defaultBaseURL,
		// Per-call deadlines come from the request context; the client
		// itself stays unbounded so force_timeout overrides work.
		httpClient: &http.Client{},
		limiter:    newTokenBucket(cfg.RateLimitRPM, cfg.RateLimitBurst),
	}, nil
}

// Name returns the provider key.
func (c *Client) Name() string { return "openai" }

// Validate performs the short verdict call.
func (c *Client) Validate(ctx context.Context, prompt string, maxTokens int, timeout time.Duration) (string, error) {
	return c.complete(ctx, prompt, maxTokens, timeout, true)
}

// Generate performs the full card-generation completion.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int, timeout time.Duration) (string, error) {
	return c.complete(ctx, prompt, maxTokens, timeout, false)
}

const systemPrompt = "You are a radiology reference assistant. Respond with a single JSON array only; no prose outside JSON."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionEnvelope struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, prompt string, maxTokens int, timeout time.Duration, jsonObject bool) (string, error) {
	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			aimetrics.RecordRequest(ctx, c.Name(), c.model, 0, 0, err)
			return "", err
		}
		aimetrics.RecordRateLimitWait(ctx, c.Name(), c.model, time.Since(waitStart))
	}

	payload := map[string]interface{}{
		"model": c.model,
		"messages": []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		"temperature": 0.2,
		"max_tokens":  maxTokens,
	}
	if jsonObject {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
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
			return "", fmt.Errorf("%w: openai request failed with status %d", providers.ErrAINotConfigured, resp.StatusCode)
		}
		return "", fmt.Errorf("openai request failed with status %d", resp.StatusCode)
	}

	var envelope chatCompletionEnvelope
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

// isTimeout distinguishes read timeouts (retried upstream) from other
// transport failures.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func newTokenBucket(rpm int, burst int) *tokenBucket {
	if rpm == 0 {
		rpm = 60
	}
	if rpm < 0 {
		return nil
	}
	if burst <= 0 {
		burst = 5
	}
	return newTokenBucketWithRate(rpm, burst)
}

type tokenBucket struct {
	tokens chan struct{}
}

func newTokenBucketWithRate(rpm int, burst int) *tokenBucket {
	bucket := &tokenBucket{
		tokens: make(chan struct{}, burst),
	}

	for i := 0; i < burst; i++ {
		bucket.tokens <- struct{}{}
	}

	interval := time.Minute / time.Duration(rpm)
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			select {
			case bucket.tokens <- struct{}{}:
			default:
			}
		}
	}()

	return bucket
}

func (b *tokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.tokens:
		return nil
	}
}

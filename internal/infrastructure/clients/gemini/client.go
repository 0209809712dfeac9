package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/zatekoja/radreference/internal/domain/providers"
	"github.com/zatekoja/radreference/internal/infrastructure/clients/aimetrics"
	"github.com/zatekoja/radreference/pkg/config"
	"google.golang.org/api/option"
)

// Client implements the Gemini AI provider backend via the genai SDK.
type Client struct {
	apiKey string
	model  string
}

// NewClient creates a new Gemini client.
func NewClient(cfg *config.AIConfig) (*Client, error) {
	if cfg == nil || cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", providers.ErrAINotConfigured)
	}

	model := cfg.GeminiModel
	if model == "" {
		model = "gemini-1.5-flash"
	}

	return &Client{
		apiKey: strings.TrimSpace(cfg.GeminiAPIKey),
		model:  strings.TrimSpace(model),
	}, nil
}

// Name returns the provider key.
func (c *Client) Name() string { return "gemini" }

// Validate performs the short verdict call.
func (c *Client) Validate(ctx context.Context, prompt string, maxTokens int, timeout time.Duration) (string, error) {
	return c.complete(ctx, prompt, maxTokens, timeout)
}

// Generate performs the full card-generation completion.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int, timeout time.Duration) (string, error) {
	return c.complete(ctx, prompt, maxTokens, timeout)
}

func (c *Client) complete(ctx context.Context, prompt string, maxTokens int, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cl, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return "", fmt.Errorf("%w: %v", providers.ErrAINotConfigured, err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(c.model)
	temperature := float32(0.2)
	maxOutput := int32(maxTokens)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:     &temperature,
		MaxOutputTokens: &maxOutput,
	}

	start := time.Now()
	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		aimetrics.RecordRequest(ctx, c.Name(), c.model, 0, time.Since(start), err)
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", providers.ErrAITimeout, err)
		}
		return "", err
	}
	aimetrics.RecordRequest(ctx, c.Name(), c.model, 0, time.Since(start), nil)

	text := firstCandidateText(resp)
	if text == "" {
		return providers.EmptyCompletion, nil
	}
	return text, nil
}

// firstCandidateText joins the text parts of the first candidate. Multiple
// parts are seen in practice for long completions.
func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

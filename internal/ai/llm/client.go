package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"equities-trading-bot/internal/httpclient"
)

// Provider represents the LLM provider type
type Provider string

const (
	ProviderClaude   Provider = "claude"
	ProviderOpenAI   Provider = "openai"
	ProviderDeepSeek Provider = "deepseek"
)

var (
	// ErrRateLimited is returned when the provider throttles the request
	ErrRateLimited = errors.New("llm rate limited")
	// ErrProviderUnavailable is returned for transport failures, 5xx and misconfiguration
	ErrProviderUnavailable = errors.New("llm provider unavailable")
)

// ClientConfig holds LLM client configuration
type ClientConfig struct {
	Provider       Provider      `json:"provider" yaml:"provider" default:"claude" validate:"oneof=claude openai deepseek"`
	APIKey         string        `json:"api_key" yaml:"api_key"`
	Model          string        `json:"model" yaml:"model" default:"claude-sonnet-4-20250514"`
	BaseURL        string        `json:"base_url" yaml:"base_url"`
	SystemPrompt   string        `json:"system_prompt" yaml:"system_prompt"`
	RequestsPerSec int           `json:"requests_per_sec" yaml:"requests_per_sec" default:"2"`
	Timeout        time.Duration `json:"timeout" yaml:"timeout" default:"30s"`
}

// DefaultClientConfig returns default configuration
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Provider:       ProviderClaude,
		Model:          "claude-sonnet-4-20250514",
		RequestsPerSec: 2,
		Timeout:        30 * time.Second,
	}
}

const defaultSystemPrompt = "You are a disciplined equities and options trading analyst. Answer only in the requested format."

// Client is the LLM API client
type Client struct {
	config *ClientConfig
	http   *httpclient.Client
	logger zerolog.Logger
}

// NewClient creates a new LLM client
func NewClient(config *ClientConfig, logger zerolog.Logger) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	return &Client{
		config: config,
		http: httpclient.New(httpclient.Options{
			Timeout:        config.Timeout,
			RequestsPerSec: config.RequestsPerSec,
			MaxRetries:     2,
		}),
		logger: logger.With().Str("component", "llm").Str("provider", string(config.Provider)).Logger(),
	}
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ClaudeRequest represents a Claude API request
type ClaudeRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
}

// ClaudeResponse represents a Claude API response
type ClaudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenAIRequest represents an OpenAI-compatible chat request
type OpenAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

// OpenAIResponse represents an OpenAI-compatible chat response
type OpenAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *Client) endpoint() string {
	if c.config.BaseURL != "" {
		return strings.TrimRight(c.config.BaseURL, "/")
	}
	switch c.config.Provider {
	case ProviderOpenAI:
		return "https://api.openai.com/v1/chat/completions"
	case ProviderDeepSeek:
		return "https://api.deepseek.com/v1/chat/completions"
	default:
		return "https://api.anthropic.com/v1/messages"
	}
}

func (c *Client) systemPrompt() string {
	if c.config.SystemPrompt != "" {
		return c.config.SystemPrompt
	}
	return defaultSystemPrompt
}

// Complete sends a completion request to the LLM
func (c *Client) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("%w: no API key configured", ErrProviderUnavailable)
	}
	start := time.Now()

	var text string
	var err error
	switch c.config.Provider {
	case ProviderClaude:
		text, err = c.completeClaude(ctx, prompt, temperature, maxTokens)
	case ProviderOpenAI, ProviderDeepSeek:
		text, err = c.completeOpenAI(ctx, prompt, temperature, maxTokens)
	default:
		return "", fmt.Errorf("%w: unsupported provider %s", ErrProviderUnavailable, c.config.Provider)
	}
	if err != nil {
		return "", classify(err)
	}

	c.logger.Debug().Dur("latency", time.Since(start)).Int("chars", len(text)).Msg("Completion received")
	return text, nil
}

func classify(err error) error {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProviderUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}

func (c *Client) completeClaude(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	req := ClaudeRequest{
		Model:       c.config.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      c.systemPrompt(),
		Messages:    []Message{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{
		"x-api-key":         c.config.APIKey,
		"anthropic-version": "2023-06-01",
	}

	var resp ClaudeResponse
	if err := c.http.DoJSON(ctx, http.MethodPost, c.endpoint(), headers, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s - %s", resp.Error.Type, resp.Error.Message)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("empty response from Claude")
	}
	return resp.Content[0].Text, nil
}

func (c *Client) completeOpenAI(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	req := OpenAIRequest{
		Model: c.config.Model,
		Messages: []Message{
			{Role: "system", Content: c.systemPrompt()},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.config.APIKey}

	var resp OpenAIResponse
	if err := c.http.DoJSON(ctx, http.MethodPost, c.endpoint(), headers, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s - %s", resp.Error.Type, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from %s", c.config.Provider)
	}
	return resp.Choices[0].Message.Content, nil
}

// GetProvider returns the configured provider
func (c *Client) GetProvider() Provider {
	return c.config.Provider
}

// IsConfigured checks if the client is properly configured
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestCompleteClaude(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "secret" {
			t.Errorf("Expected api key header, got %q", r.Header.Get("x-api-key"))
		}
		var req ClaudeRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.MaxTokens != 500 || req.Temperature != 0.3 {
			t.Errorf("Expected max_tokens 500 and temperature 0.3, got %d / %.1f", req.MaxTokens, req.Temperature)
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"RECOMMENDATION: HOLD"}]}`))
	}))
	defer srv.Close()

	c := NewClient(&ClientConfig{Provider: ProviderClaude, APIKey: "secret", BaseURL: srv.URL, RequestsPerSec: 100}, zerolog.Nop())
	text, err := c.Complete(context.Background(), "analyze", 0.3, 500)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if text != "RECOMMENDATION: HOLD" {
		t.Errorf("Expected completion text, got %q", text)
	}
}

func TestCompleteOpenAIRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(&ClientConfig{Provider: ProviderOpenAI, APIKey: "k", BaseURL: srv.URL, RequestsPerSec: 100}, zerolog.Nop())
	_, err := c.Complete(context.Background(), "p", 0.3, 100)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}
}

func TestCompleteUnconfigured(t *testing.T) {
	c := NewClient(&ClientConfig{Provider: ProviderClaude}, zerolog.Nop())
	if _, err := c.Complete(context.Background(), "p", 0.3, 100); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
}

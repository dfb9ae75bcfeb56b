package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Trading.MinConfidence != 70 {
		t.Errorf("Expected min confidence 70, got %v", cfg.Trading.MinConfidence)
	}
	if cfg.Risk.MaxPositionSize != 5000 {
		t.Errorf("Expected max position size 5000, got %v", cfg.Risk.MaxPositionSize)
	}
	if cfg.Risk.MaxOpenPositions != 5 {
		t.Errorf("Expected 5 max open positions, got %d", cfg.Risk.MaxOpenPositions)
	}
	if cfg.Risk.CircuitBreaker.DailyLossLimit != 1000 {
		t.Errorf("Expected daily loss limit 1000, got %v", cfg.Risk.CircuitBreaker.DailyLossLimit)
	}
	if cfg.Options.MinDTE != 7 || cfg.Options.MaxDTE != 45 {
		t.Errorf("Expected DTE window 7-45, got %d-%d", cfg.Options.MinDTE, cfg.Options.MaxDTE)
	}
	if cfg.Options.StrikePreference != "ATM" {
		t.Errorf("Expected ATM strike preference, got %s", cfg.Options.StrikePreference)
	}
	if cfg.Trading.DedupWindow != 30*time.Minute {
		t.Errorf("Expected 30m dedup window, got %v", cfg.Trading.DedupWindow)
	}
	if len(cfg.Trading.Watchlist) == 0 {
		t.Error("Expected a default watchlist")
	}
	if !cfg.Broker.MockMode {
		t.Error("Expected mock mode by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoadFormats(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name:    "yaml",
			file:    "config.yaml",
			content: "trading:\n  min_confidence: 80\n  watchlist: [TSLA]\nrisk:\n  max_open_positions: 3\n  circuit_breaker:\n    daily_loss_limit: 250\nai:\n  timeout: 5s\n",
		},
		{
			name:    "json",
			file:    "config.json",
			content: `{"trading": {"min_confidence": 80, "watchlist": ["TSLA"]}, "risk": {"max_open_positions": 3, "circuit_breaker": {"daily_loss_limit": 250}}, "ai": {"timeout": 5000000000}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Trading.MinConfidence != 80 {
				t.Errorf("Expected min confidence 80, got %v", cfg.Trading.MinConfidence)
			}
			if len(cfg.Trading.Watchlist) != 1 || cfg.Trading.Watchlist[0] != "TSLA" {
				t.Errorf("Expected watchlist [TSLA], got %v", cfg.Trading.Watchlist)
			}
			if cfg.Risk.MaxOpenPositions != 3 {
				t.Errorf("Expected 3 max open positions, got %d", cfg.Risk.MaxOpenPositions)
			}
			if cfg.Risk.CircuitBreaker.DailyLossLimit != 250 {
				t.Errorf("Expected daily loss limit 250, got %v", cfg.Risk.CircuitBreaker.DailyLossLimit)
			}
			if cfg.AI.Timeout != 5*time.Second {
				t.Errorf("Expected 5s AI timeout, got %v", cfg.AI.Timeout)
			}
			// untouched fields keep defaults
			if cfg.Risk.MaxPositionSize != 5000 {
				t.Errorf("Expected default max position size, got %v", cfg.Risk.MaxPositionSize)
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Expected no error for a missing file, got %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"confidence above 100", "trading:\n  min_confidence: 150\n"},
		{"bad strike preference", "options:\n  strike_preference: DEEP\n"},
		{"max dte below min dte", "options:\n  min_dte: 30\n  max_dte: 10\n"},
		{"unknown provider", "ai:\n  provider: llama\n"},
		{"malformed", "trading: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUTO_TRADING_ENABLED", "true")
	t.Setenv("MIN_CONFIDENCE", "85")
	t.Setenv("WATCHLIST", "aapl, msft ,")
	t.Setenv("TELEGRAM_CHAT_ID", "12345")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("MAX_OPEN_POSITIONS", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Trading.AutoTradingEnabled {
		t.Error("Expected auto trading enabled from env")
	}
	if cfg.Trading.MinConfidence != 85 {
		t.Errorf("Expected min confidence 85, got %v", cfg.Trading.MinConfidence)
	}
	if len(cfg.Trading.Watchlist) != 2 || cfg.Trading.Watchlist[1] != "MSFT" {
		t.Errorf("Expected [AAPL MSFT], got %v", cfg.Trading.Watchlist)
	}
	if cfg.Notification.Telegram.ChatID != 12345 {
		t.Errorf("Expected chat id 12345, got %d", cfg.Notification.Telegram.ChatID)
	}
	if len(cfg.Notification.Kafka.Brokers) != 2 {
		t.Errorf("Expected 2 kafka brokers, got %v", cfg.Notification.Kafka.Brokers)
	}
	if cfg.Risk.MaxOpenPositions != 5 {
		t.Errorf("Expected unparseable env to keep 5, got %d", cfg.Risk.MaxOpenPositions)
	}
}

func TestGenerateSampleRoundTrips(t *testing.T) {
	for _, name := range []string{"sample.yaml", "sample.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := GenerateSample(path); err != nil {
				t.Fatalf("GenerateSample failed: %v", err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load of sample failed: %v", err)
			}
			if cfg.Broker.APIKey != "your_api_key_here" {
				t.Errorf("Expected placeholder api key, got %q", cfg.Broker.APIKey)
			}
			if len(cfg.Strategies.Active) != 4 {
				t.Errorf("Expected 4 active strategies, got %v", cfg.Strategies.Active)
			}
		})
	}
}

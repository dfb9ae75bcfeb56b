package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"equities-trading-bot/internal/broker"
)

func flatBars(n int, price, volume float64) []broker.Bar {
	bars := make([]broker.Bar, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = broker.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    volume,
		}
	}
	return bars
}

func TestMeasureVolumeRatio(t *testing.T) {
	bars := flatBars(30, 100, 1000)
	bars[len(bars)-1].Volume = 3000

	opp, err := Measure("AAPL", bars, broker.Quote{Last: 100}, time.Now())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if opp.VolumeRatio != 3 {
		t.Errorf("Expected volume ratio 3, got %.2f", opp.VolumeRatio)
	}
	if opp.Momentum != 0 || opp.Volatility != 0 {
		t.Errorf("Expected flat momentum and volatility, got %.2f / %.2f", opp.Momentum, opp.Volatility)
	}
	// 40 for volume, nothing else on a flat series
	if opp.Score != 40 {
		t.Errorf("Expected score 40, got %.2f", opp.Score)
	}
}

func TestMeasureInsufficientBars(t *testing.T) {
	if _, err := Measure("AAPL", flatBars(1, 100, 1000), broker.Quote{}, time.Now()); err == nil {
		t.Error("Expected error for a single bar")
	}
}

func TestScanSkipsFailuresAndSortsByScore(t *testing.T) {
	gw := broker.NewMockGateway(broker.MockOptions{})
	quiet := flatBars(30, 50, 1000)
	busy := flatBars(30, 80, 1000)
	busy[len(busy)-1].Volume = 5000
	gw.SetBars("QUIET", quiet)
	gw.SetBars("BUSY", busy)
	gw.FailBars("BROKEN", errors.New("timeout"))

	sc := NewScanner(gw, ScannerConfig{WorkerCount: 2, BarLimit: 30}, zerolog.Nop())
	result := sc.Scan(context.Background(), []string{"QUIET", "BROKEN", "BUSY"})

	if result.SymbolsScanned != 3 {
		t.Errorf("Expected 3 symbols scanned, got %d", result.SymbolsScanned)
	}
	if result.Skipped != 1 {
		t.Errorf("Expected 1 skipped, got %d", result.Skipped)
	}
	if len(result.Opportunities) != 2 {
		t.Fatalf("Expected 2 opportunities, got %d", len(result.Opportunities))
	}
	if result.Opportunities[0].Symbol != "BUSY" {
		t.Errorf("Expected BUSY first, got %s", result.Opportunities[0].Symbol)
	}
	if sc.GetLastResult() != result {
		t.Error("Expected last result to be stored")
	}
}

func TestScannerCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	c := NewScannerCache(time.Minute)
	c.now = func() time.Time { return now }

	c.Set(Opportunity{Symbol: "AAPL", Score: 10})
	if _, ok := c.Get("AAPL"); !ok {
		t.Error("Expected cached entry")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("AAPL"); ok {
		t.Error("Expected entry to expire")
	}
	c.CleanupExpired()
	if c.Len() != 0 {
		t.Errorf("Expected empty cache, got %d", c.Len())
	}
}

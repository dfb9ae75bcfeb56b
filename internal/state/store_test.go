package state

import (
	"context"
	"testing"
)

func TestMemoryStoreHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	paused, err := GetBool(ctx, s, KeyTradingPaused)
	if err != nil || paused {
		t.Errorf("Expected missing flag to be false, got %v (%v)", paused, err)
	}

	SetBool(ctx, s, KeyTradingPaused, true)
	if paused, _ = GetBool(ctx, s, KeyTradingPaused); !paused {
		t.Error("Expected paused after SetBool")
	}

	SetFloat(ctx, s, KeyCircuitBreakerDailyLoss, 1200.5)
	if f, _ := GetFloat(ctx, s, KeyCircuitBreakerDailyLoss); f != 1200.5 {
		t.Errorf("Expected 1200.5, got %f", f)
	}

	s.Set(ctx, KeyCircuitBreakerTriggered, "maybe")
	if _, err := GetBool(ctx, s, KeyCircuitBreakerTriggered); err == nil {
		t.Error("Expected parse error for invalid bool")
	}
}

// Package state persists the small set of flags that must survive restarts.
package state

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Keys shared by the workflow and the circuit breaker
const (
	KeyTradingPaused           = "trading_paused"
	KeyCircuitBreakerTriggered = "circuit_breaker_triggered"
	KeyCircuitBreakerDate      = "circuit_breaker_date"
	KeyCircuitBreakerDailyLoss = "circuit_breaker_daily_loss"
)

// Store is a string key/value store. Get reports found=false for missing keys.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryStore keeps values in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value for key
func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores value under key
func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// GetBool reads a boolean flag; missing keys are false
func GetBool(ctx context.Context, s Store, key string) (bool, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %w", key, err)
	}
	return b, nil
}

// SetBool writes a boolean flag
func SetBool(ctx context.Context, s Store, key string, value bool) error {
	return s.Set(ctx, key, strconv.FormatBool(value))
}

// GetFloat reads a float value; missing keys are 0
func GetFloat(ctx context.Context, s Store, key string) (float64, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok || v == "" {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for %s: %w", key, err)
	}
	return f, nil
}

// SetFloat writes a float value
func SetFloat(ctx context.Context, s Store, key string, value float64) error {
	return s.Set(ctx, key, strconv.FormatFloat(value, 'f', -1, 64))
}

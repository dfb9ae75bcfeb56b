// Package cache provides Redis-based caching with graceful degradation.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrUnavailable is returned while the Redis breaker is open
var ErrUnavailable = errors.New("redis unavailable (circuit breaker open)")

// ErrMiss is returned for a missing key
var ErrMiss = errors.New("cache miss")

// Config holds Redis configuration
type Config struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Address  string `json:"address" yaml:"address" default:"localhost:6379"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	PoolSize int    `json:"pool_size" yaml:"pool_size" default:"10"`
}

// Key prefixes
const (
	PrefixState         = "state:%s"
	PrefixDailySequence = "sequence:%s"
)

// Default TTLs
const (
	DefaultStateTTL    = 24 * time.Hour
	DefaultSequenceTTL = 48 * time.Hour // covers timezone edges around midnight
)

// CacheService wraps a Redis client. After repeated failures it reports unhealthy and
// callers fall back to the database until a background ping succeeds.
type CacheService struct {
	client       *redis.Client
	config       Config
	logger       zerolog.Logger
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewCacheService connects to Redis; an unreachable server yields a degraded service, not an error
func NewCacheService(ctx context.Context, cfg Config, logger zerolog.Logger) (*CacheService, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	cs := &CacheService{
		client:        client,
		config:        cfg,
		logger:        logger.With().Str("component", "cache").Logger(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
		lastCheck:     time.Now(),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		cs.logger.Warn().Err(err).Str("address", cfg.Address).Msg("Initial Redis connection failed, running degraded")
		return cs, nil
	}

	cs.healthy = true
	cs.logger.Info().Str("address", cfg.Address).Msg("Redis connected")
	return cs, nil
}

// IsHealthy returns whether Redis is currently available
func (cs *CacheService) IsHealthy() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.healthy
}

func (cs *CacheService) recordFailure() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.failureCount++
	if cs.failureCount >= cs.maxFailures {
		if cs.healthy {
			cs.logger.Warn().Int("failures", cs.failureCount).Msg("Redis marked unhealthy")
		}
		cs.healthy = false
	}
}

func (cs *CacheService) recordSuccess() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.healthy {
		cs.logger.Info().Msg("Redis recovered")
	}
	cs.healthy = true
	cs.failureCount = 0
	cs.lastCheck = time.Now()
}

// checkHealth pings in the background once checkInterval has passed while unhealthy
func (cs *CacheService) checkHealth() {
	cs.mu.Lock()
	shouldCheck := !cs.healthy && time.Since(cs.lastCheck) >= cs.checkInterval
	if shouldCheck {
		cs.lastCheck = time.Now()
	}
	cs.mu.Unlock()

	if !shouldCheck {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cs.client.Ping(ctx).Err(); err == nil {
			cs.recordSuccess()
		}
	}()
}

// Get retrieves a value; ErrMiss when absent
func (cs *CacheService) Get(ctx context.Context, key string) (string, error) {
	cs.checkHealth()
	if !cs.IsHealthy() {
		return "", ErrUnavailable
	}

	result, err := cs.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		cs.recordFailure()
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	cs.recordSuccess()
	return result, nil
}

// Set stores a value with TTL
func (cs *CacheService) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	cs.checkHealth()
	if !cs.IsHealthy() {
		return ErrUnavailable
	}

	if err := cs.client.Set(ctx, key, value, ttl).Err(); err != nil {
		cs.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}
	cs.recordSuccess()
	return nil
}

// Incr atomically increments key, applying ttl on first increment
func (cs *CacheService) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	cs.checkHealth()
	if !cs.IsHealthy() {
		return 0, ErrUnavailable
	}

	val, err := cs.client.Incr(ctx, key).Result()
	if err != nil {
		cs.recordFailure()
		return 0, fmt.Errorf("redis incr failed: %w", err)
	}
	if val == 1 {
		cs.client.Expire(ctx, key, ttl)
	}
	cs.recordSuccess()
	return val, nil
}

// Close closes the Redis connection
func (cs *CacheService) Close() error {
	if cs.client != nil {
		return cs.client.Close()
	}
	return nil
}

// Stats is a monitoring snapshot
type Stats struct {
	Healthy      bool   `json:"healthy"`
	FailureCount int    `json:"failure_count"`
	Address      string `json:"address"`
}

// GetStats returns current cache statistics
func (cs *CacheService) GetStats() Stats {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return Stats{Healthy: cs.healthy, FailureCount: cs.failureCount, Address: cs.config.Address}
}

// StateKey is the cache key for a persisted state key
func StateKey(key string) string {
	return fmt.Sprintf(PrefixState, key)
}

// DailySequenceKey is the cache key for a day's order sequence
func DailySequenceKey(dateKey string) string {
	return fmt.Sprintf(PrefixDailySequence, dateKey)
}

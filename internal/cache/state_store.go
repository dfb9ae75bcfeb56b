package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"equities-trading-bot/internal/order"
	"equities-trading-bot/internal/state"
)

// KV is the subset of CacheService the state store needs
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	IsHealthy() bool
}

// RedisStateStore reads through Redis to a durable store and writes to both.
// The durable store is authoritative; Redis errors only cost latency.
type RedisStateStore struct {
	kv       KV
	durable  state.Store
	sequence order.Sequencer
	ttl      time.Duration
	logger   zerolog.Logger
}

// NewRedisStateStore creates a state store; sequence may be nil
func NewRedisStateStore(kv KV, durable state.Store, sequence order.Sequencer, logger zerolog.Logger) *RedisStateStore {
	return &RedisStateStore{
		kv:       kv,
		durable:  durable,
		sequence: sequence,
		ttl:      DefaultStateTTL,
		logger:   logger.With().Str("component", "state_cache").Logger(),
	}
}

// Get returns the cached value, falling back to the durable store
func (s *RedisStateStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.kv.IsHealthy() {
		value, err := s.kv.Get(ctx, StateKey(key))
		if err == nil {
			return value, true, nil
		}
		if !errors.Is(err, ErrMiss) {
			s.logger.Debug().Err(err).Str("key", key).Msg("Cache read failed, using database")
		}
	}

	value, found, err := s.durable.Get(ctx, key)
	if err != nil || !found {
		return value, found, err
	}
	if s.kv.IsHealthy() {
		if err := s.kv.Set(ctx, StateKey(key), value, s.ttl); err != nil {
			s.logger.Debug().Err(err).Str("key", key).Msg("Cache fill failed")
		}
	}
	return value, true, nil
}

// Set writes the durable store first, then the cache
func (s *RedisStateStore) Set(ctx context.Context, key, value string) error {
	if err := s.durable.Set(ctx, key, value); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, StateKey(key), value, s.ttl); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("Cache write failed")
	}
	return nil
}

// IncrementDailySequence uses Redis INCR, falling back to the durable sequencer
func (s *RedisStateStore) IncrementDailySequence(ctx context.Context, dateKey string) (int64, error) {
	if s.kv.IsHealthy() {
		val, err := s.kv.Incr(ctx, DailySequenceKey(dateKey), DefaultSequenceTTL)
		if err == nil {
			return val, nil
		}
		s.logger.Warn().Err(err).Msg("Redis sequence failed, using database")
	}
	if s.sequence == nil {
		return 0, ErrUnavailable
	}
	return s.sequence.IncrementDailySequence(ctx, dateKey)
}

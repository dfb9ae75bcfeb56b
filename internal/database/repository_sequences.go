package database

import (
	"context"
	"fmt"
)

// SequenceRepository hands out daily order sequence numbers
type SequenceRepository struct {
	db *DB
}

// NewSequenceRepository creates a sequence repository
func NewSequenceRepository(db *DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// IncrementDailySequence atomically increments the counter for dateKey, starting at 1
func (r *SequenceRepository) IncrementDailySequence(ctx context.Context, dateKey string) (int64, error) {
	var value int64
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO order_sequences (date_key, value) VALUES ($1, 1)
		 ON CONFLICT (date_key) DO UPDATE SET value = order_sequences.value + 1
		 RETURNING value`, dateKey).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence %s: %w", dateKey, err)
	}
	return value, nil
}

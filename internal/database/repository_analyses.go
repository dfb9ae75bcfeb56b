package database

import (
	"context"
	"encoding/json"
	"fmt"
)

// AnalysisRepository records symbol analyses
type AnalysisRepository struct {
	db *DB
}

// NewAnalysisRepository creates an analysis repository
func NewAnalysisRepository(db *DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// RecordAnalysis inserts one analysis row
func (r *AnalysisRepository) RecordAnalysis(ctx context.Context, a Analysis) error {
	var snapshot []byte
	if a.Snapshot != nil {
		data, err := json.Marshal(a.Snapshot)
		if err != nil {
			return fmt.Errorf("failed to marshal analysis snapshot: %w", err)
		}
		snapshot = data
	}
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO analyses (symbol, analysis_type, recommendation, confidence, reasoning, snapshot)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.Symbol, string(a.Type), a.Recommendation, a.Confidence, a.Reasoning, snapshot)
	if err != nil {
		return fmt.Errorf("failed to record analysis for %s: %w", a.Symbol, err)
	}
	return nil
}

// RecentAnalyses returns the latest analyses for symbol, newest first
func (r *AnalysisRepository) RecentAnalyses(ctx context.Context, symbol string, limit int) ([]Analysis, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, symbol, analysis_type, recommendation, confidence, reasoning, snapshot, created_at
		 FROM analyses WHERE symbol = $1 ORDER BY created_at DESC LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		var (
			a        Analysis
			typ      string
			snapshot []byte
		)
		if err := rows.Scan(&a.ID, &a.Symbol, &typ, &a.Recommendation, &a.Confidence, &a.Reasoning, &snapshot, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Type = AnalysisType(typ)
		if len(snapshot) > 0 {
			if err := json.Unmarshal(snapshot, &a.Snapshot); err != nil {
				return nil, fmt.Errorf("failed to unmarshal analysis snapshot: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// SettingsStore is a key/value store over system_settings
type SettingsStore struct {
	db *DB
}

// NewSettingsStore creates a settings store
func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the value for key and whether it exists
func (s *SettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.Pool.QueryRow(ctx, `SELECT value FROM system_settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts key
func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	return s.Upsert(ctx, &SystemSetting{Key: key, Value: value, UpdatedBy: "system"})
}

// Upsert creates or updates a system setting
func (s *SettingsStore) Upsert(ctx context.Context, setting *SystemSetting) error {
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO system_settings (key, value, description, updated_at, updated_by)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by`,
		setting.Key, setting.Value, setting.Description, time.Now(), setting.UpdatedBy)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", setting.Key, err)
	}
	return nil
}

// All retrieves all system settings
func (s *SettingsStore) All(ctx context.Context) ([]SystemSetting, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT key, value, description, updated_at, updated_by FROM system_settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []SystemSetting
	for rows.Next() {
		var st SystemSetting
		if err := rows.Scan(&st.Key, &st.Value, &st.Description, &st.UpdatedAt, &st.UpdatedBy); err != nil {
			return nil, err
		}
		settings = append(settings, st)
	}
	return settings, rows.Err()
}

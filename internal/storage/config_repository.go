package storage

import (
	"context"
	"fmt"

	"model_settings/internal/models"
)

// ConfigRepository stores user-level configuration values
type ConfigRepository struct {
	db *DB
}

// NewConfigRepository creates a new config repository
func NewConfigRepository(db *DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// List returns the user's configs ordered by name
func (r *ConfigRepository) List(ctx context.Context, userID string) ([]*models.ConfigEntry, error) {
	query := `
		SELECT id, user_id, config_name, config_value, created_at, updated_at
		FROM user_configs
		WHERE user_id = $1
		ORDER BY config_name
	`

	entries := []*models.ConfigEntry{}
	if err := r.db.conn.SelectContext(ctx, &entries, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	return entries, nil
}

// Set creates or replaces a config value
func (r *ConfigRepository) Set(ctx context.Context, userID, name, value string) error {
	query := `
		INSERT INTO user_configs (user_id, config_name, config_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, config_name)
		DO UPDATE SET config_value = EXCLUDED.config_value, updated_at = NOW()
	`
	if _, err := r.db.conn.ExecContext(ctx, query, userID, name, value); err != nil {
		return fmt.Errorf("failed to set config %s: %w", name, err)
	}
	return nil
}

// Delete removes a config value
func (r *ConfigRepository) Delete(ctx context.Context, userID, name string) error {
	result, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM user_configs WHERE user_id = $1 AND config_name = $2`, userID, name)
	if err != nil {
		return fmt.Errorf("failed to delete config %s: %w", name, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrConfigNotFound
	}
	return nil
}

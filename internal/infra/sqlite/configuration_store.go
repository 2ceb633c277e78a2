package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"medquiz-service/internal/domain"
)

// ConfigurationStore keeps saved quiz settings.
type ConfigurationStore struct {
	db *sql.DB
}

func (s *ConfigurationStore) SaveConfiguration(ctx context.Context, cfg domain.SavedConfiguration) (domain.SavedConfiguration, error) {
	cfg.ID = uuid.NewString()
	raw, err := json.Marshal(cfg.Settings)
	if err != nil {
		return domain.SavedConfiguration{}, fmt.Errorf("marshal settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quiz_configurations (id, user_id, settings, created_at) VALUES (?, ?, ?, ?)`,
		cfg.ID, cfg.UserID, string(raw), cfg.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return domain.SavedConfiguration{}, fmt.Errorf("insert configuration: %w", err)
	}
	return cfg, nil
}

func (s *ConfigurationStore) ListConfigurations(ctx context.Context, userID string) ([]domain.SavedConfiguration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, settings, created_at
		FROM quiz_configurations
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	defer rows.Close()

	configs := []domain.SavedConfiguration{}
	for rows.Next() {
		var (
			cfg       domain.SavedConfiguration
			settings  string
			createdAt string
		)
		if err := rows.Scan(&cfg.ID, &cfg.UserID, &settings, &createdAt); err != nil {
			return nil, fmt.Errorf("scan configuration: %w", err)
		}
		if err := json.Unmarshal([]byte(settings), &cfg.Settings); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
		if cfg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"medquiz-service/internal/domain"
)

// ConfigurationStore persists saved quiz settings in quiz_configurations.
type ConfigurationStore struct {
	pool *pgxpool.Pool
}

func NewConfigurationStore(pool *pgxpool.Pool) *ConfigurationStore {
	return &ConfigurationStore{pool: pool}
}

func (s *ConfigurationStore) SaveConfiguration(ctx context.Context, cfg domain.SavedConfiguration) (domain.SavedConfiguration, error) {
	cfg.ID = uuid.NewString()
	raw, err := json.Marshal(cfg.Settings)
	if err != nil {
		return domain.SavedConfiguration{}, fmt.Errorf("marshal settings: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quiz_configurations (id, user_id, settings, created_at) VALUES ($1, $2, $3::jsonb, $4)`,
		cfg.ID, cfg.UserID, string(raw), cfg.CreatedAt)
	if err != nil {
		return domain.SavedConfiguration{}, fmt.Errorf("insert configuration: %w", err)
	}
	return cfg, nil
}

func (s *ConfigurationStore) ListConfigurations(ctx context.Context, userID string) ([]domain.SavedConfiguration, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, settings, created_at
		FROM quiz_configurations
		WHERE user_id=$1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	defer rows.Close()

	configs := []domain.SavedConfiguration{}
	for rows.Next() {
		var (
			cfg domain.SavedConfiguration
			raw []byte
		)
		if err := rows.Scan(&cfg.ID, &cfg.UserID, &raw, &cfg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan configuration: %w", err)
		}
		if err := json.Unmarshal(raw, &cfg.Settings); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

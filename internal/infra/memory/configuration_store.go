package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"medquiz-service/internal/domain"
)

// ConfigurationStore keeps saved practice settings in memory.
type ConfigurationStore struct {
	mu      sync.RWMutex
	configs map[string][]domain.SavedConfiguration
}

func NewConfigurationStore() *ConfigurationStore {
	return &ConfigurationStore{configs: make(map[string][]domain.SavedConfiguration)}
}

func (s *ConfigurationStore) SaveConfiguration(_ context.Context, cfg domain.SavedConfiguration) (domain.SavedConfiguration, error) {
	cfg.ID = uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.UserID] = append(s.configs[cfg.UserID], cfg)
	return cfg, nil
}

func (s *ConfigurationStore) ListConfigurations(_ context.Context, userID string) ([]domain.SavedConfiguration, error) {
	s.mu.RLock()
	out := append([]domain.SavedConfiguration{}, s.configs[userID]...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/jackc/pgx/v4/pgxpool"

	"medquiz-service/internal/app"
	"medquiz-service/internal/config"
	"medquiz-service/internal/customquiz"
	"medquiz-service/internal/infra/memory"
	"medquiz-service/internal/infra/postgres"
	"medquiz-service/internal/infra/sqlite"
	"medquiz-service/internal/llm"
)

// backend is the persistence selected by store.driver.
type backend struct {
	docs    customquiz.DocumentStore
	configs app.ConfigurationStore
	close   func()
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		if err := postgres.Migrate(ctx, cfg.Postgres.URL); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		glog.Info("store: postgres")
		return &backend{
			docs:    postgres.NewDocumentStore(pool),
			configs: postgres.NewConfigurationStore(pool),
			close:   pool.Close,
		}, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		glog.Infof("store: sqlite at %s", cfg.Store.SQLitePath)
		return &backend{
			docs:    db.Documents(),
			configs: db.Configurations(),
			close: func() {
				if err := db.Close(); err != nil {
					glog.Warningf("close sqlite: %v", err)
				}
			},
		}, nil
	default:
		glog.Warning("store: memory, custom quizzes are lost on restart")
		return &backend{
			docs:    memory.NewDocumentStore(),
			configs: memory.NewConfigurationStore(),
			close:   func() {},
		}, nil
	}
}

func llmConfig(cfg config.Config) llm.Config {
	out := llm.DefaultConfig()
	if cfg.LLM.Provider != "" {
		out.Provider = cfg.LLM.Provider
	}
	out.Anthropic.APIKey = cfg.LLM.APIKeys.Anthropic
	out.OpenAI.APIKey = cfg.LLM.APIKeys.OpenAI
	out.Gemini.APIKey = cfg.LLM.APIKeys.Gemini
	out.OpenRouter.APIKey = cfg.LLM.APIKeys.OpenRouter

	setIf(&out.Anthropic.Model, cfg.LLM.Models.Anthropic)
	setIf(&out.OpenAI.Model, cfg.LLM.Models.OpenAI)
	setIf(&out.Gemini.Model, cfg.LLM.Models.Gemini)
	setIf(&out.OpenRouter.Model, cfg.LLM.Models.OpenRouter)
	setIf(&out.Anthropic.BaseURL, cfg.LLM.BaseURLs.Anthropic)
	setIf(&out.OpenAI.BaseURL, cfg.LLM.BaseURLs.OpenAI)
	setIf(&out.OpenRouter.BaseURL, cfg.LLM.BaseURLs.OpenRouter)

	if cfg.LLM.Retry.MaxAttempts > 0 {
		out.Retry.MaxAttempts = cfg.LLM.Retry.MaxAttempts
	}
	out.Retry.InitialWait = config.TTLDuration(cfg.LLM.Retry.InitialWait, out.Retry.InitialWait)
	out.Retry.MaxWait = config.TTLDuration(cfg.LLM.Retry.MaxWait, out.Retry.MaxWait)
	out.Timeout = config.TTLDuration(cfg.LLM.Timeout, out.Timeout)
	return out
}

func serviceConfig(cfg config.Config) app.Config {
	out := app.DefaultConfig()
	if cfg.Quiz.DefaultDifficulty != "" {
		out.DefaultDifficulty = cfg.Quiz.DefaultDifficulty
	}
	out.DefaultQuestionCount = cfg.Quiz.DefaultQuestionCount
	out.DefaultTimeLimit = cfg.Quiz.DefaultTimeLimit
	out.PersistAttempts = cfg.Quiz.PersistAttempts
	out.PersistBackoff = config.TTLDuration(cfg.Quiz.PersistBackoff, out.PersistBackoff)
	out.AdsEnabled = cfg.AdsEnabled()
	out.NativeContainerRef = cfg.Ads.NativeContainerRef
	out.AdTimeout = config.TTLDuration(cfg.Ads.Timeout, out.AdTimeout)
	out.PublicBaseURL = cfg.Server.PublicBaseURL
	return out
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

const defaultCacheTTL = 10 * time.Minute

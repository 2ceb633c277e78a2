package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers accepted by Store.Driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port          string   `yaml:"port"`
		PublicBaseURL string   `yaml:"publicBaseUrl"`
		CORSOrigins   []string `yaml:"corsOrigins"`
	} `yaml:"server"`
	Store struct {
		Driver     string `yaml:"driver"`
		SQLitePath string `yaml:"sqlitePath"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL                  string `yaml:"ttl"`
		DefaultDifficulty    string `yaml:"defaultDifficulty"`
		DefaultQuestionCount int    `yaml:"defaultQuestionCount"`
		DefaultTimeLimit     int    `yaml:"defaultTimeLimit"`
		PersistAttempts      int    `yaml:"persistAttempts"`
		PersistBackoff       string `yaml:"persistBackoff"`
	} `yaml:"quiz"`
	LLM struct {
		// Provider is mock, anthropic, openai, gemini or openrouter.
		Provider string `yaml:"provider"`
		Timeout  string `yaml:"timeout"`
		Models   struct {
			Anthropic  string `yaml:"anthropic"`
			OpenAI     string `yaml:"openai"`
			Gemini     string `yaml:"gemini"`
			OpenRouter string `yaml:"openrouter"`
		} `yaml:"models"`
		BaseURLs struct {
			Anthropic  string `yaml:"anthropic"`
			OpenAI     string `yaml:"openai"`
			OpenRouter string `yaml:"openrouter"`
		} `yaml:"baseUrls"`
		// API keys are normally supplied through the environment.
		APIKeys struct {
			Anthropic  string `yaml:"anthropic"`
			OpenAI     string `yaml:"openai"`
			Gemini     string `yaml:"gemini"`
			OpenRouter string `yaml:"openrouter"`
		} `yaml:"apiKeys"`
		Retry struct {
			MaxAttempts int    `yaml:"maxAttempts"`
			InitialWait string `yaml:"initialWait"`
			MaxWait     string `yaml:"maxWait"`
		} `yaml:"retry"`
	} `yaml:"llm"`
	Ads struct {
		Enabled            *bool  `yaml:"enabled"`
		NativeContainerRef string `yaml:"nativeContainerRef"`
		Timeout            string `yaml:"timeout"`
	} `yaml:"ads"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
		Issuer    string `yaml:"issuer"`
	} `yaml:"auth"`
}

// Load reads YAML config from path, then applies MEDQUIZ_* environment
// overrides. A missing file yields defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, cfg.Validate()
}

func applyDefaults(cfg *Config) {
	if cfg.Store.Driver == "" {
		switch {
		case cfg.Postgres.URL != "":
			cfg.Store.Driver = DriverPostgres
		case cfg.Store.SQLitePath != "":
			cfg.Store.Driver = DriverSQLite
		default:
			cfg.Store.Driver = DriverMemory
		}
	}
	if cfg.Store.Driver == DriverSQLite && cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "data/medquiz.db"
	}
	if cfg.Quiz.PersistAttempts <= 0 {
		cfg.Quiz.PersistAttempts = 3
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "mock"
	}
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("store driver postgres needs postgres.url")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Quiz.DefaultQuestionCount < 0 || c.Quiz.DefaultTimeLimit < 0 {
		return fmt.Errorf("quiz defaults must not be negative")
	}
	return nil
}

// AdsEnabled defaults to true when unset.
func (c Config) AdsEnabled() bool {
	return c.Ads.Enabled == nil || *c.Ads.Enabled
}

type lookupFunc func(string) (string, bool)

// applyEnv overrides secrets and endpoints from MEDQUIZ_* variables.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup("MEDQUIZ_" + name); ok {
			*dst = v
		}
	}
	str("PORT", &cfg.Server.Port)
	str("PUBLIC_BASE_URL", &cfg.Server.PublicBaseURL)
	str("STORE_DRIVER", &cfg.Store.Driver)
	str("SQLITE_PATH", &cfg.Store.SQLitePath)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("POSTGRES_URL", &cfg.Postgres.URL)
	str("LLM_PROVIDER", &cfg.LLM.Provider)
	str("ANTHROPIC_API_KEY", &cfg.LLM.APIKeys.Anthropic)
	str("OPENAI_API_KEY", &cfg.LLM.APIKeys.OpenAI)
	str("GEMINI_API_KEY", &cfg.LLM.APIKeys.Gemini)
	str("OPENROUTER_API_KEY", &cfg.LLM.APIKeys.OpenRouter)
	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	str("JWT_ISSUER", &cfg.Auth.Issuer)

	if v, ok := lookup("MEDQUIZ_CORS_ORIGINS"); ok {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v, ok := lookup("MEDQUIZ_REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MEDQUIZ_REDIS_DB: %w", err)
		}
		cfg.Redis.DB = db
	}
	if v, ok := lookup("MEDQUIZ_ADS_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MEDQUIZ_ADS_ENABLED: %w", err)
		}
		cfg.Ads.Enabled = &enabled
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

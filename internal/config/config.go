package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sukalov/lyricstudio/internal/generation"
	"github.com/sukalov/lyricstudio/internal/studio"
	"github.com/sukalov/lyricstudio/internal/utils"
)

const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

type Config struct {
	Provider     string
	GeminiAPIKey string
	GeminiModel  string
	OllamaURL    string
	OllamaModel  string

	BotToken       string
	AdminUsernames []string

	RedisURL      string
	RedisPassword string
	CacheTTL      time.Duration

	StatsDBURL       string
	StatsDBAuthToken string
	// StatsBuffer is how many studio events may wait for the stats store.
	StatsBuffer int

	HTTPAddr string

	Studio studio.Options
}

// Load reads the configuration from the environment and .env.
func Load() (*Config, error) {
	cfg := &Config{
		Provider:         strings.ToLower(utils.EnvOr("GENERATION_PROVIDER", ProviderGemini)),
		GeminiAPIKey:     utils.EnvOr("GEMINI_API_KEY", ""),
		GeminiModel:      utils.EnvOr("GEMINI_MODEL", generation.DefaultGeminiModel),
		OllamaURL:        utils.EnvOr("OLLAMA_URL", generation.DefaultOllamaURL),
		OllamaModel:      utils.EnvOr("OLLAMA_MODEL", generation.DefaultOllamaModel),
		BotToken:         utils.EnvOr("BOT_TOKEN", ""),
		RedisURL:         utils.EnvOr("REDIS_URL", ""),
		RedisPassword:    utils.EnvOr("REDIS_PASSWORD", ""),
		StatsDBURL:       utils.EnvOr("STATS_DB_URL", "file:lyricstudio.db"),
		StatsDBAuthToken: utils.EnvOr("STATS_DB_AUTH_TOKEN", ""),
		HTTPAddr:         utils.EnvOr("HTTP_ADDR", ":8080"),
		Studio:           studio.DefaultOptions(),
	}

	for _, name := range strings.Split(utils.EnvOr("ADMIN_USERNAMES", ""), ",") {
		if name = strings.TrimSpace(name); name != "" {
			cfg.AdminUsernames = append(cfg.AdminUsernames, name)
		}
	}

	buffer, err := utils.EnvInt64("STATS_BUFFER", 256)
	if err != nil {
		return nil, err
	}
	if buffer < 1 {
		return nil, fmt.Errorf("STATS_BUFFER must be positive, got %d", buffer)
	}
	cfg.StatsBuffer = int(buffer)

	if cfg.CacheTTL, err = utils.EnvDuration("CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Studio.SuggestDelay, err = utils.EnvDuration("SUGGEST_DELAY", cfg.Studio.SuggestDelay); err != nil {
		return nil, err
	}
	if cfg.Studio.RhymeDelay, err = utils.EnvDuration("RHYME_DELAY", cfg.Studio.RhymeDelay); err != nil {
		return nil, err
	}
	if cfg.Studio.RequestTimeout, err = utils.EnvDuration("REQUEST_TIMEOUT", 0); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("missing required environment variable: GEMINI_API_KEY")
		}
	case ProviderOllama:
	default:
		return nil, fmt.Errorf("unknown GENERATION_PROVIDER %q", cfg.Provider)
	}

	return cfg, nil
}

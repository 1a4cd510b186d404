package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// HTTP
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/aliasmail.db"`

	// Retrieval
	RecencyWindow time.Duration `env:"RECENCY_WINDOW" envDefault:"12h"`
	ListLimit     int64         `env:"LIST_LIMIT" envDefault:"20"`

	// IMAP
	IMAPDialTimeout time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"15s"`

	// Google OAuth (webmail provider)
	GoogleClientID     string   `env:"GOOGLE_CLIENT_ID,required"`
	GoogleClientSecret string   `env:"GOOGLE_CLIENT_SECRET,required"`
	GoogleRedirectURL  string   `env:"GOOGLE_REDIRECT_URL,required"`
	OAuthAliasDomains  []string `env:"OAUTH_ALIAS_DOMAINS" envDefault:"gmail.com,googlemail.com"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.RecencyWindow <= 0 {
		return nil, fmt.Errorf("RECENCY_WINDOW must be positive, got %s", cfg.RecencyWindow)
	}
	if cfg.ListLimit < 1 || cfg.ListLimit > 30 {
		return nil, fmt.Errorf("LIST_LIMIT must be between 1 and 30, got %d", cfg.ListLimit)
	}

	return cfg, nil
}

package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Secrets are read from the environment (optionally seeded from .env files).
// They are never logged.
type Secrets struct {
	XAPIKey            string `env:"X_API_KEY"`
	XAPIKeySecret      string `env:"X_API_KEY_SECRET"`
	XAccessToken       string `env:"X_ACCESS_TOKEN"`
	XAccessTokenSecret string `env:"X_ACCESS_TOKEN_SECRET"`

	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`

	RedisPassword string `env:"REDIS_PASSWORD"`

	// GitHubOutput is the file the process signal is appended to (CI only).
	GitHubOutput string `env:"GITHUB_OUTPUT"`
}

// LoadSecrets loads dotenv files (missing files are ignored) and parses the environment.
// Variables already set in the environment take precedence over .env values.
func LoadSecrets(dotenv ...string) (*Secrets, error) {
	for _, f := range dotenv {
		if strings.TrimSpace(f) == "" {
			continue
		}
		_ = godotenv.Load(f)
	}
	var s Secrets
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &s, nil
}

// TelegramConfigured reports whether both bot token and chat are present.
func (s *Secrets) TelegramConfigured() bool {
	return strings.TrimSpace(s.TelegramToken) != "" && s.TelegramChatID != 0
}

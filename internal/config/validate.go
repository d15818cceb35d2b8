package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // timezone names must resolve on hosts without zoneinfo
	"unicode/utf8"

	"pricewatch/internal/scheduler"
)

const (
	MinMessageBudget = 200
	MaxTitleRunes    = 100
)

// Validate rejects configs that would fail at run time.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.Feed.URL) == "" {
		return fmt.Errorf("feed.url is required")
	}
	if _, err := ParseDurationField("feed.timeout", cfg.Feed.Timeout); err != nil {
		return err
	}
	if cfg.Feed.RetryMax < 0 {
		return fmt.Errorf("feed.retry_max must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required when storage.driver=%s", cfg.Storage.Driver)
		}
	case "redis":
		if strings.TrimSpace(cfg.Storage.RedisAddr) == "" {
			return fmt.Errorf("storage.redis_addr is required when storage.driver=redis")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage.driver: %s", cfg.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Diff.Rank)) {
	case "", "delta", "popularity":
	default:
		return fmt.Errorf("diff.rank: unknown strategy %q (use delta or popularity)", cfg.Diff.Rank)
	}

	// The title line plus the "(+N more)" trailer must always fit the message.
	if cfg.Render.MessageBudget < MinMessageBudget {
		return fmt.Errorf("render.message_budget must be >= %d", MinMessageBudget)
	}
	if n := utf8.RuneCountInString(cfg.Render.Title); n > MaxTitleRunes {
		return fmt.Errorf("render.title is %d runes, at most %d allowed", n, MaxTitleRunes)
	}
	if cfg.Render.ChunkBudget <= 0 {
		return fmt.Errorf("render.chunk_budget must be > 0")
	}
	if cfg.Render.ChunkBudget > cfg.Render.MessageBudget {
		return fmt.Errorf("render.chunk_budget (%d) must not exceed render.message_budget (%d)", cfg.Render.ChunkBudget, cfg.Render.MessageBudget)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Render.Oversize)) {
	case "", "truncate", "reject":
	default:
		return fmt.Errorf("render.oversize: unknown policy %q (use truncate or reject)", cfg.Render.Oversize)
	}
	if tz := strings.TrimSpace(cfg.Render.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("render.timezone: invalid %q: %w", tz, err)
		}
	}

	if _, err := ParseDurationList("publish.backoff", cfg.Publish.Backoff); err != nil {
		return err
	}
	if cfg.Publish.MaxAttempts < 0 {
		return fmt.Errorf("publish.max_attempts must be >= 0")
	}
	if _, err := ParseDurationField("publish.attempt_timeout", cfg.Publish.AttemptTimeout); err != nil {
		return err
	}
	if cfg.Publish.RatePerSec < 0 {
		return fmt.Errorf("publish.rate_per_sec must be >= 0")
	}
	seen := map[string]bool{}
	for i, t := range cfg.Publish.Threads {
		g := strings.ToLower(strings.TrimSpace(t.Group))
		if g != "risers" && g != "fallers" {
			return fmt.Errorf("publish.threads[%d].group: unknown group %q", i, t.Group)
		}
		if seen[g] {
			return fmt.Errorf("publish.threads[%d].group: duplicate group %q", i, t.Group)
		}
		seen[g] = true
	}

	if _, err := ParseDurationField("telegram.timeout", cfg.Telegram.Timeout); err != nil {
		return err
	}
	if cfg.Scheduler.Enabled && strings.TrimSpace(cfg.Scheduler.Spec) == "" {
		return fmt.Errorf("scheduler.spec is required when scheduler.enabled=true")
	}
	if spec := strings.TrimSpace(cfg.Scheduler.Spec); spec != "" {
		if _, err := scheduler.ParseSpec(spec); err != nil {
			return fmt.Errorf("scheduler.spec: %w", err)
		}
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	return nil
}

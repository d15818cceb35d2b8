package app

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"pricewatch/internal/artifacts"
	"pricewatch/internal/config"
	"pricewatch/internal/diff"
	"pricewatch/internal/feed"
	"pricewatch/internal/model"
	"pricewatch/internal/publish"
	"pricewatch/internal/render"
	"pricewatch/internal/storage"
	"pricewatch/internal/transport/telegram"
	"pricewatch/internal/transport/x"
	logx "pricewatch/pkg/logx"
)

func mapStorageConfig(cfg *config.Config, sec *config.Secrets) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" {
		driver = "file"
	}
	out := storage.Config{Driver: driver, Path: strings.TrimSpace(sc.Path)}
	switch driver {
	case "file", "memory":
	case "sqlite", "sqlite3":
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		out.BusyTimeout = busy
	case "redis":
		out.RedisAddr = sc.RedisAddr
		out.RedisDB = sc.RedisDB
		out.RedisPrefix = sc.RedisPrefix
		if sec != nil {
			out.RedisPassword = sec.RedisPassword
		}
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
	return out, nil
}

func mapFeedConfig(cfg *config.Config) (feed.Config, error) {
	timeout, err := config.ParseDurationOrDefault("feed.timeout", cfg.Feed.Timeout, 40*time.Second)
	if err != nil {
		return feed.Config{}, err
	}
	return feed.Config{URL: cfg.Feed.URL, Timeout: timeout, RetryMax: cfg.Feed.RetryMax}, nil
}

func mapDiffConfig(cfg *config.Config) (diff.Config, error) {
	rank, err := diff.ParseRank(cfg.Diff.Rank)
	if err != nil {
		return diff.Config{}, fmt.Errorf("diff.rank: %w", err)
	}
	return diff.Config{Rank: rank}, nil
}

func mapRenderConfig(cfg *config.Config) (render.Config, error) {
	policy, err := render.ParseOversize(cfg.Render.Oversize)
	if err != nil {
		return render.Config{}, fmt.Errorf("render.oversize: %w", err)
	}
	return render.Config{
		Title:         cfg.Render.Title,
		Currency:      cfg.Render.Currency,
		MessageBudget: cfg.Render.MessageBudget,
		ChunkBudget:   cfg.Render.ChunkBudget,
		Oversize:      policy,
	}, nil
}

// labelLocation is the zone of the human date label; UTC when unset.
func labelLocation(cfg *config.Config) (*time.Location, error) {
	tz := strings.TrimSpace(cfg.Render.Timezone)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("render.timezone: %w", err)
	}
	return loc, nil
}

func mapLayout(cfg *config.Config) artifacts.Layout {
	return artifacts.Layout{
		Dir:         cfg.Output.Dir,
		Document:    cfg.Output.Document,
		Message:     cfg.Output.Message,
		ChunkPrefix: cfg.Output.ChunkPrefix,
	}
}

// threadPlan is one configured thread before its chunks are known.
type threadPlan struct {
	Group    model.Group
	SoftFail bool
}

func mapPublishConfig(cfg *config.Config) (publish.Config, []threadPlan, error) {
	pc := cfg.Publish
	backoff, err := config.ParseDurationList("publish.backoff", pc.Backoff)
	if err != nil {
		return publish.Config{}, nil, err
	}
	timeout, err := config.ParseDurationOrDefault("publish.attempt_timeout", pc.AttemptTimeout, publish.DefaultAttemptTimeout)
	if err != nil {
		return publish.Config{}, nil, err
	}
	out := publish.Config{Backoff: backoff, MaxAttempts: pc.MaxAttempts, AttemptTimeout: timeout}
	if pc.RatePerSec > 0 {
		out.Pace = rate.NewLimiter(rate.Limit(pc.RatePerSec), 1)
	}

	plans := make([]threadPlan, 0, len(pc.Threads))
	for i, t := range pc.Threads {
		g := model.Group(strings.ToLower(strings.TrimSpace(t.Group)))
		if g != model.Risers && g != model.Fallers {
			return publish.Config{}, nil, fmt.Errorf("publish.threads[%d].group: unknown group %q", i, t.Group)
		}
		plans = append(plans, threadPlan{Group: g, SoftFail: t.SoftFail})
	}
	if len(plans) == 0 {
		plans = []threadPlan{{Group: model.Fallers}, {Group: model.Risers, SoftFail: true}}
	}
	return out, plans, nil
}

func mapXConfig(cfg *config.Config, sec *config.Secrets) x.Config {
	return x.Config{
		Endpoint: cfg.Publish.Endpoint,
		Credentials: x.Credentials{
			APIKey:       sec.XAPIKey,
			APISecret:    sec.XAPIKeySecret,
			AccessToken:  sec.XAccessToken,
			AccessSecret: sec.XAccessTokenSecret,
		},
	}
}

func mapTelegramConfig(cfg *config.Config, sec *config.Secrets) (telegram.Config, error) {
	timeout, err := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:    sec.TelegramToken,
		ChatID:   sec.TelegramChatID,
		ThreadID: cfg.Telegram.ThreadID,
		Timeout:  timeout,
	}, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Chat.Enabled,
			MinLevel:   cfg.Logging.Chat.MinLevel,
			RatePerSec: cfg.Logging.Chat.RatePerSec,
		},
	}
}

// validateMapped runs every mapping so a hot reload that would fail the next
// run is rejected before commit.
func validateMapped(cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg, nil); err != nil {
		return err
	}
	if _, err := mapFeedConfig(cfg); err != nil {
		return err
	}
	if _, err := mapDiffConfig(cfg); err != nil {
		return err
	}
	if _, err := mapRenderConfig(cfg); err != nil {
		return err
	}
	if _, err := labelLocation(cfg); err != nil {
		return err
	}
	if _, _, err := mapPublishConfig(cfg); err != nil {
		return err
	}
	return nil
}

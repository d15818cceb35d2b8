// Package app wires config, storage, feed, rendering and delivery into the
// run, publish, history and serve modes of the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pricewatch/internal/config"
	"pricewatch/internal/eventbus"
	"pricewatch/internal/metrics"
	"pricewatch/internal/publish"
	"pricewatch/internal/storage"
	"pricewatch/internal/transport/telegram"
	"pricewatch/internal/transport/x"
	logx "pricewatch/pkg/logx"
	"pricewatch/pkg/tgui"
)

// Messenger delivers the bounded chat message.
type Messenger interface {
	SendMessage(ctx context.Context, html tgui.H) (int, error)
}

type Options struct {
	ConfigPath string
	// DotEnv files seed the environment before secrets are parsed.
	DotEnv []string
	// DryRun renders and writes outputs but never delivers them.
	DryRun bool

	// Logger replaces the configured logging service.
	Logger logx.Logger
	// Endpoint replaces the X client.
	Endpoint publish.Endpoint
	// Messenger replaces the Telegram client.
	Messenger Messenger
	// Now replaces the wall clock used for snapshot keys and date labels.
	Now func() time.Time
	// Sleep replaces the publisher backoff wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

type App struct {
	opts Options

	cfgm    *config.Manager
	sec     *config.Secrets
	logs    *logx.Service
	log     logx.Logger
	bus     eventbus.Bus
	store   storage.Store
	tg      Messenger
	metrics *metrics.Metrics

	// runs never overlap against one store
	runMu sync.Mutex

	lastMu sync.RWMutex
	last   *Report
}

func New(opts Options) (*App, error) {
	cfgm := config.NewManager(opts.ConfigPath)
	cfgm.SetValidator(validateMapped)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	sec, err := config.LoadSecrets(opts.DotEnv...)
	if err != nil {
		return nil, err
	}

	var logs *logx.Service
	log := opts.Logger
	if log.IsZero() {
		logs, log = logx.New(mapLogConfig(cfg))
	}
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	appLog := log.With(logx.String("comp", "app"))

	sc, err := mapStorageConfig(cfg, sec)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a := &App{
		opts:    opts,
		cfgm:    cfgm,
		sec:     sec,
		logs:    logs,
		log:     appLog,
		bus:     eventbus.New(),
		store:   store,
		tg:      opts.Messenger,
		metrics: metrics.New(),
	}

	if a.tg == nil && cfg.Telegram.Enabled {
		if !sec.TelegramConfigured() {
			appLog.Warn("telegram enabled but TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID is missing")
		} else {
			tc, err := mapTelegramConfig(cfg, sec)
			if err != nil {
				_ = store.Close()
				return nil, err
			}
			client, err := telegram.New(tc, log)
			if err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("telegram: %w", err)
			}
			a.tg = client
			if logs != nil {
				logs.SetSender(client)
			}
		}
	}

	appLog.Info("app ready",
		logx.String("config", cfgm.Path()),
		logx.String("storage", sc.Driver),
		logx.Bool("telegram", a.tg != nil),
		logx.Bool("publish", cfg.Publish.Enabled),
		logx.Bool("dry_run", opts.DryRun))
	return a, nil
}

// Config returns the committed configuration.
func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Bus exposes lifecycle events.
func (a *App) Bus() eventbus.Bus { return a.bus }

// Last returns the most recent run report.
func (a *App) Last() (*Report, bool) {
	a.lastMu.RLock()
	defer a.lastMu.RUnlock()
	if a.last == nil {
		return nil, false
	}
	cp := *a.last
	return &cp, true
}

// History lists stored snapshot keys, oldest first.
func (a *App) History(ctx context.Context) ([]string, error) {
	return a.store.Keys(ctx)
}

func (a *App) Close() error {
	err := a.store.Close()
	if a.logs != nil {
		err = errors.Join(err, a.logs.Close())
	}
	return err
}

func (a *App) now() time.Time {
	if a.opts.Now != nil {
		return a.opts.Now()
	}
	return time.Now()
}

// endpoint is the X client built from the current config and secrets.
func (a *App) endpoint(cfg *config.Config, log logx.Logger) (publish.Endpoint, error) {
	if a.opts.Endpoint != nil {
		return a.opts.Endpoint, nil
	}
	c, err := x.New(mapXConfig(cfg, a.sec), log)
	if err != nil {
		return nil, fmt.Errorf("x client: %w", err)
	}
	return c, nil
}

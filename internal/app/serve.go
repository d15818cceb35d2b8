package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pricewatch/internal/config"
	"pricewatch/internal/eventbus"
	"pricewatch/internal/runtime/supervisor"
	"pricewatch/internal/scheduler"
	"pricewatch/internal/status"
	logx "pricewatch/pkg/logx"
)

const shutdownTimeout = 30 * time.Second

// Serve runs the scheduler, the status server, metrics and config hot reload
// until ctx is done or one of them fails.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.cfgm.Get()
	sup := supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true))

	metricsDone := a.metrics.Run(sup.Context(), a.bus)
	eventsDone := eventbus.Consume(sup.Context(), a.bus, 128, a.logEvent)

	if strings.TrimSpace(a.cfgm.Path()) != "" {
		sup.GoRestart("config.watch", func(c context.Context) error {
			return a.cfgm.Watch(c)
		}, time.Second, 30*time.Second, 0)
	}
	sup.Go0("config.reload", func(c context.Context) { a.applyReloads(c, cfg) })

	if cfg.Status.Enabled {
		h := status.Router(status.Routes{
			Last:    func() (any, bool) { return a.Last() },
			Metrics: a.metrics.Handler(),
			Pprof:   cfg.Status.Pprof,
		}, a.log.With(logx.String("comp", "http")))
		srv := status.New(cfg.Status.Addr, h, a.log)
		sup.Go("status", srv.Serve)
	}

	if cfg.Scheduler.Enabled {
		sched, err := a.newScheduler(cfg)
		if err != nil {
			_ = sup.Stop(context.Background())
			return err
		}
		sup.Go0("scheduler", sched.Run)
	} else {
		a.log.Warn("scheduler disabled; serving status only")
	}

	<-sup.Context().Done()
	a.log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := sup.Stop(sctx)
	<-metricsDone
	<-eventsDone
	return err
}

func (a *App) newScheduler(cfg *config.Config) (*scheduler.Scheduler, error) {
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("scheduler.timezone: %w", err)
		}
		loc = l
	}
	return scheduler.New(cfg.Scheduler.Spec, loc, func(ctx context.Context) {
		// Run logs its own failure and records it for /last.
		_, _ = a.Run(ctx)
	}, a.log)
}

// applyReloads applies hot-reloadable sections. Run settings are read per run,
// so only logging needs an explicit apply; the rest is reported.
func (a *App) applyReloads(ctx context.Context, applied *config.Config) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			if a.logs != nil && applied.Logging != cfg.Logging {
				a.logs.Apply(mapLogConfig(cfg))
				a.log.Info("logging reconfigured", logx.String("level", cfg.Logging.Level))
			}
			var restart []string
			if applied.Storage != cfg.Storage {
				restart = append(restart, "storage")
			}
			if applied.Scheduler != cfg.Scheduler {
				restart = append(restart, "scheduler")
			}
			if applied.Status != cfg.Status {
				restart = append(restart, "status")
			}
			if applied.Telegram.Enabled != cfg.Telegram.Enabled {
				restart = append(restart, "telegram")
			}
			if len(restart) > 0 {
				a.log.Warn("config sections changed that need a restart", logx.Strs("sections", restart))
			}
			applied = cfg
		}
	}
}

func (a *App) logEvent(e eventbus.Event) {
	switch d := e.Data.(type) {
	case eventbus.PublishEvent:
		if e.Type == eventbus.TypeChunkAttempt && d.Outcome != "success" {
			a.log.Debug("publish attempt",
				logx.String("thread", d.Thread),
				logx.Int("chunk", d.Chunk),
				logx.Int("attempt", d.Attempt),
				logx.Int("status", d.Status),
				logx.String("outcome", d.Outcome))
			return
		}
	case eventbus.RunEvent:
		a.log.Debug("event", logx.String("type", e.Type), logx.String("run", d.RunID), logx.String("mode", d.Mode))
		return
	}
	a.log.Debug("event", logx.String("type", e.Type))
}

// Package scheduler triggers runs on a cron or interval schedule in serve mode.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	logx "pricewatch/pkg/logx"
)

// Job is one triggered run. Its context is the one passed to Run.
type Job func(ctx context.Context)

// Scheduler runs a single job. Overlapping triggers are skipped while the
// previous run is still going.
type Scheduler struct {
	c    *cron.Cron
	id   cron.EntryID
	spec Spec
	job  Job
	log  logx.Logger

	// set by Run before the cron loop starts
	ctx context.Context
}

func New(raw string, loc *time.Location, job Job, log logx.Logger) (*Scheduler, error) {
	spec, err := ParseSpec(raw)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scheduler{spec: spec, job: job, log: log.With(logx.String("comp", "scheduler")), ctx: context.Background()}

	cl := cronLogger{log: s.log}
	s.c = cron.New(
		cron.WithLocation(loc),
		cron.WithParser(cronParser),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id, err := s.c.AddFunc(spec.Cron, s.fire)
	if err != nil {
		return nil, fmt.Errorf("add schedule %q: %w", raw, err)
	}
	s.id = id
	return s, nil
}

func (s *Scheduler) fire() {
	start := time.Now()
	s.log.Info("scheduled run triggered")
	s.job(s.ctx)
	s.log.Info("scheduled run finished",
		logx.Duration("took", time.Since(start)),
		logx.String("next", s.Next().Format(time.RFC3339)))
}

// Spec returns the normalized schedule.
func (s *Scheduler) Spec() Spec { return s.spec }

// Next is the next trigger time; zero before Run starts.
func (s *Scheduler) Next() time.Time { return s.c.Entry(s.id).Next }

// Run starts the cron loop and blocks until ctx is done, then waits for a
// running job to return.
func (s *Scheduler) Run(ctx context.Context) {
	s.ctx = ctx
	s.c.Start()
	s.log.Info("scheduler started",
		logx.String("cron", s.spec.Cron),
		logx.String("next", s.Next().Format(time.RFC3339)))
	<-ctx.Done()
	<-s.c.Stop().Done()
	s.log.Info("scheduler stopped")
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug(msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error(msg, logx.Err(err), logx.Any("kv", kv))
}

// Package publish delivers chunk threads to a remote endpoint with bounded
// retries, challenge-page detection and per-thread soft-fail.
package publish

import (
	"context"
	"errors"
	"time"

	"pricewatch/internal/eventbus"
	logx "pricewatch/pkg/logx"
)

// Publisher runs threads sequentially. It is not safe for concurrent Run calls.
type Publisher struct {
	cfg   Config
	ep    Endpoint
	log   logx.Logger
	bus   eventbus.Bus
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Publisher)

// WithBus publishes chunk and thread events.
func WithBus(b eventbus.Bus) Option { return func(p *Publisher) { p.bus = b } }

// WithSleep replaces the backoff wait (tests).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Publisher) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

func New(cfg Config, ep Endpoint, log logx.Logger, opts ...Option) *Publisher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	p := &Publisher{
		cfg:   cfg,
		ep:    ep,
		log:   log.With(logx.String("comp", "publish")),
		sleep: sleepCtx,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Delay returns the wait before attempt n+1 after n failed attempts.
func (p *Publisher) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	i := n - 1
	if i >= len(p.cfg.Backoff) {
		i = len(p.cfg.Backoff) - 1
	}
	return p.cfg.Backoff[i]
}

// Run posts each thread in the given order. A failed soft-fail thread is
// recorded and the run continues; a failed hard thread stops the run and its
// *ThreadError is returned. Threads already posted are never touched again.
func (p *Publisher) Run(ctx context.Context, threads ...Thread) (Report, error) {
	rep := Report{Threads: make([]ThreadResult, len(threads))}
	for i, th := range threads {
		rep.Threads[i] = ThreadResult{Name: th.Name, State: StatePending, SoftFail: th.SoftFail}
	}

	for i, th := range threads {
		res, terr := p.runThread(ctx, th)
		rep.Threads[i] = res
		p.emit(eventbus.TypeThreadDone, eventbus.PublishEvent{
			Thread: th.Name, Chunk: res.Posted(), State: res.State.String(), Error: res.Error,
		})
		if terr == nil {
			continue
		}
		if ctx.Err() != nil {
			// cancellation aborts the run regardless of soft-fail
			return rep, terr
		}
		if th.SoftFail {
			p.log.Warn("thread failed; continuing",
				logx.String("thread", th.Name), logx.Int("chunk", terr.Chunk), logx.Err(terr.Err))
			continue
		}
		p.log.Error("thread failed", logx.String("thread", th.Name), logx.Int("chunk", terr.Chunk), logx.Err(terr.Err))
		return rep, terr
	}
	return rep, nil
}

func (p *Publisher) runThread(ctx context.Context, th Thread) (ThreadResult, *ThreadError) {
	res := ThreadResult{Name: th.Name, State: StateSending, SoftFail: th.SoftFail}
	log := p.log.With(logx.String("thread", th.Name))

	parent := ""
	for i, text := range th.Chunks {
		idx := i + 1
		if text == "" {
			log.Info("empty chunk skipped", logx.Int("chunk", idx))
			res.Chunks = append(res.Chunks, ChunkResult{Index: idx, Skipped: true})
			continue
		}
		id, attempts, err := p.deliver(ctx, log, th.Name, idx, text, parent)
		if err != nil {
			res.State = StateFailed
			res.Err = err
			res.Error = err.Error()
			return res, &ThreadError{Thread: th.Name, Chunk: idx, Attempts: attempts, Err: err}
		}
		res.Chunks = append(res.Chunks, ChunkResult{Index: idx, ID: id, Attempts: attempts})
		if id != "" {
			parent = id
		}
	}
	res.State = StateSucceeded
	if len(th.Chunks) == 0 {
		log.Info("nothing to post")
	} else {
		log.Info("thread posted", logx.Int("chunks", res.Posted()), logx.String("root", res.RootID()))
	}
	return res, nil
}

// deliver runs the retry sub-loop for one chunk and returns the assigned id.
func (p *Publisher) deliver(ctx context.Context, log logx.Logger, thread string, idx int, text, replyTo string) (string, int, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", attempt - 1, err
		}
		if p.cfg.Pace != nil {
			if err := p.cfg.Pace.Wait(ctx); err != nil {
				return "", attempt - 1, err
			}
		}

		actx, cancel := context.WithTimeout(ctx, p.cfg.AttemptTimeout)
		resp, err := p.ep.Post(actx, text, replyTo)
		cancel()

		outcome, cerr := classify(resp, err)
		ev := eventbus.PublishEvent{Thread: thread, Chunk: idx, Attempt: attempt, Status: resp.Status, Outcome: outcome.String()}
		if cerr != nil {
			ev.Error = cerr.Error()
		}
		p.emit(eventbus.TypeChunkAttempt, ev)

		switch outcome {
		case OutcomeSuccess:
			id, ok := postedID(resp.Body)
			if !ok {
				log.Warn("posted but no id in response; next chunk keeps previous linkage",
					logx.Int("chunk", idx), logx.Int("status", resp.Status))
			}
			log.Debug("chunk posted", logx.Int("chunk", idx), logx.Int("attempt", attempt), logx.String("id", id))
			return id, attempt, nil
		case OutcomeFatal:
			return "", attempt, cerr
		}

		lastErr = cerr
		if attempt == p.cfg.MaxAttempts {
			break
		}
		delay := p.Delay(attempt)
		log.Warn("chunk attempt failed; retrying",
			logx.Int("chunk", idx), logx.Int("attempt", attempt), logx.Int("max", p.cfg.MaxAttempts),
			logx.Duration("in", delay), logx.Err(cerr))
		if err := p.sleep(ctx, delay); err != nil {
			return "", attempt, err
		}
	}
	return "", p.cfg.MaxAttempts, errors.Join(ErrExhausted, lastErr)
}

func (p *Publisher) emit(typ string, ev eventbus.PublishEvent) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pricewatch/internal/artifacts"
	"pricewatch/internal/config"
	"pricewatch/internal/diff"
	"pricewatch/internal/eventbus"
	"pricewatch/internal/feed"
	"pricewatch/internal/model"
	"pricewatch/internal/publish"
	"pricewatch/internal/render"
	"pricewatch/internal/storage"
	logx "pricewatch/pkg/logx"
	"pricewatch/pkg/tgui"
)

const (
	ModeRun     = "run"
	ModePublish = "publish"
)

// Report summarizes one run or publish. It is served on /last in serve mode.
type Report struct {
	RunID      string          `json:"run_id"`
	Mode       string          `json:"mode"`
	Key        string          `json:"key,omitempty"`
	Date       string          `json:"date,omitempty"`
	Baseline   string          `json:"baseline,omitempty"`
	Gameweek   int             `json:"gameweek,omitempty"`
	HasChanges bool            `json:"has_changes"`
	Risers     int             `json:"risers"`
	Fallers    int             `json:"fallers"`
	Files      []string        `json:"files,omitempty"`
	MessageID  int             `json:"telegram_message_id,omitempty"`
	Publish    *publish.Report `json:"publish,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	Duration   time.Duration   `json:"duration"`
	Error      string          `json:"error,omitempty"`
}

// Run fetches the feed, snapshots it, diffs against the previous snapshot,
// writes every rendered output and, unless dry-run, delivers them.
//
// The snapshot is saved before anything is rendered or delivered, so a failed
// delivery never loses the day's baseline.
func (a *App) Run(ctx context.Context) (*Report, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	rep := a.begin(ModeRun)
	err := a.run(ctx, rep, a.log.With(logx.String("run", rep.RunID)))
	a.finish(rep, err)
	return rep, err
}

// Publish posts chunk files written by an earlier run.
func (a *App) Publish(ctx context.Context) (*Report, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	rep := a.begin(ModePublish)
	log := a.log.With(logx.String("run", rep.RunID))
	err := a.publishFiles(ctx, a.cfgm.Get(), rep, log)
	a.finish(rep, err)
	return rep, err
}

func (a *App) begin(mode string) *Report {
	rep := &Report{RunID: uuid.NewString(), Mode: mode, StartedAt: a.now()}
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeRunStarted, Data: eventbus.RunEvent{RunID: rep.RunID, Mode: mode}})
	return rep
}

func (a *App) finish(rep *Report, err error) {
	rep.Duration = a.now().Sub(rep.StartedAt)
	if err != nil {
		rep.Error = err.Error()
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeRunFinished, Data: eventbus.RunEvent{
		RunID:    rep.RunID,
		Mode:     rep.Mode,
		Date:     rep.Date,
		Risers:   rep.Risers,
		Fallers:  rep.Fallers,
		Duration: rep.Duration,
		Error:    rep.Error,
	}})

	a.lastMu.Lock()
	cp := *rep
	a.last = &cp
	a.lastMu.Unlock()

	fields := []logx.Field{
		logx.String("run", rep.RunID),
		logx.String("mode", rep.Mode),
		logx.Duration("took", rep.Duration),
	}
	if err != nil {
		a.log.Error("run failed", append(fields, logx.Err(err))...)
		return
	}
	a.log.Info("run finished", append(fields,
		logx.Bool("has_changes", rep.HasChanges),
		logx.Int("risers", rep.Risers),
		logx.Int("fallers", rep.Fallers))...)
}

func (a *App) run(ctx context.Context, rep *Report, log logx.Logger) error {
	cfg := a.cfgm.Get()
	loc, err := labelLocation(cfg)
	if err != nil {
		return err
	}
	now := a.now()
	rep.Key = now.UTC().Format("2006-01-02")
	rep.Date = now.In(loc).Format("02-01-2006")

	fc, err := mapFeedConfig(cfg)
	if err != nil {
		return err
	}
	boot, err := feed.New(fc, log).Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch feed: %w", err)
	}
	rep.Gameweek = boot.Gameweek
	// a malformed feed must never become a baseline
	if err := diff.Validate(boot.Observations); err != nil {
		return fmt.Errorf("validate feed: %w", err)
	}

	prev, ok, err := a.store.Previous(ctx, rep.Key)
	if err != nil {
		return fmt.Errorf("load baseline: %w", err)
	}
	if ok {
		rep.Baseline = prev.Key
	} else {
		log.Info("no earlier snapshot; every entity is new", logx.String("key", rep.Key))
	}
	if err := a.store.Save(ctx, rep.Key, boot.Observations); err != nil {
		if !errors.Is(err, storage.ErrSnapshotExists) {
			return fmt.Errorf("save snapshot: %w", err)
		}
		log.Warn("snapshot for today already stored; keeping the first one", logx.String("key", rep.Key))
	} else {
		log.Info("snapshot saved", logx.String("key", rep.Key), logx.Int("entities", len(boot.Observations)))
	}

	dc, err := mapDiffConfig(cfg)
	if err != nil {
		return err
	}
	cs, err := diff.New(dc).Compute(boot.Observations, prev.Prices)
	if err != nil {
		return fmt.Errorf("diff: %w", err)
	}
	cs.Date = rep.Date
	rep.HasChanges = !cs.Empty()
	rep.Risers = len(cs.Risers)
	rep.Fallers = len(cs.Fallers)

	rc, err := mapRenderConfig(cfg)
	if err != nil {
		return err
	}
	r := render.New(rc)
	chunks, err := r.Chunks(cs)
	if err != nil {
		return fmt.Errorf("render chunks: %w", err)
	}
	out := artifacts.Outputs{
		Document: r.Document(cs),
		Message:  r.Message(cs),
		Chunks:   chunkTexts(chunks),
	}
	files, err := artifacts.Write(mapLayout(cfg), out)
	if err != nil {
		return fmt.Errorf("write outputs: %w", err)
	}
	rep.Files = files

	if err := artifacts.Signal(a.sec.GitHubOutput, rep.HasChanges, rep.Date); err != nil {
		return fmt.Errorf("write process signal: %w", err)
	}
	log.Info("outputs written",
		logx.Bool("has_changes", rep.HasChanges),
		logx.String("date", rep.Date),
		logx.Int("files", len(files)))

	if a.opts.DryRun {
		log.Info("dry run; delivery skipped")
		return nil
	}
	if !rep.HasChanges {
		log.Info("no price changes; nothing to deliver")
		return nil
	}

	a.notify(ctx, cfg, out.Message, rep, log)
	return a.publishThreads(ctx, cfg, out.Chunks, rep, log)
}

func chunkTexts(in map[model.Group][]render.Chunk) map[model.Group][]string {
	out := make(map[model.Group][]string, len(in))
	for g, cs := range in {
		texts := make([]string, 0, len(cs))
		for _, c := range cs {
			texts = append(texts, c.Text())
		}
		out[g] = texts
	}
	return out
}

// notify sends the bounded message. Chat delivery is best effort.
func (a *App) notify(ctx context.Context, cfg *config.Config, msg string, rep *Report, log logx.Logger) {
	if a.tg == nil || !cfg.Telegram.Enabled {
		return
	}
	id, err := a.tg.SendMessage(ctx, tgui.H(msg))
	if err != nil {
		log.Warn("telegram delivery failed", logx.Err(err))
		return
	}
	rep.MessageID = id
	log.Info("telegram message sent", logx.Int("message_id", id))
}

func (a *App) publishFiles(ctx context.Context, cfg *config.Config, rep *Report, log logx.Logger) error {
	_, plans, err := mapPublishConfig(cfg)
	if err != nil {
		return err
	}
	layout := mapLayout(cfg)
	texts := make(map[model.Group][]string, len(plans))
	for _, p := range plans {
		chunks, err := artifacts.ReadThread(layout, p.Group)
		if err != nil {
			return fmt.Errorf("read %s chunks: %w", p.Group, err)
		}
		texts[p.Group] = chunks
		if len(chunks) > 0 {
			rep.HasChanges = true
		}
	}
	log.Info("chunk files loaded",
		logx.Int("risers_chunks", len(texts[model.Risers])),
		logx.Int("fallers_chunks", len(texts[model.Fallers])))
	if a.opts.DryRun {
		log.Info("dry run; publish skipped")
		return nil
	}
	return a.publishThreads(ctx, cfg, texts, rep, log)
}

// publishThreads posts each configured group as its own thread, in config
// order. Groups without chunks are left out.
func (a *App) publishThreads(ctx context.Context, cfg *config.Config, texts map[model.Group][]string, rep *Report, log logx.Logger) error {
	if !cfg.Publish.Enabled {
		log.Info("publishing disabled")
		return nil
	}
	pc, plans, err := mapPublishConfig(cfg)
	if err != nil {
		return err
	}
	threads := make([]publish.Thread, 0, len(plans))
	for _, p := range plans {
		chunks := texts[p.Group]
		if len(chunks) == 0 {
			log.Info("no chunks for thread", logx.String("thread", string(p.Group)))
			continue
		}
		threads = append(threads, publish.Thread{Name: string(p.Group), Chunks: chunks, SoftFail: p.SoftFail})
	}
	if len(threads) == 0 {
		return nil
	}

	ep, err := a.endpoint(cfg, log)
	if err != nil {
		return err
	}
	pub := publish.New(pc, ep, log, publish.WithBus(a.bus), publish.WithSleep(a.opts.Sleep))
	res, err := pub.Run(ctx, threads...)
	rep.Publish = &res
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	for _, t := range res.Failed() {
		log.Warn("thread failed softly", logx.String("thread", t.Name), logx.String("err", t.Error))
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Defaults()) {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestLoadYAMLOverlaysDefaults(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "pricewatch.yaml", `
storage:
  driver: sqlite
  path: ./data/snapshots.db
diff:
  rank: popularity
publish:
  enabled: true
  backoff: ["1s", "2s"]
`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != "./data/snapshots.db" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Diff.Rank != "popularity" {
		t.Fatalf("diff.rank = %q", cfg.Diff.Rank)
	}
	if !reflect.DeepEqual(cfg.Publish.Backoff, []string{"1s", "2s"}) {
		t.Fatalf("publish.backoff = %v", cfg.Publish.Backoff)
	}
	// untouched sections keep defaults
	if cfg.Render.ChunkBudget != 255 || cfg.Render.MessageBudget != 3900 {
		t.Fatalf("render defaults lost: %+v", cfg.Render)
	}
	if len(cfg.Publish.Threads) != 2 || cfg.Publish.Threads[0].Group != "fallers" {
		t.Fatalf("publish.threads defaults lost: %+v", cfg.Publish.Threads)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "pricewatch.json", `{"storage":{"driver":"file","path":"x","bogus":1}}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "pricewatch.json", `{"diff":{"rank":"delta"}}{"diff":{}}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"message budget below title and trailer", func(c *Config) { c.Render.MessageBudget = 62; c.Render.ChunkBudget = 60 }},
		{"title too long", func(c *Config) { c.Render.Title = strings.Repeat("T", MaxTitleRunes+1) }},
		{"chunk over message", func(c *Config) { c.Render.ChunkBudget = c.Render.MessageBudget + 1 }},
		{"unknown rank", func(c *Config) { c.Diff.Rank = "alphabetical" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "s3" }},
		{"redis without addr", func(c *Config) { c.Storage.Driver = "redis" }},
		{"bad backoff", func(c *Config) { c.Publish.Backoff = []string{"5s", "soon"} }},
		{"unknown thread group", func(c *Config) { c.Publish.Threads = []ThreadConfig{{Group: "movers"}} }},
		{"duplicate thread group", func(c *Config) {
			c.Publish.Threads = []ThreadConfig{{Group: "risers"}, {Group: "risers"}}
		}},
		{"bad oversize policy", func(c *Config) { c.Render.Oversize = "drop" }},
		{"scheduler without spec", func(c *Config) { c.Scheduler.Enabled = true; c.Scheduler.Spec = "" }},
		{"bad scheduler spec", func(c *Config) { c.Scheduler.Spec = "whenever" }},
	}
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Defaults()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestParseDurationList(t *testing.T) {
	t.Parallel()
	got, err := ParseDurationList("publish.backoff", []string{"5s", "1m"})
	if err != nil {
		t.Fatalf("ParseDurationList: %v", err)
	}
	if !reflect.DeepEqual(got, []time.Duration{5 * time.Second, time.Minute}) {
		t.Fatalf("got %v", got)
	}
	if _, err := ParseDurationList("publish.backoff", []string{"-1s"}); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	oldCfg := Defaults()
	newCfg := Defaults()
	newCfg.Diff.Rank = "popularity"
	newCfg.Publish.Enabled = true

	changed, fields := SummarizeChange(oldCfg, newCfg)
	if !reflect.DeepEqual(changed, []string{"diff", "publish"}) {
		t.Fatalf("changed = %v", changed)
	}
	if len(fields) == 0 {
		t.Fatal("expected log fields")
	}
}

func TestReloadPublishesToSubscribers(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "pricewatch.yaml", "diff:\n  rank: delta\n")
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	if err := os.WriteFile(path, []byte("diff:\n  rank: popularity\n"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	m.reload()

	select {
	case cfg := <-ch:
		if cfg.Diff.Rank != "popularity" {
			t.Fatalf("published rank = %q", cfg.Diff.Rank)
		}
	default:
		t.Fatal("expected a published config")
	}

	// invalid content is rejected and not published
	if err := os.WriteFile(path, []byte("diff:\n  rank: nope\n"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	m.reload()
	select {
	case cfg := <-ch:
		t.Fatalf("unexpected publish: %+v", cfg.Diff)
	default:
	}
	if m.Get().Diff.Rank != "popularity" {
		t.Fatalf("rejected config was committed")
	}
}

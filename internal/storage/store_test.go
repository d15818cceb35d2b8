package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"pricewatch/internal/model"
	logx "pricewatch/pkg/logx"
)

func openers(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	out := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemory() },
		"file": func(t *testing.T) Store {
			st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "snapshots")}, logx.Nop())
			if err != nil {
				t.Fatalf("open file store: %v", err)
			}
			return st
		},
		"sqlite": func(t *testing.T) Store {
			st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "snapshots.db")}, logx.Nop())
			if err != nil {
				t.Fatalf("open sqlite store: %v", err)
			}
			return st
		},
	}
	// redis runs only against a real server, e.g. PRICEWATCH_TEST_REDIS=localhost:6379
	if addr := os.Getenv("PRICEWATCH_TEST_REDIS"); addr != "" {
		out["redis"] = func(t *testing.T) Store {
			prefix := fmt.Sprintf("pricewatch-test-%d", time.Now().UnixNano())
			st, err := Open(Config{Driver: "redis", RedisAddr: addr, RedisPrefix: prefix}, logx.Nop())
			if err != nil {
				t.Fatalf("open redis store: %v", err)
			}
			return st
		}
	}
	return out
}

func obs(pairs ...int) []model.Observation {
	out := make([]model.Observation, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.Observation{ID: pairs[i], Name: "p", Price: pairs[i+1], Group: "ARS"})
	}
	return out
}

func TestStoreContract(t *testing.T) {
	for name, open := range openers(t) {
		name, open := name, open
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t)
			defer st.Close()

			// First run: no baseline, no error.
			if _, ok, err := st.Previous(ctx, "2025-08-16"); err != nil || ok {
				t.Fatalf("Previous on empty store = ok:%v err:%v", ok, err)
			}

			if err := st.Save(ctx, "2025-08-15", obs(1, 65, 2, 55)); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := st.Save(ctx, "2025-08-17", obs(1, 75)); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := st.Save(ctx, "2025-08-16", obs(1, 70, 2, 55)); err != nil {
				t.Fatalf("Save: %v", err)
			}

			snap, ok, err := st.Previous(ctx, "2025-08-17")
			if err != nil || !ok {
				t.Fatalf("Previous = ok:%v err:%v", ok, err)
			}
			if snap.Key != "2025-08-16" {
				t.Fatalf("Previous key = %s, want 2025-08-16", snap.Key)
			}
			if !reflect.DeepEqual(snap.Prices, map[string]int{"1": 70, "2": 55}) {
				t.Fatalf("Previous prices = %v", snap.Prices)
			}

			// strictly older: the key itself is never its own baseline
			snap, ok, err = st.Previous(ctx, "2025-08-16")
			if err != nil || !ok || snap.Key != "2025-08-15" {
				t.Fatalf("Previous(2025-08-16) = %+v ok:%v err:%v", snap, ok, err)
			}

			keys, err := st.Keys(ctx)
			if err != nil {
				t.Fatalf("Keys: %v", err)
			}
			if !reflect.DeepEqual(keys, []string{"2025-08-15", "2025-08-16", "2025-08-17"}) {
				t.Fatalf("Keys = %v", keys)
			}

			// append-only
			err = st.Save(ctx, "2025-08-16", obs(1, 1))
			if !errors.Is(err, ErrSnapshotExists) {
				t.Fatalf("second Save err = %v, want ErrSnapshotExists", err)
			}
			snap, _, _ = st.Previous(ctx, "2025-08-17")
			if snap.Prices["1"] != 70 {
				t.Fatalf("snapshot mutated: %v", snap.Prices)
			}

			if err := st.Save(ctx, "../escape", obs(1, 1)); !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("Save invalid key err = %v", err)
			}
		})
	}
}

func TestFileStoreWritesCompactJSON(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Save(context.Background(), "2025-08-16", obs(1, 70, 2, 55)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "2025-08-16.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != `{"1":70,"2":55}` {
		t.Fatalf("file content = %s", b)
	}
	if _, err := os.Stat(filepath.Join(dir, "2025-08-16.json.tmp")); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestFileStoreIgnoresPartialAndCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	if err := st.Save(ctx, "2025-08-14", obs(1, 60)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// An interrupted write and a truncated file must not become the baseline.
	if err := os.WriteFile(filepath.Join(dir, "2025-08-16.json.tmp"), []byte(`{"1":`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "2025-08-15.json"), []byte(`{"1":`), 0o644); err != nil {
		t.Fatal(err)
	}

	snap, ok, err := st.Previous(ctx, "2025-08-17")
	if err != nil || !ok {
		t.Fatalf("Previous = ok:%v err:%v", ok, err)
	}
	if snap.Key != "2025-08-14" {
		t.Fatalf("Previous key = %s, want 2025-08-14", snap.Key)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "s3"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

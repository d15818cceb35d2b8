package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"pricewatch/internal/model"
	logx "pricewatch/pkg/logx"
)

const snapshotExt = ".json"

// fileStore is a dependency-free backend.
//
// Files:
//   - <dir>/<key>.json      (compact {"id":price} object, UTF-8)
//   - <dir>/<key>.json.tmp  (in-flight write; never read)
//
// A snapshot becomes visible only after the temp file is fsynced and renamed.
type fileStore struct {
	log logx.Logger
	dir string

	mu     sync.Mutex
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, dir: dir}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fileStore) Keys(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.keysLocked()
}

func (s *fileStore) keysLocked() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		key := strings.TrimSuffix(name, snapshotExt)
		if validKey(key) != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *fileStore) Previous(ctx context.Context, before string) (Snapshot, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, false, ErrClosed
	}
	keys, err := s.keysLocked()
	if err != nil {
		return Snapshot{}, false, err
	}

	// Walk backwards so an unreadable file falls through to the next older one.
	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		if key >= before {
			continue
		}
		prices, err := readSnapshotFile(filepath.Join(s.dir, key+snapshotExt))
		if err != nil {
			s.log.Warn("skipping unreadable snapshot", logx.String("key", key), logx.Err(err))
			continue
		}
		return Snapshot{Key: key, Prices: prices}, true, nil
	}
	return Snapshot{}, false, nil
}

func (s *fileStore) Save(ctx context.Context, key string, obs []model.Observation) error {
	_ = ctx
	if err := validKey(key); err != nil {
		return fmt.Errorf("%w: %q", err, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	final := filepath.Join(s.dir, key+snapshotExt)
	if _, err := os.Stat(final); err == nil {
		return fmt.Errorf("%w: %s", ErrSnapshotExists, key)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	b, err := json.Marshal(Prices(obs))
	if err != nil {
		return err
	}

	tmp := final + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	s.log.Debug("snapshot saved", logx.String("key", key), logx.Int("entries", len(obs)), logx.String("path", final))
	return nil
}

func readSnapshotFile(path string) (map[string]int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]int
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]int{}
	}
	return m, nil
}

package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pricewatch/internal/model"
)

// Memory is an in-process ordered store. Used for dry runs and tests.
type Memory struct {
	mu    sync.Mutex
	keys  []string // ascending
	snaps map[string]map[string]int
}

func NewMemory() *Memory {
	return &Memory{snaps: map[string]map[string]int{}}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Keys(ctx context.Context) ([]string, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keys...), nil
}

func (m *Memory) Previous(ctx context.Context, before string) (Snapshot, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := previousKey(m.keys, before)
	if !ok {
		return Snapshot{}, false, nil
	}
	return Snapshot{Key: key, Prices: copyPrices(m.snaps[key])}, true, nil
}

func (m *Memory) Save(ctx context.Context, key string, obs []model.Observation) error {
	_ = ctx
	if err := validKey(key); err != nil {
		return fmt.Errorf("%w: %q", err, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snaps[key]; ok {
		return fmt.Errorf("%w: %s", ErrSnapshotExists, key)
	}
	m.snaps[key] = Prices(obs)
	i := sort.SearchStrings(m.keys, key)
	m.keys = append(m.keys, "")
	copy(m.keys[i+1:], m.keys[i:])
	m.keys[i] = key
	return nil
}

func copyPrices(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

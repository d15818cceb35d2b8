package storage

import (
	"context"
	"errors"
	"time"

	"pricewatch/internal/model"
)

var (
	ErrSnapshotExists = errors.New("snapshot already exists")
	ErrInvalidKey     = errors.New("invalid snapshot key")
	ErrClosed         = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "file": one JSON file per snapshot in the Path directory (default)
//   - "sqlite": SQLite database file at Path
//   - "redis": Redis at RedisAddr, keys under RedisPrefix
//   - "memory": in-process only
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Snapshot is an immutable dated price record.
type Snapshot struct {
	Key    string
	Prices map[string]int
}

// Store is the snapshot history.
type Store interface {
	// Previous returns the newest snapshot with key < before.
	// ok is false when there is none (first run); that is not an error.
	Previous(ctx context.Context, before string) (snap Snapshot, ok bool, err error)
	// Save writes a new snapshot reduced to {id: price}.
	// Saving an existing key fails with ErrSnapshotExists.
	Save(ctx context.Context, key string, obs []model.Observation) error
	// Keys lists stored snapshot keys in ascending order.
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Prices reduces observations to the persisted {id: price} form.
func Prices(obs []model.Observation) map[string]int {
	out := make(map[string]int, len(obs))
	for _, o := range obs {
		out[o.Key()] = o.Price
	}
	return out
}

// validKey rejects keys that could escape a directory or break ordering.
func validKey(key string) error {
	if key == "" || len(key) > 64 {
		return ErrInvalidKey
	}
	for _, r := range key {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
		default:
			return ErrInvalidKey
		}
	}
	return nil
}

// previousKey returns the greatest key < before from ascending keys.
func previousKey(keys []string, before string) (string, bool) {
	for i := len(keys) - 1; i >= 0; i-- {
		if keys[i] < before {
			return keys[i], true
		}
	}
	return "", false
}

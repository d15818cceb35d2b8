package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"pricewatch/internal/model"
	logx "pricewatch/pkg/logx"
)

// redisStore keeps the ordered key index in a sorted set (all scores 0, so
// members sort lexicographically) and each snapshot as a JSON string.
//
// Keys:
//   - <prefix>:keys          ZSET of snapshot keys
//   - <prefix>:snap:<key>    compact {"id":price} JSON
type redisStore struct {
	rdb    *redis.Client
	prefix string
	log    logx.Logger
}

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("storage.redis_addr is required for redis driver")
	}
	prefix := strings.TrimSpace(cfg.RedisPrefix)
	if prefix == "" {
		prefix = "pricewatch"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisStore{rdb: rdb, prefix: prefix, log: log}, nil
}

func (s *redisStore) indexKey() string          { return s.prefix + ":keys" }
func (s *redisStore) snapKey(key string) string { return s.prefix + ":snap:" + key }

func (s *redisStore) Close() error { return s.rdb.Close() }

func (s *redisStore) Keys(ctx context.Context) ([]string, error) {
	return s.rdb.ZRange(ctx, s.indexKey(), 0, -1).Result()
}

func (s *redisStore) Previous(ctx context.Context, before string) (Snapshot, bool, error) {
	// Exclusive upper bound "(before", newest first.
	keys, err := s.rdb.ZRevRangeByLex(ctx, s.indexKey(), &redis.ZRangeBy{
		Max:   "(" + before,
		Min:   "-",
		Count: 1,
	}).Result()
	if err != nil {
		return Snapshot{}, false, err
	}
	if len(keys) == 0 {
		return Snapshot{}, false, nil
	}
	key := keys[0]
	raw, err := s.rdb.Get(ctx, s.snapKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, fmt.Errorf("snapshot %s indexed but missing", key)
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	var prices map[string]int
	if err := json.Unmarshal(raw, &prices); err != nil {
		return Snapshot{}, false, fmt.Errorf("snapshot %s: %w", key, err)
	}
	return Snapshot{Key: key, Prices: prices}, true, nil
}

func (s *redisStore) Save(ctx context.Context, key string, obs []model.Observation) error {
	if err := validKey(key); err != nil {
		return fmt.Errorf("%w: %q", err, key)
	}
	b, err := json.Marshal(Prices(obs))
	if err != nil {
		return err
	}
	// Value and index entry go in one MULTI/EXEC so neither exists without the
	// other. ZADD is idempotent; on a duplicate it re-indexes the stored value.
	var set *redis.BoolCmd
	if _, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		set = p.SetNX(ctx, s.snapKey(key), b, 0)
		p.ZAdd(ctx, s.indexKey(), redis.Z{Score: 0, Member: key})
		return nil
	}); err != nil {
		return err
	}
	if !set.Val() {
		return fmt.Errorf("%w: %s", ErrSnapshotExists, key)
	}
	s.log.Debug("snapshot saved", logx.String("key", key), logx.Int("entries", len(obs)))
	return nil
}

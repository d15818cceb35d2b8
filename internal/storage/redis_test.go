package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	logx "pricewatch/pkg/logx"
)

// txRecorder answers MULTI/EXEC pipelines in memory and records the command
// names of each one. Nothing reaches the network.
type txRecorder struct {
	mu     sync.Mutex
	exists bool
	fail   error
	txs    [][]string
}

func (h *txRecorder) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("no network in tests")
	}
}

func (h *txRecorder) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		return fmt.Errorf("unexpected single command %s", cmd.Name())
	}
}

func (h *txRecorder) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		names := make([]string, 0, len(cmds))
		for _, c := range cmds {
			names = append(names, c.Name())
		}
		h.txs = append(h.txs, names)
		if h.fail != nil {
			for _, c := range cmds {
				c.SetErr(h.fail)
			}
			return h.fail
		}
		for _, c := range cmds {
			if set, ok := c.(*redis.BoolCmd); ok && c.Name() == "setnx" {
				set.SetVal(!h.exists)
				h.exists = true
			}
		}
		return nil
	}
}

func newRecordedRedis(t *testing.T) (*redisStore, *txRecorder) {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	h := &txRecorder{}
	rdb.AddHook(h)
	t.Cleanup(func() { _ = rdb.Close() })
	return &redisStore{rdb: rdb, prefix: "pw", log: logx.Nop()}, h
}

func TestRedisSaveWritesValueAndIndexTogether(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, h := newRecordedRedis(t)

	if err := st.Save(ctx, "2025-08-15", obs(1, 50)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(h.txs) != 1 {
		t.Fatalf("transactions = %v", h.txs)
	}
	want := []string{"multi", "setnx", "zadd", "exec"}
	if fmt.Sprint(h.txs[0]) != fmt.Sprint(want) {
		t.Fatalf("tx = %v, want %v", h.txs[0], want)
	}
}

func TestRedisSaveDuplicateReindexes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, h := newRecordedRedis(t)
	// a value stored without its index entry
	h.exists = true

	err := st.Save(ctx, "2025-08-15", obs(1, 50))
	if !errors.Is(err, ErrSnapshotExists) {
		t.Fatalf("Save err = %v", err)
	}
	if len(h.txs) != 1 || fmt.Sprint(h.txs[0]) != "[multi setnx zadd exec]" {
		t.Fatalf("duplicate save did not re-index: %v", h.txs)
	}
}

func TestRedisSaveFailedTxReportsError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, h := newRecordedRedis(t)
	h.fail = errors.New("EXECABORT")

	if err := st.Save(ctx, "2025-08-15", obs(1, 50)); err == nil || errors.Is(err, ErrSnapshotExists) {
		t.Fatalf("Save err = %v", err)
	}
	// the retry is not mistaken for a duplicate
	h.fail = nil
	if err := st.Save(ctx, "2025-08-15", obs(1, 50)); err != nil {
		t.Fatalf("retry Save: %v", err)
	}
}

// Needs a real server, e.g. PRICEWATCH_TEST_REDIS=localhost:6379.
func TestRedisUnindexedValueIsRecovered(t *testing.T) {
	addr := os.Getenv("PRICEWATCH_TEST_REDIS")
	if addr == "" {
		t.Skip("PRICEWATCH_TEST_REDIS not set")
	}
	ctx := context.Background()
	prefix := fmt.Sprintf("pricewatch-test-%d", time.Now().UnixNano())
	st, err := Open(Config{Driver: "redis", RedisAddr: addr, RedisPrefix: prefix}, logx.Nop())
	if err != nil {
		t.Fatalf("open redis store: %v", err)
	}
	defer st.Close()
	rs := st.(*redisStore)
	defer rs.rdb.Del(ctx, rs.indexKey(), rs.snapKey("2025-08-15"))

	if err := rs.rdb.Set(ctx, rs.snapKey("2025-08-15"), `{"1":50}`, 0).Err(); err != nil {
		t.Fatalf("seed value: %v", err)
	}
	if err := st.Save(ctx, "2025-08-15", obs(1, 99)); !errors.Is(err, ErrSnapshotExists) {
		t.Fatalf("Save err = %v", err)
	}
	prev, ok, err := st.Previous(ctx, "2025-08-16")
	if err != nil || !ok {
		t.Fatalf("Previous = %v, %v", ok, err)
	}
	if prev.Key != "2025-08-15" || prev.Prices["1"] != 50 {
		t.Fatalf("Previous = %+v", prev)
	}
}

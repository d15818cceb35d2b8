// Package eventbus is an in-memory fanout of run and publish lifecycle events.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Event types.
const (
	TypeRunStarted   = "run.started"
	TypeRunFinished  = "run.finished"
	TypeChunkAttempt = "publish.attempt"
	TypeThreadDone   = "publish.thread"
)

// Event is a small signal passed to subscribers.
//
// Publish never blocks: subscribers get buffered channels and a slow
// subscriber drops events.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// RunEvent is the payload of run.* events.
type RunEvent struct {
	RunID    string        `json:"run_id"`
	Mode     string        `json:"mode"`
	Date     string        `json:"date,omitempty"`
	Risers   int           `json:"risers"`
	Fallers  int           `json:"fallers"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// PublishEvent is the payload of publish.* events.
type PublishEvent struct {
	Thread  string `json:"thread"`
	Chunk   int    `json:"chunk"`
	Attempt int    `json:"attempt,omitempty"`
	Status  int    `json:"status,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	State   string `json:"state,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns a bus with no background goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			// Holding the write lock excludes concurrent Publish, so close is safe.
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// Consume calls fn for every event until ctx is done. It subscribes before
// returning, so events published after Consume returns are not missed.
func Consume(ctx context.Context, b Bus, buffer int, fn func(Event)) (done <-chan struct{}) {
	ch, unsub := b.Subscribe(buffer)
	out := make(chan struct{})
	go func() {
		defer close(out)
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				fn(e)
			}
		}
	}()
	return out
}

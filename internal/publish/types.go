package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrChallenge marks an interstitial (anti-bot) page returned in place of data.
	ErrChallenge = errors.New("challenge page")
	// ErrExhausted is returned when every attempt for a chunk was retryable.
	ErrExhausted = errors.New("retries exhausted")
)

// Response is what an endpoint returned for one attempt.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Endpoint posts a single chunk. replyTo is empty for the first chunk of a thread.
// Transport failures are returned as err; HTTP-level failures as a Response.
type Endpoint interface {
	Post(ctx context.Context, text, replyTo string) (Response, error)
}

// Outcome is the classification of one delivery attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetry
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetry:
		return "retry"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// State is the lifecycle of one thread.
type State int

const (
	StatePending State = iota
	StateSending
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSending:
		return "sending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText lets reports serialize states by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// DefaultBackoff is the wait before the 2nd, 3rd, ... attempt; the last value is reused.
var DefaultBackoff = []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second, 60 * time.Second}

const (
	DefaultMaxAttempts    = 5
	DefaultAttemptTimeout = 20 * time.Second
)

// Config controls retries and pacing. Zero values take the defaults above.
type Config struct {
	Backoff        []time.Duration
	MaxAttempts    int
	AttemptTimeout time.Duration
	// Pace, when set, is waited on before every attempt.
	Pace *rate.Limiter
}

// Thread is one group's ordered chunk sequence, posted as replies to each other.
type Thread struct {
	Name     string
	Chunks   []string
	SoftFail bool
}

// ChunkResult records the delivery of one chunk.
type ChunkResult struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Attempts int    `json:"attempts"`
	Skipped  bool   `json:"skipped,omitempty"`
}

// ThreadResult is the final state of one thread. Err is set when State is failed.
type ThreadResult struct {
	Name     string        `json:"name"`
	State    State         `json:"state"`
	SoftFail bool          `json:"soft_fail,omitempty"`
	Chunks   []ChunkResult `json:"chunks,omitempty"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
}

// Posted counts chunks that were accepted by the endpoint.
func (r ThreadResult) Posted() int {
	n := 0
	for _, c := range r.Chunks {
		if !c.Skipped {
			n++
		}
	}
	return n
}

// RootID is the identifier of the first posted chunk, if known.
func (r ThreadResult) RootID() string {
	for _, c := range r.Chunks {
		if c.ID != "" {
			return c.ID
		}
	}
	return ""
}

// Report holds results in processing order. Threads never reached stay pending.
type Report struct {
	Threads []ThreadResult `json:"threads"`
}

// Failed returns the failed threads, soft or hard.
func (r Report) Failed() []ThreadResult {
	var out []ThreadResult
	for _, t := range r.Threads {
		if t.State == StateFailed {
			out = append(out, t)
		}
	}
	return out
}

// ThreadError is returned by Run when a hard-fail thread fails.
type ThreadError struct {
	Thread   string
	Chunk    int
	Attempts int
	Err      error
}

func (e *ThreadError) Error() string {
	return fmt.Sprintf("thread %s: chunk %d failed after %d attempt(s): %v", e.Thread, e.Chunk, e.Attempts, e.Err)
}

func (e *ThreadError) Unwrap() error { return e.Err }

// StatusError is a non-success HTTP answer.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

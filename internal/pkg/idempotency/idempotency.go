// Package idempotency records which queue jobs were already handled, so a job
// redelivered after a broker reconnect or a worker crash is not mailed twice.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrInvalidState = errors.New("idempotency: unexpected stored state")

type State string

const (
	// StateNone means the key was free and the caller now holds it.
	StateNone       State = "none"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateError      State = "error"
)

func (s State) String() string { return string(s) }

// Idempotency tracks the state of keyed jobs.
type Idempotency interface {
	// Acquire claims key for lock when it is free, or reports the stored state.
	Acquire(ctx context.Context, key string, lock time.Duration) (State, error)
	MarkCompleted(ctx context.Context, key string, ttl time.Duration) error
	MarkFailed(ctx context.Context, key string, ttl time.Duration) error
	// Release forgets key so the job can run again.
	Release(ctx context.Context, key string) error
}

// acquireScript claims KEYS[1] or returns what it holds, in one round trip.
// An empty reply means the claim succeeded.
var acquireScript = redis.NewScript(`
if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
	return ""
end
return redis.call("GET", KEYS[1]) or ""
`)

// StateTracker keeps job state in Redis.
type StateTracker struct {
	client redis.UniversalClient
	prefix string
}

type TrackerOption func(*StateTracker)

// WithPrefix namespaces keys. The default is "idempotency:".
func WithPrefix(prefix string) TrackerOption {
	return func(s *StateTracker) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func New(client redis.UniversalClient, opts ...TrackerOption) *StateTracker {
	s := &StateTracker{client: client, prefix: "idempotency:"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *StateTracker) Acquire(ctx context.Context, key string, lock time.Duration) (State, error) {
	if lock <= 0 {
		lock = time.Minute
	}

	held, err := acquireScript.Run(ctx, s.client, []string{s.prefix + key}, string(StateInProgress), lock.Milliseconds()).Text()
	if err != nil {
		return StateError, fmt.Errorf("idempotency: acquire %s: %w", key, err)
	}

	switch st := State(held); st {
	case "":
		return StateNone, nil
	case StateInProgress, StateCompleted, StateFailed:
		return st, nil
	default:
		return StateError, fmt.Errorf("%w: %q", ErrInvalidState, held)
	}
}

func (s *StateTracker) MarkCompleted(ctx context.Context, key string, ttl time.Duration) error {
	return s.set(ctx, key, StateCompleted, ttl)
}

func (s *StateTracker) MarkFailed(ctx context.Context, key string, ttl time.Duration) error {
	return s.set(ctx, key, StateFailed, ttl)
}

func (s *StateTracker) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

func (s *StateTracker) set(ctx context.Context, key string, st State, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, string(st), ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: mark %s %s: %w", key, st, err)
	}
	return nil
}

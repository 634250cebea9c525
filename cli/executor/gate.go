package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Policy decides what happens to a run whose working directory is busy.
type Policy string

const (
	PolicyReject Policy = "reject"
	PolicyQueue  Policy = "queue"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyReject, PolicyQueue:
		return p, nil
	case "":
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("unknown concurrency policy %q", s)
	}
}

// Gate allows at most one in-flight run per key, normally the suite
// working directory. Optionally it also takes a LockFile in that
// directory so that other processes on the host are excluded too.
type Gate struct {
	policy    Policy
	lockFiles bool

	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewGate creates a gate applying policy.
func NewGate(policy Policy, lockFiles bool) *Gate {
	if policy == "" {
		policy = PolicyReject
	}
	return &Gate{
		policy:    policy,
		lockFiles: lockFiles,
		slots:     make(map[string]chan struct{}),
	}
}

// Policy returns the configured policy.
func (g *Gate) Policy() Policy { return g.policy }

func (g *Gate) slot(key string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		g.slots[key] = s
	}
	return s
}

// TryAcquire takes the slot for key without waiting.
func (g *Gate) TryAcquire(key string) bool {
	select {
	case g.slot(key) <- struct{}{}:
		return true
	default:
		return false
	}
}

// Acquire waits for the slot for key or until ctx is done.
func (g *Gate) Acquire(ctx context.Context, key string) error {
	select {
	case g.slot(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the slot for key. Releasing a free slot is a no-op.
func (g *Gate) Release(key string) {
	select {
	case <-g.slot(key):
	default:
	}
}

// Enter applies the policy for key and returns a release function.
// Under PolicyReject a busy key yields ErrRunInProgress immediately.
func (g *Gate) Enter(ctx context.Context, key, correlationID string) (func(), error) {
	if g.policy == PolicyQueue {
		if err := g.Acquire(ctx, key); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCanceled, err)
		}
	} else if !g.TryAcquire(key) {
		return nil, ErrRunInProgress
	}

	if !g.lockFiles {
		return func() { g.Release(key) }, nil
	}
	lock := NewLockFile(key)
	if err := lock.Acquire(correlationID); err != nil {
		g.Release(key)
		return nil, err
	}
	return func() {
		lock.Release()
		g.Release(key)
	}, nil
}

// Busy reports whether a run currently holds key.
func (g *Gate) Busy(key string) bool {
	return len(g.slot(key)) > 0
}

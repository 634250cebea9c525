package executor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("Queue")
	require.NoError(t, err)
	require.Equal(t, PolicyQueue, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	require.Equal(t, PolicyReject, p)

	_, err = ParsePolicy("isolate")
	require.Error(t, err)
}

func TestGate_TryAcquire(t *testing.T) {
	g := NewGate(PolicyReject, false)
	require.True(t, g.TryAcquire("a"))
	require.False(t, g.TryAcquire("a"))
	require.True(t, g.TryAcquire("b"))
	require.True(t, g.Busy("a"))

	g.Release("a")
	require.False(t, g.Busy("a"))
	g.Release("a")
	require.True(t, g.TryAcquire("a"))
}

func TestGate_Enter_Reject(t *testing.T) {
	dir := t.TempDir()
	g := NewGate(PolicyReject, true)

	release, err := g.Enter(context.Background(), dir, "run-1")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, LockFileName))
	require.NoError(t, err)

	_, err = g.Enter(context.Background(), dir, "run-2")
	require.ErrorIs(t, err, ErrRunInProgress)

	release()
	_, err = os.Stat(filepath.Join(dir, LockFileName))
	require.True(t, os.IsNotExist(err))

	release, err = g.Enter(context.Background(), dir, "run-3")
	require.NoError(t, err)
	release()
}

func TestGate_Enter_Queue(t *testing.T) {
	dir := t.TempDir()
	g := NewGate(PolicyQueue, false)

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := g.Enter(context.Background(), dir, "run")
			require.NoError(t, err)
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			release()
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, maxActive)
}

func TestGate_Enter_QueueCanceled(t *testing.T) {
	dir := t.TempDir()
	g := NewGate(PolicyQueue, false)
	release, err := g.Enter(context.Background(), dir, "run-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = g.Enter(ctx, dir, "run-2")
	require.ErrorIs(t, err, ErrCanceled)
}

func TestLockFile(t *testing.T) {
	dir := t.TempDir()
	lf1 := NewLockFile(dir)
	lf2 := NewLockFile(dir)

	require.NoError(t, lf1.Acquire("one"))
	require.ErrorIs(t, lf2.Acquire("two"), ErrRunInProgress)
	require.NoError(t, lf2.Release())
	_, err := os.Stat(filepath.Join(dir, LockFileName))
	require.NoError(t, err)

	require.NoError(t, lf1.Release())
	require.NoError(t, lf2.Acquire("two"))
	require.NoError(t, lf2.Release())
}

func TestLockFile_Stale(t *testing.T) {
	dir := t.TempDir()
	// PID far above any pid_max
	stale := []byte(`{"pid": 2147483000, "startedAt": "2026-01-01T00:00:00Z", "correlationId": "old"}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, LockFileName), stale, 0o644))

	lf := NewLockFile(dir)
	require.NoError(t, lf.Acquire("new"))
	require.NoError(t, lf.Release())
}

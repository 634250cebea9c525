package executor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// LockFileName is created in the suite directory while a run is active.
const LockFileName = ".autobot.lock"

// maxLockAge is the maximum age of a lock before it's considered stale,
// even if the process is still alive. Guards against PID reuse.
const maxLockAge = 24 * time.Hour

// LockInfo contains information about the current lock
type LockInfo struct {
	PID           int       `json:"pid"`
	StartedAt     time.Time `json:"startedAt"`
	CorrelationID string    `json:"correlationId"`
}

// LockFile guards a suite directory against runs started by other
// processes on the same host.
type LockFile struct {
	path string
	info *LockInfo
}

// NewLockFile creates a lock file manager for dir.
func NewLockFile(dir string) *LockFile {
	return &LockFile{path: filepath.Join(dir, LockFileName)}
}

// Acquire attempts to acquire the lock atomically.
func (lf *LockFile) Acquire(correlationID string) error {
	if lf.isHeld() {
		existing, err := lf.readLock()
		if err != nil {
			// unreadable lock files are left by crashes mid-write
			os.Remove(lf.path)
		} else if isLockStale(existing) {
			if err := os.Remove(lf.path); err != nil {
				return fmt.Errorf("failed to remove stale lock: %w", err)
			}
		} else {
			return fmt.Errorf("%w (PID %d, run %s, started at %s)", ErrRunInProgress,
				existing.PID, existing.CorrelationID, existing.StartedAt.Format(time.RFC3339))
		}
	}

	lf.info = &LockInfo{
		PID:           os.Getpid(),
		StartedAt:     time.Now(),
		CorrelationID: correlationID,
	}
	data, err := json.MarshalIndent(lf.info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock info: %w", err)
	}
	data = append(data, '\n')

	// O_CREATE|O_EXCL ensures atomic creation - fails if file already exists
	f, err := os.OpenFile(lf.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		lf.info = nil
		if os.IsExist(err) {
			return fmt.Errorf("%w (lock acquired by another process)", ErrRunInProgress)
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(lf.path)
		lf.info = nil
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	return nil
}

// Release removes the lock if this process owns it.
func (lf *LockFile) Release() error {
	if lf.info == nil {
		return nil
	}
	defer func() { lf.info = nil }()

	existing, err := lf.readLock()
	if err != nil {
		return nil
	}
	if existing.PID != os.Getpid() || existing.CorrelationID != lf.info.CorrelationID {
		return nil
	}
	return os.Remove(lf.path)
}

func (lf *LockFile) isHeld() bool {
	_, err := os.Stat(lf.path)
	return err == nil
}

func (lf *LockFile) readLock() (*LockInfo, error) {
	data, err := os.ReadFile(lf.path)
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// isProcessAlive checks if a process with the given PID is still running
func isProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds, so we need to send signal 0
	return process.Signal(syscall.Signal(0)) == nil
}

func isLockStale(info *LockInfo) bool {
	if !isProcessAlive(info.PID) {
		return true
	}
	return time.Since(info.StartedAt) > maxLockAge
}

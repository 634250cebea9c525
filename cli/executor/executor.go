// Package executor launches a test run on a backend (a local child
// process or a remote build) under a hard deadline and reports what
// happened as a model.RunOutcome.
package executor

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/chattigo/autobot/model"
)

const (
	// DefaultDeadline bounds a single run.
	DefaultDeadline = 1800 * time.Second
	// ResultFileName is the name of the structured result document inside
	// a run workspace.
	ResultFileName = "report.json"
)

var (
	// ErrRunInProgress is returned when the single-flight gate is taken.
	ErrRunInProgress = errors.New("a run is already in progress")
	// ErrCanceled is returned when the run was aborted by its caller,
	// typically on shutdown, rather than by its own deadline.
	ErrCanceled = errors.New("run canceled")
)

// ProgressFunc is invoked by backends that poll a remote job, once per
// poll that found the job still running.
type ProgressFunc func(ctx context.Context, elapsed time.Duration)

// Workspace is the per-run directory a backend writes into.
type Workspace struct {
	// Dir is private to one run
	Dir string
	// ResultFile is deleted before the run starts
	ResultFile  string
	EvidenceDir string
	Progress    ProgressFunc
}

// NewWorkspace returns a workspace rooted at dir.
func NewWorkspace(dir, evidenceDir string) Workspace {
	return Workspace{
		Dir:         dir,
		ResultFile:  filepath.Join(dir, ResultFileName),
		EvidenceDir: evidenceDir,
	}
}

func (w Workspace) progress(ctx context.Context, elapsed time.Duration) {
	if w.Progress != nil {
		w.Progress(ctx, elapsed)
	}
}

// Backend executes one run. A non-nil error means the backend could not
// run the command at all; the returned outcome is still meaningful and
// carries ExitCrashed in that case.
type Backend interface {
	Name() string
	Execute(ctx context.Context, req model.RunRequest, ws Workspace) (model.RunOutcome, error)
}

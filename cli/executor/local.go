package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"

	"github.com/chattigo/autobot/model"
)

// DefaultCommand runs the profile's pytest suite with the json-report plugin.
const DefaultCommand = "python3 -m pytest tests/{profile} --env={environment} --json-report --json-report-file={report}"

const defaultWaitDelay = 2 * time.Second

// Local runs the suite as a child process of this host.
type Local struct {
	logger    zerolog.Logger
	suiteDir  string
	command   string
	deadline  time.Duration
	waitDelay time.Duration
	env       []string
	stdout    io.Writer
	stderr    io.Writer
}

// LocalOption configures a Local backend.
type LocalOption func(*Local)

// WithCommand sets the command template. Placeholders {profile},
// {environment}, {report}, {base_url} and {evidence} are replaced with
// shell-quoted values.
func WithCommand(template string) LocalOption {
	return func(l *Local) {
		if strings.TrimSpace(template) != "" {
			l.command = template
		}
	}
}

// WithDeadline sets the wall-clock limit of a run.
func WithDeadline(d time.Duration) LocalOption {
	return func(l *Local) {
		if d > 0 {
			l.deadline = d
		}
	}
}

// WithWaitDelay bounds how long output pipes are drained after a kill.
func WithWaitDelay(d time.Duration) LocalOption {
	return func(l *Local) {
		l.waitDelay = d
	}
}

// WithEnv adds KEY=VALUE pairs to the child environment.
func WithEnv(env ...string) LocalOption {
	return func(l *Local) {
		l.env = append(l.env, env...)
	}
}

// WithEcho mirrors the child output, e.g. to the terminal in one-shot mode.
func WithEcho(stdout, stderr io.Writer) LocalOption {
	return func(l *Local) {
		l.stdout = stdout
		l.stderr = stderr
	}
}

// NewLocal creates a Local backend running in suiteDir.
func NewLocal(logger zerolog.Logger, suiteDir string, opts ...LocalOption) *Local {
	l := &Local{
		logger:    logger,
		suiteDir:  suiteDir,
		command:   DefaultCommand,
		deadline:  DefaultDeadline,
		waitDelay: defaultWaitDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Local) Name() string { return "local" }

// SuiteDir returns the working directory the suite runs in.
func (l *Local) SuiteDir() string { return l.suiteDir }

// CommandLine expands the command template for a request.
func (l *Local) CommandLine(req model.RunRequest, ws Workspace) string {
	r := strings.NewReplacer(
		"{profile}", shellescape.Quote(string(req.Profile)),
		"{environment}", shellescape.Quote(string(req.Environment)),
		"{report}", shellescape.Quote(ws.ResultFile),
		"{base_url}", shellescape.Quote(req.BaseURL),
		"{evidence}", shellescape.Quote(ws.EvidenceDir),
	)
	return r.Replace(l.command)
}

func (l *Local) Execute(ctx context.Context, req model.RunRequest, ws Workspace) (model.RunOutcome, error) {
	commandLine := l.CommandLine(req, ws)
	outcome := model.RunOutcome{
		ExitCode: -1,
		Args:     []string{"sh", "-c", commandLine},
	}

	// A document left over from an earlier run must never be read as ours.
	if err := os.Remove(ws.ResultFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		outcome.ExitStatus = model.ExitCrashed
		return outcome, fmt.Errorf("failed to remove stale result document: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, l.deadline)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", commandLine)
	cmd.Dir = l.suiteDir
	cmd.Env = append(os.Environ(), l.env...)
	cmd.Env = append(cmd.Env,
		"BASE_URL="+req.BaseURL,
		"ENVIRONMENT="+string(req.Environment),
		"PROFILE="+string(req.Profile),
		"REPORT_FILE="+ws.ResultFile,
		"EVIDENCE_DIR="+ws.EvidenceDir,
		"CORRELATION_ID="+req.CorrelationID,
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = l.waitDelay

	// Capture stdout and stderr for history
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	if l.stdout != nil {
		cmd.Stdout = io.MultiWriter(l.stdout, &stdoutBuf)
	}
	if l.stderr != nil {
		cmd.Stderr = io.MultiWriter(l.stderr, &stderrBuf)
	}

	l.logger.Info().
		Str("correlation_id", req.CorrelationID).
		Str("dir", l.suiteDir).
		Str("command", commandLine).
		Dur("deadline", l.deadline).
		Msg("Starting test command")

	start := time.Now()
	err := cmd.Run()
	outcome.Duration = time.Since(start)
	outcome.Stdout = stdoutBuf.String()
	outcome.Stderr = stderrBuf.String()

	if _, statErr := os.Stat(ws.ResultFile); statErr == nil {
		outcome.ResultDocumentPath = ws.ResultFile
	}

	switch {
	case ctx.Err() != nil:
		outcome.ExitStatus = model.ExitCrashed
		l.logger.Warn().Str("correlation_id", req.CorrelationID).Msg("Test command canceled")
		return outcome, fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		outcome.ExitStatus = model.ExitTimedOut
		l.logger.Warn().
			Str("correlation_id", req.CorrelationID).
			Dur("deadline", l.deadline).
			Msg("Test command timed out, process group killed")
		return outcome, nil
	case err == nil:
		outcome.ExitStatus = model.ExitSuccess
		outcome.ExitCode = 0
		l.logger.Info().
			Str("correlation_id", req.CorrelationID).
			Dur("duration", outcome.Duration).
			Msg("Tests completed successfully")
		return outcome, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Test failures are expected to return non-zero exit codes
		outcome.ExitCode = exitErr.ExitCode()
		outcome.ExitStatus = model.ExitFailure
		if outcome.ResultDocumentPath == "" {
			outcome.ExitStatus = model.ExitCrashed
		}
		l.logger.Info().
			Str("correlation_id", req.CorrelationID).
			Int("exit_code", outcome.ExitCode).
			Str("status", string(outcome.ExitStatus)).
			Msg("Tests completed with failures")
		return outcome, nil
	}

	outcome.ExitStatus = model.ExitCrashed
	return outcome, fmt.Errorf("failed to execute test command: %w", err)
}

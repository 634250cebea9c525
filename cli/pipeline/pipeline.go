// Package pipeline drives one run request through its stages in strict
// order: Execute, Extract, Render, Publish, Notify. Recoverable failures
// (extraction, publishing) degrade the outcome instead of aborting it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chattigo/autobot/cli/executor"
	"github.com/chattigo/autobot/cli/metrics"
	"github.com/chattigo/autobot/history"
	"github.com/chattigo/autobot/model"
	"github.com/chattigo/autobot/notify"
	"github.com/chattigo/autobot/report"
	"github.com/chattigo/autobot/results"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageGate    Stage = "gate"
	StagePrepare Stage = "prepare"
	StageExecute Stage = "execute"
	StageRender  Stage = "render"
	StagePublish Stage = "publish"
	StageNotify  Stage = "notify"
)

// StageError attributes an error to the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// finalNotifyTimeout bounds messages sent after the run context is gone.
const finalNotifyTimeout = 10 * time.Second

// Publisher uploads a rendered report and returns its public URL.
type Publisher interface {
	Publish(ctx context.Context, doc []byte, env model.Environment, profile model.Profile, ts time.Time) (string, error)
}

// Result is what happened to one request.
type Result struct {
	RunDir    string
	Outcome   model.RunOutcome
	Summary   model.RunSummary
	ReportURL string
	Warnings  []string
}

// Orchestrator runs requests against a backend.
type Orchestrator struct {
	logger      zerolog.Logger
	backend     executor.Backend
	store       *history.Store
	gate        *executor.Gate
	gateKey     string
	publisher   Publisher
	metrics     *metrics.Collector
	fallbackURL string
	evidenceDir string
	suiteDir    string
	names       results.Names
	historyType model.HistoryType
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithGate serializes runs on key, normally the suite directory, which is
// also inspected for git information.
func WithGate(gate *executor.Gate, key string) Option {
	return func(o *Orchestrator) {
		o.gate = gate
		o.gateKey = key
	}
}

// WithPublisher sets where rendered reports are uploaded. Without one the
// fallback URL is linked.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithMetrics records every run on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = c }
}

// WithFallbackURL sets the link used when a report cannot be published.
func WithFallbackURL(url string) Option {
	return func(o *Orchestrator) { o.fallbackURL = url }
}

// WithEvidenceDir sets the evidence directory. A relative dir is taken
// from the suite directory when one is set, else from the run directory.
func WithEvidenceDir(dir string) Option {
	return func(o *Orchestrator) { o.evidenceDir = dir }
}

// WithSuiteDir sets the working directory of a suite running on this
// host. Its evidence directory is emptied before every run.
func WithSuiteDir(dir string) Option {
	return func(o *Orchestrator) { o.suiteDir = dir }
}

// WithNames sets the display name lookup table of the report.
func WithNames(n results.Names) Option {
	return func(o *Orchestrator) { o.names = n }
}

// WithHistoryType tags history entries with where runs came from.
func WithHistoryType(t model.HistoryType) Option {
	return func(o *Orchestrator) { o.historyType = t }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator executing on backend and keeping runs in store.
func New(logger zerolog.Logger, backend executor.Backend, store *history.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:      logger,
		backend:     backend,
		store:       store,
		names:       results.DefaultNames(),
		historyType: model.HistoryTypeChat,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes req and reports every step through n. The returned error
// is a *StageError when the request never produced a summary: it was
// rejected by the gate, or the backend could not run it.
func (o *Orchestrator) Run(ctx context.Context, req model.RunRequest, n notify.Notifier) (*Result, error) {
	logger := o.logger.With().
		Str("correlation_id", req.CorrelationID).
		Str("environment", string(req.Environment)).
		Str("profile", string(req.Profile)).
		Logger()

	release, err := o.enter(ctx, req, n)
	if err != nil {
		logger.Warn().Err(err).Msg("Run not started")
		if errors.Is(err, executor.ErrRunInProgress) {
			o.send(ctx, logger, n, BusyMessage())
		}
		return nil, &StageError{Stage: StageGate, Err: err}
	}
	defer release()

	runDir, err := o.store.Prepare(req)
	if err != nil {
		o.send(ctx, logger, n, ErrorMessage(err))
		return nil, &StageError{Stage: StagePrepare, Err: err}
	}
	ws := executor.NewWorkspace(runDir, o.evidencePath(runDir))
	if o.sharedEvidence() {
		// screenshots of the previous run must not end up in this report
		if err := os.RemoveAll(ws.EvidenceDir); err != nil {
			logger.Warn().Err(err).Str("dir", ws.EvidenceDir).Msg("Failed to clear evidence directory")
		}
	}
	if err := os.MkdirAll(ws.EvidenceDir, 0o755); err != nil {
		logger.Warn().Err(err).Str("dir", ws.EvidenceDir).Msg("Failed to create evidence directory")
	}

	status := o.send(ctx, logger, n, StartMessage(req))
	ws.Progress = func(ctx context.Context, elapsed time.Duration) {
		if status.MessageID == "" {
			return
		}
		if err := n.Edit(ctx, status, ProgressMessage(req, elapsed)); err != nil {
			logger.Warn().Err(err).Msg("Failed to update progress message")
		}
	}

	logger.Info().Str("backend", o.backend.Name()).Str("dir", runDir).Msg("Starting run")
	if o.metrics != nil {
		done := o.metrics.RunStarted()
		defer done()
	}

	res := &Result{RunDir: runDir}
	outcome, execErr := o.backend.Execute(ctx, req, ws)
	res.Outcome = outcome

	logger.Info().
		Str("exit_status", string(outcome.ExitStatus)).
		Int("exit_code", outcome.ExitCode).
		Dur("duration", outcome.Duration).
		Msg("Run finished")

	switch {
	case execErr != nil:
		logger.Error().Err(execErr).Msg("Failed to execute run")
		o.sendFinal(ctx, logger, n, ErrorMessage(execErr))
		o.record(ctx, logger, req, runDir, res, nil)
		return res, &StageError{Stage: StageExecute, Err: execErr}
	case outcome.ExitStatus == model.ExitTimedOut:
		o.sendFinal(ctx, logger, n, TimeoutMessage())
		o.record(ctx, logger, req, runDir, res, nil)
		return res, nil
	}

	if outcome.RemoteReportURL != "" {
		// The remote backend aggregated and published on its own.
		if outcome.RemoteSummary != nil {
			res.Summary = *outcome.RemoteSummary
		}
		res.Summary = res.Summary.Normalize(outcome.ExitStatus)
		res.ReportURL = outcome.RemoteReportURL
	} else {
		res.ReportURL = o.buildReport(ctx, logger, req, runDir, ws, res, n)
	}

	o.sendFinal(ctx, logger, n, Compose(req, res.Summary, outcome.ExitStatus, res.ReportURL, o.now()))

	o.record(ctx, logger, req, runDir, res, &res.Summary)
	return res, nil
}

func (o *Orchestrator) enter(ctx context.Context, req model.RunRequest, n notify.Notifier) (func(), error) {
	if o.gate == nil {
		return func() {}, nil
	}
	if o.gate.Policy() == executor.PolicyQueue && o.gate.Busy(o.gateKey) {
		o.send(ctx, o.logger, n, QueuedMessage(req))
	}
	return o.gate.Enter(ctx, o.gateKey, req.CorrelationID)
}

func (o *Orchestrator) evidencePath(runDir string) string {
	switch {
	case o.evidenceDir == "":
		return runDir
	case filepath.IsAbs(o.evidenceDir):
		return o.evidenceDir
	case o.suiteDir != "":
		return filepath.Join(o.suiteDir, o.evidenceDir)
	default:
		return filepath.Join(runDir, o.evidenceDir)
	}
}

// sharedEvidence reports whether the evidence directory lives in the suite
// directory, where it outlives a single run. The gate keeps it private to
// the run in progress.
func (o *Orchestrator) sharedEvidence() bool {
	if o.suiteDir == "" || o.evidenceDir == "" || filepath.IsAbs(o.evidenceDir) {
		return false
	}
	rel, err := filepath.Rel(o.suiteDir, filepath.Join(o.suiteDir, o.evidenceDir))
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// buildReport extracts, renders and publishes. It always fills in a
// summary and returns the URL to link, falling back when needed.
func (o *Orchestrator) buildReport(ctx context.Context, logger zerolog.Logger, req model.RunRequest, runDir string, ws executor.Workspace, res *Result, n notify.Notifier) string {
	summary, cases, err := results.Extract(res.Outcome.ResultDocumentPath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to extract results, using degenerate summary")
	}
	res.Summary = summary.Normalize(res.Outcome.ExitStatus)

	generatedAt := o.now()
	doc, err := report.Render(res.Summary, cases, report.Metadata{
		Environment: req.Environment,
		Profile:     req.Profile,
		GeneratedAt: generatedAt,
		EvidenceDir: ws.EvidenceDir,
		Names:       o.names,
	})
	if err != nil {
		logger.Error().Err(&StageError{Stage: StageRender, Err: err}).Msg("Failed to render report")
		res.Warnings = append(res.Warnings, err.Error())
		return o.fallbackURL
	}
	if err := os.WriteFile(filepath.Join(runDir, history.ReportFile), doc, 0o644); err != nil {
		logger.Warn().Err(err).Msg("Failed to keep a local copy of the report")
	}

	if o.publisher == nil {
		return o.fallbackURL
	}
	url, err := o.publisher.Publish(ctx, doc, req.Environment, req.Profile, generatedAt)
	if err != nil {
		logger.Warn().Err(&StageError{Stage: StagePublish, Err: err}).Msg("Failed to publish report, linking fallback")
		if o.metrics != nil {
			o.metrics.ObservePublishFailure()
		}
		res.Warnings = append(res.Warnings, err.Error())
		o.send(ctx, logger, n, PublishWarning(err))
		return o.fallbackURL
	}
	return url
}

func (o *Orchestrator) record(ctx context.Context, logger zerolog.Logger, req model.RunRequest, runDir string, res *Result, summary *model.RunSummary) {
	if o.metrics != nil {
		observed := res.Summary
		if summary == nil {
			observed = model.RunSummary{}
		}
		o.metrics.ObserveRun(req, res.Outcome.ExitStatus, observed, res.Outcome.Duration)
	}

	h := &model.History{
		ID:         req.CorrelationID,
		Type:       o.historyType,
		Timestamp:  req.RequestedAt,
		Request:    req,
		Backend:    o.backend.Name(),
		Args:       res.Outcome.Args,
		WorkDir:    o.gateKey,
		ExitStatus: res.Outcome.ExitStatus,
		ExitCode:   res.Outcome.ExitCode,
		Duration:   res.Outcome.Duration,
		Summary:    summary,
		ReportURL:  res.ReportURL,
		Warnings:   res.Warnings,
	}
	if o.gateKey != "" {
		gitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		git, err := history.GitInfo(gitCtx, o.gateKey)
		cancel()
		if err != nil {
			logger.Debug().Err(err).Msg("No git information for suite")
		}
		h.Git = git
	}
	if err := o.store.Record(runDir, h, res.Outcome); err != nil {
		logger.Warn().Err(err).Msg("Failed to record run history")
	}
}

// send delivers an intermediate message. Failures are logged only.
func (o *Orchestrator) send(ctx context.Context, logger zerolog.Logger, n notify.Notifier, msg notify.Message) notify.MessageRef {
	ref, err := n.Send(ctx, msg)
	if err != nil {
		logger.Warn().Err(&StageError{Stage: StageNotify, Err: err}).Msg("Failed to send message")
	}
	return ref
}

// sendFinal delivers a message even when ctx was canceled by shutdown.
func (o *Orchestrator) sendFinal(ctx context.Context, logger zerolog.Logger, n notify.Notifier, msg notify.Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalNotifyTimeout)
	defer cancel()
	o.send(ctx, logger, n, msg)
}

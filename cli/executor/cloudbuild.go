package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/chattigo/autobot/cli/storage"
	"github.com/chattigo/autobot/model"
)

// DefaultPollInterval is how often a remote build is polled.
const DefaultPollInterval = 6 * time.Second

// BuildResult is the terminal state of a remote build.
type BuildResult struct {
	ID      string
	Status  string
	LogURL  string
	Success bool
}

// BuildOperation is a handle on a submitted build.
type BuildOperation interface {
	// Poll refreshes the operation. result is non-nil once done is true.
	Poll(ctx context.Context) (result *BuildResult, done bool, err error)
}

// BuildClient submits builds to a remote build service.
type BuildClient interface {
	CreateBuild(ctx context.Context, substitutions map[string]string) (BuildOperation, error)
	Close() error
}

// ArtifactSource reads what a remote build published.
type ArtifactSource interface {
	DownloadText(ctx context.Context, key string) (string, error)
	PublicURL(key string) string
}

// CloudBuild runs the suite remotely. The build publishes an Allure
// summary and report under {env}/{profile}/ which are picked up once
// the build finished.
type CloudBuild struct {
	logger       zerolog.Logger
	client       BuildClient
	artifacts    ArtifactSource
	deadline     time.Duration
	pollInterval time.Duration
}

// CloudBuildOption configures a CloudBuild backend.
type CloudBuildOption func(*CloudBuild)

// WithPollInterval sets the delay between two polls.
func WithPollInterval(d time.Duration) CloudBuildOption {
	return func(c *CloudBuild) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithBuildDeadline sets the wall-clock limit of a remote run.
func WithBuildDeadline(d time.Duration) CloudBuildOption {
	return func(c *CloudBuild) {
		if d > 0 {
			c.deadline = d
		}
	}
}

// NewCloudBuild creates a remote backend.
func NewCloudBuild(logger zerolog.Logger, client BuildClient, artifacts ArtifactSource, opts ...CloudBuildOption) *CloudBuild {
	c := &CloudBuild{
		logger:       logger,
		client:       client,
		artifacts:    artifacts,
		deadline:     DefaultDeadline,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CloudBuild) Name() string { return "cloudbuild" }

// SummaryKey is where a remote build leaves its Allure summary.
func SummaryKey(env model.Environment, profile model.Profile) string {
	return path.Join(string(env), string(profile), "summary.json")
}

// AllureReportKey is where a remote build leaves its Allure report.
func AllureReportKey(env model.Environment, profile model.Profile) string {
	return path.Join(string(env), string(profile), "allure-report", "index.html")
}

func (c *CloudBuild) Execute(ctx context.Context, req model.RunRequest, ws Workspace) (model.RunOutcome, error) {
	outcome := model.RunOutcome{ExitCode: -1}
	logger := c.logger.With().Str("correlation_id", req.CorrelationID).Logger()

	runCtx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	start := time.Now()
	op, err := c.client.CreateBuild(runCtx, map[string]string{
		"_ENV":            string(req.Environment),
		"_PROFILE":        string(req.Profile),
		"_CORRELATION_ID": req.CorrelationID,
		"_BASE_URL":       req.BaseURL,
	})
	if err != nil {
		outcome.ExitStatus = model.ExitCrashed
		outcome.Duration = time.Since(start)
		return outcome, fmt.Errorf("failed to create build: %w", err)
	}
	logger.Info().Dur("poll_interval", c.pollInterval).Msg("Remote build submitted")

	var result *BuildResult
	for {
		res, done, err := op.Poll(runCtx)
		if err == nil && done {
			result = res
			break
		}
		if err != nil && runCtx.Err() == nil {
			outcome.ExitStatus = model.ExitCrashed
			outcome.Duration = time.Since(start)
			return outcome, fmt.Errorf("failed to poll build: %w", err)
		}
		if err == nil {
			ws.progress(ctx, time.Since(start))
		}

		select {
		case <-runCtx.Done():
		case <-time.After(c.pollInterval):
			continue
		}

		outcome.Duration = time.Since(start)
		if ctx.Err() != nil {
			outcome.ExitStatus = model.ExitCrashed
			return outcome, fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
		}
		outcome.ExitStatus = model.ExitTimedOut
		logger.Warn().Dur("deadline", c.deadline).Msg("Remote build timed out")
		return outcome, nil
	}

	outcome.Duration = time.Since(start)
	outcome.Stdout = fmt.Sprintf("build %s finished with status %s\n", result.ID, result.Status)
	if result.LogURL != "" {
		outcome.Stdout += "logs: " + result.LogURL + "\n"
	}
	if result.Success {
		outcome.ExitStatus = model.ExitSuccess
		outcome.ExitCode = 0
	} else {
		outcome.ExitStatus = model.ExitFailure
		outcome.ExitCode = 1
	}

	outcome.RemoteReportURL = c.artifacts.PublicURL(AllureReportKey(req.Environment, req.Profile))
	summary, err := c.readSummary(ctx, req)
	if err != nil {
		// Reported as a degenerate summary by the pipeline
		logger.Warn().Err(err).Msg("Failed to read remote summary")
	} else {
		outcome.RemoteSummary = &summary
	}

	logger.Info().
		Str("build_id", result.ID).
		Str("status", result.Status).
		Dur("duration", outcome.Duration).
		Msg("Remote build finished")
	return outcome, nil
}

// allureSummary is the subset of Allure's widgets/summary.json we use.
type allureSummary struct {
	Statistic *struct {
		Passed *int `json:"passed"`
		Failed *int `json:"failed"`
		Broken int  `json:"broken"`
	} `json:"statistic"`
	Time struct {
		// milliseconds
		Duration float64 `json:"duration"`
	} `json:"time"`
}

func (c *CloudBuild) readSummary(ctx context.Context, req model.RunRequest) (model.RunSummary, error) {
	key := SummaryKey(req.Environment, req.Profile)
	text, err := c.artifacts.DownloadText(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.RunSummary{}, fmt.Errorf("remote summary %s not found: %w", key, err)
		}
		return model.RunSummary{}, fmt.Errorf("failed to download remote summary: %w", err)
	}
	var doc allureSummary
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return model.RunSummary{}, fmt.Errorf("failed to parse remote summary: %w", err)
	}
	if doc.Statistic == nil || doc.Statistic.Passed == nil || doc.Statistic.Failed == nil {
		return model.RunSummary{}, fmt.Errorf("remote summary %s has no statistic block", key)
	}
	failed := *doc.Statistic.Failed + doc.Statistic.Broken
	return model.NewRunSummary(*doc.Statistic.Passed, failed, doc.Time.Duration/1000), nil
}

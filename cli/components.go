package cli

// This file wires the configured backend, storage and history into a
// run pipeline shared by the serve and run commands.

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/chattigo/autobot/cli/executor"
	"github.com/chattigo/autobot/cli/metrics"
	"github.com/chattigo/autobot/cli/pipeline"
	"github.com/chattigo/autobot/cli/storage"
	"github.com/chattigo/autobot/config"
	"github.com/chattigo/autobot/history"
	"github.com/chattigo/autobot/model"
)

type components struct {
	orchestrator *pipeline.Orchestrator
	store        *history.Store
	closers      []func() error
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}

func (a *App) buildComponents(ctx context.Context, cfg config.Config, collector *metrics.Collector, historyType model.HistoryType, localOpts ...executor.LocalOption) (*components, error) {
	c := &components{store: history.NewStore(a.logger, cfg.StateDir)}

	suiteDir, err := filepath.Abs(cfg.SuiteDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve suite directory: %w", err)
	}

	var publisher *storage.Publisher
	provider, err := storage.NewProvider(ctx, cfg.Storage)
	if err != nil {
		if cfg.Backend == config.BackendCloudBuild {
			return nil, fmt.Errorf("failed to create storage provider: %w", err)
		}
		// Reports can still be linked through the fallback URL.
		a.logger.Warn().Err(err).Str("provider", cfg.Storage.Provider).Msg("Report storage unavailable, reports will not be published")
	} else {
		c.closers = append(c.closers, provider.Close)
		publisher = storage.NewPublisher(a.logger, provider)
	}

	var backend executor.Backend
	switch cfg.Backend {
	case config.BackendCloudBuild:
		client, err := executor.NewCloudBuildClient(ctx, cfg.CloudBuild)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create cloud build client: %w", err)
		}
		c.closers = append(c.closers, client.Close)
		backend = executor.NewCloudBuild(a.logger, client, publisher,
			executor.WithPollInterval(cfg.PollInterval),
			executor.WithBuildDeadline(cfg.Deadline),
		)
	default:
		opts := append([]executor.LocalOption{
			executor.WithCommand(cfg.Command),
			executor.WithDeadline(cfg.Deadline),
		}, localOpts...)
		backend = executor.NewLocal(a.logger, suiteDir, opts...)
	}

	opts := []pipeline.Option{
		pipeline.WithGate(executor.NewGate(cfg.Policy, cfg.LockFiles), suiteDir),
		pipeline.WithMetrics(collector),
		pipeline.WithFallbackURL(cfg.FallbackReportURL),
		pipeline.WithEvidenceDir(cfg.EvidenceDir),
		pipeline.WithNames(cfg.Names),
		pipeline.WithHistoryType(historyType),
	}
	if publisher != nil {
		opts = append(opts, pipeline.WithPublisher(publisher))
	}
	if cfg.Backend != config.BackendCloudBuild {
		// the suite writes screenshots relative to its own working directory
		opts = append(opts, pipeline.WithSuiteDir(suiteDir))
	}
	c.orchestrator = pipeline.New(a.logger, backend, c.store, opts...)

	a.logger.Info().
		Str("backend", backend.Name()).
		Str("suite_dir", suiteDir).
		Str("storage", cfg.Storage.Provider).
		Str("policy", string(cfg.Policy)).
		Msg("Pipeline ready")
	return c, nil
}

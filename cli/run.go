package cli

// This file contains the run command, which executes one run in the
// foreground and prints the messages the bot would post.

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/chattigo/autobot/cli/executor"
	"github.com/chattigo/autobot/cli/metrics"
	"github.com/chattigo/autobot/model"
	"github.com/chattigo/autobot/notify"
)

func (a *App) run(ctx *cli.Context) error {
	env, err := model.ParseEnvironment(ctx.String("env"))
	if err != nil {
		return err
	}
	profile, err := model.ParseProfile(ctx.String("profile"))
	if err != nil {
		return err
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var localOpts []executor.LocalOption
	if !ctx.Bool("quiet") {
		localOpts = append(localOpts, executor.WithEcho(os.Stderr, os.Stderr))
	}

	collector := metrics.NewCollector()
	comps, err := a.buildComponents(runCtx, cfg, collector, model.HistoryTypeCLI, localOpts...)
	if err != nil {
		return err
	}
	defer comps.Close()

	req := model.NewRunRequest(env, profile, cfg.BaseURL(env), time.Now())
	if user := os.Getenv("USER"); user != "" {
		req.RequestedBy = user
	}

	res, runErr := comps.orchestrator.Run(runCtx, req, notify.NewConsole(a.out))

	if path := ctx.String("metrics-file"); path != "" {
		if err := collector.Write(path); err != nil {
			a.logger.Warn().Err(err).Str("path", path).Msg("Failed to write metrics")
		}
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintf(a.out, "History: %s\n", res.RunDir)
	if res.Outcome.ExitStatus != model.ExitSuccess {
		return cli.Exit("", 1)
	}
	return nil
}

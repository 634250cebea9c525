package cli

// This file contains the serve command: the long running Discord bot.

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/chattigo/autobot/cli/bot"
	"github.com/chattigo/autobot/cli/discord"
	"github.com/chattigo/autobot/cli/metrics"
	"github.com/chattigo/autobot/cli/wizard"
	"github.com/chattigo/autobot/model"
)

// shutdownTimeout bounds how long in-flight runs get after a signal.
const shutdownTimeout = 30 * time.Second

func (a *App) serve(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.DiscordToken == "" {
		return errors.New("discord token is required (--discord-token or DISCORD_TOKEN)")
	}

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()
	comps, err := a.buildComponents(runCtx, cfg, collector, model.HistoryTypeChat)
	if err != nil {
		return err
	}
	defer comps.Close()

	machine := wizard.NewMachine(cfg.BaseURL, wizard.WithTTL(cfg.WizardTTL))
	service := bot.New(a.logger, machine, comps.orchestrator, bot.WithMetrics(collector))

	health := newHealthServer(a.logger, cfg.Port, collector)
	health.Start()

	gatewayOpts := []discord.Option{discord.WithGuild(cfg.DiscordGuildID)}
	if cfg.DiscordChannelID != "" {
		gatewayOpts = append(gatewayOpts, discord.WithChannel(cfg.DiscordChannelID))
	}
	gateway, err := discord.New(a.logger, cfg.DiscordToken, gatewayOpts...)
	if err != nil {
		return err
	}
	if err := gateway.Start(service); err != nil {
		return err
	}

	a.logger.Info().Msg("Bot is running, press Ctrl+C to stop")
	<-runCtx.Done()
	a.logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Runs are canceled first so their final messages still reach Discord.
	if err := service.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn().Err(err).Msg("Runs did not stop in time")
	}
	if err := gateway.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close gateway")
	}
	if err := health.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to stop health endpoint")
	}
	return nil
}

package cli

// This file contains the list command for displaying previous test runs.

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/chattigo/autobot/history"
)

func (a *App) list(ctx *cli.Context) error {
	filterEnv := ctx.String("env")
	filterProfile := ctx.String("profile")
	limit := ctx.Int("limit")

	store := history.NewStore(a.logger, ctx.String("state-dir"))

	// Load all history entries, newest first
	historyEntries, err := store.LoadEntries()
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	var filteredEntries []history.Entry
	for _, entry := range historyEntries {
		req := entry.History.Request
		if filterEnv != "" && string(req.Environment) != filterEnv {
			continue
		}
		if filterProfile != "" && string(req.Profile) != filterProfile {
			continue
		}
		filteredEntries = append(filteredEntries, entry)
	}

	if len(filteredEntries) == 0 {
		fmt.Fprintln(a.out, "No history entries found")
		return nil
	}

	// Apply limit
	displayRuns := filteredEntries
	if limit > 0 && limit < len(displayRuns) {
		displayRuns = displayRuns[:limit]
	}

	fmt.Fprintf(a.out, "\n=== History (%d total) ===\n\n", len(filteredEntries))

	for _, entry := range displayRuns {
		tr := entry.History
		timestamp := tr.Timestamp.Format("2006-01-02 15:04:05")
		duration := tr.Duration.Round(time.Millisecond)

		status := "✓"
		if tr.ExitCode != 0 {
			status = "✗"
		}

		fmt.Fprintf(a.out, "%s  %s  [%s]  %s/%s  %s  id=%s\n",
			status, timestamp, duration, tr.Request.Environment, tr.Request.Profile, tr.ExitStatus, shortID(tr.ID))
		if tr.Summary != nil {
			fmt.Fprintf(a.out, "   Result: %d%% (%d passed, %d failed)\n", tr.Summary.SuccessPercent, tr.Summary.Passed, tr.Summary.Failed)
		}
		if tr.Request.RequestedBy != "" {
			fmt.Fprintf(a.out, "   By: %s (%s)\n", tr.Request.RequestedBy, tr.Type)
		}
		if tr.Git != nil && tr.Git.Commit != "" {
			fmt.Fprintf(a.out, "   Commit: %s", shortID(tr.Git.Commit))
			if tr.Git.Branch != "" {
				fmt.Fprintf(a.out, " (%s)", tr.Git.Branch)
			}
			fmt.Fprintln(a.out)
		}
		if tr.ReportURL != "" {
			fmt.Fprintf(a.out, "   Report: %s\n", tr.ReportURL)
		}
		for _, artifact := range tr.Artifacts {
			fmt.Fprintf(a.out, "   %s: %s (%s)\n", artifact.Type, artifact.File, humanize.Bytes(artifact.Size))
		}
		fmt.Fprintf(a.out, "   %s\n", entry.FullPath)
		fmt.Fprintln(a.out)
	}

	fmt.Fprintf(a.out, "View a run: %s view <ID>\n", AppName)

	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

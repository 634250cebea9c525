package cli

// This file contains the view command for displaying a run from history.

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/chattigo/autobot/history"
)

const (
	sectionSummary = "-summary"
	sectionStdout  = "-stdout"
	sectionStderr  = "-stderr"
	sectionReport  = "-report"
)

func removeFirstDashDash(in []string) []string {
	if len(in) > 0 && in[0] == "--" {
		return in[1:]
	}
	return in
}

func parseViewArgs(in []string) (idArg string, sections []string) {
	if len(in) == 0 {
		return "0", nil
	}

	// If first arg is "--", use default "0" and rest are sections
	if in[0] == "--" {
		return "0", in[1:]
	}

	// A negative index is "-" followed by only digits (e.g. "-1", "-2"),
	// a section is "-" followed by a name (e.g. "-stdout")
	if len(in[0]) > 1 && in[0][0] == '-' {
		if _, err := strconv.ParseInt(in[0], 10, 64); err != nil {
			return "0", in
		}
	}

	// First arg is the ID/index, rest are sections (with optional "--" removed)
	return in[0], removeFirstDashDash(in[1:])
}

func (a *App) view(ctx *cli.Context) error {
	arg, sections := parseViewArgs(ctx.Args().Slice())

	store := history.NewStore(a.logger, ctx.String("state-dir"))
	historyEntries, err := store.LoadEntries()
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	entry, err := history.Resolve(historyEntries, arg)
	if err != nil {
		return err
	}

	if len(sections) == 0 {
		sections = []string{sectionSummary, sectionStdout}
	}
	for _, section := range sections {
		switch section {
		case sectionSummary:
			a.displaySummary(entry)
		case sectionStdout:
			if err := a.displayFile(entry, history.StdoutFile, "Test Output (stdout)"); err != nil {
				return err
			}
		case sectionStderr:
			if err := a.displayFile(entry, history.StderrFile, "Test Output (stderr)"); err != nil {
				return err
			}
		case sectionReport:
			a.displayReport(entry)
		default:
			return fmt.Errorf("unknown section %q (use %s, %s, %s or %s)", section, sectionSummary, sectionStdout, sectionStderr, sectionReport)
		}
	}
	return nil
}

func (a *App) displaySummary(entry *history.Entry) {
	h := entry.History

	fmt.Fprintf(a.out, "=== Test Run: %s ===\n", shortID(h.ID))
	fmt.Fprintf(a.out, "Time: %s\n", h.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(a.out, "Environment: %s\n", h.Request.Environment)
	fmt.Fprintf(a.out, "Profile: %s\n", h.Request.Profile)
	if h.Request.BaseURL != "" {
		fmt.Fprintf(a.out, "Base URL: %s\n", h.Request.BaseURL)
	}
	fmt.Fprintf(a.out, "Backend: %s\n", h.Backend)
	fmt.Fprintf(a.out, "Duration: %s\n", h.Duration)
	fmt.Fprintf(a.out, "Status: %s (exit code %d)\n", h.ExitStatus, h.ExitCode)
	if h.WorkDir != "" {
		fmt.Fprintf(a.out, "Working Dir: %s\n", h.WorkDir)
	}
	if h.Git != nil && h.Git.Commit != "" {
		fmt.Fprintf(a.out, "Git Commit: %s", shortID(h.Git.Commit))
		if h.Git.Branch != "" {
			fmt.Fprintf(a.out, " (%s)", h.Git.Branch)
		}
		fmt.Fprintln(a.out)
	}
	if h.Summary != nil {
		fmt.Fprintf(a.out, "Result: %d%% [%s]\n", h.Summary.SuccessPercent, h.Summary.ProgressBar("#", "."))
		fmt.Fprintf(a.out, "Passed: %d  Failed: %d  Total: %d\n", h.Summary.Passed, h.Summary.Failed, h.Summary.Total)
	}
	if h.ReportURL != "" {
		fmt.Fprintf(a.out, "Report: %s\n", h.ReportURL)
	}
	for _, w := range h.Warnings {
		fmt.Fprintf(a.out, "Warning: %s\n", w)
	}
	fmt.Fprintln(a.out)
}

func (a *App) displayFile(entry *history.Entry, name, title string) error {
	path := filepath.Join(entry.FullPath, name)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		fmt.Fprintf(a.out, "%s: none captured\n\n", title)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	fmt.Fprintf(a.out, "%s: %s (%s)\n", title, path, humanize.Bytes(uint64(len(data))))
	fmt.Fprintln(a.out, string(data))
	return nil
}

func (a *App) displayReport(entry *history.Entry) {
	path := filepath.Join(entry.FullPath, history.ReportFile)
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(a.out, "No report was rendered for this run")
		return
	}
	fmt.Fprintf(a.out, "Report: file://%s\n", path)
}

package history

// This file contains the run history store. Every run gets its own
// directory below <state>/history which doubles as the isolated
// workspace of the run, and ends up holding history.json next to the
// captured output and generated artifacts.

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/chattigo/autobot/model"
)

const (
	// FileName is the metadata file of a run directory.
	FileName = "history.json"
	// StdoutFile and StderrFile hold the captured command output.
	StdoutFile = "stdout.txt"
	StderrFile = "stderr.txt"
	// ReportFile is the locally kept copy of the rendered report.
	ReportFile = "index.html"
	// ResultFile is the structured result document.
	ResultFile = "report.json"
)

type Entry struct {
	History  model.History
	FullPath string
}

// Store manages run directories below root.
type Store struct {
	logger zerolog.Logger
	root   string
}

// NewStore creates a store keeping runs in <stateDir>/history.
func NewStore(logger zerolog.Logger, stateDir string) *Store {
	return &Store{logger: logger, root: filepath.Join(stateDir, "history")}
}

// Root returns the directory holding all runs.
func (s *Store) Root() string { return s.root }

// RunDirName names a run directory <timestamp>-<env>-<profile>-<id>.
func RunDirName(req model.RunRequest) string {
	timestamp := req.RequestedAt.Format("20060102-150405")
	return fmt.Sprintf("%s-%s-%s-%s", timestamp, req.Environment, req.Profile, req.ShortID())
}

// Prepare creates the directory for a run and returns its absolute path.
func (s *Store) Prepare(req model.RunRequest) (string, error) {
	runDir, err := filepath.Abs(filepath.Join(s.root, RunDirName(req)))
	if err != nil {
		return "", fmt.Errorf("failed to resolve run directory: %w", err)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	return runDir, nil
}

// Record writes the captured output and the metadata of a finished run.
// Artifacts found in the run directory are registered on h.
func (s *Store) Record(runDir string, h *model.History, outcome model.RunOutcome) error {
	// Write stdout to file if present
	if outcome.Stdout != "" {
		if err := os.WriteFile(filepath.Join(runDir, StdoutFile), []byte(outcome.Stdout), 0o644); err != nil {
			return fmt.Errorf("failed to write stdout: %w", err)
		}
	}

	// Write stderr to file if present
	if outcome.Stderr != "" {
		if err := os.WriteFile(filepath.Join(runDir, StderrFile), []byte(outcome.Stderr), 0o644); err != nil {
			return fmt.Errorf("failed to write stderr: %w", err)
		}
	}

	h.Artifacts = h.Artifacts[:0]
	for _, candidate := range []struct {
		typ  model.ArtifactType
		file string
	}{
		{model.ArtifactTypeResultDocument, ResultFile},
		{model.ArtifactTypeReport, ReportFile},
		{model.ArtifactTypeStdout, StdoutFile},
		{model.ArtifactTypeStderr, StderrFile},
	} {
		info, err := os.Stat(filepath.Join(runDir, candidate.file))
		if err != nil {
			continue
		}
		h.Artifacts = append(h.Artifacts, model.Artifact{
			Type: candidate.typ,
			Size: uint64(info.Size()),
			File: candidate.file,
		})
	}

	metadataJSON, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, FileName), metadataJSON, 0o644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}

	s.logger.Debug().Str("dir", runDir).Str("id", h.ID).Msg("Recorded run")
	return nil
}

// LoadEntries loads all history entries, newest first.
func (s *Store) LoadEntries() ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		historyPath := filepath.Join(path, FileName)
		if _, err := os.Stat(historyPath); err != nil {
			return nil
		}
		h, err := parseHistoryJSON(historyPath)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", historyPath).Msg("Failed to parse history.json")
			return nil
		}
		entries = append(entries, Entry{History: h, FullPath: path})
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to walk history directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].History.Timestamp.After(entries[j].History.Timestamp)
	})
	return entries, nil
}

// Resolve finds an entry by index (0 for the newest, -1 for the one
// before, ...) or by ID prefix. entries must be sorted newest first.
func Resolve(entries []Entry, arg string) (*Entry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no history entries found")
	}
	if arg == "" {
		arg = "0"
	}
	parsed, err := strconv.ParseInt(arg, 10, 64)
	// positive numbers are hex digits of an ID prefix
	if err == nil && parsed <= 0 {
		index := int(-parsed)
		if index >= len(entries) {
			return nil, fmt.Errorf("index %s out of range (only %d history entries)", arg, len(entries))
		}
		return &entries[index], nil
	}

	prefix := strings.ToLower(arg)
	for i := range entries {
		if strings.HasPrefix(strings.ToLower(entries[i].History.ID), prefix) {
			return &entries[i], nil
		}
	}
	if err == nil {
		return nil, fmt.Errorf("no history entry found matching ID: %s (use 0 for last, -1 for second-to-last, -2 for third-to-last, etc.)", arg)
	}
	return nil, fmt.Errorf("no history entry found matching ID: %s", arg)
}

func parseHistoryJSON(historyPath string) (model.History, error) {
	data, err := os.ReadFile(historyPath)
	if err != nil {
		return model.History{}, err
	}
	var h model.History
	if err := json.Unmarshal(data, &h); err != nil {
		return model.History{}, err
	}
	return h, nil
}

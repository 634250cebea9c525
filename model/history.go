package model

import "time"

// HistoryType represents the type of history entry
type HistoryType string

const (
	HistoryTypeChat HistoryType = "chat"
	HistoryTypeCLI  HistoryType = "cli"
)

// History represents a single orchestrated run, as persisted next to its
// artifacts in the run directory.
type History struct {
	// Correlation ID of the run
	ID string `json:"id"`
	// Where the run was requested from
	Type HistoryType `json:"type"`
	// Timestamp when the run was requested
	Timestamp time.Time `json:"timestamp"`
	// The request that triggered this run
	Request RunRequest `json:"request"`
	// Backend that executed the run (local or cloudbuild)
	Backend string `json:"backend"`
	// Command line as executed (local backend only)
	Args []string `json:"args,omitempty"`
	// Working directory of the suite
	WorkDir string `json:"workdir,omitempty"`
	// Command-level exit status
	ExitStatus ExitStatus `json:"exit_status"`
	// Exit code of the command (-1 when it never exited on its own)
	ExitCode int `json:"exit_code"`
	// Duration of execution
	Duration time.Duration `json:"duration"`
	// Aggregated results, nil for timed out runs
	Summary *RunSummary `json:"summary,omitempty"`
	// Public URL of the published report
	ReportURL string `json:"report_url,omitempty"`
	// Non-fatal problems surfaced to the operator
	Warnings []string `json:"warnings,omitempty"`
	// Git information of the suite checkout
	Git *Git `json:"git,omitempty"`
	// Artifacts generated during this run
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// Git contains git repository information
type Git struct {
	// Git commit hash at time of execution
	Commit string `json:"commit,omitempty"`
	// Git branch at time of execution
	Branch string `json:"branch,omitempty"`
}

// ArtifactType identifies the type of artifact
type ArtifactType uint8

const (
	ArtifactTypeResultDocument ArtifactType = iota
	ArtifactTypeReport
	ArtifactTypeStdout
	ArtifactTypeStderr
)

func (t ArtifactType) String() string {
	switch t {
	case ArtifactTypeResultDocument:
		return "result document"
	case ArtifactTypeReport:
		return "report"
	case ArtifactTypeStdout:
		return "stdout"
	case ArtifactTypeStderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// Artifact represents a file generated during execution
type Artifact struct {
	Type ArtifactType `json:"type"`
	Size uint64       `json:"size"`
	File string       `json:"file"` // relative to run dir
}

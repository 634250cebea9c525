package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Environment is a named deployment the suite can be pointed at.
type Environment string

const (
	EnvironmentPantera     Environment = "pantera"
	EnvironmentBugs        Environment = "bugs"
	EnvironmentSupportBugs Environment = "support-bugs"
	EnvironmentLeones      Environment = "leones"
)

// Environments lists every known environment in prompt order.
var Environments = []Environment{
	EnvironmentPantera,
	EnvironmentBugs,
	EnvironmentSupportBugs,
	EnvironmentLeones,
}

// ParseEnvironment validates a raw environment name.
func ParseEnvironment(s string) (Environment, error) {
	env := Environment(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Environments {
		if env == known {
			return env, nil
		}
	}
	return "", fmt.Errorf("unknown environment %q", s)
}

// Label returns the human readable button label, e.g. "Support Bugs".
func (e Environment) Label() string {
	words := strings.Split(string(e), "-")
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

// Profile is the user role whose suite is executed.
type Profile string

const (
	ProfileAgente     Profile = "agente"
	ProfileSupervisor Profile = "supervisor"
	ProfileBot        Profile = "bot"
)

// Profiles lists every known profile in prompt order.
var Profiles = []Profile{
	ProfileAgente,
	ProfileSupervisor,
	ProfileBot,
}

// ParseProfile validates a raw profile name.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Profiles {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown profile %q", s)
}

// Label returns the capitalized profile name.
func (p Profile) Label() string {
	return capitalize(string(p))
}

// RunRequest is the immutable description of one requested run. It is
// created once both wizard selections are made and carries its own copy
// of the configuration it needs.
type RunRequest struct {
	Environment   Environment `json:"environment"`
	Profile       Profile     `json:"profile"`
	RequestedAt   time.Time   `json:"requested_at"`
	CorrelationID string      `json:"correlation_id"`
	// Base URL of the environment at the time the request was created
	BaseURL string `json:"base_url,omitempty"`
	// Who asked for the run (chat user name), informational only
	RequestedBy string `json:"requested_by,omitempty"`
}

// NewRunRequest builds a request with a fresh correlation ID.
func NewRunRequest(env Environment, profile Profile, baseURL string, now time.Time) RunRequest {
	return RunRequest{
		Environment:   env,
		Profile:       profile,
		RequestedAt:   now,
		CorrelationID: uuid.NewString(),
		BaseURL:       baseURL,
	}
}

// ShortID returns the first 8 characters of the correlation ID.
func (r RunRequest) ShortID() string {
	id := strings.ReplaceAll(r.CorrelationID, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ExitStatus is the command-level result of a run.
type ExitStatus string

const (
	ExitSuccess  ExitStatus = "success"
	ExitFailure  ExitStatus = "failure"
	ExitTimedOut ExitStatus = "timedOut"
	ExitCrashed  ExitStatus = "crashed"
)

// RunOutcome is what a backend hands back once the command finished.
type RunOutcome struct {
	ExitStatus ExitStatus `json:"exit_status"`
	ExitCode   int        `json:"exit_code"`
	// Command line that was executed, empty for remote backends
	Args     []string      `json:"args,omitempty"`
	Stdout   string        `json:"-"`
	Stderr   string        `json:"-"`
	Duration time.Duration `json:"duration"`
	// Path of the structured result document, empty when none was produced
	ResultDocumentPath string `json:"result_document_path,omitempty"`

	// Remote backends may aggregate and publish on their own. When both are
	// set the pipeline reports them as-is.
	RemoteSummary   *RunSummary `json:"remote_summary,omitempty"`
	RemoteReportURL string      `json:"remote_report_url,omitempty"`
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Package config holds the immutable runtime configuration. A Config is
// built once at start-up from flags, the process environment and an
// optional settings file, and then only read.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chattigo/autobot/cli/executor"
	"github.com/chattigo/autobot/cli/storage"
	"github.com/chattigo/autobot/model"
	"github.com/chattigo/autobot/results"
)

const (
	BackendLocal      = "local"
	BackendCloudBuild = "cloudbuild"
)

// DefaultFallbackReportURL is linked when the report could not be published.
const DefaultFallbackReportURL = "https://console.cloud.google.com/run"

// DefaultBucket receives the rendered reports.
const DefaultBucket = "qa-allure-automation-chattigo-reports"

// DefaultEnvironments maps every environment to its login page.
func DefaultEnvironments() map[model.Environment]string {
	out := make(map[model.Environment]string, len(model.Environments))
	for _, env := range model.Environments {
		out[env] = fmt.Sprintf("https://qa-%s.chattigo.com/login/pages/login", env)
	}
	return out
}

// Config is the complete runtime configuration.
type Config struct {
	DiscordToken     string
	DiscordGuildID   string
	DiscordChannelID string

	Port int

	Backend      string
	SuiteDir     string
	Command      string
	Deadline     time.Duration
	StateDir     string
	EvidenceDir  string
	Policy       executor.Policy
	LockFiles    bool
	WizardTTL    time.Duration
	PollInterval time.Duration

	Storage           storage.Config
	FallbackReportURL string

	CloudBuild executor.CloudBuildConfig

	Environments map[model.Environment]string
	Names        results.Names
}

// Default returns a configuration with every default applied.
func Default() Config {
	return Config{
		Port:              8080,
		Backend:           BackendLocal,
		SuiteDir:          ".",
		Command:           executor.DefaultCommand,
		Deadline:          executor.DefaultDeadline,
		StateDir:          ".autobot",
		EvidenceDir:       "screenshots",
		Policy:            executor.PolicyReject,
		LockFiles:         true,
		WizardTTL:         10 * time.Minute,
		PollInterval:      executor.DefaultPollInterval,
		Storage:           storage.Config{Provider: "gcs", Bucket: DefaultBucket},
		FallbackReportURL: DefaultFallbackReportURL,
		Environments:      DefaultEnvironments(),
		Names:             results.DefaultNames(),
	}
}

// BaseURL returns the URL configured for env.
func (c Config) BaseURL(env model.Environment) string {
	return c.Environments[env]
}

// Validate checks the settings needed by the selected backend. The
// Discord token is checked by the serve command only.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.SuiteDir) == "" {
			errs = append(errs, errors.New("suite directory is required"))
		}
	case BackendCloudBuild:
		if strings.TrimSpace(c.CloudBuild.ProjectID) == "" {
			errs = append(errs, errors.New("cloud build project is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.Deadline <= 0 {
		errs = append(errs, errors.New("deadline must be positive"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if _, err := executor.ParsePolicy(string(c.Policy)); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.StateDir) == "" {
		errs = append(errs, errors.New("state directory is required"))
	}
	if strings.TrimSpace(c.Storage.Provider) == "" {
		errs = append(errs, errors.New("storage provider is required"))
	}
	for _, env := range model.Environments {
		if c.Environments[env] == "" {
			errs = append(errs, fmt.Errorf("no base URL for environment %s", env))
		}
	}
	return errors.Join(errs...)
}

// Settings is the optional settings.yaml file.
type Settings struct {
	Environments map[string]EnvironmentSettings `yaml:"environments"`
	Names        results.Names                  `yaml:"names"`
}

// EnvironmentSettings configures one environment.
type EnvironmentSettings struct {
	BaseURL string `yaml:"base_url"`
}

// LoadSettings reads a settings file. A missing file yields empty settings.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	return s, nil
}

// Apply returns a copy of c with the settings layered on top.
func (c Config) Apply(s Settings) (Config, error) {
	envs := make(map[model.Environment]string, len(c.Environments))
	for k, v := range c.Environments {
		envs[k] = v
	}
	for name, es := range s.Environments {
		env, err := model.ParseEnvironment(name)
		if err != nil {
			return c, fmt.Errorf("settings: %w", err)
		}
		if es.BaseURL != "" {
			envs[env] = es.BaseURL
		}
	}
	c.Environments = envs
	c.Names = c.Names.Merge(s.Names)
	return c, nil
}

package cli

// This file contains the flags shared by all commands and their
// translation into a config.Config.

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/chattigo/autobot/cli/executor"
	"github.com/chattigo/autobot/cli/storage"
	"github.com/chattigo/autobot/config"
)

func configFlags() []cli.Flag {
	def := config.Default()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "settings",
			Usage:   "Optional YAML file overriding environment URLs and display names",
			Value:   "settings.yaml",
			EnvVars: []string{"AUTOBOT_SETTINGS"},
		},
		&cli.StringFlag{
			Name:    "state-dir",
			Usage:   "Directory holding the run history",
			Value:   def.StateDir,
			EnvVars: []string{"AUTOBOT_STATE_DIR"},
		},
		&cli.StringFlag{
			Name:    "backend",
			Usage:   "Where the suite runs (local or cloudbuild)",
			Value:   def.Backend,
			EnvVars: []string{"AUTOBOT_BACKEND"},
		},
		&cli.StringFlag{
			Name:    "suite-dir",
			Usage:   "Working directory of the test suite",
			Value:   def.SuiteDir,
			EnvVars: []string{"AUTOBOT_SUITE_DIR"},
		},
		&cli.StringFlag{
			Name:    "command",
			Usage:   "Command template; {profile}, {environment}, {report}, {base_url} and {evidence} are substituted",
			Value:   def.Command,
			EnvVars: []string{"AUTOBOT_COMMAND"},
		},
		&cli.DurationFlag{
			Name:    "deadline",
			Usage:   "Maximum duration of a run",
			Value:   def.Deadline,
			EnvVars: []string{"AUTOBOT_DEADLINE"},
		},
		&cli.StringFlag{
			Name:    "evidence-dir",
			Usage:   "Directory, relative to the suite directory, where the suite stores screenshots; emptied before each run",
			Value:   def.EvidenceDir,
			EnvVars: []string{"AUTOBOT_EVIDENCE_DIR"},
		},
		&cli.StringFlag{
			Name:    "policy",
			Usage:   "What happens to a run while another one is in progress (reject or queue)",
			Value:   string(def.Policy),
			EnvVars: []string{"AUTOBOT_POLICY"},
		},
		&cli.BoolFlag{
			Name:    "lock-files",
			Usage:   "Also take a lock file in the suite directory to exclude other processes",
			Value:   def.LockFiles,
			EnvVars: []string{"AUTOBOT_LOCK_FILES"},
		},
		&cli.StringFlag{
			Name:    "fallback-report-url",
			Usage:   "Link sent when the report could not be published",
			Value:   def.FallbackReportURL,
			EnvVars: []string{"AUTOBOT_FALLBACK_REPORT_URL"},
		},
		&cli.StringFlag{
			Name:    "storage-provider",
			Usage:   "Report storage (gcs, s3, minio or file)",
			Value:   def.Storage.Provider,
			EnvVars: []string{"AUTOBOT_STORAGE_PROVIDER"},
		},
		&cli.StringFlag{
			Name:    "storage-bucket",
			Usage:   "Bucket receiving the reports",
			Value:   def.Storage.Bucket,
			EnvVars: []string{"AUTOBOT_STORAGE_BUCKET"},
		},
		&cli.StringFlag{
			Name:    "storage-prefix",
			Usage:   "Key prefix inside the bucket",
			EnvVars: []string{"AUTOBOT_STORAGE_PREFIX"},
		},
		&cli.StringFlag{
			Name:    "storage-region",
			Usage:   "Bucket region (s3)",
			EnvVars: []string{"AUTOBOT_STORAGE_REGION", "AWS_REGION"},
		},
		&cli.StringFlag{
			Name:    "storage-endpoint",
			Usage:   "Custom endpoint (s3, minio)",
			EnvVars: []string{"AUTOBOT_STORAGE_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "storage-access-key",
			Usage:   "Static access key (s3, minio)",
			EnvVars: []string{"AUTOBOT_STORAGE_ACCESS_KEY"},
		},
		&cli.StringFlag{
			Name:    "storage-secret-key",
			Usage:   "Static secret key (s3, minio)",
			EnvVars: []string{"AUTOBOT_STORAGE_SECRET_KEY"},
		},
		&cli.BoolFlag{
			Name:    "storage-path-style",
			Usage:   "Use path-style addressing (s3)",
			EnvVars: []string{"AUTOBOT_STORAGE_PATH_STYLE"},
		},
		&cli.StringFlag{
			Name:    "storage-public-url",
			Usage:   "Base URL under which published reports are reachable",
			EnvVars: []string{"AUTOBOT_STORAGE_PUBLIC_URL"},
		},
		&cli.StringFlag{
			Name:    "storage-root",
			Usage:   "Directory receiving reports (file)",
			EnvVars: []string{"AUTOBOT_STORAGE_ROOT"},
		},
		&cli.StringFlag{
			Name:    "gcp-credentials-file",
			Usage:   "Service account key used for Cloud Storage and Cloud Build",
			EnvVars: []string{"GOOGLE_APPLICATION_CREDENTIALS"},
		},
		&cli.StringFlag{
			Name:    "gcp-credentials-json",
			Usage:   "Service account key content used for Cloud Storage and Cloud Build",
			EnvVars: []string{"GCP_CREDENTIALS_JSON"},
		},
		&cli.StringFlag{
			Name:    "cloudbuild-project",
			Usage:   "Google Cloud project running the builds",
			EnvVars: []string{"AUTOBOT_CLOUDBUILD_PROJECT", "GOOGLE_CLOUD_PROJECT"},
		},
		&cli.StringFlag{
			Name:    "cloudbuild-trigger",
			Usage:   "Build trigger to run; without it a bare build is submitted",
			EnvVars: []string{"AUTOBOT_CLOUDBUILD_TRIGGER"},
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			Usage:   "How often a remote build is polled",
			Value:   def.PollInterval,
			EnvVars: []string{"AUTOBOT_POLL_INTERVAL"},
		},
	}
}

func serveFlags() []cli.Flag {
	def := config.Default()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "discord-token",
			Usage:   "Bot token",
			EnvVars: []string{"DISCORD_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "discord-guild",
			Usage:   "Register /auto in this guild only",
			EnvVars: []string{"DISCORD_GUILD_ID"},
		},
		&cli.StringFlag{
			Name:    "discord-channel",
			Usage:   "Post run messages to this channel instead of the one the command was used in",
			EnvVars: []string{"DISCORD_CHANNEL_ID"},
		},
		&cli.IntFlag{
			Name:    "port",
			Usage:   "Port of the health endpoint",
			Value:   def.Port,
			EnvVars: []string{"PORT"},
		},
		&cli.DurationFlag{
			Name:    "wizard-ttl",
			Usage:   "How long a selection stays valid",
			Value:   def.WizardTTL,
			EnvVars: []string{"AUTOBOT_WIZARD_TTL"},
		},
	}
}

// loadConfig builds the configuration from the flags of ctx and the
// settings file, and validates it.
func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg := config.Default()
	cfg.StateDir = ctx.String("state-dir")
	cfg.Backend = ctx.String("backend")
	cfg.SuiteDir = ctx.String("suite-dir")
	cfg.Command = ctx.String("command")
	cfg.Deadline = ctx.Duration("deadline")
	cfg.EvidenceDir = ctx.String("evidence-dir")
	cfg.Policy = executor.Policy(ctx.String("policy"))
	cfg.LockFiles = ctx.Bool("lock-files")
	cfg.FallbackReportURL = ctx.String("fallback-report-url")
	cfg.PollInterval = ctx.Duration("poll-interval")

	cfg.Storage = storage.Config{
		Provider:           ctx.String("storage-provider"),
		Bucket:             ctx.String("storage-bucket"),
		Prefix:             ctx.String("storage-prefix"),
		Region:             ctx.String("storage-region"),
		Endpoint:           ctx.String("storage-endpoint"),
		AccessKey:          ctx.String("storage-access-key"),
		SecretKey:          ctx.String("storage-secret-key"),
		S3PathStyle:        ctx.Bool("storage-path-style"),
		PublicBaseURL:      ctx.String("storage-public-url"),
		Root:               ctx.String("storage-root"),
		GCPCredentialsFile: ctx.String("gcp-credentials-file"),
		GCPCredentialsJSON: ctx.String("gcp-credentials-json"),
	}
	cfg.CloudBuild = executor.CloudBuildConfig{
		ProjectID:       ctx.String("cloudbuild-project"),
		TriggerID:       ctx.String("cloudbuild-trigger"),
		CredentialsFile: ctx.String("gcp-credentials-file"),
		CredentialsJSON: ctx.String("gcp-credentials-json"),
	}

	// serve only, unknown flags read as zero values elsewhere
	cfg.DiscordToken = ctx.String("discord-token")
	cfg.DiscordGuildID = ctx.String("discord-guild")
	cfg.DiscordChannelID = ctx.String("discord-channel")
	if ctx.Int("port") != 0 {
		cfg.Port = ctx.Int("port")
	}
	if ctx.Duration("wizard-ttl") != 0 {
		cfg.WizardTTL = ctx.Duration("wizard-ttl")
	}

	settings, err := config.LoadSettings(ctx.String("settings"))
	if err != nil {
		return cfg, err
	}
	cfg, err = cfg.Apply(settings)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "autobot"

// defaultEnvFile is loaded into the process environment when present.
const defaultEnvFile = ".env"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
	out    io.Writer
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		out:    os.Stdout,
		cli: &cli.App{
			Name:  AppName,
			Usage: "Run the end-to-end test suite from Discord and report the results",
			Flags: append([]cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
				&cli.StringFlag{
					Name:    "log-format",
					Usage:   "Log output format (console or json)",
					Value:   "console",
					EnvVars: []string{"AUTOBOT_LOG_FORMAT"},
				},
				&cli.StringFlag{
					Name:  "env-file",
					Usage: "File with KEY=VALUE pairs loaded into the environment before flags are read",
					Value: defaultEnvFile,
				},
			}, configFlags()...),
		},
	}
	app.cli.Before = func(ctx *cli.Context) error {
		if ctx.Bool("verbose") {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		switch ctx.String("log-format") {
		case "json":
			app.logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		case "console", "":
		default:
			return fmt.Errorf("unknown log format %q", ctx.String("log-format"))
		}
		return nil
	}

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "serve",
		Usage:  "Connect to Discord and serve the /auto command",
		Action: app.serve,
		Flags:  serveFlags(),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "run",
		Usage:  "Run the suite once for an environment and profile, reporting to the terminal",
		Action: app.run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "env",
				Aliases:  []string{"e"},
				Usage:    "Environment to test (pantera, bugs, support-bugs, leones)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "profile",
				Aliases:  []string{"p"},
				Usage:    "Profile to test (agente, supervisor, bot)",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Do not mirror the suite output to the terminal",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write the run metrics in Prometheus text format to this file",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List previous test runs",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "Filter by environment",
			},
			&cli.StringFlag{
				Name:  "profile",
				Usage: "Filter by profile",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results (default: 20)",
				Value:   20,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:            "view",
		Usage:           "View a test run from history",
		ArgsUsage:       "[ID|INDEX] [-- SECTION...]",
		Action:          app.view,
		SkipFlagParsing: true,
		Description: `View a test run from history.

Arguments:
  0           View last test run (default)
  -1          View 2nd last test run
  -2          View 3rd last test run
  <id>        View test run matching the correlation ID prefix

Sections:
  -summary    Header and result counters (default)
  -stdout     Captured suite output
  -stderr     Captured suite errors
  -report     Path of the locally kept HTML report

Examples:
  autobot view                 # View last test run
  autobot view -1 -stderr      # Errors of the 2nd last test run
  autobot view 0123abcd -- -report`,
	})
	return app
}

func (a *App) Run(args []string) error {
	if err := loadEnvFile(envFileFromArgs(args)); err != nil {
		return err
	}
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && len(commit) >= 8 {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}

// envFileFromArgs finds --env-file before flags are parsed, since the
// file has to be loaded before flag values are read from the environment.
func envFileFromArgs(args []string) string {
	for i, arg := range args {
		for _, prefix := range []string{"--env-file", "-env-file"} {
			if arg == prefix && i+1 < len(args) {
				return args[i+1]
			}
			if value, ok := strings.CutPrefix(arg, prefix+"="); ok {
				return value
			}
		}
	}
	return defaultEnvFile
}

// loadEnvFile loads path without overriding variables that are already
// set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

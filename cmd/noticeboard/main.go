package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/nhle/noticeboard/internal/commands"
	"github.com/nhle/noticeboard/internal/logging"
	"github.com/nhle/noticeboard/internal/model"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
)

func build() string {
	v, c := version, commit
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					c = s.Value
				}
			}
		}
	}
	if len(c) > 7 {
		c = c[:7]
	}
	return fmt.Sprintf("%s (%s)", v, c)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		noticeApp = &commands.App{}
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "noticeboard",
		Usage:     "Institute notices for admins, teachers and students",
		UsageText: "noticeboard [global options] command [command options]",
		Description: `Polls the institute notification API for the signed-in role, keeps
an unread badge per role and pops a toast when something new arrives.

Run 'noticeboard' with no arguments to open the dashboard.
Run 'noticeboard login' first to store your role and token.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error); defaults to log.level from config",
				Sources:     cli.EnvVars("NOTICEBOARD_LOG_LEVEL"),
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to ~/.config/noticeboard/noticeboard.log)",
				Sources:     cli.EnvVars("NOTICEBOARD_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("NOTICEBOARD_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.BoolFlag{
				Name:        "ephemeral",
				Usage:       "keep read state in memory for this run only",
				Destination: &flags.Ephemeral,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			cfg, err := model.LoadConfig(flags.ConfigPath)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			level := flags.LogLevel
			if level == "" {
				level = cfg.Log.Level
			}
			logFile := flags.LogFile
			if logFile == "" {
				logFile = cfg.Log.File
			}
			if logFile == "" {
				logFile = commands.DefaultLogFile()
			}

			logger, closer, err := logging.New(level, logFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			a, err := commands.NewApp(cfg, flags.Ephemeral)
			if err != nil {
				return ctx, err
			}

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			*noticeApp = *a

			log.Debug().
				Str("config", flags.ConfigPath).
				Str("api", cfg.API.BaseURL).
				Bool("ephemeral", flags.Ephemeral).
				Msg("noticeboard started")
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			err := noticeApp.Close()

			// Close log file
			if logCloser != nil {
				logCloser()
			}
			return err
		},
	}

	tuiCmd := commands.NewTuiCmd(flags, noticeApp)

	app = commands.NewListCmd(flags, noticeApp).Register(app)
	app = commands.NewReadCmd(flags, noticeApp).Register(app)
	app = commands.NewSessionCmd(flags, noticeApp).Register(app)
	app = commands.NewPostCmd(flags, noticeApp).Register(app)

	// Set TUI as default action when no subcommand is provided
	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'noticeboard --help' for usage", c.Args().First())
		}
		return tuiCmd.Run(ctx, c)
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

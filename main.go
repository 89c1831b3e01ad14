package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/formrelay/internal/commands"
	"github.com/hay-kot/formrelay/internal/core/config"
	"github.com/hay-kot/formrelay/internal/printer"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

func main() {
	if err := setupLogger("info", ""); err != nil {
		panic(err)
	}

	var (
		p     = printer.New(os.Stderr)
		ctx   = printer.NewContext(context.Background(), p)
		flags = &commands.Flags{}
	)

	app := &cli.Command{
		Name:      "formrelay",
		Usage:     "Relay web form submissions into a JSON document",
		UsageText: "formrelay [global options] command [command options]",
		Description: `formrelay serves a small static site and accepts form POSTs on any path.

Each submission is forwarded as a UDP datagram to a receiver loop, which
appends it to a JSON document keyed by the time it arrived.

Run 'formrelay' with no arguments to start both the HTTP server and the receiver.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("FORMRELAY_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (optional)",
				Sources:     cli.EnvVars("FORMRELAY_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("FORMRELAY_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "http-addr",
				Usage:       "HTTP listen address",
				Sources:     cli.EnvVars("FORMRELAY_HTTP_ADDR"),
				Destination: &flags.Overrides.HTTPAddr,
			},
			&cli.IntFlag{
				Name:        "http-port",
				Usage:       "HTTP listen port",
				Sources:     cli.EnvVars("FORMRELAY_HTTP_PORT"),
				Destination: &flags.Overrides.HTTPPort,
			},
			&cli.StringFlag{
				Name:        "udp-addr",
				Usage:       "datagram receiver address",
				Sources:     cli.EnvVars("FORMRELAY_UDP_ADDR"),
				Destination: &flags.Overrides.DatagramAddr,
			},
			&cli.IntFlag{
				Name:        "udp-port",
				Usage:       "datagram receiver port",
				Sources:     cli.EnvVars("FORMRELAY_UDP_PORT"),
				Destination: &flags.Overrides.DatagramPort,
			},
			&cli.StringFlag{
				Name:        "storage",
				Usage:       "path to the JSON record document",
				Sources:     cli.EnvVars("FORMRELAY_STORAGE"),
				Destination: &flags.Overrides.StoragePath,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := setupLogger(flags.LogLevel, flags.LogFile); err != nil {
				return ctx, err
			}

			cfg, err := config.Read(flags.ConfigPath, flags.Overrides)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			return ctx, nil
		},
	}

	serveCmd := commands.NewServeCmd(flags)

	app = serveCmd.Register(app)
	app = commands.NewSendCmd(flags).Register(app)
	app = commands.NewRecordsCmd(flags).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)
	app = commands.NewDoctorCmd(flags).Register(app)

	// Serve is the default action when no subcommand is provided
	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'formrelay --help' for usage", c.Args().First())
		}
		return serveCmd.Run(ctx, c)
	}

	exitCode := 0
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Println()
		printer.Ctx(ctx).FatalError(err)
		exitCode = 1
	}

	os.Exit(exitCode)
}

func setupLogger(level string, logFile string) error {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}

	if logFile != "" {
		logDir := filepath.Dir(logFile)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}

		// Write to both console and file
		output = io.MultiWriter(
			zerolog.ConsoleWriter{Out: os.Stderr},
			file,
		)
	}

	log.Logger = log.Output(output).Level(parsedLevel)

	return nil
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/formrelay/internal/core/submission"
	"github.com/hay-kot/formrelay/internal/printer"
	"github.com/hay-kot/formrelay/internal/relay"
)

type SendCmd struct {
	flags *Flags
	to    string
}

// NewSendCmd creates a new send command
func NewSendCmd(flags *Flags) *SendCmd {
	return &SendCmd{flags: flags}
}

// Register adds the send command to the application
func (cmd *SendCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "send",
		Usage:       "Send a submission datagram to the receiver",
		UsageText:   "formrelay send [options] key=value [key=value...]",
		Description: "Builds a submission from key=value arguments and sends it as a single datagram, exactly as the HTTP server would.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "to",
				Usage:       "receiver address (defaults to the configured datagram address)",
				Destination: &cmd.to,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SendCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	cfg, err := cmd.flags.ValidConfig()
	if err != nil {
		return err
	}

	sub, err := parseSendArgs(c.Args().Slice())
	if err != nil {
		return err
	}

	addr := cmd.to
	if addr == "" {
		addr = cfg.DatagramAddress()
	}

	sender := relay.NewSender(addr, log.With().Str("component", "sender").Logger()).
		WithMaxSize(cfg.Datagram.BufferSize)

	if err := sender.Send(ctx, sub); err != nil {
		return fmt.Errorf("send to %s: %w", addr, err)
	}

	p.Successf("Sent %d field(s) to %s", len(sub), addr)
	return nil
}

// parseSendArgs builds a submission from literal key=value arguments. Values
// are taken as-is, without URL decoding.
func parseSendArgs(args []string) (submission.Submission, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one key=value argument is required")
	}

	var errs criterio.FieldErrorsBuilder
	sub := make(submission.Submission, len(args))

	for i, arg := range args {
		field := fmt.Sprintf("args[%d]", i)

		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			errs = errs.Append(field, fmt.Errorf("%q is not in key=value form", arg))
			continue
		}
		if key == "" {
			errs = errs.Append(field, fmt.Errorf("%q has an empty key", arg))
			continue
		}

		sub[key] = value
	}

	if err := errs.ToError(); err != nil {
		return nil, err
	}

	return sub, nil
}

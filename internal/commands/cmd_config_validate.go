package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/hay-kot/formrelay/internal/core/config"
	"github.com/hay-kot/formrelay/internal/printer"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
	show   bool
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "formrelay config validate [options]",
				Description: "Validates the effective configuration (file, environment and flags), checking addresses, ports, sizes and the static route table.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
					&cli.BoolFlag{
						Name:        "show",
						Usage:       "print the effective configuration as YAML",
						Destination: &cmd.show,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

type validateReport struct {
	Source   string
	HTTP     string
	Datagram string
	Err      error
	Warnings []config.ValidationWarning
}

func (cmd *ConfigValidateCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	report := validateReport{
		Source:   configSource(cmd.flags.ConfigPath),
		HTTP:     cfg.HTTPAddress(),
		Datagram: cfg.DatagramAddress(),
		Err:      cfg.Validate(),
		Warnings: cfg.Warnings(),
	}

	if cmd.format == "json" {
		if err := cmd.outputJSON(c, report); err != nil {
			return err
		}
	} else {
		cmd.outputText(printer.Ctx(ctx), report)
	}

	if cmd.show {
		enc := yaml.NewEncoder(c.Root().Writer)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		_ = enc.Close()
	}

	if report.Err != nil {
		return cli.Exit("", 1)
	}
	return nil
}

// configSource describes where settings were read from.
func configSource(path string) string {
	if path == "" {
		return "defaults"
	}
	if _, err := os.Stat(path); err != nil {
		return "defaults (no file at " + path + ")"
	}
	return path
}

func (cmd *ConfigValidateCmd) outputJSON(c *cli.Command, r validateReport) error {
	type fieldError struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	}

	out := struct {
		Valid    bool                       `json:"valid"`
		Source   string                     `json:"source"`
		HTTP     string                     `json:"http"`
		Datagram string                     `json:"datagram"`
		Errors   []fieldError               `json:"errors,omitempty"`
		Warnings []config.ValidationWarning `json:"warnings,omitempty"`
	}{
		Valid:    r.Err == nil,
		Source:   r.Source,
		HTTP:     r.HTTP,
		Datagram: r.Datagram,
		Warnings: r.Warnings,
	}

	for _, fe := range extractFieldErrors(r.Err) {
		out.Errors = append(out.Errors, fieldError{Field: fe.Field, Message: fe.Err.Error()})
	}

	enc := json.NewEncoder(c.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// extractFieldErrors extracts field errors from a validation error.
func extractFieldErrors(err error) criterio.FieldErrors {
	if err == nil {
		return nil
	}
	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		return fieldErrs
	}
	return criterio.FieldErrors{{Err: err}}
}

func (cmd *ConfigValidateCmd) outputText(p *printer.Printer, r validateReport) {
	p.Infof("Source: %s", r.Source)
	p.Infof("HTTP %s, datagrams %s", r.HTTP, r.Datagram)
	p.Printf("")

	fieldErrs := extractFieldErrors(r.Err)

	if len(fieldErrs) > 0 {
		p.Section("Errors")
		for _, fe := range fieldErrs {
			label := fe.Field
			if label == "" {
				label = "config"
			}
			p.FailItem(label, fe.Err.Error())
		}
		p.Printf("")
	}

	if len(r.Warnings) > 0 {
		p.Section("Warnings")
		for _, warn := range r.Warnings {
			label := warn.Category
			if warn.Item != "" {
				label += " (" + warn.Item + ")"
			}
			p.WarnItem(label, warn.Message)
		}
		p.Printf("")
	}

	switch {
	case r.Err != nil:
		p.Errorf("%d error(s), %d warning(s)", len(fieldErrs), len(r.Warnings))
	case len(r.Warnings) > 0:
		p.Successf("Configuration is valid (%d warning(s))", len(r.Warnings))
	default:
		p.Successf("Configuration is valid")
	}
}

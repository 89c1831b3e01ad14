package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/formrelay/internal/core/record"
	"github.com/hay-kot/formrelay/internal/printer"
	"github.com/hay-kot/formrelay/internal/store/jsonfile"
)

type RecordsCmd struct {
	flags  *Flags
	format string
}

// NewRecordsCmd creates a new records command
func NewRecordsCmd(flags *Flags) *RecordsCmd {
	return &RecordsCmd{flags: flags}
}

// Register adds the records command to the application
func (cmd *RecordsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "records",
		Usage:       "List stored submissions",
		UsageText:   "formrelay records [options]",
		Description: "Displays every record in the storage document, oldest first.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *RecordsCmd) run(ctx context.Context, c *cli.Command) error {
	cfg, err := cmd.flags.ValidConfig()
	if err != nil {
		return err
	}

	store := jsonfile.New(cfg.Storage.Path)

	doc, err := store.Document(ctx)
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}

	entries := doc.Entries()

	if cmd.format == "json" {
		enc := json.NewEncoder(c.Root().Writer)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		printer.Ctx(ctx).Infof("No records in %s", store.Path())
		return nil
	}

	writeRecordsTable(c.Root().Writer, entries, time.Now())
	return nil
}

func writeRecordsTable(out io.Writer, entries []record.Entry, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tAGE\tFIELDS")

	for _, e := range entries {
		age := "-"
		if t, err := record.ParseKey(e.Key); err == nil {
			age = humanize.RelTime(t, now, "ago", "from now")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", e.Key, age, formatFields(e.Submission))
	}

	_ = w.Flush()
}

// formatFields renders a submission as space separated key=value pairs in
// key order.
func formatFields(sub map[string]string) string {
	keys := make([]string, 0, len(sub))
	for k := range sub {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, sub[k]))
	}
	return strings.Join(parts, " ")
}

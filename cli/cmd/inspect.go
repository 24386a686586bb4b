package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/mason/cli/render"
	"github.com/justapithecus/mason/report"
)

// InspectCommand returns the inspect command.
// Inspect is read-only: it loads a persisted batch record from the
// output root and renders it, never re-running any work.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect a persisted batch report",
		ArgsUsage: "<output-root>",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:  "batch",
				Usage: "Batch ID to inspect (default: most recent record)",
			},
		),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("output-root required", 1)
	}
	dir := c.Args().First()

	path := ""
	if batchID := c.String("batch"); batchID != "" {
		path = report.RecordPath(dir, batchID)
	} else {
		latest, err := report.Latest(dir)
		if err != nil {
			return fmt.Errorf("no batch records under %s: %w", dir, err)
		}
		path = latest
	}

	batch, err := report.ReadRecord(path)
	if err != nil {
		return fmt.Errorf("cannot read batch record: %w", err)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI("inspect_batch", batch)
	}

	return r.Render(batch)
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/taskflow/pkg/definition"
	"github.com/dukex/taskflow/pkg/log"
	"github.com/dukex/taskflow/pkg/metrics"
	cli "github.com/urfave/cli/v3"
)

var errBlockingIssues = errors.New("definition has blocking issues")

func NewLintCommand() *cli.Command {
	return &cli.Command{
		Name:      "lint",
		Aliases:   []string{"l"},
		Usage:     "Normalize and validate a workflow definition",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, command *cli.Command) error {
			path := command.Args().First()
			if path == "" {
				return errors.New("a definition file is required")
			}

			out := command.Root().Writer
			logger := log.FromContext(ctx).With("file", path)

			doc, err := definition.Load(path)
			if err != nil {
				var schemaErr *definition.SchemaError
				if errors.As(err, &schemaErr) {
					for _, violation := range schemaErr.Violations {
						_, _ = fmt.Fprintf(out, "schema: %s\n", violation)
					}
				}

				return err
			}

			result := doc.Lint()
			metrics.RecordWarnings(ctx, "lint", len(result.Warnings))

			for _, warning := range result.Warnings {
				_, _ = fmt.Fprintf(out, "warning: %s\n", warning)
			}

			for _, issue := range result.Issues {
				_, _ = fmt.Fprintf(out, "issue: %s\n", issue)
			}

			logger.DebugContext(ctx, "definition linted",
				"statuses", len(result.Statuses), "warnings", len(result.Warnings), "issues", len(result.Issues))

			if !result.Valid() {
				return fmt.Errorf("%w: %d found in %s", errBlockingIssues, len(result.Issues), path)
			}

			_, _ = fmt.Fprintf(out, "ok: %q has %d statuses and %d transitions\n",
				doc.Name, len(result.Statuses), len(result.Transitions))

			return nil
		},
	}
}

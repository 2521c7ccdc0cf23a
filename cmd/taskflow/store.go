package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/taskflow/pkg/cmd"
	"github.com/dukex/taskflow/pkg/definition"
	"github.com/dukex/taskflow/pkg/log"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence (file://, postgres://, sqlite://)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:     "space",
			Usage:    "Space the workflow belongs to",
			Required: true,
		},
	}
}

// withWorkflowService opens the store named by --database-url for the duration of fn.
func withWorkflowService(
	ctx context.Context,
	command *cli.Command,
	fn func(service *services.Workflow) error,
) error {
	logger := log.FromContext(ctx)

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	return fn(services.NewWorkflow(persistence, services.WithLogger(logger)))
}

func NewImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Aliases:   []string{"i"},
		Usage:     "Create a workflow from a definition file",
		ArgsUsage: "<file>",
		Flags: append(storeFlags(),
			&cli.StringFlag{
				Name:  "actor",
				Usage: "Actor recorded in the audit trail",
				Value: services.DefaultActor,
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			path := command.Args().First()
			if path == "" {
				return errors.New("a definition file is required")
			}

			doc, err := definition.Load(path)
			if err != nil {
				return err
			}

			return withWorkflowService(ctx, command, func(service *services.Workflow) error {
				detail, err := service.Create(ctx, command.String("actor"), doc.Input(command.String("space")))
				if err != nil {
					var graphErr *services.GraphError
					if errors.As(err, &graphErr) {
						for _, issue := range graphErr.Issues {
							_, _ = fmt.Fprintf(command.Root().Writer, "issue: %s\n", issue)
						}
					}

					return err
				}

				for _, warning := range detail.Warnings {
					_, _ = fmt.Fprintf(command.Root().Writer, "warning: %s\n", warning)
				}

				_, _ = fmt.Fprintf(command.Root().Writer, "created %s %q version %d\n",
					detail.ID, detail.Name, detail.Version)

				return nil
			})
		},
	}
}

func NewExportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Aliases:   []string{"e"},
		Usage:     "Write a stored workflow as a definition document",
		ArgsUsage: "<workflow-id>",
		Flags: append(storeFlags(),
			&cli.IntFlag{
				Name:  "version",
				Usage: "Version to export; the current version when omitted",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format (json, yaml)",
				Value: string(definition.FormatYAML),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			id := command.Args().First()
			if id == "" {
				return errors.New("a workflow id is required")
			}

			return withWorkflowService(ctx, command, func(service *services.Workflow) error {
				space := command.String("space")

				var (
					detail *models.WorkflowDetail
					err    error
				)

				if version := command.Int("version"); version > 0 {
					detail, err = service.GetVersion(ctx, space, id, version)
				} else {
					detail, err = service.Get(ctx, space, id)
				}

				if err != nil {
					return fmt.Errorf("failed to load workflow %s: %w", id, err)
				}

				return definition.Encode(command.Root().Writer, definition.FromDetail(detail),
					definition.Format(strings.ToLower(command.String("format"))))
			})
		},
	}
}

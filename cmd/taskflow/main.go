// Package main provides the taskflow command line for authoring workflow definitions.
package main

import (
	"context"
	"os"

	"github.com/dukex/taskflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "taskflow",
		Usage:                 "Lint, suggest and import workflow definitions",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"))

			return log.IntoContext(ctx, log.WithModule("cli")), nil
		},
		Commands: []*cli.Command{
			NewLintCommand(),
			NewSuggestCommand(),
			NewImportCommand(),
			NewExportCommand(),
		},
	}
}

func main() {
	err := newCommand().Run(context.Background(), os.Args)
	if err != nil {
		log.WithModule("cli").Error(err.Error())
		os.Exit(1)
	}
}

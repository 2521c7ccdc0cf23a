package main

import (
	"context"
	"strings"

	"github.com/dukex/taskflow/pkg/definition"
	"github.com/dukex/taskflow/pkg/log"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func NewSuggestCommand() *cli.Command {
	return &cli.Command{
		Name:    "suggest",
		Aliases: []string{"s"},
		Usage:   "Generate a workflow definition from a prompt and template fields",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "prompt",
				Usage: "Free-text description of the lifecycle",
			},
			&cli.StringFlag{
				Name:  "template-name",
				Usage: "Name of the template the workflow is for",
			},
			&cli.StringSliceFlag{
				Name:  "field",
				Usage: "Label of an optional template field (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "required-field",
				Usage: "Label of a required template field (repeatable)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format (json, yaml)",
				Value: string(definition.FormatJSON),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			req := models.SuggestionRequest{
				Fields: suggestionFields(command.StringSlice("field"), command.StringSlice("required-field")),
			}

			if prompt := command.String("prompt"); prompt != "" {
				req.Prompt = &prompt
			}

			if name := command.String("template-name"); name != "" {
				req.TemplateName = &name
			}

			service := services.NewSuggestion(nil, log.FromContext(ctx))

			suggestion, err := service.Suggest(ctx, req)
			if err != nil {
				return err
			}

			return definition.Encode(command.Root().Writer, definition.FromSuggestion(suggestion),
				definition.Format(strings.ToLower(command.String("format"))))
		},
	}
}

func suggestionFields(optional, required []string) []models.SuggestionField {
	fields := make([]models.SuggestionField, 0, len(optional)+len(required))

	for _, label := range optional {
		fields = append(fields, models.SuggestionField{
			ID: models.NormalizeKey(label), Type: "text", Label: label,
		})
	}

	for _, label := range required {
		fields = append(fields, models.SuggestionField{
			ID: models.NormalizeKey(label), Type: "text", Label: label, Required: true,
		})
	}

	return fields
}

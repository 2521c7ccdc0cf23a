// Package definition reads and writes workflow definition documents. A document is
// the authored form of a workflow as JSON or YAML, checked against an embedded JSON
// schema before it is decoded.
package definition

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/dukex/taskflow/pkg/graph"
	"github.com/dukex/taskflow/pkg/models"
)

//go:embed schema.json
var schema []byte

var ErrInvalidDocument = errors.New("invalid workflow definition")

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file extension. Anything but .json is YAML.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}

	return FormatYAML
}

// Document is a workflow definition file.
type Document struct {
	Name              string                   `json:"name"`
	Description       *string                  `json:"description,omitempty"`
	IsDefault         bool                     `json:"is_default,omitempty"`
	AIOptimized       bool                     `json:"ai_optimized,omitempty"`
	LinkedTemplateIDs []string                 `json:"linked_template_ids,omitempty"`
	Statuses          []models.StatusInput     `json:"statuses"`
	Transitions       []models.TransitionInput `json:"transitions,omitempty"`
}

// SchemaError lists every schema violation found in a document.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidDocument, strings.Join(e.Violations, "; "))
}

func (e *SchemaError) Unwrap() error {
	return ErrInvalidDocument
}

// Load reads the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes a JSON or YAML document and validates it against the schema.
func Parse(data []byte) (*Document, error) {
	var raw any

	// JSON is valid YAML, so one decoder covers both formats.
	err := yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if raw == nil {
		return nil, &SchemaError{Violations: []string{"document is empty"}}
	}

	err = validate(raw)
	if err != nil {
		return nil, err
	}

	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	var doc Document

	err = json.Unmarshal(normalized, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return &doc, nil
}

func validate(raw any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}

	return &SchemaError{Violations: violations}
}

// Encode writes doc in the given format.
func Encode(w io.Writer, doc *Document, format Format) error {
	if format == FormatJSON {
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}

		_, err = w.Write(append(out, '\n'))

		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	// Round-trip through a generic value so YAML keys follow the JSON names.
	var generic any

	err = json.Unmarshal(data, &generic)
	if err != nil {
		return err
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	err = encoder.Encode(generic)
	if err != nil {
		return err
	}

	return encoder.Close()
}

// Input converts the document into a create request for spaceID.
func (d *Document) Input(spaceID string) *models.WorkflowInput {
	return &models.WorkflowInput{
		SpaceID:           spaceID,
		Name:              d.Name,
		Description:       d.Description,
		IsDefault:         d.IsDefault,
		AIOptimized:       d.AIOptimized,
		Statuses:          d.Statuses,
		Transitions:       d.Transitions,
		LinkedTemplateIDs: d.LinkedTemplateIDs,
	}
}

// FromSuggestion builds a document from a generated suggestion.
func FromSuggestion(s *models.Suggestion) *Document {
	doc := fromGraph(s.Name, s.Statuses, s.Transitions)
	doc.AIOptimized = true

	if s.Description != "" {
		description := s.Description
		doc.Description = &description
	}

	return doc
}

func fromGraph(name string, statuses []*models.WorkflowStatus, transitions []*models.WorkflowTransition) *Document {
	doc := &Document{
		Name:        name,
		Statuses:    make([]models.StatusInput, 0, len(statuses)),
		Transitions: make([]models.TransitionInput, 0, len(transitions)),
	}

	for _, status := range statuses {
		doc.Statuses = append(doc.Statuses, models.StatusInput{
			Key:             status.Key,
			Name:            status.Name,
			Category:        status.Category,
			Color:           status.Color,
			IsInitial:       models.FlagOf(status.IsInitial),
			IsFinal:         models.FlagOf(status.IsFinal),
			VisibilityRules: status.VisibilityRules,
			FieldLockRules:  status.FieldLockRules,
			StatusRefID:     status.StatusRefID,
		})
	}

	for _, transition := range transitions {
		doc.Transitions = append(doc.Transitions, models.TransitionInput{
			Key:           transition.Key,
			Name:          transition.Name,
			FromKey:       transition.FromKey,
			ToKey:         transition.ToKey,
			Conditions:    transition.Conditions,
			Validators:    transition.Validators,
			PostFunctions: transition.PostFunctions,
			UITrigger:     transition.UITrigger,
		})
	}

	return doc
}

// Lint runs the graph pipeline over the document without persisting anything.
func (d *Document) Lint() *graph.Result {
	if len(d.Statuses) == 0 {
		return &graph.Result{
			Warnings: []string{},
			Issues: []graph.Issue{{
				Code:    graph.CodeNoStatuses,
				Path:    "statuses",
				Message: "workflow must have at least one status",
			}},
		}
	}

	return graph.Normalize(models.StatusInputs(d.Statuses), models.TransitionInputs(d.Transitions))
}

// FromDetail builds a document from one stored version of a workflow.
func FromDetail(detail *models.WorkflowDetail) *Document {
	doc := fromGraph(detail.Name, detail.Statuses, detail.Transitions)
	doc.Description = detail.Description
	doc.IsDefault = detail.IsDefault
	doc.AIOptimized = detail.AIOptimized

	return doc
}

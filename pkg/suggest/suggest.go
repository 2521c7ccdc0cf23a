package suggest

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dukex/taskflow/pkg/graph"
	"github.com/dukex/taskflow/pkg/models"
)

const (
	defaultName          = "Suggested Workflow"
	nameWords            = 4
	descriptionMaxRunes  = 160
	manyRequiredFields   = 3
	smallWorkflowMaximum = 3

	// StandardFlowWarning is emitted when the prompt names none of the known stages.
	StandardFlowWarning = "Prompt did not reference any known stage; a standard To Do, In Progress, Done flow was generated."
)

var (
	assigneeOnly        = json.RawMessage(`{"assigneeOnly":true}`)
	preventOpenSubtasks = json.RawMessage(`{"preventOpenSubtasks":true}`)
	doneWithPriority    = json.RawMessage(`{"preventOpenSubtasks":true,"requirePriority":true}`)
)

// BuildTransitions links every adjacent pair of statuses with a "Move to" transition.
// The first transition is restricted to the assignee. Transitions landing on a DONE
// status block open subtasks, and also require a priority when requirePriority is set.
func BuildTransitions(statuses []*models.WorkflowStatus, requirePriority bool) []*models.WorkflowTransition {
	if len(statuses) < 2 {
		return nil
	}

	transitions := make([]*models.WorkflowTransition, 0, len(statuses)-1)

	for i := 1; i < len(statuses); i++ {
		from, to := statuses[i-1], statuses[i]

		t := &models.WorkflowTransition{
			Name:    "Move to " + to.Name,
			FromKey: from.Key,
			ToKey:   to.Key,
			Order:   i - 1,
		}

		if i == 1 {
			t.Conditions = clone(assigneeOnly)
		}

		if to.Category == models.CategoryDone {
			if requirePriority {
				t.Validators = clone(doneWithPriority)
			} else {
				t.Validators = clone(preventOpenSubtasks)
			}
		}

		transitions = append(transitions, t)
	}

	return transitions
}

// Suggest generates a candidate workflow from a prompt and template fields. The
// candidate has been through the full normalization pipeline; callers must reject
// it when Issues is non-empty.
func Suggest(req models.SuggestionRequest) *models.Suggestion {
	prompt := ""
	if req.Prompt != nil {
		prompt = strings.TrimSpace(*req.Prompt)
	}

	fromText := DetectStages(prompt)
	stages := fromText.WithFields(req.Fields)

	required := 0
	for _, field := range req.Fields {
		if field.Required {
			required++
		}
	}

	statuses := BuildStatuses(stages)
	transitions := BuildTransitions(statuses, required > 0)

	result := graph.Normalize(statuses, transitions)

	warnings := result.Warnings
	if !fromText.Any() {
		warnings = append(warnings, StandardFlowWarning)
	}

	return &models.Suggestion{
		Name:            suggestName(req.TemplateName, prompt),
		Description:     suggestDescription(req.TemplateName, prompt),
		Statuses:        result.Statuses,
		Transitions:     result.Transitions,
		Recommendations: recommend(result.Statuses, required),
		Warnings:        nonNil(warnings),
		Issues:          result.Issues,
	}
}

func suggestName(templateName *string, prompt string) string {
	if templateName != nil && strings.TrimSpace(*templateName) != "" {
		return strings.TrimSpace(*templateName) + " Flow"
	}

	words := make([]string, 0, nameWords)

	for _, word := range strings.Fields(prompt) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word == "" {
			continue
		}

		r, size := utf8.DecodeRuneInString(word)
		words = append(words, string(unicode.ToUpper(r))+word[size:])

		if len(words) == nameWords {
			break
		}
	}

	if len(words) == 0 {
		return defaultName
	}

	return strings.Join(words, " ") + " Workflow"
}

func suggestDescription(templateName *string, prompt string) string {
	if prompt != "" {
		return "Suggested from the request: " + truncate(prompt, descriptionMaxRunes)
	}

	if templateName != nil && strings.TrimSpace(*templateName) != "" {
		return fmt.Sprintf("Suggested lifecycle for %s items, built from the template's fields.", strings.TrimSpace(*templateName))
	}

	return "Suggested lifecycle that moves work from To Do through In Progress to Done."
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	runes := []rune(s)

	return strings.TrimRightFunc(string(runes[:limit]), unicode.IsSpace) + "..."
}

func recommend(statuses []*models.WorkflowStatus, required int) []string {
	recommendations := []string{}

	if len(statuses) <= smallWorkflowMaximum {
		recommendations = append(recommendations, "Add a review stage so work is checked before it is done.")
	}

	hasQA := false
	for _, s := range statuses {
		if s.Key == string(StageQA) {
			hasQA = true
		}
	}

	if !hasQA {
		recommendations = append(recommendations, "Add a QA stage to catch defects before work is closed.")
	}

	if required > manyRequiredFields {
		recommendations = append(recommendations, fmt.Sprintf(
			"The template has %d required fields; make sure transitions validate them.", required))
	}

	return recommendations
}

func clone(raw json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), raw...)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}

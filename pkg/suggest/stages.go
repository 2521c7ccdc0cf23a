// Package suggest builds first-draft workflow graphs from free-text hints and the
// fields of the template a workflow is meant for.
package suggest

import (
	"regexp"
	"strings"

	"github.com/dukex/taskflow/pkg/models"
)

// Stage is an optional lifecycle stage the generator can add.
type Stage string

const (
	StageBacklog  Stage = "backlog"
	StagePlanning Stage = "planning"
	StageDesign   Stage = "design"
	StageReview   Stage = "review"
	StageQA       Stage = "qa"
	StageDeploy   Stage = "deploy"
)

var stagePatterns = map[Stage]*regexp.Regexp{
	StageDesign:   regexp.MustCompile(`(?i)\b(design(s|ed|ing|ers?)?|ux|ui|mockups?|wireframes?)\b`),
	StageReview:   regexp.MustCompile(`(?i)\b(review(s|ed|ing|ers?)?|approv(e|es|ed|ing|als?)|audit(s|ed|ing)?|sign[- ]?offs?)\b`),
	StageQA:       regexp.MustCompile(`(?i)\b(test(s|ed|ing|ers?)?|qa|quality)\b`),
	StageDeploy:   regexp.MustCompile(`(?i)\b(deploy(s|ed|ing|ments?)?|releas(e|es|ed|ing)|launch(es|ed|ing)?|ship(s|ped)?)\b`),
	StageBacklog:  regexp.MustCompile(`(?i)\b(backlogs?|inbox(es)?|intake)\b`),
	StagePlanning: regexp.MustCompile(`(?i)\b(plan(s|ned|ning)?|groom(s|ed|ing)?|refin(e|es|ed|ing|ement))\b`),
}

// Stages records which optional stages a hint asks for. Matches are independent.
type Stages struct {
	Backlog  bool
	Planning bool
	Design   bool
	Review   bool
	QA       bool
	Deploy   bool
}

// Any reports whether at least one stage was detected.
func (s Stages) Any() bool {
	return s.Backlog || s.Planning || s.Design || s.Review || s.QA || s.Deploy
}

// DetectStages scans free text for stage keywords.
func DetectStages(text string) Stages {
	matches := func(stage Stage) bool {
		return stagePatterns[stage].MatchString(text)
	}

	return Stages{
		Backlog:  matches(StageBacklog),
		Planning: matches(StagePlanning),
		Design:   matches(StageDesign),
		Review:   matches(StageReview),
		QA:       matches(StageQA),
		Deploy:   matches(StageDeploy),
	}
}

// WithFields ORs in the design, review and QA stages implied by field labels.
func (s Stages) WithFields(fields []models.SuggestionField) Stages {
	for _, field := range fields {
		label := strings.ToLower(field.Label)

		s.Design = s.Design || strings.Contains(label, "design")
		s.Review = s.Review || strings.Contains(label, "review")
		s.QA = s.QA || strings.Contains(label, "qa")
	}

	return s
}

type stageStatus struct {
	key      string
	name     string
	category models.Category
	color    string
}

var (
	backlogStatus    = stageStatus{"backlog", "Backlog", models.CategoryTodo, "#94A3B8"}
	todoStatus       = stageStatus{"todo", "To Do", models.CategoryTodo, "#64748B"}
	planningStatus   = stageStatus{"planning", "Planning", models.CategoryTodo, "#8B5CF6"}
	designStatus     = stageStatus{"design", "Design", models.CategoryInProgress, "#EC4899"}
	inProgressStatus = stageStatus{"in-progress", "In Progress", models.CategoryInProgress, "#3B82F6"}
	reviewStatus     = stageStatus{"review", "Review", models.CategoryInProgress, "#F59E0B"}
	qaStatus         = stageStatus{"qa", "QA", models.CategoryInProgress, "#14B8A6"}
	deployStatus     = stageStatus{"deploy", "Deploy", models.CategoryInProgress, "#6366F1"}
	doneStatus       = stageStatus{"done", "Done", models.CategoryDone, "#22C55E"}
)

// BuildStatuses lays out the candidate statuses in maturity order:
// Backlog, To Do, Planning, Design, In Progress, Review, QA, Deploy, Done.
// To Do, In Progress and Done are always present.
func BuildStatuses(stages Stages) []*models.WorkflowStatus {
	sequence := make([]stageStatus, 0, 9)

	if stages.Backlog {
		sequence = append(sequence, backlogStatus)
	}

	sequence = append(sequence, todoStatus)

	if stages.Planning {
		sequence = append(sequence, planningStatus)
	}

	if stages.Design {
		sequence = append(sequence, designStatus)
	}

	sequence = append(sequence, inProgressStatus)

	if stages.Review {
		sequence = append(sequence, reviewStatus)
	}

	if stages.QA {
		sequence = append(sequence, qaStatus)
	}

	if stages.Deploy {
		sequence = append(sequence, deployStatus)
	}

	sequence = append(sequence, doneStatus)

	statuses := make([]*models.WorkflowStatus, 0, len(sequence))
	for i, s := range sequence {
		color := s.color
		statuses = append(statuses, &models.WorkflowStatus{
			Key:       s.key,
			Name:      s.name,
			Category:  s.category,
			Color:     &color,
			Order:     i,
			IsInitial: i == 0,
			IsFinal:   i == len(sequence)-1,
		})
	}

	return statuses
}

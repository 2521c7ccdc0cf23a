package file

import (
	"encoding/json"

	"github.com/dukex/taskflow/pkg/models"
)

// snapshot is the graph of one workflow version. On disk the rule payloads are
// kept as strings so a reload returns exactly the bytes that were written.
type snapshot struct {
	Statuses    []*models.WorkflowStatus
	Transitions []*models.WorkflowTransition
}

type statusRecord struct {
	*models.WorkflowStatus

	VisibilityRules *string `json:"visibility_rules,omitempty"`
	FieldLockRules  *string `json:"field_lock_rules,omitempty"`
}

type transitionRecord struct {
	*models.WorkflowTransition

	Conditions    *string `json:"conditions,omitempty"`
	Validators    *string `json:"validators,omitempty"`
	PostFunctions *string `json:"post_functions,omitempty"`
}

type snapshotRecord struct {
	Statuses    []statusRecord     `json:"statuses"`
	Transitions []transitionRecord `json:"transitions"`
}

func (s *snapshot) MarshalJSON() ([]byte, error) {
	record := snapshotRecord{
		Statuses:    make([]statusRecord, 0, len(s.Statuses)),
		Transitions: make([]transitionRecord, 0, len(s.Transitions)),
	}

	for _, status := range s.Statuses {
		record.Statuses = append(record.Statuses, statusRecord{
			WorkflowStatus:  status,
			VisibilityRules: payloadString(status.VisibilityRules),
			FieldLockRules:  payloadString(status.FieldLockRules),
		})
	}

	for _, transition := range s.Transitions {
		record.Transitions = append(record.Transitions, transitionRecord{
			WorkflowTransition: transition,
			Conditions:         payloadString(transition.Conditions),
			Validators:         payloadString(transition.Validators),
			PostFunctions:      payloadString(transition.PostFunctions),
		})
	}

	return json.Marshal(record)
}

func (s *snapshot) UnmarshalJSON(data []byte) error {
	var record snapshotRecord

	err := json.Unmarshal(data, &record)
	if err != nil {
		return err
	}

	s.Statuses = make([]*models.WorkflowStatus, 0, len(record.Statuses))
	for _, r := range record.Statuses {
		status := r.WorkflowStatus
		if status == nil {
			status = &models.WorkflowStatus{}
		}

		status.VisibilityRules = payloadBytes(r.VisibilityRules)
		status.FieldLockRules = payloadBytes(r.FieldLockRules)
		s.Statuses = append(s.Statuses, status)
	}

	s.Transitions = make([]*models.WorkflowTransition, 0, len(record.Transitions))
	for _, r := range record.Transitions {
		transition := r.WorkflowTransition
		if transition == nil {
			transition = &models.WorkflowTransition{}
		}

		transition.Conditions = payloadBytes(r.Conditions)
		transition.Validators = payloadBytes(r.Validators)
		transition.PostFunctions = payloadBytes(r.PostFunctions)
		s.Transitions = append(s.Transitions, transition)
	}

	return nil
}

func payloadString(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}

	s := string(raw)

	return &s
}

func payloadBytes(s *string) json.RawMessage {
	if s == nil {
		return nil
	}

	return json.RawMessage(*s)
}

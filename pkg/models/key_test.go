package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "already normalized", input: "in-progress", want: "in-progress"},
		{name: "mixed case and spaces", input: "  In   Progress ", want: "in-progress"},
		{name: "tabs and newlines", input: "Ready\tfor\nQA", want: "ready-for-qa"},
		{name: "empty", input: "", want: ""},
		{name: "only whitespace", input: " \t ", want: ""},
		{name: "unicode", input: "Étape Finale", want: "étape-finale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeKey(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeKey(got), "normalization must be idempotent")
		})
	}
}

func TestKeyOf(t *testing.T) {
	assert.Equal(t, "todo", KeyOf("ToDo", "Something Else"))
	assert.Equal(t, "to-do", KeyOf("", "To Do"))
	assert.Equal(t, "to-do", KeyOf("   ", "To Do"))
	assert.Equal(t, "", KeyOf("", ""))
}

func TestWorkflowStatus_CloneIsDeep(t *testing.T) {
	color := "#fff"
	original := &WorkflowStatus{Key: "a", Color: &color, VisibilityRules: []byte(`{"a":1}`)}

	clone := original.Clone()
	*clone.Color = "#000"
	clone.VisibilityRules[2] = 'b'

	assert.Equal(t, "#fff", *original.Color)
	assert.Equal(t, `{"a":1}`, string(original.VisibilityRules))
}

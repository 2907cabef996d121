package model_test

import (
	"testing"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/gt"
)

func TestEvalCondition(t *testing.T) {
	params := map[string]any{
		"matrix_deps":   "full",
		"matrix_python": "3.12",
		"event_tag":     "v1.2.3",
	}

	tests := []struct {
		name     string
		cond     string
		expected bool
	}{
		{name: "empty condition is true", cond: "", expected: true},
		{name: "equality match", cond: `matrix_deps == "full"`, expected: true},
		{name: "equality mismatch", cond: `matrix_deps == "slim"`, expected: false},
		{name: "conjunction", cond: `matrix_deps == "full" && matrix_python == "3.12"`, expected: true},
		{name: "negation", cond: `matrix_deps != "slim"`, expected: true},
		{name: "regex match", cond: `event_tag =~ "^v1"`, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := model.EvalCondition(tt.cond, params)
			gt.NoError(t, err)
			gt.Equal(t, got, tt.expected)
		})
	}
}

func TestEvalCondition_Errors(t *testing.T) {
	params := map[string]any{"matrix_deps": "full"}

	if _, err := model.EvalCondition(`matrix_deps ==`, params); err == nil {
		t.Error("EvalCondition() should reject an unparsable condition")
	}
	if _, err := model.EvalCondition(`matrix_deps`, params); err == nil {
		t.Error("EvalCondition() should reject a non-boolean result")
	}
}

func TestExpandPlaceholders(t *testing.T) {
	vars := map[string]string{
		"matrix.python": "3.12",
		"matrix.deps":   "slim",
		"event.tag":     "v1.2.3",
		"run.id":        "e7c9a1f0",
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "matrix reference",
			input:    "pip install -r requirements/${matrix.deps}.txt",
			expected: "pip install -r requirements/slim.txt",
		},
		{
			name:     "multiple references",
			input:    "python ${matrix.python} builds ${event.tag}",
			expected: "python 3.12 builds v1.2.3",
		},
		{
			name:     "run id",
			input:    "dist-${run.id}",
			expected: "dist-e7c9a1f0",
		},
		{
			name:     "shell variables are left alone",
			input:    "echo $HOME and ${PATH}",
			expected: "echo $HOME and ${PATH}",
		},
		{
			name:     "no references",
			input:    "make test",
			expected: "make test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := model.ExpandPlaceholders(tt.input, vars)
			if got != tt.expected {
				t.Errorf("ExpandPlaceholders() = %q, want %q", got, tt.expected)
			}
		})
	}
}

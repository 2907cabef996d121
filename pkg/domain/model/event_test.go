package model_test

import (
	"testing"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

func TestPushEvent_IsTagPush(t *testing.T) {
	tests := []struct {
		name     string
		event    *model.PushEvent
		expected bool
	}{
		{
			name: "tag push",
			event: &model.PushEvent{
				Ref: "refs/tags/v1.2.3",
				SHA: "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2",
			},
			expected: true,
		},
		{
			name: "branch push",
			event: &model.PushEvent{
				Ref: "refs/heads/main",
				SHA: "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2",
			},
			expected: false,
		},
		{
			name: "tag deletion via flag",
			event: &model.PushEvent{
				Ref:     "refs/tags/v1.2.3",
				SHA:     "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2",
				Deleted: true,
			},
			expected: false,
		},
		{
			name: "tag deletion via zero SHA",
			event: &model.PushEvent{
				Ref: "refs/tags/v1.2.3",
				SHA: "0000000000000000000000000000000000000000",
			},
			expected: false,
		},
		{
			name: "missing SHA",
			event: &model.PushEvent{
				Ref: "refs/tags/v1.2.3",
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.event.IsTagPush()
			if got != tt.expected {
				t.Errorf("IsTagPush() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPushEvent_Tag(t *testing.T) {
	tests := []struct {
		name     string
		ref      string
		expected string
	}{
		{name: "version tag", ref: "refs/tags/v1.2.3", expected: "v1.2.3"},
		{name: "plain tag", ref: "refs/tags/release-2026-08", expected: "release-2026-08"},
		{name: "branch ref", ref: "refs/heads/main", expected: ""},
		{name: "empty ref", ref: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &model.PushEvent{Ref: tt.ref}
			if got := event.Tag(); got != tt.expected {
				t.Errorf("Tag() = %q, want %q", got, tt.expected)
			}
		})
	}
}

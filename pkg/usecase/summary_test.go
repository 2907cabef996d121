package usecase_test

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/mock"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/usecase"
)

func TestFailureSummarizer(t *testing.T) {
	ctx := context.Background()

	failure := &model.StepFailure{
		Pipeline: "timekeeper-release",
		Step:     "test",
		Tag:      "v1.0.0",
		ExitCode: 1,
		Output:   "E   ImportError: cannot import name 'tzdata'\nFAILED tests/test_clock.py::test_now",
	}

	t.Run("parses structured analysis", func(t *testing.T) {
		response := model.FailureSummary{
			Title:       "Test suite failed on missing tzdata",
			Cause:       "The test environment lacks the tzdata package.",
			Suggestions: []string{"Add tzdata to the test dependencies"},
		}
		responseJSON, err := json.Marshal(response)
		gt.NoError(t, err)

		var capturedPrompt string
		mockClient := &mock.LLMClientMock{
			NewSessionFunc: func(ctx context.Context, opts ...gollem.SessionOption) (gollem.Session, error) {
				return &mock.SessionMock{
					GenerateContentFunc: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						for _, in := range input {
							if text, ok := in.(gollem.Text); ok {
								capturedPrompt = string(text)
							}
						}
						return &gollem.Response{
							Texts: []string{string(responseJSON)},
						}, nil
					},
				}, nil
			},
		}

		summarizer := usecase.NewFailureSummarizer(mockClient)
		summary, err := summarizer.SummarizeFailure(ctx, failure)
		gt.NoError(t, err)
		gt.Value(t, summary).NotNil()
		gt.Equal(t, summary.Title, "Test suite failed on missing tzdata")
		gt.Equal(t, len(summary.Suggestions), 1)

		// The prompt carries the failing step and its output
		gt.String(t, capturedPrompt).Contains("timekeeper-release")
		gt.String(t, capturedPrompt).Contains("ImportError")
		gt.String(t, capturedPrompt).Contains("v1.0.0")
	})

	t.Run("long output is truncated", func(t *testing.T) {
		longFailure := &model.StepFailure{
			Pipeline: "timekeeper-release",
			Step:     "test",
			Tag:      "v1.0.0",
			ExitCode: 1,
			Output:   strings.Repeat("assertion line\n", 2000) + "FINAL ERROR LINE",
		}

		var capturedPrompt string
		mockClient := &mock.LLMClientMock{
			NewSessionFunc: func(ctx context.Context, opts ...gollem.SessionOption) (gollem.Session, error) {
				return &mock.SessionMock{
					GenerateContentFunc: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						for _, in := range input {
							if text, ok := in.(gollem.Text); ok {
								capturedPrompt = string(text)
							}
						}
						return &gollem.Response{
							Texts: []string{`{"title":"t","cause":"c","suggestions":[]}`},
						}, nil
					},
				}, nil
			},
		}

		summarizer := usecase.NewFailureSummarizer(mockClient)
		_, err := summarizer.SummarizeFailure(ctx, longFailure)
		gt.NoError(t, err)

		// The tail survives truncation, the full output does not
		gt.String(t, capturedPrompt).Contains("...(truncated)")
		gt.String(t, capturedPrompt).Contains("FINAL ERROR LINE")
		gt.Equal(t, strings.Contains(capturedPrompt, longFailure.Output), false)
	})

	t.Run("invalid JSON response", func(t *testing.T) {
		mockClient := &mock.LLMClientMock{
			NewSessionFunc: func(ctx context.Context, opts ...gollem.SessionOption) (gollem.Session, error) {
				return &mock.SessionMock{
					GenerateContentFunc: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						return &gollem.Response{
							Texts: []string{"the build failed because of reasons"},
						}, nil
					},
				}, nil
			},
		}

		summarizer := usecase.NewFailureSummarizer(mockClient)
		_, err := summarizer.SummarizeFailure(ctx, failure)
		gt.Error(t, err)
	})

	t.Run("empty response", func(t *testing.T) {
		mockClient := &mock.LLMClientMock{
			NewSessionFunc: func(ctx context.Context, opts ...gollem.SessionOption) (gollem.Session, error) {
				return &mock.SessionMock{
					GenerateContentFunc: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						return &gollem.Response{Texts: []string{}}, nil
					},
				}, nil
			},
		}

		summarizer := usecase.NewFailureSummarizer(mockClient)
		_, err := summarizer.SummarizeFailure(ctx, failure)
		gt.Error(t, err)
	})
}

func TestFailureSummarizer_Integration(t *testing.T) {
	// Skip if TEST_GEMINI_PROJECT_ID is not set
	projectID := os.Getenv("TEST_GEMINI_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT_ID not set, skipping integration test")
	}

	location := os.Getenv("TEST_GEMINI_LOCATION")
	if location == "" {
		location = "us-central1"
	}

	ctx := context.Background()

	geminiClient, err := gemini.New(ctx, location, projectID,
		gemini.WithModel("gemini-2.5-flash"),
	)
	gt.NoError(t, err)

	summarizer := usecase.NewFailureSummarizer(geminiClient)
	summary, err := summarizer.SummarizeFailure(ctx, &model.StepFailure{
		Pipeline: "timekeeper-release",
		Step:     "test",
		Tag:      "v1.0.0",
		ExitCode: 1,
		Output: `============================= test session starts ==============================
collected 12 items

tests/test_clock.py ....F.......                                         [100%]

=================================== FAILURES ===================================
___________________________________ test_now ___________________________________
E       ModuleNotFoundError: No module named 'tzdata'
=========================== short test summary info ============================
FAILED tests/test_clock.py::test_now - ModuleNotFoundError: No module named 'tzdata'
========================= 1 failed, 11 passed in 2.34s =========================`,
	})
	gt.NoError(t, err)
	gt.Value(t, summary).NotNil()
	gt.Value(t, summary.Title).NotEqual("")
	gt.Value(t, summary.Cause).NotEqual("")
	t.Logf("Summary: %s / %s", summary.Title, summary.Cause)
}

package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/drover/pkg/cli"
)

const validPipeline = `name: demo-release
on:
  tags:
    - "v*"
matrix:
  python:
    - "3.12"
steps:
  - name: test
    run: echo testing ${matrix.python}
`

func writePipeline(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drover.yml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write pipeline file: %v", err)
	}
	return path
}

func TestValidateCommand(t *testing.T) {
	path := writePipeline(t, validPipeline)

	err := cli.Run(context.Background(), []string{"drover", "validate", "-p", path})
	if err != nil {
		t.Errorf("validate failed for a valid pipeline: %v", err)
	}
}

func TestValidateCommand_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing steps",
			content: `name: demo
on:
  tags: ["v*"]
`,
		},
		{
			name: "unknown field",
			content: `name: demo
on:
  tags: ["v*"]
stepz:
  - run: echo hi
`,
		},
		{
			name: "undeclared matrix key",
			content: `name: demo
on:
  tags: ["v*"]
steps:
  - name: test
    run: echo ${matrix.python}
`,
		},
		{
			name: "publish without index",
			content: `name: demo
on:
  tags: ["v*"]
steps:
  - name: publish
    uses: publish
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writePipeline(t, tt.content)
			err := cli.Run(context.Background(), []string{"drover", "validate", "-p", path})
			if err == nil {
				t.Error("validate should fail for an invalid pipeline")
			}
		})
	}
}

func TestValidateCommand_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yml")

	err := cli.Run(context.Background(), []string{"drover", "validate", "-p", path})
	if err == nil {
		t.Error("validate should fail when the pipeline file does not exist")
	}
}

func TestRunCommand(t *testing.T) {
	path := writePipeline(t, validPipeline)

	args := []string{
		"drover", "run",
		"-p", path,
		"--tag", "v1.0.0",
		"--source", t.TempDir(),
		"--artifact-dir", t.TempDir(),
	}
	if err := cli.Run(context.Background(), args); err != nil {
		t.Errorf("run failed: %v", err)
	}
}

func TestRunCommand_TagMismatch(t *testing.T) {
	path := writePipeline(t, validPipeline)

	args := []string{
		"drover", "run",
		"-p", path,
		"--tag", "nightly",
		"--source", t.TempDir(),
		"--artifact-dir", t.TempDir(),
	}
	if err := cli.Run(context.Background(), args); err == nil {
		t.Error("run should fail when the tag matches no trigger pattern")
	}
}

func TestRunCommand_StepFailure(t *testing.T) {
	content := `name: demo
on:
  tags: ["v*"]
steps:
  - name: broken
    run: exit 2
`
	path := writePipeline(t, content)

	args := []string{
		"drover", "run",
		"-p", path,
		"--tag", "v1.0.0",
		"--source", t.TempDir(),
		"--artifact-dir", t.TempDir(),
	}
	if err := cli.Run(context.Background(), args); err == nil {
		t.Error("run should propagate a step failure")
	}
}

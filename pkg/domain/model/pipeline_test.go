package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/gt"
)

const validPipeline = `
name: publish
on:
  tags: ["v*"]
env:
  PIP_DISABLE_PIP_VERSION_CHECK: "1"
matrix:
  python: ["3.11", "3.12"]
  deps: ["full", "slim"]
steps:
  - name: checkout
    uses: checkout
  - name: setup
    uses: setup-python
    with:
      version: ${matrix.python}
  - name: install
    run: pip install -r requirements/${matrix.deps}.txt
  - name: lint
    run: make lint
    if: matrix_deps == "full"
  - name: test
    run: make test
    timeout: 10m
release:
  - name: verify
    uses: verify-version
    with:
      file: pyproject.toml
  - name: build
    run: flit build
    artifacts: ["dist/*"]
  - name: upload
    uses: publish
concurrency:
  group: release
  policy: wait
publish:
  index: https://upload.example.dev/legacy/
  token: INDEX_API_TOKEN
notify:
  slack: "#releases"
`

func TestParsePipeline(t *testing.T) {
	pipeline, err := model.ParsePipeline([]byte(validPipeline))
	gt.NoError(t, err)
	gt.Value(t, pipeline).NotNil()

	gt.Equal(t, pipeline.Name, "publish")
	gt.Equal(t, len(pipeline.On.Tags), 1)
	gt.Equal(t, len(pipeline.Steps), 5)
	gt.Equal(t, len(pipeline.Release), 3)
	gt.Equal(t, pipeline.Steps[1].With["version"], "${matrix.python}")
	gt.Equal(t, pipeline.Steps[4].Timeout.Duration(), 10*time.Minute)
	gt.Equal(t, pipeline.Concurrency.Group, "release")
	gt.Equal(t, pipeline.Concurrency.Policy, model.PolicyWait)
	gt.Equal(t, pipeline.Publish.Token, "INDEX_API_TOKEN")
	gt.Equal(t, pipeline.Notify.Slack, "#releases")
}

func TestParsePipeline_Defaults(t *testing.T) {
	raw := `
name: minimal
on:
  tags: ["v*"]
steps:
  - run: make test
  - uses: checkout
release:
  - run: flit build
`
	pipeline, err := model.ParsePipeline([]byte(raw))
	gt.NoError(t, err)

	gt.Equal(t, pipeline.Concurrency.Group, "minimal")
	gt.Equal(t, pipeline.Concurrency.Policy, model.PolicyWait)
	gt.Equal(t, pipeline.Steps[0].Name, "step-1")
	gt.Equal(t, pipeline.Steps[1].Name, "checkout")
	gt.Equal(t, pipeline.Release[0].Name, "step-3")
}

func TestPipeline_Matches(t *testing.T) {
	pipeline, err := model.ParsePipeline([]byte(validPipeline))
	gt.NoError(t, err)

	gt.True(t, pipeline.Matches("v1.2.3"))
	gt.True(t, pipeline.Matches("v2"))
	gt.Equal(t, pipeline.Matches("nightly"), false)
	gt.Equal(t, pipeline.Matches(""), false)
}

func TestParsePipeline_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "unknown top-level field",
			yaml: `
name: p
on:
  tags: ["v*"]
steps:
  - run: make test
jobs: []
`,
			wantErr: "not found",
		},
		{
			name: "step without run or uses",
			yaml: `
name: p
on:
  tags: ["v*"]
steps:
  - name: broken
`,
			wantErr: "either run or uses is required",
		},
		{
			name: "step with both run and uses",
			yaml: `
name: p
on:
  tags: ["v*"]
steps:
  - name: broken
    run: make test
    uses: checkout
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "unknown action",
			yaml: `
name: p
on:
  tags: ["v*"]
steps:
  - uses: setup-node
`,
			wantErr: `unknown action "setup-node"`,
		},
		{
			name: "with requires uses",
			yaml: `
name: p
on:
  tags: ["v*"]
steps:
  - run: make test
    with:
      version: "3.12"
`,
			wantErr: "with requires uses",
		},
		{
			name: "undeclared matrix key in placeholder",
			yaml: `
name: p
on:
  tags: ["v*"]
matrix:
  python: ["3.12"]
steps:
  - run: pip install -r requirements/${matrix.deps}.txt
`,
			wantErr: `matrix key "deps" is not declared`,
		},
		{
			name: "matrix placeholder in release step",
			yaml: `
name: p
on:
  tags: ["v*"]
matrix:
  python: ["3.12"]
steps:
  - run: make test
release:
  - run: echo ${matrix.python}
`,
			wantErr: "matrix values are not available",
		},
		{
			name: "unknown event field",
			yaml: `
name: p
on:
  tags: ["v*"]
steps:
  - run: echo ${event.branch}
`,
			wantErr: "unknown event field",
		},
		{
			name: "condition references unknown identifier",
			yaml: `
name: p
on:
  tags: ["v*"]
steps:
  - run: make lint
    if: matrix_deps == "full"
`,
			wantErr: "unknown identifier",
		},
		{
			name: "empty tag patterns",
			yaml: `
name: p
on:
  tags: []
steps:
  - run: make test
`,
			wantErr: "at least one tag pattern",
		},
		{
			name: "malformed tag pattern",
			yaml: `
name: p
on:
  tags: ["v[*"]
steps:
  - run: make test
`,
			wantErr: "malformed pattern",
		},
		{
			name: "bad concurrency policy",
			yaml: `
name: p
on:
  tags: ["v*"]
steps:
  - run: make test
concurrency:
  policy: cancel
`,
			wantErr: "concurrency.policy",
		},
		{
			name: "publish step without index",
			yaml: `
name: p
on:
  tags: ["v*"]
steps:
  - run: make test
release:
  - uses: publish
`,
			wantErr: "publish.index is required",
		},
		{
			name: "publish token and oidc together",
			yaml: `
name: p
on:
  tags: ["v*"]
steps:
  - run: make test
release:
  - uses: publish
publish:
  index: https://upload.example.dev/legacy/
  token: INDEX_API_TOKEN
  oidc:
    audience: example-index
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "duplicate step names",
			yaml: `
name: p
on:
  tags: ["v*"]
steps:
  - name: build
    run: make build
release:
  - name: build
    run: flit build
`,
			wantErr: "already used",
		},
		{
			name: "empty matrix value list",
			yaml: `
name: p
on:
  tags: ["v*"]
matrix:
  python: []
steps:
  - run: make test
`,
			wantErr: "at least one value",
		},
		{
			name: "negative timeout",
			yaml: `
name: p
on:
  tags: ["v*"]
steps:
  - run: make test
    timeout: -5s
`,
			wantErr: "timeout must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.ParsePipeline([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("ParsePipeline() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParsePipeline() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

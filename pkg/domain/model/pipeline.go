package model

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// ActionType identifies a builtin action a step can reference via "uses".
type ActionType string

const (
	ActionCheckout      ActionType = "checkout"
	ActionSetupPython   ActionType = "setup-python"
	ActionVerifyVersion ActionType = "verify-version"
	ActionPublish       ActionType = "publish"
)

// Known checks whether the action name refers to a registered builtin.
func (x ActionType) Known() bool {
	switch x {
	case ActionCheckout, ActionSetupPython, ActionVerifyVersion, ActionPublish:
		return true
	}
	return false
}

// ConcurrencyPolicy decides what happens to a run that arrives while its
// group already has one in flight.
type ConcurrencyPolicy string

const (
	PolicyWait ConcurrencyPolicy = "wait"
	PolicySkip ConcurrencyPolicy = "skip"
)

// Duration wraps time.Duration so timeouts can be written as "10m" in YAML.
type Duration time.Duration

func (x *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return goerr.Wrap(err, "duration must be a string like \"10m\"")
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return goerr.Wrap(err, "invalid duration", goerr.V("value", raw))
	}
	*x = Duration(d)
	return nil
}

// Duration returns the wrapped standard library value.
func (x Duration) Duration() time.Duration {
	return time.Duration(x)
}

// Trigger declares which pushed tags start the pipeline. Patterns use
// path.Match syntax and are matched against the bare tag name.
type Trigger struct {
	Tags []string `yaml:"tags"`
}

// Step is one unit of work. Exactly one of Run (a shell command) or Uses
// (a builtin action) must be set.
type Step struct {
	Name      string            `yaml:"name"`
	Run       string            `yaml:"run"`
	Uses      ActionType        `yaml:"uses"`
	With      map[string]string `yaml:"with"`
	Env       map[string]string `yaml:"env"`
	If        string            `yaml:"if"`
	Secrets   []string          `yaml:"secrets"`
	Artifacts []string          `yaml:"artifacts"`
	WorkDir   string            `yaml:"workdir"`
	Timeout   Duration          `yaml:"timeout"`
}

// IsAction checks whether the step invokes a builtin action.
func (x *Step) IsAction() bool {
	return x.Uses != ""
}

// Concurrency caps parallelism for a pipeline. Each group admits a single
// active run at a time.
type Concurrency struct {
	Group  string            `yaml:"group"`
	Policy ConcurrencyPolicy `yaml:"policy"`
}

// PublishConfig points the publish action at a package index. Token holds
// the NAME of the secret carrying the upload token, never its value. When
// OIDC is set, a short-lived token is minted from the index instead.
type PublishConfig struct {
	Index string       `yaml:"index"`
	Token string       `yaml:"token"`
	OIDC  *OIDCPublish `yaml:"oidc"`
}

// OIDCPublish configures trusted publishing: drover signs an identity
// token and exchanges it for an upload token at the index. MintURL
// defaults to /_/oidc/mint-token on the index host.
type OIDCPublish struct {
	Audience string `yaml:"audience"`
	Subject  string `yaml:"subject"`
	MintURL  string `yaml:"mint_url"`
}

// NotifyConfig declares where run results are announced.
type NotifyConfig struct {
	Slack string `yaml:"slack"` // channel name or ID, empty to disable
}

// Pipeline is the parsed drover.yml. Steps run once per matrix combination
// and must all succeed before Release steps run exactly once.
type Pipeline struct {
	Name        string            `yaml:"name"`
	On          Trigger           `yaml:"on"`
	Env         map[string]string `yaml:"env"`
	Matrix      Matrix            `yaml:"matrix"`
	Steps       []Step            `yaml:"steps"`
	Release     []Step            `yaml:"release"`
	Concurrency Concurrency       `yaml:"concurrency"`
	Publish     PublishConfig     `yaml:"publish"`
	Notify      NotifyConfig      `yaml:"notify"`
}

// Matches checks whether a pushed tag satisfies any trigger pattern.
func (x *Pipeline) Matches(tag string) bool {
	if tag == "" {
		return false
	}
	for _, pattern := range x.On.Tags {
		if ok, err := matchTag(pattern, tag); err == nil && ok {
			return true
		}
	}
	return false
}

// ParsePipeline decodes and validates a pipeline definition. Unknown YAML
// fields are rejected so typos fail at load time instead of being ignored.
func ParsePipeline(data []byte) (*Pipeline, error) {
	var pipeline Pipeline
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pipeline); err != nil {
		return nil, goerr.Wrap(err, "failed to decode pipeline YAML")
	}

	pipeline.applyDefaults()
	if err := pipeline.Validate(); err != nil {
		return nil, err
	}
	return &pipeline, nil
}

// LoadPipeline reads and parses a pipeline definition file.
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read pipeline file", goerr.V("path", path))
	}

	pipeline, err := ParsePipeline(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load pipeline", goerr.V("path", path))
	}
	return pipeline, nil
}

func (x *Pipeline) applyDefaults() {
	if x.Concurrency.Group == "" {
		x.Concurrency.Group = x.Name
	}
	if x.Concurrency.Policy == "" {
		x.Concurrency.Policy = PolicyWait
	}
	for i := range x.Steps {
		if x.Steps[i].Name == "" {
			x.Steps[i].Name = defaultStepName(&x.Steps[i], i)
		}
	}
	for i := range x.Release {
		if x.Release[i].Name == "" {
			x.Release[i].Name = defaultStepName(&x.Release[i], len(x.Steps)+i)
		}
	}
}

func defaultStepName(step *Step, idx int) string {
	if step.Uses != "" {
		return string(step.Uses)
	}
	return fmt.Sprintf("step-%d", idx+1)
}

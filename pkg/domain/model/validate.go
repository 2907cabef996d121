package model

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// identRe constrains matrix keys, env names and secret names. They all end
// up as environment variable fragments, so shell identifier rules apply.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var eventFields = map[string]bool{
	"tag":    true,
	"ref":    true,
	"sha":    true,
	"repo":   true,
	"owner":  true,
	"sender": true,
}

func matchTag(pattern, tag string) (bool, error) {
	return path.Match(pattern, tag)
}

// Validate checks the pipeline for structural problems: missing or
// conflicting step fields, unknown actions, undeclared matrix keys or
// event fields in placeholders and conditions, and incomplete publish
// configuration. All findings are joined into one error so the validate
// command can report everything at once.
func (x *Pipeline) Validate() error {
	var issues []error
	report := func(format string, args ...any) {
		issues = append(issues, fmt.Errorf(format, args...))
	}

	if x.Name == "" {
		report("name is required")
	}
	if len(x.On.Tags) == 0 {
		report("on.tags must declare at least one tag pattern")
	}
	for _, pattern := range x.On.Tags {
		if _, err := path.Match(pattern, "probe"); err != nil {
			report("on.tags: malformed pattern %q", pattern)
		}
	}

	for key, values := range x.Matrix {
		if !identRe.MatchString(key) {
			report("matrix: key %q must be a valid identifier", key)
		}
		if len(values) == 0 {
			report("matrix.%s: needs at least one value", key)
		}
		for _, v := range values {
			if v == "" {
				report("matrix.%s: empty value", key)
			}
		}
	}

	if len(x.Steps) == 0 {
		report("steps must declare at least one step")
	}

	seen := map[string]string{}
	checkName := func(name, pos string) {
		if prev, ok := seen[name]; ok {
			report("%s: step name %q already used by %s", pos, name, prev)
			return
		}
		seen[name] = pos
	}

	for i := range x.Steps {
		pos := fmt.Sprintf("steps[%d]", i)
		checkName(x.Steps[i].Name, pos)
		x.validateStep(&x.Steps[i], pos, true, report)
	}
	for i := range x.Release {
		pos := fmt.Sprintf("release[%d]", i)
		checkName(x.Release[i].Name, pos)
		x.validateStep(&x.Release[i], pos, false, report)
	}

	switch x.Concurrency.Policy {
	case PolicyWait, PolicySkip:
	default:
		report("concurrency.policy must be %q or %q, got %q", PolicyWait, PolicySkip, x.Concurrency.Policy)
	}

	x.validateEnv(report)
	x.validatePublish(report)

	if len(issues) > 0 {
		return goerr.Wrap(errors.Join(issues...), "invalid pipeline")
	}
	return nil
}

func (x *Pipeline) validateStep(step *Step, pos string, matrixed bool, report func(string, ...any)) {
	switch {
	case step.Run == "" && step.Uses == "":
		report("%s: either run or uses is required", pos)
	case step.Run != "" && step.Uses != "":
		report("%s: run and uses are mutually exclusive", pos)
	case step.Uses != "" && !step.Uses.Known():
		report("%s: unknown action %q", pos, step.Uses)
	}
	if step.Uses == "" && len(step.With) > 0 {
		report("%s: with requires uses", pos)
	}

	if err := validateCondition(step.If, x.conditionIdents(matrixed)); err != nil {
		report("%s: %s", pos, err)
	}

	for key := range step.Env {
		if !identRe.MatchString(key) {
			report("%s: env key %q must be a valid identifier", pos, key)
		}
	}
	for _, name := range step.Secrets {
		if !identRe.MatchString(name) {
			report("%s: secret name %q must be an environment variable name", pos, name)
		}
	}
	for _, pattern := range step.Artifacts {
		if _, err := path.Match(pattern, "probe"); err != nil {
			report("%s: malformed artifact pattern %q", pos, pattern)
		}
	}
	if step.Timeout < 0 {
		report("%s: timeout must not be negative", pos)
	}

	for _, ref := range stepPlaceholders(step) {
		if err := x.checkPlaceholder(ref, matrixed); err != nil {
			report("%s: %s", pos, err)
		}
	}
}

func stepPlaceholders(step *Step) []string {
	var refs []string
	refs = append(refs, collectPlaceholders(step.Run)...)
	refs = append(refs, collectPlaceholders(step.WorkDir)...)
	for _, v := range step.With {
		refs = append(refs, collectPlaceholders(v)...)
	}
	for _, v := range step.Env {
		refs = append(refs, collectPlaceholders(v)...)
	}
	for _, v := range step.Artifacts {
		refs = append(refs, collectPlaceholders(v)...)
	}
	return refs
}

func (x *Pipeline) checkPlaceholder(ref string, allowMatrix bool) error {
	switch {
	case strings.HasPrefix(ref, "matrix."):
		key := strings.TrimPrefix(ref, "matrix.")
		if !allowMatrix {
			return fmt.Errorf("${%s}: matrix values are not available in this scope", ref)
		}
		if _, ok := x.Matrix[key]; !ok {
			return fmt.Errorf("${%s}: matrix key %q is not declared", ref, key)
		}
	case strings.HasPrefix(ref, "event."):
		if !eventFields[strings.TrimPrefix(ref, "event.")] {
			return fmt.Errorf("${%s}: unknown event field", ref)
		}
	case ref == "run.id":
	default:
		return fmt.Errorf("${%s}: unknown reference", ref)
	}
	return nil
}

func (x *Pipeline) validateEnv(report func(string, ...any)) {
	for key, v := range x.Env {
		if !identRe.MatchString(key) {
			report("env: key %q must be a valid identifier", key)
		}
		for _, ref := range collectPlaceholders(v) {
			if err := x.checkPlaceholder(ref, false); err != nil {
				report("env.%s: %s", key, err)
			}
		}
	}
}

func (x *Pipeline) validatePublish(report func(string, ...any)) {
	if !x.hasPublishStep() {
		return
	}

	if x.Publish.Index == "" {
		report("publish.index is required when a publish step is declared")
	} else if u, err := url.Parse(x.Publish.Index); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		report("publish.index must be an http(s) URL, got %q", x.Publish.Index)
	}

	hasToken := x.Publish.Token != ""
	hasOIDC := x.Publish.OIDC != nil
	switch {
	case !hasToken && !hasOIDC:
		report("publish: either token or oidc is required")
	case hasToken && hasOIDC:
		report("publish: token and oidc are mutually exclusive")
	}
	if hasToken && !identRe.MatchString(x.Publish.Token) {
		report("publish.token must be an environment variable name, got %q", x.Publish.Token)
	}
	if hasOIDC && x.Publish.OIDC.Audience == "" {
		report("publish.oidc.audience is required")
	}
	if hasOIDC && x.Publish.OIDC.MintURL != "" {
		if u, err := url.Parse(x.Publish.OIDC.MintURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			report("publish.oidc.mint_url must be an http(s) URL, got %q", x.Publish.OIDC.MintURL)
		}
	}
}

func (x *Pipeline) hasPublishStep() bool {
	for i := range x.Steps {
		if x.Steps[i].Uses == ActionPublish {
			return true
		}
	}
	for i := range x.Release {
		if x.Release[i].Uses == ActionPublish {
			return true
		}
	}
	return false
}

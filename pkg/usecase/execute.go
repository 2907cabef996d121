package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

// stepContext carries mutable state through one sequence of steps: the
// pipeline snapshot the run started with, the work tree selected by
// checkout, extra env entries added by setup actions, and cleanup hooks
// for temporary directories.
type stepContext struct {
	pipeline *model.Pipeline
	run      *model.Run
	combo    model.Combination
	dir      string
	extraEnv []string
	cleanup  []func()
}

func (sc *stepContext) comboKey() string {
	if sc.combo == nil {
		return ""
	}
	return sc.combo.Key()
}

func (sc *stepContext) close() {
	for i := len(sc.cleanup) - 1; i >= 0; i-- {
		sc.cleanup[i]()
	}
}

// executeRun runs every matrix combination in order, then the release
// steps. The first failure stops the run.
func (x *UseCase) executeRun(ctx context.Context, pipeline *model.Pipeline, run *model.Run) error {
	logger := ctxlog.From(ctx)

	for _, combo := range pipeline.Matrix.Expand() {
		if key := combo.Key(); key != "" {
			logger.Info("Starting matrix combination", "combination", key)
		}
		if err := x.runPhase(ctx, pipeline, run, combo, pipeline.Steps); err != nil {
			return err
		}
	}

	if len(pipeline.Release) > 0 {
		logger.Info("Starting release steps")
		if err := x.runPhase(ctx, pipeline, run, nil, pipeline.Release); err != nil {
			return err
		}
	}

	return nil
}

// runPhase executes steps sequentially for one combination (nil for the
// release phase). On failure the remaining steps of the phase are
// recorded as skipped.
func (x *UseCase) runPhase(ctx context.Context, pipeline *model.Pipeline, run *model.Run, combo model.Combination, steps []model.Step) error {
	sc := &stepContext{pipeline: pipeline, run: run, combo: combo, dir: x.localSource}
	defer sc.close()

	for i := range steps {
		if err := x.runStep(ctx, sc, &steps[i]); err != nil {
			x.recordSkipped(ctx, sc, steps[i+1:])
			return err
		}
	}
	return nil
}

func (x *UseCase) runStep(ctx context.Context, sc *stepContext, step *model.Step) error {
	logger := ctxlog.From(ctx)

	ok, err := model.EvalCondition(step.If, conditionParams(sc.run, sc.combo))
	if err != nil {
		return goerr.Wrap(err, "failed to evaluate step condition", goerr.V("step", step.Name))
	}
	if !ok {
		logger.Info("Skipping step: condition is false",
			"step", step.Name,
			"combination", sc.comboKey(),
			"condition", step.If,
		)
		x.appendResult(ctx, sc.run, model.StepResult{
			Name:        step.Name,
			Combination: sc.comboKey(),
			Status:      types.StepStatusSkipped,
		})
		return nil
	}

	resolved := resolveStep(step, sc)
	started := time.Now()

	var result *model.CommandResult
	var runErr error
	if resolved.IsAction() {
		result, runErr = x.runAction(ctx, sc, resolved)
	} else {
		env, envErr := x.buildEnv(sc, resolved)
		if envErr != nil {
			runErr = envErr
		} else {
			result, runErr = x.runner.Run(ctx, &model.Command{
				Script:  resolved.Run,
				Dir:     stepDir(sc, resolved),
				Env:     env,
				Timeout: resolved.Timeout.Duration(),
			})
		}
	}

	record := model.StepResult{
		Name:        step.Name,
		Combination: sc.comboKey(),
		Status:      types.StepStatusSucceeded,
		StartedAt:   started,
	}
	if result != nil {
		record.ExitCode = result.ExitCode
		record.Output = x.redact(result.Output)
		record.Wall = result.Wall
		record.CPU = result.CPU
	} else {
		record.Wall = time.Since(started)
	}
	if runErr != nil {
		record.Status = types.StepStatusFailed
		if record.ExitCode == 0 {
			record.ExitCode = 1
		}
	}

	logger.Info("Step finished",
		"step", step.Name,
		"combination", sc.comboKey(),
		"status", record.Status,
		"exit_code", record.ExitCode,
		"wall_ms", record.Wall.Milliseconds(),
		"cpu_ms", record.CPU.Milliseconds(),
	)

	x.appendResult(ctx, sc.run, record)

	if runErr != nil {
		return goerr.Wrap(runErr, "step failed",
			goerr.V("step", step.Name),
			goerr.V("combination", sc.comboKey()),
		)
	}

	if len(resolved.Artifacts) > 0 {
		if err := x.captureArtifacts(ctx, sc, resolved); err != nil {
			return goerr.Wrap(err, "failed to capture artifacts", goerr.V("step", step.Name))
		}
	}

	return nil
}

// resolveStep returns a copy of the step with placeholder references
// expanded for the current run and combination.
func resolveStep(step *model.Step, sc *stepContext) *model.Step {
	vars := runVars(sc.run, sc.combo)

	resolved := *step
	resolved.Run = model.ExpandPlaceholders(step.Run, vars)
	resolved.WorkDir = model.ExpandPlaceholders(step.WorkDir, vars)

	if len(step.With) > 0 {
		with := make(map[string]string, len(step.With))
		for k, v := range step.With {
			with[k] = model.ExpandPlaceholders(v, vars)
		}
		resolved.With = with
	}
	if len(step.Env) > 0 {
		env := make(map[string]string, len(step.Env))
		for k, v := range step.Env {
			env[k] = model.ExpandPlaceholders(v, vars)
		}
		resolved.Env = env
	}
	if len(step.Artifacts) > 0 {
		patterns := make([]string, len(step.Artifacts))
		for i, p := range step.Artifacts {
			patterns[i] = model.ExpandPlaceholders(p, vars)
		}
		resolved.Artifacts = patterns
	}

	return &resolved
}

// runVars builds the placeholder table for ${event.*}, ${matrix.*} and
// ${run.*} references.
func runVars(run *model.Run, combo model.Combination) map[string]string {
	event := &run.Event
	vars := map[string]string{
		"event.tag":    event.Tag(),
		"event.ref":    event.Ref,
		"event.sha":    event.SHA,
		"event.repo":   event.FullRepo(),
		"event.owner":  event.Owner,
		"event.sender": event.Sender,
		"run.id":       string(run.ID),
	}
	for key, value := range combo {
		vars["matrix."+key] = value
	}
	return vars
}

// conditionParams builds the identifier table for step `if` expressions.
func conditionParams(run *model.Run, combo model.Combination) map[string]any {
	event := &run.Event
	params := map[string]any{
		"event_tag":    event.Tag(),
		"event_ref":    event.Ref,
		"event_sha":    event.SHA,
		"event_repo":   event.FullRepo(),
		"event_owner":  event.Owner,
		"event_sender": event.Sender,
	}
	for key, value := range combo {
		params["matrix_"+key] = value
	}
	return params
}

// buildEnv assembles the process environment for a step. Later entries
// win on duplicate names, so the order implements the precedence:
// process env < pipeline env < matrix < setup actions < step env < secrets.
func (x *UseCase) buildEnv(sc *stepContext, step *model.Step) ([]string, error) {
	vars := runVars(sc.run, sc.combo)

	env := os.Environ()
	add := func(key, value string) {
		env = append(env, key+"="+value)
	}

	for _, key := range sortedKeys(sc.pipeline.Env) {
		add(key, model.ExpandPlaceholders(sc.pipeline.Env[key], vars))
	}
	for _, key := range sortedKeys(sc.combo) {
		add("MATRIX_"+strings.ToUpper(key), sc.combo[key])
	}

	add("DROVER_RUN_ID", string(sc.run.ID))
	add("DROVER_TAG", sc.run.Event.Tag())
	add("DROVER_REF", sc.run.Event.Ref)
	add("DROVER_SHA", sc.run.Event.SHA)
	add("DROVER_REPO", sc.run.Event.FullRepo())

	env = append(env, sc.extraEnv...)

	for _, key := range sortedKeys(step.Env) {
		add(key, step.Env[key])
	}

	for _, name := range step.Secrets {
		if x.secrets == nil {
			return nil, goerr.New("secret source is not configured", goerr.V("name", name))
		}
		value, ok := x.secrets.Lookup(name)
		if !ok {
			return nil, goerr.New("secret is not defined", goerr.V("name", name))
		}
		add(name, value)
	}

	return env, nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// stepDir resolves the working directory for a step: the step work_dir
// relative to the checked out tree, or the tree itself.
func stepDir(sc *stepContext, step *model.Step) string {
	if step.WorkDir == "" {
		return sc.dir
	}
	if filepath.IsAbs(step.WorkDir) {
		return step.WorkDir
	}
	return filepath.Join(sc.dir, step.WorkDir)
}

// captureArtifacts globs the step artifact patterns under the work tree
// and saves every match to the artifact store. A pattern that matches
// nothing fails the step: a build that silently produced no output would
// otherwise surface much later at publish.
func (x *UseCase) captureArtifacts(ctx context.Context, sc *stepContext, step *model.Step) error {
	if x.artifacts == nil {
		return goerr.New("artifact store is not configured")
	}
	logger := ctxlog.From(ctx)
	baseDir := stepDir(sc, step)

	for _, pattern := range step.Artifacts {
		matches, err := filepath.Glob(filepath.Join(baseDir, pattern))
		if err != nil {
			return goerr.Wrap(err, "malformed artifact pattern", goerr.V("pattern", pattern))
		}
		if len(matches) == 0 {
			return goerr.New("artifact pattern matched no files",
				goerr.V("pattern", pattern),
				goerr.V("dir", baseDir),
			)
		}

		for _, match := range matches {
			artifact, err := x.saveArtifact(ctx, sc.run, match)
			if err != nil {
				return err
			}
			if artifact == nil {
				continue
			}
			sc.run.Artifacts = append(sc.run.Artifacts, *artifact)
			logger.Info("Captured artifact",
				"name", artifact.Name,
				"size", artifact.Size,
				"sha256", artifact.SHA256,
			)
		}
	}

	x.persist(ctx, sc.run)
	return nil
}

func (x *UseCase) saveArtifact(ctx context.Context, run *model.Run, path string) (*model.Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to stat artifact", goerr.V("path", path))
	}
	if info.IsDir() {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open artifact", goerr.V("path", path))
	}
	defer f.Close()

	hash := sha256.New()
	name := filepath.Base(path)
	location, err := x.artifacts.Save(ctx, run.ID, name, io.TeeReader(f, hash))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to save artifact", goerr.V("name", name))
	}

	return &model.Artifact{
		Name:   name,
		Path:   location,
		Size:   info.Size(),
		SHA256: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// recordSkipped marks the remaining steps of a failed phase as skipped.
func (x *UseCase) recordSkipped(ctx context.Context, sc *stepContext, rest []model.Step) {
	if len(rest) == 0 {
		return
	}
	for i := range rest {
		sc.run.Steps = append(sc.run.Steps, model.StepResult{
			Name:        rest[i].Name,
			Combination: sc.comboKey(),
			Status:      types.StepStatusSkipped,
		})
	}
	x.persist(ctx, sc.run)
}

func (x *UseCase) appendResult(ctx context.Context, run *model.Run, record model.StepResult) {
	run.Steps = append(run.Steps, record)
	x.persist(ctx, run)
}

func (x *UseCase) redact(output string) string {
	if x.secrets == nil {
		return output
	}
	return redactSecrets(output, x.secrets.Values())
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}

package usecase

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// runAction executes a built-in action step. Actions produce a synthetic
// command result so they appear in the run record like script steps.
func (x *UseCase) runAction(ctx context.Context, sc *stepContext, step *model.Step) (*model.CommandResult, error) {
	started := time.Now()

	var output string
	var err error
	switch step.Uses {
	case model.ActionCheckout:
		output, err = x.actionCheckout(ctx, sc, step)
	case model.ActionSetupPython:
		output, err = x.actionSetupPython(ctx, sc, step)
	case model.ActionVerifyVersion:
		output, err = x.actionVerifyVersion(ctx, sc, step)
	case model.ActionPublish:
		output, err = x.actionPublish(ctx, sc, step)
	default:
		return nil, goerr.New("unknown action", goerr.V("uses", step.Uses))
	}

	result := &model.CommandResult{
		Output: output,
		Wall:   time.Since(started),
	}
	if err != nil {
		result.ExitCode = 1
		return result, err
	}
	return result, nil
}

// actionCheckout materializes the pushed commit as the work tree for the
// following steps. Without a GitHub client it falls back to the local
// source directory.
func (x *UseCase) actionCheckout(ctx context.Context, sc *stepContext, _ *model.Step) (string, error) {
	event := &sc.run.Event

	if x.github == nil {
		if x.localSource == "" {
			return "", goerr.New("checkout requires a GitHub client or a local source directory")
		}
		sc.dir = x.localSource
		return fmt.Sprintf("using local source at %s", sc.dir), nil
	}

	ctxlog.From(ctx).Info("Downloading source archive",
		"repo", event.FullRepo(),
		"sha", shortSHA(event.SHA),
	)

	zipData, err := x.github.DownloadZipball(ctx, event.Owner, event.Repo, event.SHA)
	if err != nil {
		return "", goerr.Wrap(err, "failed to download source archive")
	}

	checkout, err := extractArchive(ctx, zipData)
	if err != nil {
		return "", err
	}
	sc.cleanup = append(sc.cleanup, func() {
		if err := os.RemoveAll(checkout.Dir); err != nil {
			ctxlog.From(ctx).Warn("Failed to remove checkout directory", "error", err, "dir", checkout.Dir)
		}
	})
	sc.dir = checkout.Dir

	return fmt.Sprintf("checked out %s@%s (%d files, %d bytes)",
		event.FullRepo(), shortSHA(event.SHA), checkout.Files, checkout.Size), nil
}

// actionSetupPython resolves the interpreter for the requested version
// and exports PYTHON for later steps.
func (x *UseCase) actionSetupPython(ctx context.Context, sc *stepContext, step *model.Step) (string, error) {
	version := step.With["version"]
	if version == "" {
		return "", goerr.New("setup-python requires with.version")
	}

	path, err := lookupInterpreter(version)
	if err != nil {
		return "", err
	}

	probe, err := x.runner.Run(ctx, &model.Command{
		Script: shellquote.Join(path, "--version"),
		Dir:    sc.dir,
		Env:    os.Environ(),
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to probe interpreter", goerr.V("path", path))
	}

	reported := strings.TrimSpace(probe.Output)
	if !interpreterMatches(reported, version) {
		return "", goerr.New("interpreter version mismatch",
			goerr.V("want", version),
			goerr.V("got", reported),
			goerr.V("path", path),
		)
	}

	sc.extraEnv = append(sc.extraEnv, "PYTHON="+path)
	return fmt.Sprintf("using %s (%s)", path, reported), nil
}

// lookupInterpreter prefers the minor-versioned binary and falls back to
// the unversioned ones.
func lookupInterpreter(version string) (string, error) {
	candidates := []string{"python" + version, "python3", "python"}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", goerr.New("no python interpreter found", goerr.V("version", version))
}

// interpreterMatches checks the `python --version` output against the
// requested version, accepting more specific patch releases.
func interpreterMatches(reported, version string) bool {
	fields := strings.Fields(reported)
	if len(fields) < 2 {
		return false
	}
	actual := fields[len(fields)-1]
	return actual == version || strings.HasPrefix(actual, version+".")
}

// actionVerifyVersion checks that the project metadata version matches
// the pushed tag, so a stale pyproject.toml cannot be released.
func (x *UseCase) actionVerifyVersion(_ context.Context, sc *stepContext, step *model.Step) (string, error) {
	file := step.With["file"]
	if file == "" {
		file = "pyproject.toml"
	}
	path := filepath.Join(stepDir(sc, step), file)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read project metadata", goerr.V("path", path))
	}

	version, err := projectVersion(data)
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve project version", goerr.V("path", path))
	}

	tag := sc.run.Event.Tag()
	if version != tag && version != strings.TrimPrefix(tag, "v") {
		return "", goerr.New("project version does not match tag",
			goerr.V("version", version),
			goerr.V("tag", tag),
		)
	}

	return fmt.Sprintf("version %s matches tag %s", version, tag), nil
}

// projectVersion extracts the version from pyproject-style TOML. The
// [project] table wins over the poetry tool table.
func projectVersion(data []byte) (string, error) {
	var doc struct {
		Project struct {
			Version string `toml:"version"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Version string `toml:"version"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return "", goerr.Wrap(err, "failed to parse TOML")
	}

	if doc.Project.Version != "" {
		return doc.Project.Version, nil
	}
	if doc.Tool.Poetry.Version != "" {
		return doc.Tool.Poetry.Version, nil
	}
	return "", goerr.New("no version declared in project metadata")
}

// actionPublish uploads every captured artifact to the package index.
func (x *UseCase) actionPublish(ctx context.Context, sc *stepContext, _ *model.Step) (string, error) {
	if x.publisher == nil {
		return "", goerr.New("index publisher is not configured")
	}
	if x.artifacts == nil {
		return "", goerr.New("artifact store is not configured")
	}
	if len(sc.run.Artifacts) == 0 {
		return "", goerr.New("no artifacts to publish: a build step must capture artifacts first")
	}

	cfg := &sc.pipeline.Publish
	token, err := x.publishToken(ctx, cfg, &sc.run.Event)
	if err != nil {
		return "", err
	}

	logger := ctxlog.From(ctx)
	var names []string
	for i := range sc.run.Artifacts {
		artifact := &sc.run.Artifacts[i]

		r, err := x.artifacts.Open(ctx, artifact.Path)
		if err != nil {
			return "", goerr.Wrap(err, "failed to open artifact", goerr.V("name", artifact.Name))
		}
		err = x.publisher.Upload(ctx, cfg, artifact, r, token)
		_ = r.Close()
		if err != nil {
			return "", goerr.Wrap(err, "failed to upload artifact", goerr.V("name", artifact.Name))
		}

		names = append(names, artifact.Name)
		logger.Info("Uploaded artifact to package index",
			"name", artifact.Name,
			"index", cfg.Index,
		)
	}

	return fmt.Sprintf("uploaded %d artifact(s) to %s: %s",
		len(names), cfg.Index, strings.Join(names, ", ")), nil
}

// publishToken resolves the upload credential: a minted OIDC-exchanged
// token when configured, otherwise the named secret.
func (x *UseCase) publishToken(ctx context.Context, cfg *model.PublishConfig, event *model.PushEvent) (string, error) {
	if cfg.OIDC != nil {
		token, err := x.publisher.MintToken(ctx, cfg, event)
		if err != nil {
			return "", goerr.Wrap(err, "failed to mint upload token")
		}
		return token, nil
	}

	if x.secrets == nil {
		return "", goerr.New("secret source is not configured")
	}
	token, ok := x.secrets.Lookup(cfg.Token)
	if !ok || token == "" {
		return "", goerr.New("publish token secret is not defined", goerr.V("name", cfg.Token))
	}
	return token, nil
}

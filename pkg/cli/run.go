package cli

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/cli/config"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/infra/runstore"
	"github.com/m-mizutani/drover/pkg/usecase"
)

func cmdRun() *cli.Command {
	var (
		pipelineCfg config.Pipeline
		artifactCfg config.Artifact
		runnerCfg   config.Runner
		indexCfg    config.Index
		tag         string
		repo        string
		sha         string
		source      string
	)

	flags := append(pipelineCfg.Flags(), artifactCfg.Flags()...)
	flags = append(flags, runnerCfg.Flags()...)
	flags = append(flags, indexCfg.Flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "tag",
			Aliases:     []string{"t"},
			Usage:       "Tag to run the pipeline for",
			Required:    true,
			Destination: &tag,
		},
		&cli.StringFlag{
			Name:        "repo",
			Usage:       "Repository in owner/name form",
			Value:       "local/local",
			Destination: &repo,
		},
		&cli.StringFlag{
			Name:        "sha",
			Usage:       "Commit SHA recorded for the run",
			Value:       "local",
			Destination: &sha,
		},
		&cli.StringFlag{
			Name:        "source",
			Usage:       "Source directory steps run in",
			Value:       ".",
			Destination: &source,
		},
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Run the pipeline once against a local working copy",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			pipeline, err := pipelineCfg.Load()
			if err != nil {
				return err
			}

			owner, name, ok := strings.Cut(repo, "/")
			if !ok || owner == "" || name == "" {
				return goerr.New("repo must be in owner/name form", goerr.V("repo", repo))
			}

			runner, err := runnerCfg.Configure()
			if err != nil {
				return err
			}
			artifacts, err := artifactCfg.Configure(ctx)
			if err != nil {
				return err
			}
			publisher, err := indexCfg.Configure()
			if err != nil {
				return err
			}

			uc := usecase.New(pipeline, runner, runstore.NewMemory(),
				usecase.WithArtifactStore(artifacts),
				usecase.WithSecretSource(runnerCfg.Secrets()),
				usecase.WithPublisher(publisher),
				usecase.WithLocalSource(source),
			)

			event := &model.PushEvent{
				Owner:  owner,
				Repo:   name,
				Ref:    "refs/tags/" + tag,
				SHA:    sha,
				Sender: "cli",
			}

			run, runErr := uc.HandlePush(ctx, event)
			if run == nil && runErr == nil {
				return goerr.New("tag does not match the trigger patterns",
					goerr.V("tag", tag),
					goerr.V("patterns", pipeline.On.Tags),
				)
			}
			if run != nil {
				printRun(run)
			}
			return runErr
		},
	}
}

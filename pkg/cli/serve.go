package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/cli/config"
	githubctrl "github.com/m-mizutani/drover/pkg/controller/github"
	controller "github.com/m-mizutani/drover/pkg/controller/http"
	"github.com/m-mizutani/drover/pkg/domain/model"
	ghclient "github.com/m-mizutani/drover/pkg/infra/github"
	"github.com/m-mizutani/drover/pkg/usecase"
	"github.com/m-mizutani/drover/pkg/utils/async"
)

// drainTimeout bounds how long shutdown waits for dispatched pipeline
// runs to finish after the HTTP server has stopped accepting deliveries.
const drainTimeout = 10 * time.Minute

func cmdServe() *cli.Command {
	var (
		serverCfg   config.Server
		githubCfg   config.GitHub
		pipelineCfg config.Pipeline
		storeCfg    config.Store
		artifactCfg config.Artifact
		runnerCfg   config.Runner
		indexCfg    config.Index
		slackCfg    config.Slack
		geminiCfg   config.Gemini
		watch       bool
	)

	flags := append(serverCfg.Flags(), githubCfg.Flags()...)
	flags = append(flags, pipelineCfg.Flags()...)
	flags = append(flags, storeCfg.Flags()...)
	flags = append(flags, artifactCfg.Flags()...)
	flags = append(flags, runnerCfg.Flags()...)
	flags = append(flags, indexCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, &cli.BoolFlag{
		Name:        "watch",
		Usage:       "Reload the pipeline definition when the file changes",
		Destination: &watch,
		Sources:     cli.EnvVars("DROVER_WATCH"),
	})

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the webhook server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			if githubCfg.WebhookSecret == "" {
				return goerr.New("github-webhook-secret is required for serve")
			}

			pipeline, err := pipelineCfg.Load()
			if err != nil {
				return err
			}
			logger.Info("Loaded pipeline definition",
				slog.String("path", pipelineCfg.Path),
				slog.String("pipeline", pipeline.Name),
				slog.Any("tags", pipeline.On.Tags),
			)

			store, err := storeCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					logger.Warn("Failed to close run store", slog.Any("error", err))
				}
			}()

			artifacts, err := artifactCfg.Configure(ctx)
			if err != nil {
				return err
			}

			runner, err := runnerCfg.Configure()
			if err != nil {
				return err
			}

			publisher, err := indexCfg.Configure()
			if err != nil {
				return err
			}

			opts := []usecase.Option{
				usecase.WithArtifactStore(artifacts),
				usecase.WithSecretSource(runnerCfg.Secrets()),
				usecase.WithPublisher(publisher),
			}

			gh, err := githubCfg.Client()
			if err != nil {
				return err
			}
			if gh != nil {
				var statusOpts []ghclient.StatusOption
				if serverCfg.BaseURL != "" {
					statusOpts = append(statusOpts, ghclient.WithRunBaseURL(serverCfg.BaseURL))
				}
				opts = append(opts,
					usecase.WithGitHubClient(gh),
					usecase.WithStatusReporter(ghclient.NewStatusReporter(gh, statusOpts...)),
				)
			} else {
				logger.Warn("No GitHub App configured: source checkout and commit statuses are disabled")
			}

			if notifier := slackCfg.Configure(); notifier != nil {
				opts = append(opts, usecase.WithNotifier(notifier))
			}

			llm, err := geminiCfg.Configure(ctx)
			if err != nil {
				return err
			}
			if llm != nil {
				opts = append(opts, usecase.WithSummarizer(usecase.NewFailureSummarizer(llm)))
			}

			uc := usecase.New(pipeline, runner, store, opts...)

			if watch {
				stop, err := watchPipeline(ctx, pipelineCfg.Path, uc)
				if err != nil {
					return err
				}
				defer stop()
			}

			// Track dispatched runs so shutdown can drain them.
			tracker := &async.Tracker{}
			processor := githubctrl.NewEventProcessor(uc, tracker)
			webhookUC := usecase.NewWebhook()

			server, err := controller.NewServer(
				ctx,
				webhookUC,
				processor,
				uc,
				controller.WithAddr(serverCfg.Addr),
				controller.WithWebhookSecret(githubCfg.WebhookSecret),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			// Start server in goroutine
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Waiting for active pipeline runs to finish")
			drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
			defer cancelDrain()
			if err := tracker.Wait(drainCtx); err != nil {
				logger.Warn("Shutting down with pipeline runs still active", slog.Any("error", err))
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}

// watchPipeline reloads the pipeline definition whenever the file
// changes. A broken edit keeps the previous definition running.
func watchPipeline(ctx context.Context, path string, uc *usecase.UseCase) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create file watcher")
	}

	// Editors replace the file on save, which drops a watch set on the
	// file itself. Watch the directory and filter by name instead.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, goerr.Wrap(err, "failed to watch pipeline directory", goerr.V("dir", dir))
	}

	target := filepath.Clean(path)
	logger := ctxlog.From(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				pipeline, err := model.LoadPipeline(path)
				if err != nil {
					logger.Error("Pipeline reload failed, keeping previous definition", slog.Any("error", err))
					continue
				}
				uc.SetPipeline(pipeline)
				logger.Info("Pipeline definition reloaded", slog.String("pipeline", pipeline.Name))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Pipeline watcher error", slog.Any("error", err))
			}
		}
	}()

	return func() { _ = watcher.Close() }, nil
}

package usecase

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
)

// UseCase drives pipeline runs: it decides whether a push event triggers
// the pipeline, executes the steps and records the result. It implements
// both TriggerUseCase and RunQueryUseCase.
type UseCase struct {
	pipelineMu sync.RWMutex
	pipeline   *model.Pipeline

	runner     interfaces.CommandRunner
	store      interfaces.RunStore
	artifacts  interfaces.ArtifactStore
	secrets    interfaces.SecretSource
	publisher  interfaces.IndexPublisher
	github     interfaces.GitHubClient
	status     interfaces.StatusReporter
	notifier   interfaces.Notifier
	summarizer interfaces.Summarizer

	// localSource points checkout at a directory instead of a GitHub
	// archive. Used by one-shot runs against a local working copy.
	localSource string

	gateMu sync.Mutex
	gates  map[string]*semaphore.Weighted
	active atomic.Int64

	seenMu    sync.Mutex
	seen      map[string]struct{}
	seenOrder []string
}

// Option is a functional option for UseCase configuration
type Option func(*UseCase)

// WithArtifactStore sets the store for captured build outputs.
func WithArtifactStore(store interfaces.ArtifactStore) Option {
	return func(x *UseCase) {
		x.artifacts = store
	}
}

// WithSecretSource sets where step secrets are resolved from.
func WithSecretSource(secrets interfaces.SecretSource) Option {
	return func(x *UseCase) {
		x.secrets = secrets
	}
}

// WithPublisher sets the package index client used by the publish action.
func WithPublisher(publisher interfaces.IndexPublisher) Option {
	return func(x *UseCase) {
		x.publisher = publisher
	}
}

// WithGitHubClient sets the client used by the checkout action.
func WithGitHubClient(client interfaces.GitHubClient) Option {
	return func(x *UseCase) {
		x.github = client
	}
}

// WithStatusReporter enables commit status reporting.
func WithStatusReporter(reporter interfaces.StatusReporter) Option {
	return func(x *UseCase) {
		x.status = reporter
	}
}

// WithNotifier enables run result notification.
func WithNotifier(notifier interfaces.Notifier) Option {
	return func(x *UseCase) {
		x.notifier = notifier
	}
}

// WithSummarizer enables LLM failure analysis on failed runs.
func WithSummarizer(summarizer interfaces.Summarizer) Option {
	return func(x *UseCase) {
		x.summarizer = summarizer
	}
}

// WithLocalSource makes the checkout action use a local directory instead
// of downloading the pushed commit.
func WithLocalSource(dir string) Option {
	return func(x *UseCase) {
		x.localSource = dir
	}
}

// New creates a UseCase for one pipeline definition.
func New(pipeline *model.Pipeline, runner interfaces.CommandRunner, store interfaces.RunStore, opts ...Option) *UseCase {
	x := &UseCase{
		pipeline: pipeline,
		runner:   runner,
		store:    store,
		gates:    map[string]*semaphore.Weighted{},
		seen:     map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Pipeline returns the current pipeline definition.
func (x *UseCase) Pipeline() *model.Pipeline {
	x.pipelineMu.RLock()
	defer x.pipelineMu.RUnlock()
	return x.pipeline
}

// SetPipeline swaps the pipeline definition. Runs already in flight keep
// the definition they started with; new events see the replacement.
func (x *UseCase) SetPipeline(pipeline *model.Pipeline) {
	x.pipelineMu.Lock()
	defer x.pipelineMu.Unlock()
	x.pipeline = pipeline
}

// gate returns the semaphore for a concurrency group. Each group admits
// one run at a time.
func (x *UseCase) gate(group string) *semaphore.Weighted {
	x.gateMu.Lock()
	defer x.gateMu.Unlock()

	gate, ok := x.gates[group]
	if !ok {
		gate = semaphore.NewWeighted(1)
		x.gates[group] = gate
	}
	return gate
}

package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/document-classifier/internal/config"
	"github.com/kirillkom/document-classifier/internal/core/ports"
	"github.com/kirillkom/document-classifier/internal/core/usecase"
	"github.com/kirillkom/document-classifier/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-classifier/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/document-classifier/internal/infrastructure/storage/localfs"
)

// Jobs groups the asynchronous classification collaborators. It is nil when
// the service runs synchronous-only.
type Jobs struct {
	Queue     ports.MessageQueue
	Submitter ports.JobSubmitter
	Reader    ports.JobReader
	Processor ports.JobProcessor
}

type App struct {
	Config   config.Config
	Pipeline *Pipeline
	Jobs     *Jobs

	closeFn func()
}

type Options struct {
	Service     string
	Logger      *slog.Logger
	Registerer  prometheus.Registerer
	RequireJobs bool
	// OnQueueLag observes job event delivery delay in the worker.
	OnQueueLag func(time.Duration)
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	pipeline, err := NewPipeline(cfg, PipelineOptions{
		Logger:     opts.Logger,
		Registerer: opts.Registerer,
		Service:    opts.Service,
	})
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Pipeline: pipeline}
	if !cfg.JobsEnabled && !opts.RequireJobs {
		return app, nil
	}

	jobs, closeFn, err := newJobs(ctx, cfg, pipeline, opts)
	if err != nil {
		return nil, err
	}
	app.Jobs = jobs
	app.closeFn = closeFn
	return app, nil
}

func newJobs(ctx context.Context, cfg config.Config, pipeline *Pipeline, opts Options) (*Jobs, func(), error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewJobRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: pipeline.Executor,
		OnQueueLag:         opts.OnQueueLag,
	})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("init message queue: %w", err)
	}

	jobs := &Jobs{
		Queue:     queue,
		Submitter: usecase.NewSubmitJobUseCase(pipeline.Validator, repo, storage, queue),
		Reader:    repo,
		Processor: usecase.NewProcessJobUseCase(repo, storage, pipeline.Classifier),
	}
	return jobs, func() {
		queue.Close()
		_ = db.Close()
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

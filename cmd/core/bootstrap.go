package main

import (
	"context"
	"fmt"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/sceneforge/core/internal/adapters"
	"github.com/sceneforge/core/internal/assembly"
	awsclients "github.com/sceneforge/core/internal/aws"
	"github.com/sceneforge/core/internal/blobstore"
	"github.com/sceneforge/core/internal/concurrency"
	"github.com/sceneforge/core/internal/config"
	"github.com/sceneforge/core/internal/domain"
	"github.com/sceneforge/core/internal/executor"
	"github.com/sceneforge/core/internal/queue"
	"github.com/sceneforge/core/internal/repository"
	"github.com/sceneforge/core/internal/secrets"
	"github.com/sceneforge/core/internal/sweeper"
	"github.com/sceneforge/core/internal/taskstore"
	"github.com/sceneforge/core/internal/worker"
	"github.com/sceneforge/core/pkg/logger"
	"go.uber.org/zap"
)

// app bundles every constructed dependency a subcommand might need, the
// way the teacher's main() built everything inline before handing it to
// api.NewServer — generalized here so five subcommands can share one
// bootstrap instead of five copies of the same wiring.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	jobs      *taskstore.JobStore
	tasks     *taskstore.TaskStore
	videos    *taskstore.VideoTaskStore
	artifacts *repository.ArtifactRepository
	projects  *repository.ProjectRepository
	blobs     *blobstore.Gateway
	resolver  *secrets.Resolver
	registry  *adapters.Registry
	broker    queue.Broker
	exec      *executor.JobExecutor
	movie     *assembly.MovieAssembler
	narrative *assembly.NarrativeAssembler
}

// defaultModelByCapacity pairs the registry's default model constants
// with the capacity kind they're submitted under, so the Executor's
// auto-create fan-out never leaves a task's model empty (§9).
var defaultModelByCapacity = map[domain.CapacityKind]string{
	domain.CapacityText:     adapters.DefaultTextModel,
	domain.CapacityImage:    adapters.DefaultImageModel,
	domain.CapacityTTS:      adapters.DefaultTTSModel,
	domain.CapacityVideoSub: adapters.DefaultVideoModel,
}

// bootstrap loads configuration and constructs every shared dependency.
// It never starts a server, worker pool, or sweeper loop — each
// subcommand does that with the pieces it actually needs.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, newExitError(exitConfigError, fmt.Errorf("load config: %w", err))
	}

	zapLogger, err := logger.NewLogger(cfg.Environment)
	if err != nil {
		return nil, newExitError(exitConfigError, fmt.Errorf("init logger: %w", err))
	}

	if err := cfg.CheckFFmpeg(); err != nil {
		return nil, newExitError(exitDependencyDown, err)
	}

	awsCfg, err := awsclients.NewConfig(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, newExitError(exitDependencyDown, fmt.Errorf("init aws config: %w", err))
	}
	clients := awsclients.NewClients(awsCfg)

	logLevel := gormlogger.Warn
	if cfg.Environment != "production" {
		logLevel = gormlogger.Info
	}
	db, err := repository.Open(cfg.DatabaseURL, logLevel)
	if err != nil {
		return nil, newExitError(exitDependencyDown, fmt.Errorf("open database: %w", err))
	}

	jobs := taskstore.NewJobStore(clients.DynamoDB, cfg.JobTable, zapLogger)
	tasks := taskstore.NewTaskStore(clients.DynamoDB, cfg.TaskTable, cfg.TaskJobIDIndex, zapLogger)
	videos := taskstore.NewVideoTaskStore(clients.DynamoDB, cfg.VideoTaskTable, zapLogger)
	artifacts := repository.NewArtifactRepository(db)
	projects := repository.NewProjectRepository(db)
	blobs := blobstore.NewGateway(clients.S3, cfg.BlobBucket, zapLogger)
	resolver := secrets.NewResolver(clients.SecretsManager, zapLogger)
	registry := adapters.NewRegistry()
	broker := queue.NewSQSBroker(clients.SQS, zapLogger)

	queueURLs := cfg.QueueURLs()
	exec := executor.New(jobs, tasks, artifacts, projects, broker, queueURLs, defaultModelByCapacity, zapLogger)
	movie := assembly.NewMovieAssembler(artifacts, projects, videos, blobs, zapLogger)
	narrative := assembly.NewNarrativeAssembler(artifacts, projects, videos, blobs, zapLogger)

	return &app{
		cfg: cfg, logger: zapLogger,
		jobs: jobs, tasks: tasks, videos: videos,
		artifacts: artifacts, projects: projects,
		blobs: blobs, resolver: resolver, registry: registry, broker: broker,
		exec: exec, movie: movie, narrative: narrative,
	}, nil
}

// distributedSemaphores constructs one DistributedSemaphore per capacity
// kind sharing a.cfg.RedisAddr's connection, keyed so every `worker`
// process pointed at the same Redis instance enforces the same
// cluster-wide cap. Returns nil when REDIS_ADDR is unset, leaving the
// Pool to enforce the local-only cap (§4.4's default, single-process
// mode).
func (a *app) distributedSemaphores(ctx context.Context, caps map[domain.CapacityKind]int) (map[domain.CapacityKind]*concurrency.DistributedSemaphore, error) {
	if a.cfg.RedisAddr == "" {
		return nil, nil
	}
	out := make(map[domain.CapacityKind]*concurrency.DistributedSemaphore, len(caps))
	for kind, limit := range caps {
		if limit <= 0 {
			continue
		}
		dsem, err := concurrency.NewDistributedSemaphore(ctx, a.cfg.RedisAddr, "core:capacity:"+string(kind), limit, visibilityLease)
		if err != nil {
			return nil, fmt.Errorf("build distributed semaphore for %s: %w", kind, err)
		}
		out[kind] = dsem
	}
	return out, nil
}

// visibilityLease matches worker.Pool's message visibility extension
// window, so a distributed lease and the SQS redelivery timeout expire
// on comparable schedules.
const visibilityLease = 300 * time.Second

func (a *app) dispatcher() *worker.Dispatcher {
	return worker.NewDispatcher(a.tasks, a.videos, a.artifacts, a.projects, a.blobs, a.registry, a.resolver, a.exec, a.movie, a.narrative, a.logger)
}

func (a *app) sweeper() *sweeper.Sweeper {
	return sweeper.New(a.artifacts, a.projects, a.tasks, a.registry, a.resolver, a.blobs, a.exec, a.logger)
}

func (a *app) ttlSweeper() *sweeper.TTLSweeper {
	return sweeper.NewTTLSweeper(a.jobs, a.tasks, a.logger)
}

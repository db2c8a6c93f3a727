// Package worker implements the task-kind dispatcher and pool that drain
// the Task Runtime's queues: one handler per domain.TaskKind, running
// under a per-capacity-kind concurrency cap, calling into the Provider
// Adapter Layer, Artifact Repository and Blob Store Gateway, and
// reporting outcomes back to the Stage Graph Executor.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/adapters"
	"github.com/sceneforge/core/internal/assembly"
	"github.com/sceneforge/core/internal/blobstore"
	"github.com/sceneforge/core/internal/domain"
	"github.com/sceneforge/core/internal/executor"
	"github.com/sceneforge/core/internal/queue"
	"github.com/sceneforge/core/internal/repository"
	"github.com/sceneforge/core/internal/secrets"
	"github.com/sceneforge/core/internal/taskstore"
	"github.com/sceneforge/core/pkg/retry"
)

// Dispatcher owns every dependency a task handler needs. A single
// Dispatcher instance is shared by every worker goroutine; all of its
// fields are safe for concurrent use.
type Dispatcher struct {
	tasks     *taskstore.TaskStore
	videos    *taskstore.VideoTaskStore
	artifacts *repository.ArtifactRepository
	projects  *repository.ProjectRepository
	blobs     *blobstore.Gateway
	registry  *adapters.Registry
	resolver  *secrets.Resolver
	exec      *executor.JobExecutor
	movie     *assembly.MovieAssembler
	narrative *assembly.NarrativeAssembler
	logger    *zap.Logger
}

func NewDispatcher(
	tasks *taskstore.TaskStore,
	videos *taskstore.VideoTaskStore,
	artifacts *repository.ArtifactRepository,
	projects *repository.ProjectRepository,
	blobs *blobstore.Gateway,
	registry *adapters.Registry,
	resolver *secrets.Resolver,
	exec *executor.JobExecutor,
	movie *assembly.MovieAssembler,
	narrative *assembly.NarrativeAssembler,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		tasks: tasks, videos: videos, artifacts: artifacts, projects: projects,
		blobs: blobs, registry: registry, resolver: resolver, exec: exec,
		movie: movie, narrative: narrative, logger: logger,
	}
}

// Handle dispatches a single task to its kind's handler, updates the
// Task Runtime with the outcome, and notifies the Executor. Handlers
// return a *domain.Error; Handle uses its Kind to decide retry
// eligibility (§4.4/§7) rather than inspecting the underlying cause.
func (d *Dispatcher) Handle(ctx context.Context, task *domain.Task) error {
	if task.CancelFlag {
		if err := d.tasks.UpdateStatus(ctx, task.TaskID, domain.TaskCancelled, "", domain.KindCancelled, "cancelled before dispatch"); err != nil {
			return fmt.Errorf("mark task %s cancelled: %w", task.TaskID, err)
		}
		return nil
	}

	var resultRef string
	var handlerErr error

	switch task.Kind {
	case domain.KindExtractCharacters:
		handlerErr = d.handleExtractCharacters(ctx, task)
	case domain.KindExtractScenes:
		handlerErr = d.handleExtractScenes(ctx, task)
	case domain.KindExtractShots:
		handlerErr = d.handleExtractShots(ctx, task)
	case domain.KindGenerateSceneImage:
		resultRef, handlerErr = d.handleGenerateSceneImage(ctx, task)
	case domain.KindGenerateCharacterAvatar:
		resultRef, handlerErr = d.handleGenerateCharacterAvatar(ctx, task)
	case domain.KindGenerateKeyframe:
		resultRef, handlerErr = d.handleGenerateKeyframe(ctx, task)
	case domain.KindCreateTransition:
		handlerErr = d.handleCreateTransition(ctx, task)
	case domain.KindSubmitTransitionVideo:
		handlerErr = d.handleSubmitTransitionVideo(ctx, task)
	case domain.KindGenerateSentenceImage:
		resultRef, handlerErr = d.handleGenerateSentenceImage(ctx, task)
	case domain.KindGenerateSentenceAudio:
		resultRef, handlerErr = d.handleGenerateSentenceAudio(ctx, task)
	case domain.KindComposeVideo:
		handlerErr = d.handleComposeVideo(ctx, task)
	case domain.KindComposeNarrative:
		handlerErr = d.handleComposeNarrative(ctx, task)
	default:
		handlerErr = fmt.Errorf("no handler registered for task kind %s", task.Kind)
	}

	return d.finish(ctx, task, resultRef, handlerErr)
}

// finish records the task's outcome in the Task Runtime and, on success
// or terminal failure, lets the Executor react. A retryable error is
// left pending for the broker's redelivery rather than marked failed.
func (d *Dispatcher) finish(ctx context.Context, task *domain.Task, resultRef string, handlerErr error) error {
	if handlerErr == nil {
		if err := d.tasks.UpdateStatus(ctx, task.TaskID, domain.TaskSuccess, resultRef, "", ""); err != nil {
			return fmt.Errorf("mark task %s success: %w", task.TaskID, err)
		}
		task.Status = domain.TaskSuccess
		task.ResultRef = resultRef
		if err := d.exec.OnTaskSuccess(ctx, task); err != nil {
			d.logger.Error("executor fan-out after task success", zap.String("task_id", task.TaskID), zap.Error(err))
			return err
		}
		return nil
	}

	var derr *domain.Error
	kind := domain.KindProvider
	if errors.As(handlerErr, &derr) {
		kind = derr.Kind
	}

	retryable, _ := retry.ShouldRetry(handlerErr)
	if kind == domain.KindMalformedResponse && task.Retries >= 1 {
		retryable = false
	}
	policy := retry.PolicyFor(domain.CapacityFor(task.Kind))
	if retryable && task.Retries < policy.MaxAttempts-1 {
		if err := d.tasks.IncrementRetries(ctx, task.TaskID); err != nil {
			d.logger.Error("increment task retries", zap.String("task_id", task.TaskID), zap.Error(err))
		}
		return handlerErr // left pending; broker redelivers after visibility timeout
	}

	if err := d.tasks.UpdateStatus(ctx, task.TaskID, domain.TaskFailed, "", kind, handlerErr.Error()); err != nil {
		return fmt.Errorf("mark task %s failed: %w", task.TaskID, err)
	}
	task.Status = domain.TaskFailed
	if err := d.exec.OnTaskFailure(ctx, task); err != nil {
		d.logger.Error("executor rollup after task failure", zap.String("task_id", task.TaskID), zap.Error(err))
	}
	return nil
}

// apiKey resolves a payload's api_key_id to plaintext credential material.
func (d *Dispatcher) apiKey(ctx context.Context, apiKeyID string) (string, error) {
	key, err := d.projects.GetAPIKeyByID(ctx, apiKeyID)
	if err != nil {
		return "", err
	}
	return d.resolver.Resolve(ctx, key)
}

// QueueURLFor is re-exported for cmd/core's worker subcommand, which
// needs to resolve a capacity kind to a queue URL without importing
// internal/queue directly for a single helper call.
func QueueURLFor(baseURL string, kind domain.CapacityKind) string {
	return queue.QueueURLFor(baseURL, kind)
}

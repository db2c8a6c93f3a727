// Package sweeper implements the Provider Polling Sweeper (§4.7): the
// component that polls asynchronous video-generation providers on its
// own schedule rather than the submitting worker blocking on them,
// grounded on the teacher's Lambda poll-loop shape
// (cmd/lambdas/generator/main.go's GetStatus retry loop) generalized
// into a standing background loop over every Transition in flight.
package sweeper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/adapters"
	"github.com/sceneforge/core/internal/blobstore"
	"github.com/sceneforge/core/internal/domain"
	"github.com/sceneforge/core/internal/executor"
	"github.com/sceneforge/core/internal/repository"
	"github.com/sceneforge/core/internal/secrets"
	"github.com/sceneforge/core/internal/taskstore"
	"github.com/sceneforge/core/pkg/retry"
)

// sweepTick is how often Run wakes to check every transition's backoff
// against the clock. The per-transition backoff itself comes from
// retry.DefaultPollingConfig (§4.7's "poll interval starts at 5 seconds,
// up to a 60-second ceiling"), grounded on tvarr's Runner.PollInterval
// shape.
const sweepTick = 2 * time.Second

// Sweeper polls every Transition whose status is processing, at an
// interval that backs off per-transition rather than globally, so one
// slow provider doesn't throttle polling for every other in-flight
// transition.
type Sweeper struct {
	artifacts *repository.ArtifactRepository
	projects  *repository.ProjectRepository
	tasks     *taskstore.TaskStore
	registry  *adapters.Registry
	resolver  *secrets.Resolver
	blobs     *blobstore.Gateway
	exec      *executor.JobExecutor
	logger    *zap.Logger

	nextPoll map[string]time.Time
	attempts map[string]int
	polling  retry.PollingConfig
}

func New(
	artifacts *repository.ArtifactRepository,
	projects *repository.ProjectRepository,
	tasks *taskstore.TaskStore,
	registry *adapters.Registry,
	resolver *secrets.Resolver,
	blobs *blobstore.Gateway,
	exec *executor.JobExecutor,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		artifacts: artifacts, projects: projects, tasks: tasks, registry: registry,
		resolver: resolver, blobs: blobs, exec: exec, logger: logger,
		nextPoll: make(map[string]time.Time),
		attempts: make(map[string]int),
		polling:  retry.DefaultPollingConfig(),
	}
}

// Run blocks until ctx is cancelled, sweeping every processing Transition
// on sweepTick and polling those whose individual backoff has elapsed.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	transitions, err := s.artifacts.ListProcessingTransitions(ctx)
	if err != nil {
		s.logger.Error("list processing transitions", zap.Error(err))
		return
	}

	now := time.Now()
	seen := make(map[string]bool, len(transitions))
	for _, t := range transitions {
		seen[t.ID] = true
		if due, ok := s.nextPoll[t.ID]; ok && now.Before(due) {
			continue
		}
		s.poll(ctx, t)
	}

	for id := range s.nextPoll {
		if !seen[id] {
			delete(s.nextPoll, id)
			delete(s.attempts, id)
		}
	}
}

// poll polls one Transition's external video-generation task and, on a
// terminal outcome, uploads the finished video and notifies the
// Executor by synthesizing a KindPollTransitionVideo task the same way
// the worker dispatcher reports a handled task's outcome.
func (s *Sweeper) poll(ctx context.Context, t domain.Transition) {
	model, err := s.registry.VideoModel(t.Model)
	if err != nil {
		s.logger.Error("resolve video model for poll", zap.String("transition_id", t.ID), zap.Error(err))
		s.scheduleNext(t.ID)
		return
	}

	token, err := s.resolveToken(ctx, t.APIKeyID)
	if err != nil {
		s.logger.Error("resolve api key for poll", zap.String("transition_id", t.ID), zap.Error(err))
		s.scheduleNext(t.ID)
		return
	}

	result, err := model.PollVideo(ctx, token, t.ExternalTaskID)
	if err != nil {
		s.logger.Warn("poll transition video", zap.String("transition_id", t.ID), zap.Error(err))
		s.scheduleNext(t.ID)
		return
	}

	switch result.Status {
	case adapters.VideoStatusProcessing:
		s.scheduleNext(t.ID)
		return
	case adapters.VideoStatusCompleted:
		s.complete(ctx, t, result)
	case adapters.VideoStatusFailed:
		s.fail(ctx, t, result)
	default:
		s.scheduleNext(t.ID)
	}
}

func (s *Sweeper) resolveToken(ctx context.Context, apiKeyID string) (string, error) {
	key, err := s.projects.GetAPIKeyByID(ctx, apiKeyID)
	if err != nil {
		return "", err
	}
	return s.resolver.Resolve(ctx, key)
}

func (s *Sweeper) scheduleNext(transitionID string) {
	attempt := s.attempts[transitionID]
	next := s.polling.NextInterval(attempt)
	s.attempts[transitionID] = attempt + 1
	s.nextPoll[transitionID] = time.Now().Add(next)
}

func (s *Sweeper) complete(ctx context.Context, t domain.Transition, result *adapters.VideoPollResult) {
	data, err := fetchVideo(ctx, result.VideoURL)
	if err != nil {
		s.logger.Error("download completed transition video", zap.String("transition_id", t.ID), zap.Error(err))
		s.scheduleNext(t.ID)
		return
	}

	projectID, err := s.projectIDForTransition(ctx, t)
	if err != nil {
		s.logger.Error("resolve project for transition", zap.String("transition_id", t.ID), zap.Error(err))
		s.scheduleNext(t.ID)
		return
	}
	url, err := s.upload(ctx, projectID, data)
	if err != nil {
		s.logger.Error("upload completed transition video", zap.String("transition_id", t.ID), zap.Error(err))
		s.scheduleNext(t.ID)
		return
	}

	if err := s.artifacts.UpdateTransitionVideo(ctx, t.ID, url, t.Model); err != nil {
		s.logger.Error("record completed transition video", zap.String("transition_id", t.ID), zap.Error(err))
		return
	}
	delete(s.nextPoll, t.ID)
	delete(s.attempts, t.ID)
	s.notify(ctx, t, domain.TaskSuccess, url, "")
}

func (s *Sweeper) fail(ctx context.Context, t domain.Transition, result *adapters.VideoPollResult) {
	if err := s.artifacts.SetTransitionFailed(ctx, t.ID, result.Error); err != nil {
		s.logger.Error("record failed transition video", zap.String("transition_id", t.ID), zap.Error(err))
		return
	}
	delete(s.nextPoll, t.ID)
	delete(s.attempts, t.ID)
	s.notify(ctx, t, domain.TaskFailed, "", result.Error)
}

// notify synthesizes the KindPollTransitionVideo task the Stage Graph
// Executor expects to see in a Job's task list (§4.5's maybeComposeVideo
// readiness check counts submit and poll tasks separately), since the
// Sweeper drives this half of S7 outside the worker pool entirely.
func (s *Sweeper) notify(ctx context.Context, t domain.Transition, status domain.TaskStatus, resultRef, errMsg string) {
	task := &domain.Task{
		TaskID: t.ID + ":poll", JobID: t.JobID, Kind: domain.KindPollTransitionVideo,
		Status: status,
		Payload: domain.TaskPayload{
			Kind: domain.KindPollTransitionVideo,
			PollTransitionVideo: &domain.PollTransitionVideoPayload{
				TransitionID:   t.ID,
				APIKeyID:       t.APIKeyID,
				Model:          t.Model,
				ExternalTaskID: t.ExternalTaskID,
			},
		},
		ResultRef: resultRef,
	}
	task.TTL = time.Now().Unix() + int64(domain.TTLSeconds)
	if status == domain.TaskFailed {
		task.TTL = time.Now().Unix() + int64(domain.TTLFailureSeconds)
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		s.logger.Error("persist poll transition video task", zap.String("transition_id", t.ID), zap.Error(err))
		return
	}

	var notifyErr error
	if status == domain.TaskSuccess {
		notifyErr = s.exec.OnTaskSuccess(ctx, task)
	} else {
		notifyErr = s.exec.OnTaskFailure(ctx, task)
	}
	if notifyErr != nil {
		s.logger.Error("executor notification after transition poll", zap.String("transition_id", t.ID), zap.Error(notifyErr))
	}
}

func (s *Sweeper) projectIDForTransition(ctx context.Context, t domain.Transition) (string, error) {
	script, err := s.artifacts.GetScriptByID(ctx, t.ScriptID)
	if err != nil {
		return "", err
	}
	chapter, err := s.projects.GetChapter(ctx, script.ChapterID)
	if err != nil {
		return "", err
	}
	return chapter.ProjectID, nil
}

// upload stores a completed Transition's raw video bytes under the
// Blob Store's project-scoped key convention (§4.3).
func (s *Sweeper) upload(ctx context.Context, projectID string, data []byte) (string, error) {
	key := blobstore.Key(projectID, "transition-video", "mp4")
	if err := s.blobs.Put(ctx, key, data, "video/mp4"); err != nil {
		return "", err
	}
	return key, nil
}

// fetchVideo downloads a provider's finished video so it can be
// re-hosted in the Blob Store rather than linking to a URL the
// provider may expire, mirroring the worker dispatcher's fetchURL.
func fetchVideo(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch video: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

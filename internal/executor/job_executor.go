package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/domain"
	"github.com/sceneforge/core/internal/queue"
	"github.com/sceneforge/core/internal/repository"
	"github.com/sceneforge/core/internal/taskstore"
)

// JobExecutor is the Stage Graph Executor of §4.5. It owns the mapping
// from "a task just finished" to "which new tasks does that unblock,"
// and rolls up the task tree into Job progress and Chapter
// pipeline_status. All of its state is derived from the Task Runtime and
// Artifact Repository, never cached in memory, so a crash mid-fan-out is
// recovered simply by re-running OnTaskSuccess for the same task (the
// materialization checks below are idempotent).
type JobExecutor struct {
	jobs      *taskstore.JobStore
	tasks     *taskstore.TaskStore
	artifacts *repository.ArtifactRepository
	projects  *repository.ProjectRepository
	broker    queue.Broker
	queueURLs map[domain.CapacityKind]string
	logger    *zap.Logger

	// defaultModel names the model used for a capacity kind absent an
	// explicit per-request override; wired from the adapters.Registry
	// default constants at construction time.
	defaultModel map[domain.CapacityKind]string
}

// New builds a JobExecutor. queueURLs must have an entry for every
// domain.CapacityKind the stage graph references.
func New(
	jobs *taskstore.JobStore,
	tasks *taskstore.TaskStore,
	artifacts *repository.ArtifactRepository,
	projects *repository.ProjectRepository,
	broker queue.Broker,
	queueURLs map[domain.CapacityKind]string,
	defaultModel map[domain.CapacityKind]string,
	logger *zap.Logger,
) *JobExecutor {
	return &JobExecutor{
		jobs:         jobs,
		tasks:        tasks,
		artifacts:    artifacts,
		projects:     projects,
		broker:       broker,
		queueURLs:    queueURLs,
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// nowUnix is the Task Runtime's timestamp convention (unix seconds),
// matching the teacher's domain.Job.CreatedAt style.
func nowUnix() int64 { return time.Now().Unix() }

// SubmitJob records target_stage on the Job and materializes and
// enqueues the tasks of whichever movie-pipeline stage is the first not
// already satisfied by the chapter's Artifact Repository state
// (§4.5/Testable Property #7's idempotent-resume: "a Job re-submitted for
// a chapter that already has a script does not redo S0"). Everything past
// that first stage is discovered incrementally via OnTaskSuccess as each
// newly-enqueued task's fan-out lands, exactly as it would for a
// brand-new chapter. target_stage is stored only: planning does not read
// it, so every job runs the movie pipeline through S8.
func (e *JobExecutor) SubmitJob(ctx context.Context, chapterID, ownerID, apiKeyID, model, targetStage string) (*domain.Job, error) {
	chapter, err := e.projects.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, fmt.Errorf("load chapter %s: %w", chapterID, err)
	}

	job := &domain.Job{
		JobID:       uuid.NewString(),
		ChapterID:   chapterID,
		OwnerID:     ownerID,
		Kind:        "movie_pipeline",
		TargetStage: targetStage,
		Status:      domain.JobPending,
		CreatedAt:   nowUnix(),
		UpdatedAt:   nowUnix(),
	}
	if err := e.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	tasks, skipped, err := e.resumePlan(ctx, job.JobID, chapter, apiKeyID, model)
	if err != nil {
		return nil, fmt.Errorf("plan resume for chapter %s: %w", chapterID, err)
	}

	if len(tasks) == 0 {
		// Every stage through S8 is already satisfied; nothing to do.
		if err := e.jobs.MarkTerminal(ctx, job.JobID, domain.JobSuccess, "", ""); err != nil {
			return nil, fmt.Errorf("mark job %s success: %w", job.JobID, err)
		}
		return job, nil
	}

	for _, t := range tasks {
		if err := e.enqueue(ctx, job.JobID, t); err != nil {
			return nil, err
		}
	}

	stats := domain.JobStatistics{Total: len(tasks), Skipped: skipped}
	if err := e.jobs.UpdateProgress(ctx, job.JobID, 0, stats); err != nil {
		e.logger.Warn("update job progress after submit", zap.Error(err))
	}
	return job, nil
}

// resumePlan walks §4.5's stage DAG in dependency order against the
// chapter's current artifacts and returns the tasks needed to reach the
// first stage that is not yet fully materialized, plus a count of
// already-satisfied stages it passed over on the way (surfaced as
// domain.Job.Statistics.Skipped). A nil task slice with a nil error means
// every stage, including S8, is already done.
func (e *JobExecutor) resumePlan(ctx context.Context, jobID string, chapter *domain.Chapter, apiKeyID, model string) ([]*domain.Task, int, error) {
	skipped := 0

	// S0: characters. Nothing downstream exists without a Script.
	if chapter.Status == domain.StatusDraft || chapter.Script == nil {
		return []*domain.Task{e.newExtractCharactersTask(jobID, chapter.ID, apiKeyID, model)}, skipped, nil
	}
	skipped++

	project, err := e.projects.GetProject(ctx, chapter.ProjectID)
	if err != nil {
		return nil, 0, err
	}
	script := chapter.Script

	var tasks []*domain.Task

	// S4: one avatar per character, unlocked by S0 alone, siblings of S1.
	for _, c := range project.Characters {
		if c.AvatarURL != "" {
			skipped++
			continue
		}
		tasks = append(tasks, e.newAvatarTask(jobID, c.ID, apiKeyID, e.defaultModel[domain.CapacityImage]))
	}

	// S1: scenes.
	scenes, err := e.artifacts.ListScenesByScript(ctx, script.ID)
	if err != nil {
		return nil, 0, err
	}
	if len(scenes) == 0 {
		tasks = append(tasks, e.newExtractScenesTask(jobID, chapter.ID, apiKeyID, e.defaultModel[domain.CapacityText]))
		return tasks, skipped, nil
	}
	skipped++

	shots, err := e.artifacts.ListShotsByScript(ctx, script.ID)
	if err != nil {
		return nil, 0, err
	}
	shotsByScene := make(map[string][]domain.Shot, len(scenes))
	for _, s := range shots {
		shotsByScene[s.SceneID] = append(shotsByScene[s.SceneID], s)
	}

	// S2 + S3: shots and scene images, both siblings unlocked by S1.
	for _, sc := range scenes {
		if len(shotsByScene[sc.ID]) == 0 {
			tasks = append(tasks, e.newExtractShotsTask(jobID, sc.ID, apiKeyID, e.defaultModel[domain.CapacityText]))
		} else {
			skipped++
		}
		if sc.SceneImageURL == "" {
			tasks = append(tasks, e.newSceneImageTask(jobID, sc, apiKeyID, e.defaultModel[domain.CapacityImage]))
		} else {
			skipped++
		}
	}
	if len(tasks) > 0 {
		// S2, S3 or S4 still has unmet work; S5 onward is discovered by
		// the normal fan-out chain as these tasks complete.
		return tasks, skipped, nil
	}

	// S5: one keyframe per shot, ready once its scene's shots (always
	// true here) and every character it references already has S4.
	allKeyframed := true
	for _, shot := range shots {
		if shot.KeyframeURL != "" {
			skipped++
			continue
		}
		allKeyframed = false
		characterIDs, err := e.resolveCharacterIDs(ctx, chapter.ProjectID, shot.CharacterRefs)
		if err != nil {
			return nil, 0, err
		}
		if !charactersHaveAvatars(project.Characters, characterIDs) {
			continue // S4 still pending for a referenced character; wait
		}
		tasks = append(tasks, e.newKeyframeTask(jobID, shot, apiKeyID, e.defaultModel[domain.CapacityImage]))
	}
	if len(tasks) > 0 {
		return tasks, skipped, nil
	}
	if !allKeyframed {
		// Every remaining shot is blocked on a pending avatar; the avatar
		// tasks already enqueued above will unblock it via
		// fanOutKeyframesForCharacter once they succeed.
		return tasks, skipped, nil
	}

	// S6: transitions, materialized once for the whole chapter.
	transitions, err := e.artifacts.ListTransitionsByScript(ctx, script.ID)
	if err != nil {
		return nil, 0, err
	}
	if len(transitions) == 0 {
		if len(shots) < 2 {
			incomplete := domain.NewIncompleteMaterialsError([]string{"fewer than 2 shots; no transitions possible"})
			return nil, 0, incomplete
		}
		for i := 0; i < len(shots)-1; i++ {
			tasks = append(tasks, e.newTransitionTask(jobID, shots[i].ID, shots[i+1].ID, apiKeyID, e.defaultModel[domain.CapacityText], i))
		}
		return tasks, skipped, nil
	}
	skipped++

	// S7: submit/poll, one per transition not yet resolved.
	for _, t := range transitions {
		if t.Status == domain.TransitionStatusCompleted || t.Status == domain.TransitionStatusFailed {
			skipped++
			continue
		}
		tasks = append(tasks, e.newSubmitVideoTask(jobID, t.ID, apiKeyID, e.defaultModel[domain.CapacityVideoSub]))
	}
	if len(tasks) > 0 {
		return tasks, skipped, nil
	}

	// S8: compose. A chapter already marked completed has already run it.
	if chapter.Status != domain.StatusCompleted {
		tasks = append(tasks, e.newComposeVideoTask(jobID, chapter.ID))
	}
	return tasks, skipped, nil
}

func charactersHaveAvatars(characters []domain.Character, ids []string) bool {
	for _, id := range ids {
		found := false
		for _, c := range characters {
			if c.ID == id && c.AvatarURL != "" {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (e *JobExecutor) newExtractCharactersTask(jobID, chapterID, apiKeyID, model string) *domain.Task {
	return &domain.Task{
		TaskID: uuid.NewString(), JobID: jobID, Kind: domain.KindExtractCharacters,
		Status: domain.TaskPending,
		Payload: domain.TaskPayload{
			Kind: domain.KindExtractCharacters,
			ExtractCharacters: &domain.ExtractCharactersPayload{
				ChapterID: chapterID,
				APIKeyID:  apiKeyID,
				Model:     model,
			},
		},
		SubmissionOrdinal: nowUnix(), CreatedAt: nowUnix(), UpdatedAt: nowUnix(),
	}
}

func (e *JobExecutor) newAvatarTask(jobID, characterID, apiKeyID, model string) *domain.Task {
	return &domain.Task{
		TaskID: uuid.NewString(), JobID: jobID, Kind: domain.KindGenerateCharacterAvatar,
		Status: domain.TaskPending,
		Payload: domain.TaskPayload{
			Kind: domain.KindGenerateCharacterAvatar,
			GenerateCharacterAvatar: &domain.GenerateCharacterAvatarPayload{
				CharacterID: characterID,
				APIKeyID:    apiKeyID,
				Model:       model,
			},
		},
		SubmissionOrdinal: nowUnix(), CreatedAt: nowUnix(), UpdatedAt: nowUnix(),
	}
}

func (e *JobExecutor) newExtractScenesTask(jobID, chapterID, apiKeyID, model string) *domain.Task {
	return &domain.Task{
		TaskID: uuid.NewString(), JobID: jobID, Kind: domain.KindExtractScenes,
		Status: domain.TaskPending,
		Payload: domain.TaskPayload{
			Kind: domain.KindExtractScenes,
			ExtractScenes: &domain.ExtractScenesPayload{
				ChapterID: chapterID,
				APIKeyID:  apiKeyID,
				Model:     model,
			},
		},
		SubmissionOrdinal: nowUnix(), CreatedAt: nowUnix(), UpdatedAt: nowUnix(),
	}
}

func (e *JobExecutor) newExtractShotsTask(jobID, sceneID, apiKeyID, model string) *domain.Task {
	return &domain.Task{
		TaskID: uuid.NewString(), JobID: jobID, Kind: domain.KindExtractShots,
		Status: domain.TaskPending,
		Payload: domain.TaskPayload{
			Kind: domain.KindExtractShots,
			ExtractShots: &domain.ExtractShotsPayload{
				SceneID:  sceneID,
				APIKeyID: apiKeyID,
				Model:    model,
			},
		},
		SubmissionOrdinal: nowUnix(), CreatedAt: nowUnix(), UpdatedAt: nowUnix(),
	}
}

func (e *JobExecutor) newSceneImageTask(jobID string, scene domain.Scene, apiKeyID, model string) *domain.Task {
	return &domain.Task{
		TaskID: uuid.NewString(), JobID: jobID, Kind: domain.KindGenerateSceneImage,
		Status: domain.TaskPending,
		Payload: domain.TaskPayload{
			Kind: domain.KindGenerateSceneImage,
			GenerateSceneImage: &domain.GenerateSceneImagePayload{
				SceneID:  scene.ID,
				APIKeyID: apiKeyID,
				Model:    model,
				Prompt:   scene.Location + ". " + scene.Action,
			},
		},
		SubmissionOrdinal: nowUnix(), CreatedAt: nowUnix(), UpdatedAt: nowUnix(),
	}
}

func (e *JobExecutor) newKeyframeTask(jobID string, shot domain.Shot, apiKeyID, model string) *domain.Task {
	return &domain.Task{
		TaskID: uuid.NewString(), JobID: jobID, Kind: domain.KindGenerateKeyframe,
		Status: domain.TaskPending,
		Payload: domain.TaskPayload{
			Kind: domain.KindGenerateKeyframe,
			GenerateKeyframe: &domain.GenerateKeyframePayload{
				ShotID:        shot.ID,
				APIKeyID:      apiKeyID,
				Model:         model,
				Prompt:        shot.Dialogue,
				CharacterRefs: shot.CharacterRefs,
			},
		},
		SubmissionOrdinal: nowUnix(), CreatedAt: nowUnix(), UpdatedAt: nowUnix(),
	}
}

func (e *JobExecutor) newTransitionTask(jobID, fromShotID, toShotID, apiKeyID, model string, ordinal int) *domain.Task {
	return &domain.Task{
		TaskID: uuid.NewString(), JobID: jobID, Kind: domain.KindCreateTransition,
		Status: domain.TaskPending,
		Payload: domain.TaskPayload{
			Kind: domain.KindCreateTransition,
			CreateTransition: &domain.CreateTransitionPayload{
				FromShotID: fromShotID,
				ToShotID:   toShotID,
				APIKeyID:   apiKeyID,
				Model:      model,
			},
		},
		SubmissionOrdinal: int64(ordinal), CreatedAt: nowUnix(), UpdatedAt: nowUnix(),
	}
}

func (e *JobExecutor) newSubmitVideoTask(jobID, transitionID, apiKeyID, model string) *domain.Task {
	return &domain.Task{
		TaskID: uuid.NewString(), JobID: jobID, Kind: domain.KindSubmitTransitionVideo,
		Status: domain.TaskPending,
		Payload: domain.TaskPayload{
			Kind: domain.KindSubmitTransitionVideo,
			SubmitTransitionVideo: &domain.SubmitTransitionVideoPayload{
				TransitionID: transitionID,
				APIKeyID:     apiKeyID,
				Model:        model,
			},
		},
		SubmissionOrdinal: nowUnix(), CreatedAt: nowUnix(), UpdatedAt: nowUnix(),
	}
}

func (e *JobExecutor) newComposeVideoTask(jobID, chapterID string) *domain.Task {
	return &domain.Task{
		TaskID: uuid.NewString(), JobID: jobID, Kind: domain.KindComposeVideo,
		Status: domain.TaskPending,
		Payload: domain.TaskPayload{
			Kind: domain.KindComposeVideo,
			ComposeVideo: &domain.ComposeVideoPayload{
				ChapterID:  chapterID,
				Resolution: "1920x1080",
				FPS:        24,
				BGMVolume:  0,
			},
		},
		SubmissionOrdinal: nowUnix(), CreatedAt: nowUnix(), UpdatedAt: nowUnix(),
	}
}

// enqueue persists a Task row and signals the worker pool matching its
// capacity class. Nothing is enqueued once the job's cancel flag is set.
func (e *JobExecutor) enqueue(ctx context.Context, jobID string, task *domain.Task) error {
	if job, err := e.jobs.Get(ctx, jobID); err == nil && job.CancelRequested {
		return nil
	}
	if err := e.tasks.Create(ctx, task); err != nil {
		return fmt.Errorf("create task %s: %w", task.Kind, err)
	}
	queueURL := e.queueURLs[domain.CapacityFor(task.Kind)]
	if err := e.broker.Enqueue(ctx, queueURL, task.TaskID); err != nil {
		return fmt.Errorf("enqueue task %s: %w", task.TaskID, err)
	}
	return nil
}

// OnTaskSuccess is invoked by the worker after a task handler completes
// successfully. It inspects the newly-updated Artifact Repository state
// plus the job's full task tree and materializes whatever downstream
// tasks just became ready, per §4.5's dependency table.
func (e *JobExecutor) OnTaskSuccess(ctx context.Context, task *domain.Task) error {
	tasks, err := e.tasks.ListByJob(ctx, task.JobID)
	if err != nil {
		return fmt.Errorf("list tasks for job %s: %w", task.JobID, err)
	}

	switch task.Kind {
	case domain.KindExtractCharacters:
		if err := e.fanOutAfterExtractCharacters(ctx, task, tasks); err != nil {
			return err
		}
	case domain.KindExtractScenes:
		if err := e.fanOutAfterExtractScenes(ctx, task, tasks); err != nil {
			return err
		}
	case domain.KindExtractShots:
		if err := e.fanOutKeyframesForScene(ctx, task, tasks); err != nil {
			return err
		}
	case domain.KindGenerateCharacterAvatar:
		if err := e.fanOutKeyframesForCharacter(ctx, task, tasks); err != nil {
			return err
		}
	case domain.KindGenerateKeyframe, domain.KindGenerateSceneImage:
		if err := e.maybeCreateTransitions(ctx, task, tasks); err != nil {
			return err
		}
	case domain.KindCreateTransition:
		if err := e.fanOutSubmitVideo(ctx, task, tasks); err != nil {
			return err
		}
	case domain.KindSubmitTransitionVideo, domain.KindPollTransitionVideo:
		if err := e.maybeComposeVideo(ctx, task, tasks); err != nil {
			return err
		}
	case domain.KindComposeVideo:
		if err := e.jobs.MarkTerminal(ctx, task.JobID, domain.JobSuccess, "", ""); err != nil {
			return fmt.Errorf("mark job %s success: %w", task.JobID, err)
		}
		return nil
	}

	return e.rollupProgress(ctx, task.JobID)
}

// fanOutAfterExtractCharacters materializes S1 (one per chapter) and S4
// (one per discovered character).
func (e *JobExecutor) fanOutAfterExtractCharacters(ctx context.Context, task *domain.Task, tasks []*domain.Task) error {
	chapterID := task.Payload.ExtractCharacters.ChapterID
	apiKeyID := task.Payload.ExtractCharacters.APIKeyID
	chapter, err := e.projects.GetChapter(ctx, chapterID)
	if err != nil {
		return err
	}

	if stageState(tasks, domain.KindExtractScenes) == StagePending {
		t := &domain.Task{
			TaskID: uuid.NewString(), JobID: task.JobID, Kind: domain.KindExtractScenes,
			Status: domain.TaskPending,
			Payload: domain.TaskPayload{
				Kind: domain.KindExtractScenes,
				ExtractScenes: &domain.ExtractScenesPayload{
					ChapterID: chapterID,
					APIKeyID:  apiKeyID,
					Model:     e.defaultModel[domain.CapacityText],
				},
			},
			SubmissionOrdinal: nowUnix(), CreatedAt: nowUnix(), UpdatedAt: nowUnix(),
		}
		if err := e.enqueue(ctx, task.JobID, t); err != nil {
			return err
		}
	}

	project, err := e.projects.GetProject(ctx, chapter.ProjectID)
	if err != nil {
		return err
	}
	for _, c := range project.Characters {
		if characterAvatarReady(tasks, c.ID) {
			continue
		}
		if avatarTaskExists(tasks, c.ID) {
			continue
		}
		t := &domain.Task{
			TaskID: uuid.NewString(), JobID: task.JobID, Kind: domain.KindGenerateCharacterAvatar,
			Status: domain.TaskPending,
			Payload: domain.TaskPayload{
				Kind: domain.KindGenerateCharacterAvatar,
				GenerateCharacterAvatar: &domain.GenerateCharacterAvatarPayload{
					CharacterID: c.ID,
					APIKeyID:    apiKeyID,
					Model:       e.defaultModel[domain.CapacityImage],
				},
			},
			SubmissionOrdinal: nowUnix(), CreatedAt: nowUnix(), UpdatedAt: nowUnix(),
		}
		if err := e.enqueue(ctx, task.JobID, t); err != nil {
			return err
		}
	}
	return nil
}

func avatarTaskExists(tasks []*domain.Task, characterID string) bool {
	for _, t := range tasksOfKind(tasks, domain.KindGenerateCharacterAvatar) {
		if p := t.Payload.GenerateCharacterAvatar; p != nil && p.CharacterID == characterID {
			return true
		}
	}
	return false
}

// fanOutAfterExtractScenes materializes S2 and S3, one of each per Scene
// the text stage produced.
func (e *JobExecutor) fanOutAfterExtractScenes(ctx context.Context, task *domain.Task, tasks []*domain.Task) error {
	chapterID := task.Payload.ExtractScenes.ChapterID
	apiKeyID := task.Payload.ExtractScenes.APIKeyID
	script, err := e.artifacts.GetScriptByChapter(ctx, chapterID)
	if err != nil {
		return err
	}
	scenes, err := e.artifacts.ListScenesByScript(ctx, script.ID)
	if err != nil {
		return err
	}

	for _, scene := range scenes {
		if !sceneTaskExists(tasks, domain.KindExtractShots, scene.ID) {
			t := &domain.Task{
				TaskID: uuid.NewString(), JobID: task.JobID, Kind: domain.KindExtractShots,
				Status: domain.TaskPending,
				Payload: domain.TaskPayload{
					Kind: domain.KindExtractShots,
					ExtractShots: &domain.ExtractShotsPayload{
						SceneID:  scene.ID,
						APIKeyID: apiKeyID,
						Model:    e.defaultModel[domain.CapacityText],
					},
				},
				SubmissionOrdinal: nowUnix(), CreatedAt: nowUnix(), UpdatedAt: nowUnix(),
			}
			if err := e.enqueue(ctx, task.JobID, t); err != nil {
				return err
			}
		}
		if !sceneImageTaskExists(tasks, scene.ID) {
			t := &domain.Task{
				TaskID: uuid.NewString(), JobID: task.JobID, Kind: domain.KindGenerateSceneImage,
				Status: domain.TaskPending,
				Payload: domain.TaskPayload{
					Kind: domain.KindGenerateSceneImage,
					GenerateSceneImage: &domain.GenerateSceneImagePayload{
						SceneID:  scene.ID,
						APIKeyID: apiKeyID,
						Model:    e.defaultModel[domain.CapacityImage],
						Prompt:   scene.Location + ". " + scene.Action,
					},
				},
				SubmissionOrdinal: nowUnix(), CreatedAt: nowUnix(), UpdatedAt: nowUnix(),
			}
			if err := e.enqueue(ctx, task.JobID, t); err != nil {
				return err
			}
		}
	}
	return nil
}

func sceneTaskExists(tasks []*domain.Task, kind domain.TaskKind, sceneID string) bool {
	for _, t := range tasksOfKind(tasks, kind) {
		if p := t.Payload.ExtractShots; p != nil && p.SceneID == sceneID {
			return true
		}
	}
	return false
}

func sceneImageTaskExists(tasks []*domain.Task, sceneID string) bool {
	for _, t := range tasksOfKind(tasks, domain.KindGenerateSceneImage) {
		if p := t.Payload.GenerateSceneImage; p != nil && p.SceneID == sceneID {
			return true
		}
	}
	return false
}

// fanOutKeyframesForScene materializes S5 for every shot of a scene whose
// S2 just completed and whose referenced characters already have
// completed avatars — the fine-grained readiness edge of §4.5.
func (e *JobExecutor) fanOutKeyframesForScene(ctx context.Context, task *domain.Task, tasks []*domain.Task) error {
	sceneID := task.Payload.ExtractShots.SceneID
	apiKeyID := task.Payload.ExtractShots.APIKeyID
	shots, err := e.artifacts.ListShotsByScene(ctx, sceneID)
	if err != nil {
		return err
	}
	scene, err := e.artifacts.GetScene(ctx, sceneID)
	if err != nil {
		return err
	}
	script, err := e.artifacts.GetScriptByID(ctx, scene.ScriptID)
	if err != nil {
		return err
	}
	chapter, err := e.projects.GetChapter(ctx, script.ChapterID)
	if err != nil {
		return err
	}

	for _, shot := range shots {
		if err := e.maybeEnqueueKeyframe(ctx, task.JobID, chapter.ProjectID, apiKeyID, shot, tasks); err != nil {
			return err
		}
	}
	return nil
}

// fanOutKeyframesForCharacter does the mirror-image scan: when a
// character's S4 finishes, every already-extracted shot referencing that
// character may now be ready.
func (e *JobExecutor) fanOutKeyframesForCharacter(ctx context.Context, task *domain.Task, tasks []*domain.Task) error {
	characterID := task.Payload.GenerateCharacterAvatar.CharacterID
	apiKeyID := task.Payload.GenerateCharacterAvatar.APIKeyID
	character, err := e.artifacts.GetCharacter(ctx, characterID)
	if err != nil {
		return err
	}

	chapter, err := e.chapterForJob(ctx, task.JobID)
	if err != nil {
		return err
	}
	script, err := e.artifacts.GetScriptByChapter(ctx, chapter.ID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil
		}
		return err
	}
	shots, err := e.artifacts.ListShotsByScript(ctx, script.ID)
	if err != nil {
		return err
	}
	for _, shot := range shots {
		references := false
		for _, name := range shot.CharacterRefs {
			if name == character.Name {
				references = true
				break
			}
		}
		if !references || !sceneShotsExtracted(tasks, shot.SceneID) {
			continue
		}
		if err := e.maybeEnqueueKeyframe(ctx, task.JobID, chapter.ProjectID, apiKeyID, shot, tasks); err != nil {
			return err
		}
	}
	return nil
}

func (e *JobExecutor) maybeEnqueueKeyframe(ctx context.Context, jobID, projectID, apiKeyID string, shot domain.Shot, tasks []*domain.Task) error {
	if keyframeMaterialized(tasks, shot.ID) {
		return nil
	}
	characterIDs, err := e.resolveCharacterIDs(ctx, projectID, shot.CharacterRefs)
	if err != nil {
		return err
	}
	if !shotCharactersReady(tasks, characterIDs) {
		return nil
	}

	t := &domain.Task{
		TaskID: uuid.NewString(), JobID: jobID, Kind: domain.KindGenerateKeyframe,
		Status: domain.TaskPending,
		Payload: domain.TaskPayload{
			Kind: domain.KindGenerateKeyframe,
			GenerateKeyframe: &domain.GenerateKeyframePayload{
				ShotID:        shot.ID,
				APIKeyID:      apiKeyID,
				Model:         e.defaultModel[domain.CapacityImage],
				Prompt:        shot.Dialogue,
				CharacterRefs: shot.CharacterRefs,
			},
		},
		SubmissionOrdinal: nowUnix(), CreatedAt: nowUnix(), UpdatedAt: nowUnix(),
	}
	return e.enqueue(ctx, jobID, t)
}

func (e *JobExecutor) resolveCharacterIDs(ctx context.Context, projectID string, names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		character, err := e.artifacts.GetCharacterByName(ctx, projectID, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, character.ID)
	}
	return ids, nil
}

// maybeCreateTransitions materializes S6 once every scene's S2 and every
// shot's S5 have succeeded for the chapter (§4.5: S6 depends on S2, S5).
func (e *JobExecutor) maybeCreateTransitions(ctx context.Context, task *domain.Task, tasks []*domain.Task) error {
	if transitionsMaterialized(tasks) {
		return nil
	}
	apiKeyID := apiKeyIDOf(task)

	chapter, err := e.chapterForJob(ctx, task.JobID)
	if err != nil {
		return err
	}
	script, err := e.artifacts.GetScriptByChapter(ctx, chapter.ID)
	if err != nil {
		return err
	}
	scenes, err := e.artifacts.ListScenesByScript(ctx, script.ID)
	if err != nil {
		return err
	}
	if stageState(tasks, domain.KindExtractShots).Resolve() != StageComplete &&
		countsOf(tasksOfKind(tasks, domain.KindExtractShots)).Total < len(scenes) {
		return nil
	}

	shots, err := e.artifacts.ListShotsByScript(ctx, script.ID)
	if err != nil {
		return err
	}
	if len(shots) == 0 {
		return nil
	}
	keyframeCounts := countsOf(tasksOfKind(tasks, domain.KindGenerateKeyframe))
	switch decideTransitions(keyframeCounts, len(shots)) {
	case transitionsWait:
		return nil
	case transitionsFailNoKeyframes:
		return e.jobs.MarkTerminal(ctx, task.JobID, domain.JobFailed, "incomplete_materials", "no shot produced a keyframe")
	case transitionsFailTooFewShots:
		return e.jobs.MarkTerminal(ctx, task.JobID, domain.JobFailed, "incomplete_materials", "fewer than 2 shots; no transitions possible")
	}

	for i := 0; i < len(shots)-1; i++ {
		from, to := shots[i], shots[i+1]
		t := &domain.Task{
			TaskID: uuid.NewString(), JobID: task.JobID, Kind: domain.KindCreateTransition,
			Status: domain.TaskPending,
			Payload: domain.TaskPayload{
				Kind: domain.KindCreateTransition,
				CreateTransition: &domain.CreateTransitionPayload{
					FromShotID: from.ID,
					ToShotID:   to.ID,
					APIKeyID:   apiKeyID,
					Model:      e.defaultModel[domain.CapacityText],
				},
			},
			SubmissionOrdinal: int64(i), CreatedAt: nowUnix(), UpdatedAt: nowUnix(),
		}
		if err := e.enqueue(ctx, task.JobID, t); err != nil {
			return err
		}
	}
	return nil
}

// fanOutSubmitVideo materializes S7's submit half for every Transition
// S6 just created.
func (e *JobExecutor) fanOutSubmitVideo(ctx context.Context, task *domain.Task, tasks []*domain.Task) error {
	transitionID := e.transitionIDFromCreateTask(ctx, task)
	if transitionID == "" {
		return nil
	}
	if submitTaskExists(tasks, transitionID) {
		return nil
	}
	t := &domain.Task{
		TaskID: uuid.NewString(), JobID: task.JobID, Kind: domain.KindSubmitTransitionVideo,
		Status: domain.TaskPending,
		Payload: domain.TaskPayload{
			Kind: domain.KindSubmitTransitionVideo,
			SubmitTransitionVideo: &domain.SubmitTransitionVideoPayload{
				TransitionID: transitionID,
				APIKeyID:     apiKeyIDOf(task),
				Model:        e.defaultModel[domain.CapacityVideoSub],
			},
		},
		SubmissionOrdinal: nowUnix(), CreatedAt: nowUnix(), UpdatedAt: nowUnix(),
	}
	return e.enqueue(ctx, task.JobID, t)
}

// transitionIDFromCreateTask recovers the Transition row CreateTransition
// created for this task, identified by the (from,to) shot pair its
// payload recorded.
func (e *JobExecutor) transitionIDFromCreateTask(ctx context.Context, task *domain.Task) string {
	p := task.Payload.CreateTransition
	if p == nil {
		return ""
	}
	script, err := e.scriptForShot(ctx, p.FromShotID)
	if err != nil {
		return ""
	}
	transitions, err := e.artifacts.ListTransitionsByScript(ctx, script.ID)
	if err != nil {
		return ""
	}
	for _, tr := range transitions {
		if tr.FromShotID == p.FromShotID && tr.ToShotID == p.ToShotID {
			return tr.ID
		}
	}
	return ""
}

func submitTaskExists(tasks []*domain.Task, transitionID string) bool {
	for _, t := range tasksOfKind(tasks, domain.KindSubmitTransitionVideo) {
		if p := t.Payload.SubmitTransitionVideo; p != nil && p.TransitionID == transitionID {
			return true
		}
	}
	return false
}

// maybeComposeVideo materializes S8 once every Transition's video is
// complete or failed, per §4.5's "a stage with 0 successes fails its
// job" applied at the chapter level.
func (e *JobExecutor) maybeComposeVideo(ctx context.Context, task *domain.Task, tasks []*domain.Task) error {
	if composeVideoMaterialized(tasks) {
		return nil
	}

	submitCounts := countsOf(tasksOfKind(tasks, domain.KindSubmitTransitionVideo))
	pollCounts := countsOf(tasksOfKind(tasks, domain.KindPollTransitionVideo))
	totalTransitions := submitCounts.Total
	resolvedCount := submitCounts.Failed + pollCounts.Success + pollCounts.Failed
	if resolvedCount < totalTransitions {
		return nil
	}
	if pollCounts.Success == 0 {
		return e.jobs.MarkTerminal(ctx, task.JobID, domain.JobFailed, "incomplete_materials", "no transition video completed")
	}

	chapter, err := e.chapterForJob(ctx, task.JobID)
	if err != nil {
		return err
	}
	t := &domain.Task{
		TaskID: uuid.NewString(), JobID: task.JobID, Kind: domain.KindComposeVideo,
		Status: domain.TaskPending,
		Payload: domain.TaskPayload{
			Kind: domain.KindComposeVideo,
			ComposeVideo: &domain.ComposeVideoPayload{
				ChapterID:  chapter.ID,
				Resolution: "1920x1080",
				FPS:        24,
				BGMVolume:  0,
			},
		},
		SubmissionOrdinal: nowUnix(), CreatedAt: nowUnix(), UpdatedAt: nowUnix(),
	}
	return e.enqueue(ctx, task.JobID, t)
}

// OnTaskFailure records the failure and re-runs whichever readiness
// check OnTaskSuccess would have run for this task kind, so a fan-out
// stage whose last task to reach a terminal state is a failure still
// progresses (partial materials) or fails the job (zero materials)
// instead of stalling forever (§4.5's partial-failure policy). The
// other OnTaskSuccess branches harvest artifacts a failed task never
// produced (the chapter's script, a scene's shots, a character's
// avatar) and have nothing further to check here.
func (e *JobExecutor) OnTaskFailure(ctx context.Context, task *domain.Task) error {
	tasks, err := e.tasks.ListByJob(ctx, task.JobID)
	if err != nil {
		return fmt.Errorf("list tasks for job %s: %w", task.JobID, err)
	}

	switch task.Kind {
	case domain.KindGenerateKeyframe, domain.KindGenerateSceneImage:
		if err := e.maybeCreateTransitions(ctx, task, tasks); err != nil {
			return err
		}
	case domain.KindSubmitTransitionVideo, domain.KindPollTransitionVideo:
		if err := e.maybeComposeVideo(ctx, task, tasks); err != nil {
			return err
		}
	}

	return e.rollupProgress(ctx, task.JobID)
}

// rollupProgress recomputes a Job's weighted progress and statistics
// from its task tree (§4.5).
func (e *JobExecutor) rollupProgress(ctx context.Context, jobID string) error {
	tasks, err := e.tasks.ListByJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("list tasks for job %s: %w", jobID, err)
	}
	stats := domain.JobStatistics{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case domain.TaskSuccess:
			stats.Success++
		case domain.TaskFailed, domain.TaskCancelled:
			stats.Failed++
		}
	}
	return e.jobs.UpdateProgress(ctx, jobID, weightedProgress(tasks), stats)
}

// Cancel sets a Job's cancel flag and the CancelFlag of each of its
// non-terminal Tasks. enqueue adds no new task to a job whose flag is
// set, and the worker dispatcher marks a flagged Task cancelled instead
// of running it; a handler that is already running is not interrupted.
func (e *JobExecutor) Cancel(ctx context.Context, jobID string) error {
	if err := e.jobs.SetCancelRequested(ctx, jobID); err != nil {
		return err
	}
	tasks, err := e.tasks.ListByJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("list tasks for job %s: %w", jobID, err)
	}
	for _, t := range tasks {
		if t.IsTerminal() {
			continue
		}
		if err := e.tasks.SetCancelFlag(ctx, t.TaskID); err != nil {
			return fmt.Errorf("set cancel flag on task %s: %w", t.TaskID, err)
		}
	}
	return nil
}

// scriptForShot bridges a Shot row back to its owning Script when only the
// leaf ID is known, routing through the repository rather than caching the
// hierarchy locally.
func (e *JobExecutor) scriptForShot(ctx context.Context, shotID string) (*domain.Script, error) {
	shot, err := e.artifacts.GetShot(ctx, shotID)
	if err != nil {
		return nil, err
	}
	scene, err := e.artifacts.GetScene(ctx, shot.SceneID)
	if err != nil {
		return nil, err
	}
	return e.artifacts.GetScriptByID(ctx, scene.ScriptID)
}

// chapterForJob resolves a job's owning Chapter via its recorded
// ChapterID.
func (e *JobExecutor) chapterForJob(ctx context.Context, jobID string) (*domain.Chapter, error) {
	job, err := e.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	return e.projects.GetChapter(ctx, job.ChapterID)
}

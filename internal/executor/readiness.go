package executor

import "github.com/sceneforge/core/internal/domain"

// tasksOfKind filters a job's task tree down to one TaskKind.
func tasksOfKind(tasks []*domain.Task, kind domain.TaskKind) []*domain.Task {
	var out []*domain.Task
	for _, t := range tasks {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

func countsOf(tasks []*domain.Task) StageCounts {
	c := StageCounts{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case domain.TaskSuccess:
			c.Success++
		case domain.TaskFailed, domain.TaskCancelled:
			c.Failed++
		}
	}
	return c
}

// stageState reports a stage's aggregate StageState given the job's full
// task tree.
func stageState(tasks []*domain.Task, kind domain.TaskKind) StageState {
	return countsOf(tasksOfKind(tasks, kind)).Resolve()
}

// characterAvatarReady reports whether the GenerateCharacterAvatar task
// for a specific character has succeeded.
func characterAvatarReady(tasks []*domain.Task, characterID string) bool {
	for _, t := range tasksOfKind(tasks, domain.KindGenerateCharacterAvatar) {
		p := t.Payload.GenerateCharacterAvatar
		if p != nil && p.CharacterID == characterID && t.Status == domain.TaskSuccess {
			return true
		}
	}
	return false
}

// sceneShotsExtracted reports whether the ExtractShots task for a
// specific scene has succeeded.
func sceneShotsExtracted(tasks []*domain.Task, sceneID string) bool {
	for _, t := range tasksOfKind(tasks, domain.KindExtractShots) {
		p := t.Payload.ExtractShots
		if p != nil && p.SceneID == sceneID && t.Status == domain.TaskSuccess {
			return true
		}
	}
	return false
}

// keyframeMaterialized reports whether a shot already has a GenerateKeyframe
// task materialized (success, running, or pending) — used to avoid
// re-enqueuing S5 for a shot whose readiness condition fires twice (once
// from its scene's S2 completing, once from a late character's S4
// completing).
func keyframeMaterialized(tasks []*domain.Task, shotID string) bool {
	for _, t := range tasksOfKind(tasks, domain.KindGenerateKeyframe) {
		p := t.Payload.GenerateKeyframe
		if p != nil && p.ShotID == shotID {
			return true
		}
	}
	return false
}

// shotCharactersReady reports whether every character a shot references
// by name has a completed avatar; the caller passes the Character IDs
// those names already resolved to. This is §4.5's fine-grained S5 readiness edge:
// "ready as soon as its scene's S2 is complete AND all referenced
// characters' S4 tasks are complete."
func shotCharactersReady(tasks []*domain.Task, characterIDs []string) bool {
	for _, id := range characterIDs {
		if !characterAvatarReady(tasks, id) {
			return false
		}
	}
	return true
}

// transitionsMaterialized reports whether CreateTransition tasks have
// already been enqueued for this chapter (S6 fans out once, after the
// full shot list and all keyframes are known).
func transitionsMaterialized(tasks []*domain.Task) bool {
	return len(tasksOfKind(tasks, domain.KindCreateTransition)) > 0
}

// composeVideoMaterialized reports whether S8's single compose_video
// task already exists for this job.
func composeVideoMaterialized(tasks []*domain.Task) bool {
	return len(tasksOfKind(tasks, domain.KindComposeVideo)) > 0
}

// apiKeyIDOf recovers the API key a task ran under from whichever payload
// branch is populated, so a downstream fan-out can reuse the same key
// without the Executor having to track it as instance state (which would
// race across concurrently-running jobs).
func apiKeyIDOf(t *domain.Task) string {
	switch p := t.Payload; {
	case p.ExtractCharacters != nil:
		return p.ExtractCharacters.APIKeyID
	case p.ExtractScenes != nil:
		return p.ExtractScenes.APIKeyID
	case p.ExtractShots != nil:
		return p.ExtractShots.APIKeyID
	case p.GenerateSceneImage != nil:
		return p.GenerateSceneImage.APIKeyID
	case p.GenerateCharacterAvatar != nil:
		return p.GenerateCharacterAvatar.APIKeyID
	case p.GenerateKeyframe != nil:
		return p.GenerateKeyframe.APIKeyID
	case p.CreateTransition != nil:
		return p.CreateTransition.APIKeyID
	case p.SubmitTransitionVideo != nil:
		return p.SubmitTransitionVideo.APIKeyID
	case p.PollTransitionVideo != nil:
		return p.PollTransitionVideo.APIKeyID
	case p.GenerateSentenceImage != nil:
		return p.GenerateSentenceImage.APIKeyID
	case p.GenerateSentenceAudio != nil:
		return p.GenerateSentenceAudio.APIKeyID
	default:
		return ""
	}
}

// transitionsDecision is maybeCreateTransitions' verdict once every
// shot's keyframe has resolved.
type transitionsDecision int

const (
	// transitionsWait means some keyframe is still pending; check again
	// on the next terminal keyframe/scene-image task.
	transitionsWait transitionsDecision = iota
	// transitionsReady means S6 should fan out one CreateTransition task
	// per adjacent shot pair.
	transitionsReady
	// transitionsFailNoKeyframes means every shot's keyframe failed.
	transitionsFailNoKeyframes
	// transitionsFailTooFewShots means fewer than 2 shots exist, so no
	// transition pair can be formed even though every keyframe resolved.
	transitionsFailTooFewShots
)

// decideTransitions implements §4.5's S6 readiness rule and §4.6's
// "fewer than 2 shots; no transitions possible" edge case, given every
// shot's keyframe terminal counts and the chapter's total shot count.
func decideTransitions(keyframeCounts StageCounts, numShots int) transitionsDecision {
	if keyframeCounts.Total < numShots || (keyframeCounts.Success+keyframeCounts.Failed) < keyframeCounts.Total {
		return transitionsWait
	}
	if keyframeCounts.Success == 0 {
		return transitionsFailNoKeyframes
	}
	if numShots < 2 {
		return transitionsFailTooFewShots
	}
	return transitionsReady
}

// weightedProgress implements §4.5's progress rollup: "weighted rollup of
// its task tree... weights reflect cost estimates... summed per stage."
func weightedProgress(tasks []*domain.Task) float64 {
	if len(tasks) == 0 {
		return 0
	}
	var totalWeight, doneWeight float64
	for _, t := range tasks {
		w := float64(StageWeight(t.Kind))
		totalWeight += w
		if t.IsTerminal() {
			doneWeight += w
		}
	}
	if totalWeight == 0 {
		return 0
	}
	return doneWeight / totalWeight
}

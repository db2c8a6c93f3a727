// Package executor implements the Stage Graph Executor (§4.5): the
// component that knows, for each pipeline type, which stage depends on
// which, materializes the tasks of a stage once its dependencies are
// satisfied, and rolls task-tree outcomes up into Job progress and
// Chapter pipeline_status.
package executor

import "github.com/sceneforge/core/internal/domain"

// StageName identifies a node in a pipeline's stage DAG.
type StageName string

const (
	StageExtractCharacters      StageName = "S0_extract_characters"
	StageExtractScenes          StageName = "S1_extract_scenes"
	StageExtractShots           StageName = "S2_extract_shots"
	StageGenerateSceneImages    StageName = "S3_generate_scene_images"
	StageGenerateCharacterAvatars StageName = "S4_generate_character_avatars"
	StageGenerateKeyframes      StageName = "S5_generate_keyframes"
	StageCreateTransitions      StageName = "S6_create_transitions"
	StageGenerateTransitionVideos StageName = "S7_generate_transition_videos"
	StageComposeVideo           StageName = "S8_compose_video"

	StageNarrativeSentenceAssets StageName = "N0_sentence_assets" // per-sentence {image, audio} fan-out
	StageComposeNarrative        StageName = "N1_compose_narrative"
)

// StageDef is one node of a pipeline's stage DAG: its task kind and the
// stages it depends on. It has no per-stage switch for partial results:
// the executor releases downstream work from whichever tasks of a stage
// succeeded, and fails the job only when none did.
type StageDef struct {
	Name       StageName
	TaskKind   domain.TaskKind
	DependsOn  []StageName
}

// MovieStages is the stage DAG of §4.5's table, in dependency order.
var MovieStages = []StageDef{
	{Name: StageExtractCharacters, TaskKind: domain.KindExtractCharacters},
	{Name: StageExtractScenes, TaskKind: domain.KindExtractScenes, DependsOn: []StageName{StageExtractCharacters}},
	{Name: StageExtractShots, TaskKind: domain.KindExtractShots, DependsOn: []StageName{StageExtractScenes}},
	{Name: StageGenerateSceneImages, TaskKind: domain.KindGenerateSceneImage, DependsOn: []StageName{StageExtractScenes}},
	{Name: StageGenerateCharacterAvatars, TaskKind: domain.KindGenerateCharacterAvatar, DependsOn: []StageName{StageExtractCharacters}},
	{Name: StageGenerateKeyframes, TaskKind: domain.KindGenerateKeyframe, DependsOn: []StageName{StageExtractShots, StageGenerateCharacterAvatars}},
	{Name: StageCreateTransitions, TaskKind: domain.KindCreateTransition, DependsOn: []StageName{StageExtractShots, StageGenerateKeyframes}},
	{Name: StageGenerateTransitionVideos, TaskKind: domain.KindSubmitTransitionVideo, DependsOn: []StageName{StageCreateTransitions}},
	{Name: StageComposeVideo, TaskKind: domain.KindComposeVideo, DependsOn: []StageName{StageGenerateTransitionVideos}},
}

// NarrativeStages is the narrative pipeline's simpler two-node DAG.
var NarrativeStages = []StageDef{
	{Name: StageNarrativeSentenceAssets, TaskKind: domain.KindGenerateSentenceImage},
	{Name: StageComposeNarrative, TaskKind: domain.KindComposeNarrative, DependsOn: []StageName{StageNarrativeSentenceAssets}},
}

// StageWeight maps a stage to the §4.5 progress-rollup cost it
// contributes per task ("video=8, image=2, text=1, assembly=10").
func StageWeight(kind domain.TaskKind) int {
	return domain.CostWeight[domain.CapacityFor(kind)]
}

// StageState is the aggregate status of every task materialized for a
// stage, derived from counting terminal/non-terminal Task rows — never
// stored independently, so it is always consistent with the Task
// Runtime after a crash (§4.7's "only state is the Artifact Repository"
// idempotency goal applies here too).
type StageState string

const (
	StagePending  StageState = "pending"  // not yet materialized
	StageRunning  StageState = "running"  // materialized, not all terminal
	StagePartial  StageState = "partial"  // all terminal, mixed success/failure
	StageComplete StageState = "complete" // all terminal, all success
	StageFailed   StageState = "failed"   // all terminal, zero success
)

// StageCounts tallies a stage's materialized tasks by terminal outcome.
type StageCounts struct {
	Total   int
	Success int
	Failed  int
}

// Resolve derives StageState from a tally per §4.5's partial-failure
// policy: "a stage with 0 successes fails its job"; "partial readiness
// when failed_count > 0 AND success_count > 0".
func (c StageCounts) Resolve() StageState {
	if c.Total == 0 {
		return StagePending
	}
	terminal := c.Success + c.Failed
	if terminal < c.Total {
		return StageRunning
	}
	if c.Success == 0 {
		return StageFailed
	}
	if c.Failed > 0 {
		return StagePartial
	}
	return StageComplete
}

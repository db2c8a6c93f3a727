package domain

// TaskStatus mirrors JobStatus but at the unit-of-work granularity (§3).
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskSuccess   TaskStatus = "success"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// TaskKind names every handler the worker dispatcher knows about (§4.5
// stage table + the narrative-pipeline fan-out). Kept as a plain string
// type rather than an interface so tasks can be persisted without
// reflection, per spec §9's anti-reflection design note.
type TaskKind string

const (
	KindExtractCharacters      TaskKind = "extract_characters"       // S0
	KindExtractScenes          TaskKind = "extract_scenes"           // S1
	KindExtractShots           TaskKind = "extract_shots"            // S2
	KindGenerateSceneImage     TaskKind = "generate_scene_image"     // S3
	KindGenerateCharacterAvatar TaskKind = "generate_character_avatar" // S4
	KindGenerateKeyframe       TaskKind = "generate_keyframe"        // S5
	KindCreateTransition       TaskKind = "create_transition"        // S6
	KindSubmitTransitionVideo  TaskKind = "submit_transition_video"  // S7 submit half
	KindPollTransitionVideo    TaskKind = "poll_transition_video"    // S7 poll half (Sweeper-driven)
	KindComposeVideo           TaskKind = "compose_video"            // S8

	KindGenerateSentenceImage TaskKind = "generate_sentence_image" // narrative pipeline
	KindGenerateSentenceAudio TaskKind = "generate_sentence_audio" // narrative pipeline
	KindComposeNarrative      TaskKind = "compose_narrative"
)

// Progress is a {current,total} pair a running task reports; it rolls up
// to its Job's progress (§4.4).
type Progress struct {
	Current int `dynamodbav:"current" json:"current"`
	Total   int `dynamodbav:"total" json:"total"`
}

// Task is the executor's unit of work; always belongs to a Job. Tasks may
// spawn child tasks — the Job is complete when its task tree terminates
// (§3).
type Task struct {
	TaskID   string `dynamodbav:"task_id" json:"task_id"`
	JobID    string `dynamodbav:"job_id" json:"job_id"`
	ParentID string `dynamodbav:"parent_id,omitempty" json:"parent_id,omitempty"`

	Kind    TaskKind        `dynamodbav:"kind" json:"kind"`
	Payload TaskPayload     `dynamodbav:"payload" json:"payload"`
	Status  TaskStatus      `dynamodbav:"status" json:"status"`

	Progress Progress `dynamodbav:"progress" json:"progress"`

	Retries      int  `dynamodbav:"retries" json:"retries"`
	CancelFlag   bool `dynamodbav:"cancel_flag,omitempty" json:"cancel_flag,omitempty"`

	ResultRef    string  `dynamodbav:"result_ref,omitempty" json:"result_ref,omitempty"`
	ErrorKind    string  `dynamodbav:"error_kind,omitempty" json:"error_kind,omitempty"`
	ErrorMessage *string `dynamodbav:"error_message,omitempty" json:"error_message,omitempty"`

	SubmissionOrdinal int64 `dynamodbav:"submission_ordinal" json:"submission_ordinal"` // tie-break on equal priority, §4.5

	CreatedAt   int64  `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt   int64  `dynamodbav:"updated_at" json:"updated_at"`
	CompletedAt *int64 `dynamodbav:"completed_at,omitempty" json:"completed_at,omitempty"`
	TTL         int64  `dynamodbav:"ttl" json:"ttl"`
}

func (t *Task) IsTerminal() bool {
	switch t.Status {
	case TaskSuccess, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// CapacityKind groups task kinds under the concurrency caps of §4.4 — the
// caps are per capability class, not per fine-grained task kind (e.g. S3
// and S4 and S5 all draw from the "image" cap).
type CapacityKind string

const (
	CapacityText     CapacityKind = "text"
	CapacityImage    CapacityKind = "image"
	CapacityTTS      CapacityKind = "tts"
	CapacityVideoSub CapacityKind = "video_submit"
	CapacityVideoPol CapacityKind = "video_poll"
	CapacityAssembly CapacityKind = "assembly"
)

// CapacityFor maps a TaskKind to the capacity class it draws from.
func CapacityFor(kind TaskKind) CapacityKind {
	switch kind {
	case KindExtractCharacters, KindExtractScenes, KindExtractShots, KindCreateTransition:
		return CapacityText
	case KindGenerateSceneImage, KindGenerateCharacterAvatar, KindGenerateKeyframe, KindGenerateSentenceImage:
		return CapacityImage
	case KindGenerateSentenceAudio:
		return CapacityTTS
	case KindSubmitTransitionVideo:
		return CapacityVideoSub
	case KindPollTransitionVideo:
		return CapacityVideoPol
	case KindComposeVideo, KindComposeNarrative:
		return CapacityAssembly
	default:
		return CapacityText
	}
}

// DefaultConcurrencyCaps are the per-kind, per-process defaults of §4.4.
// video_poll is "unbounded (cheap)" in the spec; represented here as a
// very large cap rather than a genuinely unbounded channel so the same
// semaphore implementation serves every capacity class uniformly.
var DefaultConcurrencyCaps = map[CapacityKind]int{
	CapacityText:     3,
	CapacityImage:    5,
	CapacityTTS:      5,
	CapacityVideoSub: 5,
	CapacityVideoPol: 1 << 20,
	CapacityAssembly: 1, // one assembly at a time per worker process (cluster-wide with the distributed semaphore), whatever the chapter
}

// MaxRetries is the per-kind retry ceiling of §4.4. video-poll retries
// forever (handled by the Sweeper's own loop, not the Task Runtime retry
// policy), so it has no entry here. assembly gets a single retry: a
// transient clip-download failure is worth one automatic reattempt, but
// a full ffmpeg pass is too expensive to retry on the Task Runtime's
// usual schedule, so it stops well short of the cheaper capacity kinds.
var MaxRetries = map[CapacityKind]int{
	CapacityText:     3,
	CapacityImage:    2,
	CapacityTTS:      3,
	CapacityVideoSub: 2,
	CapacityAssembly: 1,
}

// CostWeight is used by the Executor's progress rollup (§4.5: "video=8,
// image=2, text=1, assembly=10").
var CostWeight = map[CapacityKind]int{
	CapacityText:     1,
	CapacityImage:    2,
	CapacityTTS:      1,
	CapacityVideoSub: 8,
	CapacityVideoPol: 0, // polling itself carries no additional weight; the submit already counted
	CapacityAssembly: 10,
}

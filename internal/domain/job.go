package domain

// JobStatus is the lifecycle of a user-submitted pipeline request (§3).
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSuccess   JobStatus = "success"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// JobStatistics rolls up task-tree outcomes for a Job (§3, §7).
type JobStatistics struct {
	Total   int `dynamodbav:"total" json:"total"`
	Success int `dynamodbav:"success" json:"success"`
	Failed  int `dynamodbav:"failed" json:"failed"`
	Skipped int `dynamodbav:"skipped" json:"skipped"` // idempotent-resume: artifacts already present
}

// Job is a user-submitted request to drive part of the pipeline, e.g.
// "extract scenes for chapter X" (§3). Kept on DynamoDB: it is
// operational, short-lived, and TTL-swept — the teacher's dynamodbav/TTL
// convention on domain.Job is reused directly.
type Job struct {
	JobID     string `dynamodbav:"job_id" json:"job_id"`
	ChapterID string `dynamodbav:"chapter_id" json:"chapter_id"`
	OwnerID   string `dynamodbav:"owner_id" json:"owner_id"`

	Kind        string    `dynamodbav:"kind" json:"kind"` // e.g. "extract_scenes", "compose_video"
	TargetStage string    `dynamodbav:"target_stage" json:"target_stage"`
	Status      JobStatus `dynamodbav:"status" json:"status"`

	Progress   float64       `dynamodbav:"progress" json:"progress"` // [0,1], monotonically nondecreasing until terminal
	Statistics JobStatistics `dynamodbav:"statistics" json:"statistics"`

	CancelRequested bool `dynamodbav:"cancel_requested,omitempty" json:"cancel_requested,omitempty"`

	ResultRef    string  `dynamodbav:"result_ref,omitempty" json:"result_ref,omitempty"`
	ErrorCode    string  `dynamodbav:"error_code,omitempty" json:"error_code,omitempty"`
	ErrorMessage *string `dynamodbav:"error_message,omitempty" json:"error_message,omitempty"`

	CreatedAt   int64  `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt   int64  `dynamodbav:"updated_at" json:"updated_at"`
	CompletedAt *int64 `dynamodbav:"completed_at,omitempty" json:"completed_at,omitempty"`
	TTL         int64  `dynamodbav:"ttl" json:"ttl"` // unix timestamp for auto-deletion: 14d success, 90d failure
}

// TTL windows per §3 Lifecycles.
const (
	TTLSeconds        = 14 * 24 * 60 * 60
	TTLFailureSeconds = 90 * 24 * 60 * 60
)

// IsTerminal reports whether the Job has reached a status from which it
// will not change again (used to gate TTL assignment and to stop progress
// from changing further, §8 invariant 4).
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case JobSuccess, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

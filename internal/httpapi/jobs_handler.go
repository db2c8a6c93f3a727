package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/domain"
	"github.com/sceneforge/core/internal/executor"
	"github.com/sceneforge/core/internal/taskstore"
	"github.com/sceneforge/core/pkg/errors"
)

// jobsHandler exposes the Stage Graph Executor's submit/query/cancel
// surface over HTTP, grounded on the teacher's JobsHandler but built
// against domain.Job/executor.JobExecutor instead of the teacher's flat
// DynamoDB job row and GeneratorService.
type jobsHandler struct {
	exec   *executor.JobExecutor
	jobs   *taskstore.JobStore
	logger *zap.Logger
}

func newJobsHandler(exec *executor.JobExecutor, jobs *taskstore.JobStore, logger *zap.Logger) *jobsHandler {
	return &jobsHandler{exec: exec, jobs: jobs, logger: logger}
}

// submitJobRequest is the POST /api/v1/jobs body.
type submitJobRequest struct {
	ChapterID   string `json:"chapter_id" binding:"required"`
	OwnerID     string `json:"owner_id" binding:"required"`
	APIKeyID    string `json:"api_key_id" binding:"required"`
	Model       string `json:"model"`
	TargetStage string `json:"target_stage" binding:"required"`
}

// Submit handles POST /api/v1/jobs.
func (h *jobsHandler) Submit(c *gin.Context) {
	var req submitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ErrorResponse{Error: errors.NewAPIError(errors.ErrInvalidRequest, err.Error(), nil)})
		return
	}

	job, err := h.exec.SubmitJob(c.Request.Context(), req.ChapterID, req.OwnerID, req.APIKeyID, req.Model, req.TargetStage)
	if err != nil {
		h.logger.Error("submit job", zap.String("chapter_id", req.ChapterID), zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// Get handles GET /api/v1/jobs/:id.
func (h *jobsHandler) Get(c *gin.Context) {
	jobID := c.Param("id")
	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, domain.NewNotFoundError("job %s not found", jobID))
		return
	}
	c.JSON(http.StatusOK, job)
}

// Cancel handles POST /api/v1/jobs/:id/cancel.
func (h *jobsHandler) Cancel(c *gin.Context) {
	jobID := c.Param("id")
	if err := h.exec.Cancel(c.Request.Context(), jobID); err != nil {
		h.logger.Error("cancel job", zap.String("job_id", jobID), zap.Error(err))
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// jobStreamEvent is the SSE payload sent on every Job poll tick, grounded
// on the teacher's JobUpdateEvent but carrying this domain's progress
// and statistics fields instead of stage-name-string progress.
type jobStreamEvent struct {
	Status     domain.JobStatus     `json:"status"`
	Progress   float64              `json:"progress"`
	Statistics domain.JobStatistics `json:"statistics"`
}

// streamPollInterval matches the teacher's ticker cadence for SSE polls.
const streamPollInterval = 1 * time.Second

// Stream handles GET /api/v1/jobs/:id/stream, a Server-Sent Events
// progress feed that closes once the Job reaches a terminal status
// (§8: Job.progress is monotonically nondecreasing until terminal).
func (h *jobsHandler) Stream(c *gin.Context) {
	jobID := c.Param("id")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	var lastProgress float64 = -1

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := h.jobs.Get(context.Background(), jobID)
			if err != nil {
				c.SSEvent("error", gin.H{"error": "failed to fetch job status"})
				c.Writer.Flush()
				continue
			}

			if job.Progress != lastProgress {
				lastProgress = job.Progress
				data, err := json.Marshal(jobStreamEvent{Status: job.Status, Progress: job.Progress, Statistics: job.Statistics})
				if err != nil {
					h.logger.Error("marshal job stream event", zap.Error(err))
					continue
				}
				c.SSEvent("update", string(data))
				c.Writer.Flush()
			}

			if job.IsTerminal() {
				c.SSEvent("done", gin.H{"status": job.Status})
				c.Writer.Flush()
				return
			}
		}
	}
}

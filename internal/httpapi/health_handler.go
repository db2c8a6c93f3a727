package httpapi

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/repository"
	"github.com/sceneforge/core/internal/taskstore"
)

// healthHandler checks every storage dependency this process talks to
// and folds in host CPU/mem/disk telemetry, grounded on the teacher's
// health.go (dependency pings) plus tvarr's gopsutil-backed system
// metrics, neither of which alone covered both concerns.
type healthHandler struct {
	jobs      *taskstore.JobStore
	tasks     *taskstore.TaskStore
	videoJobs *taskstore.VideoTaskStore
	artifacts *repository.ArtifactRepository
	projects  *repository.ProjectRepository
	logger    *zap.Logger
}

func newHealthHandler(
	jobs *taskstore.JobStore,
	tasks *taskstore.TaskStore,
	videoJobs *taskstore.VideoTaskStore,
	artifacts *repository.ArtifactRepository,
	projects *repository.ProjectRepository,
	logger *zap.Logger,
) *healthHandler {
	return &healthHandler{jobs: jobs, tasks: tasks, videoJobs: videoJobs, artifacts: artifacts, projects: projects, logger: logger}
}

// healthResponse is the /health JSON body.
type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Host      hostInfo          `json:"host"`
}

type hostInfo struct {
	CPUCores       int     `json:"cpu_cores"`
	Load1          float64 `json:"load1"`
	MemUsedMB      float64 `json:"mem_used_mb"`
	MemTotalMB     float64 `json:"mem_total_mb"`
	DiskUsedPct    float64 `json:"disk_used_percent"`
	GoroutineCount int     `json:"goroutine_count"`
}

func (h *healthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{
		"jobs_store":       h.ping("jobs_store", h.jobs.HealthCheck(ctx)),
		"tasks_store":      h.ping("tasks_store", h.tasks.HealthCheck(ctx)),
		"video_task_store": h.ping("video_task_store", h.videoJobs.HealthCheck(ctx)),
		"artifacts":        h.ping("artifacts", h.artifacts.HealthCheck(ctx)),
		"projects":         h.ping("projects", h.projects.HealthCheck(ctx)),
	}

	status := "healthy"
	statusCode := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(statusCode, healthResponse{
		Status:    status,
		Timestamp: time.Now().Unix(),
		Checks:    checks,
		Host:      collectHostInfo(),
	})
}

func (h *healthHandler) ping(name string, err error) string {
	if err != nil {
		h.logger.Error("health check failed", zap.String("component", name), zap.Error(err))
		return "unhealthy"
	}
	return "ok"
}

func collectHostInfo() hostInfo {
	info := hostInfo{CPUCores: runtime.NumCPU(), GoroutineCount: runtime.NumGoroutine()}

	if avg, err := load.Avg(); err == nil && avg != nil {
		info.Load1 = avg.Load1
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		info.MemUsedMB = float64(vm.Used) / 1024 / 1024
		info.MemTotalMB = float64(vm.Total) / 1024 / 1024
	}
	if usage, err := disk.Usage("/"); err == nil && usage != nil {
		info.DiskUsedPct = usage.UsedPercent
	}
	return info
}

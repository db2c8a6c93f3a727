package sweeper

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/taskstore"
)

// TTLSweepSchedule is the default cron expression for the maintenance
// cycle below: hourly, grounded on tvarr's DefaultLogoScanSchedule shape.
const TTLSweepSchedule = "0 0 * * * *"

// TTLSweeper runs the cron-driven Job/Task retention cycle (§3
// Lifecycles), distinct from the Sweeper's own tight video-poll loop.
// DynamoDB's native ttl attribute already expires rows on its own
// schedule (AWS documents this as "usually within 48 hours"); this
// sweep is a tighter backstop that deletes already-expired rows on an
// hourly cadence instead of waiting on the native sweep.
type TTLSweeper struct {
	jobs   *taskstore.JobStore
	tasks  *taskstore.TaskStore
	logger *zap.Logger
	cron   *cron.Cron
}

func NewTTLSweeper(jobs *taskstore.JobStore, tasks *taskstore.TaskStore, logger *zap.Logger) *TTLSweeper {
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &TTLSweeper{jobs: jobs, tasks: tasks, logger: logger, cron: c}
}

// Start registers the hourly maintenance cycle and begins the cron
// scheduler's own goroutine. The caller's ctx governs the jobs the
// cycle runs, not the scheduler's lifetime; call Stop to halt it.
func (t *TTLSweeper) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = TTLSweepSchedule
	}
	_, err := t.cron.AddFunc(schedule, func() { t.sweep(ctx) })
	if err != nil {
		return err
	}
	t.cron.Start()
	return nil
}

// Stop waits for any in-flight sweep to finish before returning.
func (t *TTLSweeper) Stop() {
	stopCtx := t.cron.Stop()
	<-stopCtx.Done()
}

func (t *TTLSweeper) sweep(ctx context.Context) {
	jobsDeleted, err := t.jobs.DeleteExpired(ctx)
	if err != nil {
		t.logger.Error("ttl sweep jobs", zap.Error(err))
	}
	tasksDeleted, err := t.tasks.DeleteExpired(ctx)
	if err != nil {
		t.logger.Error("ttl sweep tasks", zap.Error(err))
	}
	if jobsDeleted > 0 || tasksDeleted > 0 {
		t.logger.Info("ttl sweep complete", zap.Int("jobs_deleted", jobsDeleted), zap.Int("tasks_deleted", tasksDeleted))
	}
}

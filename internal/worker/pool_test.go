package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/domain"
	"github.com/sceneforge/core/internal/queue"
)

type fakeTaskGetter struct {
	task *domain.Task
	err  error
}

func (f *fakeTaskGetter) Get(ctx context.Context, taskID string) (*domain.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.task, nil
}

type fakeDispatcher struct {
	err error
}

func (f *fakeDispatcher) Handle(ctx context.Context, task *domain.Task) error {
	return f.err
}

type fakeBroker struct {
	mu     sync.Mutex
	acked  int
	extend int
}

func (f *fakeBroker) Enqueue(ctx context.Context, queueURL, taskID string) error { return nil }

func (f *fakeBroker) Receive(ctx context.Context, queueURL string, maxMessages, waitSeconds int) ([]queue.Message, error) {
	return nil, nil
}

func (f *fakeBroker) Ack(ctx context.Context, queueURL string, msg queue.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked++
	return nil
}

func (f *fakeBroker) ExtendVisibility(ctx context.Context, queueURL string, msg queue.Message, seconds int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extend++
	return nil
}

func (f *fakeBroker) ackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acked
}

// TestPool_Handle_AcksOnTerminalOutcome covers both success and
// terminal-failure: Dispatcher.Handle returns nil for each (the Task
// Runtime already recorded the outcome), so the message must be acked.
func TestPool_Handle_AcksOnTerminalOutcome(t *testing.T) {
	broker := &fakeBroker{}
	pool := &Pool{
		dispatcher: &fakeDispatcher{err: nil},
		tasks:      &fakeTaskGetter{task: &domain.Task{TaskID: "t1", Status: domain.TaskPending, Kind: domain.KindExtractCharacters}},
		broker:     broker,
		logger:     zap.NewNop(),
	}

	pool.handle(context.Background(), domain.CapacityText, "queue-url", queue.Message{TaskID: "t1"})

	if got := broker.ackCount(); got != 1 {
		t.Errorf("ack count = %d, want 1", got)
	}
}

// TestPool_Handle_LeavesUnackedOnRetryablePending covers §4.4's retry
// contract: Dispatcher.Handle returns a non-nil error when the task was
// left pending for the broker to redeliver, so handle must not Ack it.
func TestPool_Handle_LeavesUnackedOnRetryablePending(t *testing.T) {
	broker := &fakeBroker{}
	pool := &Pool{
		dispatcher: &fakeDispatcher{err: errors.New("provider timeout, retrying")},
		tasks:      &fakeTaskGetter{task: &domain.Task{TaskID: "t1", Status: domain.TaskRunning, Kind: domain.KindGenerateKeyframe}},
		broker:     broker,
		logger:     zap.NewNop(),
	}

	pool.handle(context.Background(), domain.CapacityImage, "queue-url", queue.Message{TaskID: "t1"})

	if got := broker.ackCount(); got != 0 {
		t.Errorf("ack count = %d, want 0 (message should be left for redelivery)", got)
	}
}

// TestPool_Handle_AcksAlreadyTerminalTaskWithoutDispatch covers the
// at-least-once redelivery case: a message for a task that already
// reached a terminal status (a prior delivery's Handle already ran) is
// acked immediately without being dispatched again.
func TestPool_Handle_AcksAlreadyTerminalTaskWithoutDispatch(t *testing.T) {
	broker := &fakeBroker{}
	dispatcher := &fakeDispatcher{err: errors.New("should never be called")}
	pool := &Pool{
		dispatcher: dispatcher,
		tasks:      &fakeTaskGetter{task: &domain.Task{TaskID: "t1", Status: domain.TaskSuccess, Kind: domain.KindExtractCharacters}},
		broker:     broker,
		logger:     zap.NewNop(),
	}

	pool.handle(context.Background(), domain.CapacityText, "queue-url", queue.Message{TaskID: "t1"})

	if got := broker.ackCount(); got != 1 {
		t.Errorf("ack count = %d, want 1", got)
	}
}

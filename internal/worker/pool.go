package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/concurrency"
	"github.com/sceneforge/core/internal/domain"
	"github.com/sceneforge/core/internal/queue"
	"github.com/sceneforge/core/internal/taskstore"
)

// receiveBatch and longPollSeconds mirror the broker's SQS long-poll
// maximums: up to 10 messages per receive, waiting up to 20 seconds for
// one to arrive rather than busy-polling an empty queue.
const (
	receiveBatch    = 10
	longPollSeconds = 20

	// visibilityExtension is renewed every extendEvery (60 s, inside the
	// queue's 120 s default visibility timeout) so a video-submit or
	// assembly call that outlives that default is never redelivered to a
	// second worker mid-flight.
	visibilityExtension = 300 * time.Second
	extendEvery          = visibilityExtension / 5
)

// distributedPollInterval is how often a worker retries TryAcquire
// against the cross-process DistributedSemaphore while a local slot is
// already held but the cluster-wide cap is currently full.
const distributedPollInterval = 500 * time.Millisecond

// taskGetter is the slice of *taskstore.TaskStore the Pool needs; narrowed
// to an interface so handle()'s Ack/redelivery branching can be unit
// tested against a fake store instead of a live DynamoDB table.
type taskGetter interface {
	Get(ctx context.Context, taskID string) (*domain.Task, error)
}

// taskDispatcher is the slice of *Dispatcher the Pool needs, narrowed for
// the same reason as taskGetter.
type taskDispatcher interface {
	Handle(ctx context.Context, task *domain.Task) error
}

// Pool drains one SQS queue per domain.CapacityKind, bounding in-flight
// handler calls for that kind to its configured concurrency cap — the
// consumer-side enforcement §4.4 requires ("one queue per CapacityKind
// keeps the concurrency caps enforceable... without cross-kind
// head-of-line blocking"). When distributed is non-nil, the per-kind cap
// is additionally enforced across every `worker` process sharing that
// Redis key, not just within this one.
type Pool struct {
	dispatcher  taskDispatcher
	tasks       taskGetter
	broker      queue.Broker
	queueURLs   map[domain.CapacityKind]string
	caps        map[domain.CapacityKind]int
	distributed map[domain.CapacityKind]*concurrency.DistributedSemaphore
	logger      *zap.Logger
}

func NewPool(
	dispatcher *Dispatcher,
	tasks *taskstore.TaskStore,
	broker queue.Broker,
	queueURLs map[domain.CapacityKind]string,
	caps map[domain.CapacityKind]int,
	distributed map[domain.CapacityKind]*concurrency.DistributedSemaphore,
	logger *zap.Logger,
) *Pool {
	return &Pool{dispatcher: dispatcher, tasks: tasks, broker: broker, queueURLs: queueURLs, caps: caps, distributed: distributed, logger: logger}
}

// Run blocks until ctx is cancelled, draining every configured capacity
// kind's queue concurrently. A kind whose cap is 0 is skipped — §4.4's
// video-poll class is Sweeper-driven and never appears here.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for kind, queueURL := range p.queueURLs {
		if kind == domain.CapacityVideoPol {
			continue // Sweeper-driven; nothing is ever enqueued onto this queue
		}
		limit := p.caps[kind]
		if limit <= 0 {
			continue
		}
		wg.Add(1)
		go func(kind domain.CapacityKind, queueURL string, limit int) {
			defer wg.Done()
			p.drain(ctx, kind, queueURL, concurrency.NewSemaphore(limit))
		}(kind, queueURL, limit)
	}
	wg.Wait()
}

// drain long-polls a single queue, handing each received message to its
// own goroutine once a semaphore slot is free, the shape grounded on the
// teacher's Lambda-per-invocation model generalized to a standing pool.
func (p *Pool) drain(ctx context.Context, kind domain.CapacityKind, queueURL string, sem *concurrency.Semaphore) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := p.broker.Receive(ctx, queueURL, receiveBatch, longPollSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("receive from queue", zap.String("capacity_kind", string(kind)), zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			if err := sem.Acquire(ctx); err != nil {
				return
			}
			go func(msg queue.Message) {
				defer sem.Release()
				if !p.acquireDistributed(ctx, kind, msg.TaskID) {
					return
				}
				defer p.releaseDistributed(ctx, kind, msg.TaskID)
				p.handle(ctx, kind, queueURL, msg)
			}(msg)
		}
	}
}

// acquireDistributed blocks (polling) until a cluster-wide slot for kind
// is free, or ctx is cancelled. Returns false on cancellation or if no
// DistributedSemaphore is configured for this kind (local cap only).
func (p *Pool) acquireDistributed(ctx context.Context, kind domain.CapacityKind, holderID string) bool {
	dsem, ok := p.distributed[kind]
	if !ok || dsem == nil {
		return true
	}
	ticker := time.NewTicker(distributedPollInterval)
	defer ticker.Stop()
	for {
		acquired, err := dsem.TryAcquire(ctx, holderID)
		if err != nil {
			p.logger.Error("distributed semaphore acquire", zap.String("capacity_kind", string(kind)), zap.Error(err))
			return false
		}
		if acquired {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (p *Pool) releaseDistributed(ctx context.Context, kind domain.CapacityKind, holderID string) {
	dsem, ok := p.distributed[kind]
	if !ok || dsem == nil {
		return
	}
	if err := dsem.Release(ctx, holderID); err != nil {
		p.logger.Warn("distributed semaphore release", zap.String("capacity_kind", string(kind)), zap.Error(err))
	}
}

// handle resolves a message's task, runs it under a visibility-extension
// heartbeat, and acks the message only once the Dispatcher has recorded
// a terminal outcome (success or failed). Dispatcher.Handle returns nil
// for both of those; it returns the handler's own error when the task
// was left pending for a retry, in which case the message must NOT be
// acked so the broker redelivers it after the visibility timeout (§4.4).
func (p *Pool) handle(ctx context.Context, kind domain.CapacityKind, queueURL string, msg queue.Message) {
	task, err := p.tasks.Get(ctx, msg.TaskID)
	if err != nil {
		p.logger.Error("load task for message", zap.String("task_id", msg.TaskID), zap.Error(err))
		return
	}
	if task.Status != domain.TaskPending && task.Status != domain.TaskRunning {
		_ = p.broker.Ack(ctx, queueURL, msg)
		return
	}

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go p.heartbeat(heartbeatCtx, kind, queueURL, msg)

	if err := p.dispatcher.Handle(ctx, task); err != nil {
		p.logger.Warn("task handler returned error, leaving unacked for redelivery", zap.String("task_id", task.TaskID), zap.String("kind", string(task.Kind)), zap.Error(err))
		return
	}

	if err := p.broker.Ack(ctx, queueURL, msg); err != nil {
		p.logger.Error("ack task message", zap.String("task_id", task.TaskID), zap.Error(err))
	}
}

// heartbeat renews both the queue's visibility timeout and, when
// configured, this kind's distributed-semaphore lease, so a handler
// that runs past either default window keeps its claim.
func (p *Pool) heartbeat(ctx context.Context, kind domain.CapacityKind, queueURL string, msg queue.Message) {
	ticker := time.NewTicker(extendEvery)
	defer ticker.Stop()
	dsem := p.distributed[kind]
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.broker.ExtendVisibility(ctx, queueURL, msg, int32(visibilityExtension.Seconds())); err != nil {
				p.logger.Warn("extend message visibility", zap.String("task_id", msg.TaskID), zap.Error(err))
				return
			}
			if dsem != nil {
				if err := dsem.Renew(ctx, msg.TaskID); err != nil {
					p.logger.Warn("renew distributed semaphore lease", zap.String("task_id", msg.TaskID), zap.Error(err))
				}
			}
		}
	}
}

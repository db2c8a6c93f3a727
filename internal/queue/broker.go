// Package queue implements the task broker the Executor publishes ready
// tasks onto and workers consume from, new relative to the teacher (which
// dispatched work via direct Lambda invocation from Step Functions).
package queue

import "context"

// Message is a broker-agnostic envelope around a task_id: the broker
// only ever needs to move an identifier, since the Task's full state
// lives in taskstore.
type Message struct {
	TaskID        string
	ReceiptHandle string // broker-specific ack token, opaque to callers
}

// Broker is the Task Runtime's queue abstraction (§4.4: "ready tasks are
// enqueued onto a broker; workers of the matching capacity class long-poll
// their queue"). One queue per CapacityKind keeps the concurrency caps
// enforceable at the consumer side without cross-kind head-of-line
// blocking.
type Broker interface {
	Enqueue(ctx context.Context, queueURL, taskID string) error
	Receive(ctx context.Context, queueURL string, maxMessages int, waitSeconds int) ([]Message, error)
	Ack(ctx context.Context, queueURL string, msg Message) error
	// ExtendVisibility keeps a long-running handler's claim on a message
	// alive past the default visibility timeout, used by video-submit and
	// assembly handlers whose external call can run past the queue's
	// default ack window.
	ExtendVisibility(ctx context.Context, queueURL string, msg Message, seconds int32) error
}

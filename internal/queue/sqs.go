package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

// SQSBroker implements Broker against Amazon SQS, one standard queue per
// CapacityKind (§4.4). Logging idiom grounded on the teacher's
// DynamoDBRepository/S3AssetRepository (structured zap fields around
// every client call).
type SQSBroker struct {
	client *sqs.Client
	logger *zap.Logger
}

func NewSQSBroker(client *sqs.Client, logger *zap.Logger) *SQSBroker {
	return &SQSBroker{client: client, logger: logger}
}

func (b *SQSBroker) Enqueue(ctx context.Context, queueURL, taskID string) error {
	_, err := b.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(taskID),
	})
	if err != nil {
		b.logger.Error("sqs enqueue failed", zap.String("task_id", taskID), zap.Error(err))
		return fmt.Errorf("enqueue task %s: %w", taskID, err)
	}
	return nil
}

func (b *SQSBroker) Receive(ctx context.Context, queueURL string, maxMessages int, waitSeconds int) ([]Message, error) {
	out, err := b.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("receive messages: %w", err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, Message{
			TaskID:        aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	return messages, nil
}

func (b *SQSBroker) Ack(ctx context.Context, queueURL string, msg Message) error {
	_, err := b.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(msg.ReceiptHandle),
	})
	if err != nil {
		return fmt.Errorf("ack task %s: %w", msg.TaskID, err)
	}
	return nil
}

func (b *SQSBroker) ExtendVisibility(ctx context.Context, queueURL string, msg Message, seconds int32) error {
	_, err := b.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(queueURL),
		ReceiptHandle:     aws.String(msg.ReceiptHandle),
		VisibilityTimeout: seconds,
	})
	if err != nil {
		return fmt.Errorf("extend visibility for task %s: %w", msg.TaskID, err)
	}
	return nil
}

// EnsureQueue creates the queue if it does not already exist, used by
// the `migrate` CLI subcommand to provision per-capacity-kind queues.
func EnsureQueue(ctx context.Context, client *sqs.Client, name string) (string, error) {
	out, err := client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(name),
		Attributes: map[string]string{
			string(types.QueueAttributeNameVisibilityTimeout): "120",
		},
	})
	if err != nil {
		return "", fmt.Errorf("ensure queue %s: %w", name, err)
	}
	return aws.ToString(out.QueueUrl), nil
}

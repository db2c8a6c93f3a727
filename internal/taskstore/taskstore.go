package taskstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/domain"
)

var ErrTaskNotFound = errors.New("task not found")

// TaskStore persists individual Task records under a Job, keyed by
// task_id with a job_id GSI for the Executor's readiness scan (§4.5:
// "the Executor lists a job's tasks to compute which stages are ready").
type TaskStore struct {
	client     *dynamodb.Client
	tableName  string
	jobIDIndex string
	logger     *zap.Logger
}

func NewTaskStore(client *dynamodb.Client, tableName, jobIDIndex string, logger *zap.Logger) *TaskStore {
	return &TaskStore{client: client, tableName: tableName, jobIDIndex: jobIDIndex, logger: logger}
}

func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	item, err := attributevalue.MarshalMap(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.tableName), Item: item})
	if err != nil {
		return fmt.Errorf("put task: %w", err)
	}
	return nil
}

func (s *TaskStore) Get(ctx context.Context, taskID string) (*domain.Task, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       map[string]types.AttributeValue{"task_id": &types.AttributeValueMemberS{Value: taskID}},
	})
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if out.Item == nil {
		return nil, ErrTaskNotFound
	}
	var task domain.Task
	if err := attributevalue.UnmarshalMap(out.Item, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &task, nil
}

// ListByJob queries the job_id GSI for every task belonging to a job,
// the input the Executor's readiness computation works from.
func (s *TaskStore) ListByJob(ctx context.Context, jobID string) ([]*domain.Task, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(s.jobIDIndex),
		KeyConditionExpression: aws.String("job_id = :job_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":job_id": &types.AttributeValueMemberS{Value: jobID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query tasks by job: %w", err)
	}

	tasks := make([]*domain.Task, 0, len(out.Items))
	for _, item := range out.Items {
		var task domain.Task
		if err := attributevalue.UnmarshalMap(item, &task); err != nil {
			return nil, fmt.Errorf("unmarshal task: %w", err)
		}
		tasks = append(tasks, &task)
	}
	return tasks, nil
}

// UpdateStatus transitions a task's status and, for terminal outcomes,
// records the result ref or error classification (§7: "the Task Runtime
// persists ErrorKind/ErrorMessage on the Task row; the Executor observes
// only the terminal outcome").
func (s *TaskStore) UpdateStatus(ctx context.Context, taskID string, status domain.TaskStatus, resultRef string, errKind domain.ErrorKind, errMsg string) error {
	names := map[string]string{"#status": "status", "#updated_at": "updated_at"}
	values := map[string]types.AttributeValue{
		":status":     &types.AttributeValueMemberS{Value: string(status)},
		":updated_at": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())},
	}
	expr := "SET #status = :status, #updated_at = :updated_at"

	if resultRef != "" {
		names["#result_ref"] = "result_ref"
		values[":result_ref"] = &types.AttributeValueMemberS{Value: resultRef}
		expr += ", #result_ref = :result_ref"
	}
	if errKind != "" {
		names["#error_kind"] = "error_kind"
		values[":error_kind"] = &types.AttributeValueMemberS{Value: string(errKind)}
		expr += ", #error_kind = :error_kind"
	}
	if errMsg != "" {
		names["#error_message"] = "error_message"
		values[":error_message"] = &types.AttributeValueMemberS{Value: errMsg}
		expr += ", #error_message = :error_message"
	}
	switch status {
	case domain.TaskSuccess, domain.TaskCancelled, domain.TaskFailed:
		ttl := int64(domain.TTLSeconds)
		if status == domain.TaskFailed {
			ttl = int64(domain.TTLFailureSeconds)
		}
		names["#ttl"] = "ttl"
		values[":ttl"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix()+ttl)}
		expr += ", #ttl = :ttl"
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       map[string]types.AttributeValue{"task_id": &types.AttributeValueMemberS{Value: taskID}},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return nil
}

// IncrementRetries records a retry attempt, used by the Task Runtime's
// backoff loop before it requeues a task (§4.4).
func (s *TaskStore) IncrementRetries(ctx context.Context, taskID string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              map[string]types.AttributeValue{"task_id": &types.AttributeValueMemberS{Value: taskID}},
		UpdateExpression: aws.String("SET retries = retries + :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		return fmt.Errorf("increment task retries: %w", err)
	}
	return nil
}

// SetCancelFlag marks a task for cooperative cancellation, propagated
// down from Job.CancelRequested by the Executor.
func (s *TaskStore) SetCancelFlag(ctx context.Context, taskID string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              map[string]types.AttributeValue{"task_id": &types.AttributeValueMemberS{Value: taskID}},
		UpdateExpression: aws.String("SET cancel_flag = :true"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return fmt.Errorf("set task cancel flag: %w", err)
	}
	return nil
}

// DeleteExpired scans for task rows whose ttl has already elapsed and
// deletes them; see JobStore.DeleteExpired for why this backstop exists
// alongside DynamoDB's own native TTL sweep.
func (s *TaskStore) DeleteExpired(ctx context.Context) (int, error) {
	now := time.Now().Unix()
	out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:            aws.String(s.tableName),
		FilterExpression:     aws.String("#ttl > :zero AND #ttl <= :now"),
		ProjectionExpression: aws.String("task_id"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":now":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("scan expired tasks: %w", err)
	}

	deleted := 0
	for _, item := range out.Items {
		taskID, ok := item["task_id"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key:       map[string]types.AttributeValue{"task_id": &types.AttributeValueMemberS{Value: taskID.Value}},
		})
		if err != nil {
			s.logger.Warn("delete expired task", zap.String("task_id", taskID.Value), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (s *TaskStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	if err != nil {
		return fmt.Errorf("task table health check: %w", err)
	}
	return nil
}

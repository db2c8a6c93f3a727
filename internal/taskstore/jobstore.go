// Package taskstore implements the Task Runtime's persistence layer
// (§4.4): Job, Task and VideoTask records in DynamoDB, adapted from the
// teacher's internal/repository/dynamodb.go. Job and Task rows get a
// native TTL attribute when they reach a terminal status, so DynamoDB
// expires them on its own; DeleteExpired is a periodic backstop sweep
// that removes rows whose ttl has passed and leaves rows without one.
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

var ErrJobNotFound = errors.New("job not found")

// JobStore persists Job records, generalizing DynamoDBRepository's
// job-specific methods to the spec's Job shape.
type JobStore struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

func NewJobStore(client *dynamodb.Client, tableName string, logger *zap.Logger) *JobStore {
	return &JobStore{client: client, tableName: tableName, logger: logger}
}

func (s *JobStore) Create(ctx context.Context, job *domain.Job) error {
	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		s.logger.Error("job create failed", zap.String("job_id", job.JobID), zap.Error(err))
		return fmt.Errorf("put job: %w", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       map[string]types.AttributeValue{"job_id": &types.AttributeValueMemberS{Value: jobID}},
	})
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if out.Item == nil {
		return nil, ErrJobNotFound
	}
	var job domain.Job
	if err := attributevalue.UnmarshalMap(out.Item, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// UpdateProgress rolls up the Executor's progress computation (§4.5:
// "progress = completed_weight / total_weight") into the Job record.
func (s *JobStore) UpdateProgress(ctx context.Context, jobID string, progress float64, stats domain.JobStatistics) error {
	statsAttr, err := attributevalue.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal statistics: %w", err)
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              map[string]types.AttributeValue{"job_id": &types.AttributeValueMemberS{Value: jobID}},
		UpdateExpression: aws.String("SET #progress = :progress, #statistics = :statistics, #updated_at = :updated_at"),
		ExpressionAttributeNames: map[string]string{
			"#progress":   "progress",
			"#statistics": "statistics",
			"#updated_at": "updated_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":progress":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%v", progress)},
			":statistics": statsAttr,
			":updated_at": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())},
		},
	})
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// MarkTerminal transitions a job to success/failed/cancelled and sets
// the short (success) or long (failure) TTL from §3's retention rule.
func (s *JobStore) MarkTerminal(ctx context.Context, jobID string, status domain.JobStatus, errCode, errMsg string) error {
	now := time.Now()
	ttlSeconds := ttlForStatus(status)

	names := map[string]string{
		"#status":     "status",
		"#updated_at": "updated_at",
		"#ttl":        "ttl",
	}
	values := map[string]types.AttributeValue{
		":status":     &types.AttributeValueMemberS{Value: string(status)},
		":updated_at": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())},
		":ttl":        &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix()+ttlSeconds)},
	}
	expr := "SET #status = :status, #updated_at = :updated_at, #ttl = :ttl"

	if errCode != "" {
		names["#error_code"] = "error_code"
		values[":error_code"] = &types.AttributeValueMemberS{Value: errCode}
		expr += ", #error_code = :error_code"
	}
	if errMsg != "" {
		names["#error_message"] = "error_message"
		values[":error_message"] = &types.AttributeValueMemberS{Value: errMsg}
		expr += ", #error_message = :error_message"
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       map[string]types.AttributeValue{"job_id": &types.AttributeValueMemberS{Value: jobID}},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("mark job terminal: %w", err)
	}
	return nil
}

// SetCancelRequested flips the cooperative-cancellation flag the
// Executor checks before enqueueing each new task (§4.5 cancellation rule).
func (s *JobStore) SetCancelRequested(ctx context.Context, jobID string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              map[string]types.AttributeValue{"job_id": &types.AttributeValueMemberS{Value: jobID}},
		UpdateExpression: aws.String("SET #cancel = :cancel"),
		ExpressionAttributeNames: map[string]string{"#cancel": "cancel_requested"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cancel": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return fmt.Errorf("set cancel requested: %w", err)
	}
	return nil
}

// ttlForStatus implements §3's retention rule: successful/cancelled jobs
// expire after TTLSeconds, failed jobs are kept longer for debugging.
func ttlForStatus(status domain.JobStatus) int64 {
	if status == domain.JobFailed {
		return int64(domain.TTLFailureSeconds)
	}
	return int64(domain.TTLSeconds)
}

// DeleteExpired scans for job rows whose ttl has already elapsed and
// deletes them, a backstop ahead of DynamoDB's native TTL sweep (which
// AWS documents as running within 48 hours of expiry rather than
// immediately) so the sweeper command's periodic cycle gives a tighter
// bound in practice.
func (s *JobStore) DeleteExpired(ctx context.Context) (int, error) {
	now := time.Now().Unix()
	out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:            aws.String(s.tableName),
		FilterExpression:     aws.String("#ttl > :zero AND #ttl <= :now"),
		ProjectionExpression: aws.String("job_id"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":now":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("scan expired jobs: %w", err)
	}

	deleted := 0
	for _, item := range out.Items {
		jobID, ok := item["job_id"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key:       map[string]types.AttributeValue{"job_id": &types.AttributeValueMemberS{Value: jobID.Value}},
		})
		if err != nil {
			s.logger.Warn("delete expired job", zap.String("job_id", jobID.Value), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (s *JobStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	if err != nil {
		return fmt.Errorf("job table health check: %w", err)
	}
	return nil
}

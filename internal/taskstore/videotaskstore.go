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

var ErrVideoTaskNotFound = errors.New("video task not found")

// VideoTaskStore persists the per-chapter VideoTask record the Video
// Assembly Engine updates as it steps through §4.6's pipeline.
type VideoTaskStore struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

func NewVideoTaskStore(client *dynamodb.Client, tableName string, logger *zap.Logger) *VideoTaskStore {
	return &VideoTaskStore{client: client, tableName: tableName, logger: logger}
}

func (s *VideoTaskStore) Create(ctx context.Context, vt *domain.VideoTask) error {
	if err := vt.Validate(); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(vt)
	if err != nil {
		return fmt.Errorf("marshal video task: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.tableName), Item: item})
	if err != nil {
		return fmt.Errorf("put video task: %w", err)
	}
	return nil
}

func (s *VideoTaskStore) Get(ctx context.Context, chapterID string) (*domain.VideoTask, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       map[string]types.AttributeValue{"chapter_id": &types.AttributeValueMemberS{Value: chapterID}},
	})
	if err != nil {
		return nil, fmt.Errorf("get video task: %w", err)
	}
	if out.Item == nil {
		return nil, ErrVideoTaskNotFound
	}
	var vt domain.VideoTask
	if err := attributevalue.UnmarshalMap(out.Item, &vt); err != nil {
		return nil, fmt.Errorf("unmarshal video task: %w", err)
	}
	return &vt, nil
}

// AdvanceStage moves the VideoTask to the next status in §4.6's pipeline
// and records step-local progress counters (current/total sentence or
// clip index) for the SSE progress stream to surface.
func (s *VideoTaskStore) AdvanceStage(ctx context.Context, chapterID string, status domain.VideoTaskStatus, progress float64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              map[string]types.AttributeValue{"chapter_id": &types.AttributeValueMemberS{Value: chapterID}},
		UpdateExpression: aws.String("SET #status = :status, #progress = :progress, #updated_at = :updated_at"),
		ExpressionAttributeNames: map[string]string{
			"#status":     "status",
			"#progress":   "progress",
			"#updated_at": "updated_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":     &types.AttributeValueMemberS{Value: string(status)},
			":progress":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%v", progress)},
			":updated_at": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())},
		},
	})
	if err != nil {
		return fmt.Errorf("advance video task stage: %w", err)
	}
	return nil
}

// SetClipProgress records the movie pipeline's current/total clip
// counters (§4.6 "Progress reporting"), surfaced by the SSE stream as a
// perceived monotonic percentage.
func (s *VideoTaskStore) SetClipProgress(ctx context.Context, chapterID string, current, total int, progress float64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              map[string]types.AttributeValue{"chapter_id": &types.AttributeValueMemberS{Value: chapterID}},
		UpdateExpression: aws.String("SET #current = :current, #total = :total, #progress = :progress, #updated_at = :updated_at"),
		ExpressionAttributeNames: map[string]string{
			"#current":    "current_clip_index",
			"#total":      "total_clips",
			"#progress":   "progress",
			"#updated_at": "updated_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":current":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", current)},
			":total":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", total)},
			":progress":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%v", progress)},
			":updated_at": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())},
		},
	})
	if err != nil {
		return fmt.Errorf("set video task clip progress: %w", err)
	}
	return nil
}

// SetSentenceProgress is SetClipProgress's narrative-pipeline analogue.
func (s *VideoTaskStore) SetSentenceProgress(ctx context.Context, chapterID string, current, total int, progress float64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              map[string]types.AttributeValue{"chapter_id": &types.AttributeValueMemberS{Value: chapterID}},
		UpdateExpression: aws.String("SET #current = :current, #total = :total, #progress = :progress, #updated_at = :updated_at"),
		ExpressionAttributeNames: map[string]string{
			"#current":    "current_sentence_index",
			"#total":      "total_sentences",
			"#progress":   "progress",
			"#updated_at": "updated_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":current":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", current)},
			":total":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", total)},
			":progress":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%v", progress)},
			":updated_at": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())},
		},
	})
	if err != nil {
		return fmt.Errorf("set video task sentence progress: %w", err)
	}
	return nil
}

func (s *VideoTaskStore) Complete(ctx context.Context, chapterID, videoURL, webmURL string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              map[string]types.AttributeValue{"chapter_id": &types.AttributeValueMemberS{Value: chapterID}},
		UpdateExpression: aws.String("SET #status = :status, #video_url = :video_url, #webm_url = :webm_url, #progress = :progress, #updated_at = :updated_at"),
		ExpressionAttributeNames: map[string]string{
			"#status":     "status",
			"#video_url":  "video_url",
			"#webm_url":   "webm_url",
			"#progress":   "progress",
			"#updated_at": "updated_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":     &types.AttributeValueMemberS{Value: string(domain.VideoCompleted)},
			":video_url":  &types.AttributeValueMemberS{Value: videoURL},
			":webm_url":   &types.AttributeValueMemberS{Value: webmURL},
			":progress":   &types.AttributeValueMemberN{Value: "1"},
			":updated_at": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())},
		},
	})
	if err != nil {
		return fmt.Errorf("complete video task: %w", err)
	}
	return nil
}

func (s *VideoTaskStore) Fail(ctx context.Context, chapterID, errMsg string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              map[string]types.AttributeValue{"chapter_id": &types.AttributeValueMemberS{Value: chapterID}},
		UpdateExpression: aws.String("SET #status = :status, #error_message = :error_message, #updated_at = :updated_at"),
		ExpressionAttributeNames: map[string]string{
			"#status":        "status",
			"#error_message": "error_message",
			"#updated_at":    "updated_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":        &types.AttributeValueMemberS{Value: string(domain.VideoFailed)},
			":error_message": &types.AttributeValueMemberS{Value: errMsg},
			":updated_at":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())},
		},
	})
	if err != nil {
		return fmt.Errorf("fail video task: %w", err)
	}
	return nil
}

func (s *VideoTaskStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	if err != nil {
		return fmt.Errorf("video task table health check: %w", err)
	}
	return nil
}

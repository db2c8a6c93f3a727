// Package blobstore implements the Blob Store Gateway (§4.3): a thin S3
// wrapper enforcing the `{project_id}/{artifact_type}/{uuid}.{ext}` key
// convention, adapted from the teacher's S3AssetRepository.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gateway wraps an S3 client behind the Artifact Repository's blob
// reference contract: keys are opaque to callers beyond ArtifactType and
// extension, so the gateway itself owns key generation.
type Gateway struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

func NewGateway(client *s3.Client, bucket string, logger *zap.Logger) *Gateway {
	return &Gateway{client: client, bucket: bucket, logger: logger}
}

// Key implements §4.3's convention: "{project_id}/{artifact_type}/{uuid}.{ext}".
func Key(projectID, artifactType, ext string) string {
	return fmt.Sprintf("%s/%s/%s.%s", projectID, artifactType, uuid.NewString(), ext)
}

// Put uploads raw bytes under the caller-supplied key and returns only an
// error, the shape every worker handler calls after generating or
// downloading provider output (§4.3:
// "the gateway is the only component that talks to S3 directly").
func (g *Gateway) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		g.logger.Error("blob put failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// PutFile uploads a file already on local disk, the shape ffmpeg output
// takes before being published (grounded on UploadFile).
func (g *Gateway) PutFile(ctx context.Context, key, filePath, contentType string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", filePath, err)
	}
	defer file.Close()

	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put file %s -> %s: %w", filePath, key, err)
	}
	return nil
}

func (g *Gateway) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// GetFile downloads directly to local disk, the shape the assembly
// engine's downloader uses to stage clips for ffmpeg (grounded on
// DownloadFile).
func (g *Gateway) GetFile(ctx context.Context, key, destPath string) error {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(key)})
	if err != nil {
		return fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, out.Body); err != nil {
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return nil
}

func (g *Gateway) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(key)})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("head object %s: %w", key, err)
	}
	return true, nil
}

func (g *Gateway) Delete(ctx context.Context, key string) error {
	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(key)})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// DeletePrefix is used when a project or chapter is deleted outright,
// cascading the blob cleanup the way gorm cascades the relational delete.
func (g *Gateway) DeletePrefix(ctx context.Context, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list objects under %s: %w", prefix, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			if obj.Key != nil {
				ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
			}
		}
		if len(ids) == 0 {
			continue
		}

		_, err = g.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(g.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete objects under %s: %w", prefix, err)
		}
	}
	return nil
}

func (g *Gateway) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	presigner := s3.NewPresignClient(g.client)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) { o.Expires = expires })
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return req.URL, nil
}

func (g *Gateway) HealthCheck(ctx context.Context) error {
	_, err := g.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(g.bucket)})
	if err != nil {
		return fmt.Errorf("blob store health check: %w", err)
	}
	return nil
}

// ContentHash returns the hex SHA-256 of data. Put and PutFile do not
// call it and store no hash alongside the object, so an upload of
// identical bytes is not skipped.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

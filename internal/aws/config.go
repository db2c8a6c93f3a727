// Package aws centralizes AWS SDK v2 client construction for every
// backing store the domain stack wires in (DynamoDB, S3, Secrets
// Manager, SQS), generalized from the teacher's aws.NewConfig/NewClients
// pair which only needed DynamoDB/S3/SecretsManager plus the
// since-dropped Step Functions/Lambda clients (SPEC_FULL.md §B).
package aws

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// NewConfig builds the AWS SDK config, honoring AWS_ENDPOINT_URL for
// local development against a DynamoDB-local/LocalStack-style endpoint
// the way the teacher's cmd/api/main.go does.
func NewConfig(ctx context.Context, region string) (aws.Config, error) {
	endpointURL := os.Getenv("AWS_ENDPOINT_URL")

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(region))

	if endpointURL != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("dummy", "dummy", ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	return cfg, nil
}

// Clients holds every AWS service client the pipeline's domain stack
// wires in (SPEC_FULL.md §B items 2-4, 6).
type Clients struct {
	DynamoDB       *dynamodb.Client
	S3             *s3.Client
	SecretsManager *secretsmanager.Client
	SQS            *sqs.Client
}

// NewClients constructs every client from a shared aws.Config, applying
// the same local-endpoint override to DynamoDB and SQS (both of which
// ship a DynamoDB-local/ElasticMQ-style emulator) that the teacher
// applies to DynamoDB alone.
func NewClients(cfg aws.Config) *Clients {
	endpointURL := os.Getenv("AWS_ENDPOINT_URL")

	var dynamoClient *dynamodb.Client
	var sqsClient *sqs.Client
	if endpointURL != "" {
		dynamoClient = dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) { o.BaseEndpoint = &endpointURL })
		sqsClient = sqs.NewFromConfig(cfg, func(o *sqs.Options) { o.BaseEndpoint = &endpointURL })
	} else {
		dynamoClient = dynamodb.NewFromConfig(cfg)
		sqsClient = sqs.NewFromConfig(cfg)
	}

	return &Clients{
		DynamoDB:       dynamoClient,
		S3:             s3.NewFromConfig(cfg),
		SecretsManager: secretsmanager.NewFromConfig(cfg),
		SQS:            sqsClient,
	}
}

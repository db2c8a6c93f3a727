// Package secrets resolves a domain.APIKey's SecretRef into plaintext
// credential material, generalizing the teacher's SecretsService (which
// only ever resolved two hardcoded ARNs: Replicate and OpenAI TTS) into a
// by-reference lookup any provider's APIKey row can use.
package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/domain"
)

// Resolver fetches plaintext API credentials from Secrets Manager,
// keyed by the ARN/name recorded on domain.APIKey.SecretRef. Plaintext
// never leaves the Provider Adapter Layer call it was fetched for.
type Resolver struct {
	client *secretsmanager.Client
	logger *zap.Logger
}

func NewResolver(client *secretsmanager.Client, logger *zap.Logger) *Resolver {
	return &Resolver{client: client, logger: logger}
}

// Resolve returns the plaintext secret for an APIKey row. A revoked or
// invalid key is rejected before Secrets Manager is ever called, the way
// the teacher's provider calls short-circuited on a missing
// REPLICATE_API_KEY rather than attempting a doomed call.
func (r *Resolver) Resolve(ctx context.Context, key *domain.APIKey) (string, error) {
	if key.Status != domain.APIKeyActive {
		return "", domain.NewValidationError("api key %s is %s, not active", key.ID, key.Status)
	}
	if key.SecretRef == "" {
		return "", domain.NewValidationError("api key %s has no secret reference", key.ID)
	}

	result, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(key.SecretRef),
	})
	if err != nil {
		r.logger.Error("resolve api key secret", zap.String("api_key_id", key.ID), zap.Error(err))
		return "", domain.NewProviderError(err, "resolve secret for api key %s", key.ID)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", key.SecretRef)
	}
	return *result.SecretString, nil
}

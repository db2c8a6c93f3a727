package taskstore

import (
	"testing"

	"github.com/sceneforge/core/internal/domain"
)

func TestTTLForStatus(t *testing.T) {
	if got := ttlForStatus(domain.JobFailed); got != int64(domain.TTLFailureSeconds) {
		t.Errorf("failed job ttl = %d, want %d", got, domain.TTLFailureSeconds)
	}
	if got := ttlForStatus(domain.JobSuccess); got != int64(domain.TTLSeconds) {
		t.Errorf("success job ttl = %d, want %d", got, domain.TTLSeconds)
	}
	if got := ttlForStatus(domain.JobCancelled); got != int64(domain.TTLSeconds) {
		t.Errorf("cancelled job ttl = %d, want %d", got, domain.TTLSeconds)
	}
}

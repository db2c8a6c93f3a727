package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/sceneforge/core/internal/domain"
)

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantRetry  bool
		wantSlow   bool
	}{
		{"unrecognized error defaults to retryable", errors.New("boom"), true, false},
		{"provider error retries", domain.NewProviderError(errors.New("timeout"), "call failed"), true, false},
		{"quota error retries on the slow schedule", domain.NewQuotaError(errors.New("429"), "rate limited"), true, true},
		{"content policy error is terminal", domain.NewContentPolicyError("flagged"), false, false},
		{"validation error is terminal", domain.NewValidationError("bad input"), false, false},
		{"not found error is terminal", domain.NewNotFoundError("missing"), false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retry, slow := ShouldRetry(tc.err)
			if retry != tc.wantRetry {
				t.Errorf("ShouldRetry(%v) retry = %v, want %v", tc.err, retry, tc.wantRetry)
			}
			if slow != tc.wantSlow {
				t.Errorf("ShouldRetry(%v) slowSchedule = %v, want %v", tc.err, slow, tc.wantSlow)
			}
		})
	}
}

func TestPolicyFor(t *testing.T) {
	cases := []struct {
		kind            domain.CapacityKind
		wantMaxAttempts int
	}{
		{domain.CapacityText, 4},
		{domain.CapacityImage, 3},
		{domain.CapacityTTS, 4},
		{domain.CapacityVideoSub, 3},
		{domain.CapacityAssembly, 2},
		{domain.CapacityVideoPol, 4}, // absent from domain.MaxRetries, falls back to max=3
	}

	for _, tc := range cases {
		cfg := PolicyFor(tc.kind)
		if cfg.MaxAttempts != tc.wantMaxAttempts {
			t.Errorf("PolicyFor(%s).MaxAttempts = %d, want %d", tc.kind, cfg.MaxAttempts, tc.wantMaxAttempts)
		}
		if cfg.MaxDelay.Seconds() != 60 {
			t.Errorf("PolicyFor(%s).MaxDelay = %v, want 60s", tc.kind, cfg.MaxDelay)
		}
	}
}

func TestQuotaPolicyForUsesSlowerCap(t *testing.T) {
	cfg := QuotaPolicyFor(domain.CapacityImage)
	if cfg.MaxDelay.Seconds() != 300 {
		t.Errorf("QuotaPolicyFor.MaxDelay = %v, want 300s", cfg.MaxDelay)
	}
	if cfg.MaxAttempts != PolicyFor(domain.CapacityImage).MaxAttempts {
		t.Errorf("QuotaPolicyFor should not change MaxAttempts")
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	cfg := Config{MaxAttempts: 3, InitialDelay: 0, MaxDelay: 0, Multiplier: 1}
	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v, want nil", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	cfg := DefaultConfig()
	attempts := 0
	cause := errors.New("permanent")
	err := Do(context.Background(), cfg, func() error {
		attempts++
		return NewNonRetryableError(cause)
	})
	if !errors.Is(err, cause) {
		t.Errorf("Do() = %v, want to unwrap to %v", err, cause)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry after non-retryable error)", attempts)
	}
}

func TestDoExhaustsMaxAttempts(t *testing.T) {
	cfg := Config{MaxAttempts: 2, InitialDelay: 0, MaxDelay: 0, Multiplier: 1}
	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		return errors.New("still failing")
	})
	if err == nil {
		t.Fatal("Do() = nil, want error after exhausting attempts")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestNextIntervalCapsAtMaxInterval(t *testing.T) {
	p := DefaultPollingConfig()
	if got := p.NextInterval(0); got != p.InitialInterval {
		t.Errorf("NextInterval(0) = %v, want %v", got, p.InitialInterval)
	}
	if got := p.NextInterval(20); got != p.MaxInterval {
		t.Errorf("NextInterval(20) = %v, want capped at %v", got, p.MaxInterval)
	}
}

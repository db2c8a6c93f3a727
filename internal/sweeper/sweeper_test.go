package sweeper

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sceneforge/core/pkg/retry"
)

// TestScheduleNext_BacksOffPerTransition covers that each transition's
// backoff is tracked independently, grounded on §4.7's "one slow
// provider doesn't throttle polling for every other in-flight
// transition" requirement.
func TestScheduleNext_BacksOffPerTransition(t *testing.T) {
	s := &Sweeper{
		nextPoll: make(map[string]time.Time),
		attempts: make(map[string]int),
		polling:  retry.DefaultPollingConfig(),
	}

	before := time.Now()
	s.scheduleNext("t1")
	if _, ok := s.nextPoll["t1"]; !ok {
		t.Fatal("expected t1 to have a scheduled next-poll time")
	}
	if !s.nextPoll["t1"].After(before) {
		t.Error("expected t1's next poll to be scheduled in the future")
	}
	if s.attempts["t1"] != 1 {
		t.Errorf("attempts[t1] = %d, want 1", s.attempts["t1"])
	}

	// t2 has never been polled, so its backoff starts fresh regardless
	// of t1's attempt count.
	s.scheduleNext("t2")
	if s.attempts["t2"] != 1 {
		t.Errorf("attempts[t2] = %d, want 1 (independent of t1)", s.attempts["t2"])
	}

	first := s.nextPoll["t1"]
	s.scheduleNext("t1")
	if s.attempts["t1"] != 2 {
		t.Errorf("attempts[t1] after second schedule = %d, want 2", s.attempts["t1"])
	}
	if !s.nextPoll["t1"].After(first) || s.nextPoll["t1"].Equal(first) {
		// A later attempt number must yield an interval at least as
		// long as the previous one (exponential backoff never shrinks).
		if s.nextPoll["t1"].Before(first) {
			t.Error("expected second scheduled time to not regress before the first")
		}
	}
}

// TestTTLSweepSchedule_IsValidCronExpression guards against a typo in
// the default schedule going unnoticed until Start's AddFunc call
// fails at runtime: NewTTLSweeper builds its cron.Cron with
// cron.WithSeconds, so the default must parse under that same
// six-field parser.
func TestTTLSweepSchedule_IsValidCronExpression(t *testing.T) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(TTLSweepSchedule); err != nil {
		t.Fatalf("TTLSweepSchedule %q does not parse: %v", TTLSweepSchedule, err)
	}
}

package executor

import (
	"testing"

	"github.com/sceneforge/core/internal/domain"
)

func TestStageCounts_Resolve(t *testing.T) {
	cases := []struct {
		name string
		c    StageCounts
		want StageState
	}{
		{"no tasks", StageCounts{}, StagePending},
		{"some still running", StageCounts{Total: 3, Success: 1}, StageRunning},
		{"all success", StageCounts{Total: 3, Success: 3}, StageComplete},
		{"all failed", StageCounts{Total: 3, Failed: 3}, StageFailed},
		{"mixed terminal", StageCounts{Total: 3, Success: 2, Failed: 1}, StagePartial},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.c.Resolve(); got != c.want {
				t.Errorf("Resolve() = %v, want %v", got, c.want)
			}
		})
	}
}

// TestDecideTransitions_Waits covers S6 not yet being ready to evaluate:
// some keyframe task is still pending or running.
func TestDecideTransitions_Waits(t *testing.T) {
	cases := []struct {
		name    string
		counts  StageCounts
		numShots int
	}{
		{"fewer keyframe tasks than shots", StageCounts{Total: 1, Success: 1}, 3},
		{"a keyframe task still running", StageCounts{Total: 3, Success: 2}, 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := decideTransitions(c.counts, c.numShots); got != transitionsWait {
				t.Errorf("decideTransitions(%+v, %d) = %v, want transitionsWait", c.counts, c.numShots, got)
			}
		})
	}
}

// TestDecideTransitions_FailNoKeyframes covers the "0 successes fails
// its job" partial-failure policy (§4.5) applied to S5.
func TestDecideTransitions_FailNoKeyframes(t *testing.T) {
	counts := StageCounts{Total: 3, Failed: 3}
	if got := decideTransitions(counts, 3); got != transitionsFailNoKeyframes {
		t.Errorf("decideTransitions(%+v, 3) = %v, want transitionsFailNoKeyframes", counts, got)
	}
}

// TestDecideTransitions_FailTooFewShots is Finding 2's boundary: every
// keyframe resolved but there are fewer than 2 shots, so no transition
// pair exists to create.
func TestDecideTransitions_FailTooFewShots(t *testing.T) {
	counts := StageCounts{Total: 1, Success: 1}
	if got := decideTransitions(counts, 1); got != transitionsFailTooFewShots {
		t.Errorf("decideTransitions(%+v, 1) = %v, want transitionsFailTooFewShots", counts, got)
	}
}

func TestDecideTransitions_Ready(t *testing.T) {
	counts := StageCounts{Total: 3, Success: 3}
	if got := decideTransitions(counts, 3); got != transitionsReady {
		t.Errorf("decideTransitions(%+v, 3) = %v, want transitionsReady", counts, got)
	}

	// A mix of success and failure is still ready as long as at least
	// one keyframe succeeded and there are at least 2 shots.
	mixed := StageCounts{Total: 3, Success: 2, Failed: 1}
	if got := decideTransitions(mixed, 3); got != transitionsReady {
		t.Errorf("decideTransitions(%+v, 3) = %v, want transitionsReady", mixed, got)
	}
}

func TestCharactersHaveAvatars(t *testing.T) {
	characters := []domain.Character{
		{ID: "c1", AvatarURL: "blob://c1"},
		{ID: "c2", AvatarURL: ""},
	}

	if !charactersHaveAvatars(characters, []string{"c1"}) {
		t.Error("expected c1 to have its avatar ready")
	}
	if charactersHaveAvatars(characters, []string{"c2"}) {
		t.Error("expected c2 to not have its avatar ready")
	}
	if charactersHaveAvatars(characters, []string{"c1", "c2"}) {
		t.Error("expected mixed list to not be fully ready")
	}
	if !charactersHaveAvatars(characters, nil) {
		t.Error("expected empty character-ref list to be vacuously ready")
	}
	if charactersHaveAvatars(characters, []string{"unknown"}) {
		t.Error("expected an unknown character id to not be ready")
	}
}

func TestWeightedProgress(t *testing.T) {
	if got := weightedProgress(nil); got != 0 {
		t.Errorf("weightedProgress(nil) = %v, want 0", got)
	}

	tasks := []*domain.Task{
		{Kind: domain.KindExtractCharacters, Status: domain.TaskSuccess},
		{Kind: domain.KindExtractShots, Status: domain.TaskPending},
	}
	got := weightedProgress(tasks)
	if got <= 0 || got >= 1 {
		t.Errorf("weightedProgress(partial) = %v, want strictly between 0 and 1", got)
	}
}

func TestTransitionsMaterialized(t *testing.T) {
	if transitionsMaterialized(nil) {
		t.Error("expected no transitions materialized for an empty task tree")
	}
	tasks := []*domain.Task{{Kind: domain.KindCreateTransition, Status: domain.TaskPending}}
	if !transitionsMaterialized(tasks) {
		t.Error("expected transitions materialized once a CreateTransition task exists")
	}
}

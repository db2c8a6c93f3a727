package assembly

import (
	"context"
	"strings"
	"testing"

	"github.com/sceneforge/core/internal/domain"
)

func completedTransition(id string) domain.Transition {
	return domain.Transition{ID: id, Status: domain.TransitionStatusCompleted, VideoURL: "blob://" + id}
}

func TestValidateMovieMaterials_FewerThanTwoShots(t *testing.T) {
	err := validateMovieMaterials([]domain.Shot{{ID: "s1"}}, nil)
	if err == nil {
		t.Fatal("expected error for fewer than 2 shots, got nil")
	}
	if !strings.Contains(err.Error(), "fewer than 2 shots") {
		t.Errorf("error = %q, want mention of fewer than 2 shots", err.Error())
	}
}

func TestValidateMovieMaterials_ZeroShots(t *testing.T) {
	if err := validateMovieMaterials(nil, nil); err == nil {
		t.Fatal("expected error for zero shots, got nil")
	}
}

func TestValidateMovieMaterials_WrongTransitionCount(t *testing.T) {
	shots := []domain.Shot{{ID: "s1"}, {ID: "s2"}, {ID: "s3"}}
	transitions := []domain.Transition{completedTransition("t1")}

	err := validateMovieMaterials(shots, transitions)
	if err == nil {
		t.Fatal("expected error when transition count != len(shots)-1, got nil")
	}
	if !strings.Contains(err.Error(), "expected 2 transitions, have 1") {
		t.Errorf("error = %q, want transition count mismatch detail", err.Error())
	}
}

func TestValidateMovieMaterials_IncompleteTransition(t *testing.T) {
	shots := []domain.Shot{{ID: "s1"}, {ID: "s2"}}
	transitions := []domain.Transition{{ID: "t1", Status: domain.TransitionStatusProcessing}}

	err := validateMovieMaterials(shots, transitions)
	if err == nil {
		t.Fatal("expected error for a transition still processing, got nil")
	}
}

func TestValidateMovieMaterials_MissingVideoURL(t *testing.T) {
	shots := []domain.Shot{{ID: "s1"}, {ID: "s2"}}
	transitions := []domain.Transition{{ID: "t1", Status: domain.TransitionStatusCompleted, VideoURL: ""}}

	if err := validateMovieMaterials(shots, transitions); err == nil {
		t.Fatal("expected error for a completed transition with no video url, got nil")
	}
}

func TestValidateMovieMaterials_Satisfied(t *testing.T) {
	shots := []domain.Shot{{ID: "s1"}, {ID: "s2"}, {ID: "s3"}}
	transitions := []domain.Transition{completedTransition("t1"), completedTransition("t2")}

	if err := validateMovieMaterials(shots, transitions); err != nil {
		t.Errorf("expected no error for fully satisfied materials, got %v", err)
	}
}

// TestDetectFPS_NoClips covers the guard detectFPS relies on to fail
// before probeFPS ever shells out, since an empty clip slice would
// otherwise leave order[0] a panic waiting to happen.
func TestDetectFPS_NoClips(t *testing.T) {
	m := &MovieAssembler{}
	if _, err := m.detectFPS(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty clip slice, got nil")
	}
}

package blobstore

import (
	"strings"
	"testing"
)

func TestKey_FollowsConvention(t *testing.T) {
	key := Key("proj-123", "keyframe", "png")

	if !strings.HasPrefix(key, "proj-123/keyframe/") {
		t.Errorf("key %q does not start with project_id/artifact_type/", key)
	}
	if !strings.HasSuffix(key, ".png") {
		t.Errorf("key %q does not end with the extension", key)
	}
}

func TestKey_UniquePerCall(t *testing.T) {
	a := Key("proj-123", "keyframe", "png")
	b := Key("proj-123", "keyframe", "png")
	if a == b {
		t.Error("Key should generate a distinct uuid per call")
	}
}

func TestContentHash_Deterministic(t *testing.T) {
	data := []byte("same bytes")
	if ContentHash(data) != ContentHash(data) {
		t.Error("ContentHash should be deterministic for identical input")
	}
	if ContentHash(data) == ContentHash([]byte("different bytes")) {
		t.Error("ContentHash should differ for different input")
	}
}

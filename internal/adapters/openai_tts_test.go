package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAITTS_VoiceMap(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		exists   bool
	}{
		{"male", "onyx", true},
		{"female", "nova", true},
		{"narrator", "", false},
	}

	for _, tt := range tests {
		voice, ok := voiceMap[tt.input]
		if ok != tt.exists {
			t.Errorf("voiceMap[%q] exists = %v, want %v", tt.input, ok, tt.exists)
		}
		if ok && voice != tt.expected {
			t.Errorf("voiceMap[%q] = %v, want %v", tt.input, voice, tt.expected)
		}
	}
}

func TestOpenAITTS_GenerateSpeech_EmptyText(t *testing.T) {
	a := NewOpenAITTS()
	_, err := a.GenerateSpeech(context.Background(), "test-token", TTSRequest{VoiceID: "male", Text: ""})
	if err == nil {
		t.Fatal("expected error for empty text")
	}
	if !strings.Contains(err.Error(), "empty text") {
		t.Errorf("error should mention empty text, got: %v", err)
	}
}

func TestOpenAITTS_GenerateSpeech_RawVoicePassthrough(t *testing.T) {
	// an unmapped VoiceID should pass through rather than error, since
	// some callers address OpenAI voices directly (e.g. "shimmer").
	if _, ok := voiceMap["shimmer"]; ok {
		t.Fatal("test fixture assumption broken: shimmer must not be in voiceMap")
	}

	voices := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		voice, _ := body["voice"].(string)
		voices <- voice
		// a non-200 reply stops GenerateSpeech before its ffprobe step
		http.Error(w, "stub", http.StatusTeapot)
	}))
	defer srv.Close()

	a := NewOpenAITTS()
	a.endpoint = srv.URL
	if _, err := a.GenerateSpeech(context.Background(), "test-token", TTSRequest{VoiceID: "shimmer", Text: "hello"}); err == nil {
		t.Fatal("expected the stub's non-200 status to surface as an error")
	}
	if got := <-voices; got != "shimmer" {
		t.Errorf("request voice = %q, want %q passed through unchanged", got, "shimmer")
	}
}

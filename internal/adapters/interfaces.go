// Package adapters implements the Provider Adapter Layer (§4.1): a small
// set of capability interfaces — TextModel, ImageModel, TTSModel,
// VideoModel — each provider plugs into. Adapters never touch the Task
// Runtime or Artifact Repository directly; they take already-resolved
// API key material and return provider-agnostic results or a
// domain.Error the caller classifies.
package adapters

import (
	"context"
	"time"
)

// Per-capability call timeouts from §4.1's table. Each adapter's own
// http.Client takes its Timeout from these.
const (
	TextTimeout  = 120 * time.Second
	ImageTimeout = 180 * time.Second
	TTSTimeout   = 60 * time.Second
	VideoSubmitTimeout = 60 * time.Second
	VideoPollTimeout   = 30 * time.Second
)

// TextRequest is a single prompt/completion round trip used for script,
// scene, shot and character extraction stages (S0-S2).
type TextRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
}

type TextResult struct {
	Text string
}

// TextModel covers every S0-S2 extraction stage: it is a synchronous
// prompt-in/text-out call, no submit/poll split needed.
type TextModel interface {
	GenerateText(ctx context.Context, apiToken string, req TextRequest) (*TextResult, error)
	ModelName() string
}

// ImageRequest drives scene images, character avatars and shot keyframes.
type ImageRequest struct {
	Model         string
	Prompt        string
	ReferenceURLs []string // character/style reference images, provider-dependent
	AspectRatio   string
}

type ImageResult struct {
	ImageURL string
}

type ImageModel interface {
	GenerateImage(ctx context.Context, apiToken string, req ImageRequest) (*ImageResult, error)
	ModelName() string
}

// TTSRequest drives per-sentence narrative voiceover.
type TTSRequest struct {
	VoiceID string
	Text    string
}

// TTSResult carries raw audio bytes rather than a URL: unlike the image
// and video providers, OpenAI TTS returns the audio payload directly in
// the response body, so there is no transient provider URL to re-host —
// the worker uploads AudioData straight to the blob store.
type TTSResult struct {
	AudioData  []byte
	DurationMs int64
}

type TTSModel interface {
	GenerateSpeech(ctx context.Context, apiToken string, req TTSRequest) (*TTSResult, error)
	ModelName() string
}

// VideoRequest drives shot-transition video generation. Submission and
// polling are split per §4.1: "video generation is asynchronous...
// Submit returns an external task handle immediately; Poll is called on
// its own schedule by the Sweeper, never by the submitting worker."
type VideoRequest struct {
	Model          string
	Prompt         string
	StartImageURL  string
	DurationSeconds int
	AspectRatio    string
}

type VideoSubmitResult struct {
	ExternalTaskID string
}

// VideoStatus mirrors the async lifecycle every provider exposes in some
// form (Replicate's starting/processing/succeeded/failed, grounded on
// KlingAdapter.mapStatus).
type VideoStatus string

const (
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusCompleted  VideoStatus = "completed"
	VideoStatusFailed     VideoStatus = "failed"
)

type VideoPollResult struct {
	Status   VideoStatus
	VideoURL string
	Error    string
}

type VideoModel interface {
	SubmitVideo(ctx context.Context, apiToken string, req VideoRequest) (*VideoSubmitResult, error)
	PollVideo(ctx context.Context, apiToken string, externalTaskID string) (*VideoPollResult, error)
	ModelName() string
	CostPerSecond() float64
}

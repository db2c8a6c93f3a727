package adapters

import (
	"context"
	"fmt"
	"net/http"
)

// KlingVideo implements VideoModel via Kling v2.5 Turbo Pro on Replicate,
// adapted from KlingAdapter. Used for shot-transition video generation
// (S7's submit and poll halves).
type KlingVideo struct {
	httpClient *http.Client
	version    string
}

func NewKlingVideo() *KlingVideo {
	return &KlingVideo{
		httpClient: &http.Client{Timeout: VideoSubmitTimeout},
		version:    "kwaivgi/kling-v2.5-turbo-pro:939cd1851c5b112f284681b57ee9b0f36d0f913ba97de5845a7eef92d52837df",
	}
}

func (a *KlingVideo) ModelName() string      { return "kling-v2.5-turbo-pro" }
func (a *KlingVideo) CostPerSecond() float64 { return 0.07 }

func (a *KlingVideo) SubmitVideo(ctx context.Context, apiToken string, req VideoRequest) (*VideoSubmitResult, error) {
	input := map[string]interface{}{
		"prompt":   req.Prompt,
		"duration": mapKlingDuration(req.DurationSeconds),
	}
	if req.StartImageURL != "" {
		input["start_image"] = req.StartImageURL
	} else {
		input["aspect_ratio"] = mapKlingAspectRatio(req.AspectRatio)
	}

	pred, err := replicateSubmit(ctx, a.httpClient, apiToken, a.version, input, false)
	if err != nil {
		return nil, err
	}
	if pred.Error != "" {
		return nil, fmt.Errorf("kling error: %s", pred.Error)
	}
	return &VideoSubmitResult{ExternalTaskID: pred.ID}, nil
}

func (a *KlingVideo) PollVideo(ctx context.Context, apiToken string, externalTaskID string) (*VideoPollResult, error) {
	pred, err := replicatePoll(ctx, a.httpClient, apiToken, externalTaskID)
	if err != nil {
		return nil, err
	}

	result := &VideoPollResult{Status: mapReplicateStatus(pred.Status)}
	if pred.Status == "succeeded" {
		if url, ok := extractFirstString(pred.Output); ok {
			result.VideoURL = url
		}
	}
	if pred.Error != "" {
		result.Status = VideoStatusFailed
		result.Error = pred.Error
	}
	return result, nil
}

func mapKlingAspectRatio(ar string) string {
	switch ar {
	case "16:9", "9:16", "1:1":
		return ar
	default:
		return "16:9"
	}
}

func mapKlingDuration(seconds int) string {
	if seconds <= 5 {
		return "5"
	}
	return "10"
}

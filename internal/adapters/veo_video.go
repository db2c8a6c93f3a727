package adapters

import (
	"context"
	"fmt"
	"net/http"
)

// VeoVideo implements VideoModel via Google Veo 3.1 on Replicate,
// adapted from VeoAdapter. Offered as the higher-fidelity alternative to
// KlingVideo for shot-transition video generation.
type VeoVideo struct {
	httpClient *http.Client
	version    string
}

func NewVeoVideo() *VeoVideo {
	return &VeoVideo{
		httpClient: &http.Client{Timeout: VideoSubmitTimeout},
		version:    "google/veo-3.1:20ebd92c5919f20e8fa2e983bdb60016a99794c9accfab496ea25a68e0dbbaad",
	}
}

func (a *VeoVideo) ModelName() string      { return "veo-3.1" }
func (a *VeoVideo) CostPerSecond() float64 { return 0.50 }

func (a *VeoVideo) SubmitVideo(ctx context.Context, apiToken string, req VideoRequest) (*VideoSubmitResult, error) {
	input := map[string]interface{}{
		"prompt":       req.Prompt,
		"duration":     req.DurationSeconds,
		"aspect_ratio": defaultAspectRatio(req.AspectRatio),
	}
	if req.StartImageURL != "" {
		input["image"] = req.StartImageURL
	}

	pred, err := replicateSubmit(ctx, a.httpClient, apiToken, a.version, input, false)
	if err != nil {
		return nil, err
	}
	if pred.Error != "" {
		return nil, fmt.Errorf("veo error: %s", pred.Error)
	}
	return &VideoSubmitResult{ExternalTaskID: pred.ID}, nil
}

func (a *VeoVideo) PollVideo(ctx context.Context, apiToken string, externalTaskID string) (*VideoPollResult, error) {
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

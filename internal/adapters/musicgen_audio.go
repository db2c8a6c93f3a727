package adapters

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// MusicGenAudio wraps Meta's MusicGen on Replicate, adapted from
// MusicGenAdapter. It is not one of the four capability interfaces
// (§4.1 only names Text/Image/TTS/Video) and the Registry does not hold
// it. Nothing in this module calls it: assembly takes the chapter BGM
// track only from an uploaded VideoTask.BGMRef.
type MusicGenAudio struct {
	httpClient *http.Client
	version    string
}

func NewMusicGenAudio() *MusicGenAudio {
	return &MusicGenAudio{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		version:    "meta/musicgen:671ac645ce5e552cc63a54a2bbff63fcf798043055d2dac5fc9e36a837eedcc",
	}
}

func (a *MusicGenAudio) ModelName() string { return "musicgen" }

// GenerateBGM submits a music prompt and polls to completion inline, so
// the caller blocks until the track is ready rather than splitting
// submit/poll across the Task Runtime.
func (a *MusicGenAudio) GenerateBGM(ctx context.Context, apiToken, prompt string, durationSeconds int) (string, error) {
	input := map[string]interface{}{
		"prompt":        prompt,
		"duration":      durationSeconds,
		"model_version": "stereo-large",
	}

	pred, err := replicateSubmit(ctx, a.httpClient, apiToken, a.version, input, false)
	if err != nil {
		return "", err
	}

	for {
		switch mapReplicateStatus(pred.Status) {
		case VideoStatusCompleted:
			if url, ok := extractFirstString(pred.Output); ok {
				return url, nil
			}
			return "", fmt.Errorf("musicgen completed with no output")
		case VideoStatusFailed:
			return "", fmt.Errorf("musicgen error: %s", pred.Error)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(3 * time.Second):
		}

		pred, err = replicatePoll(ctx, a.httpClient, apiToken, pred.ID)
		if err != nil {
			return "", err
		}
	}
}

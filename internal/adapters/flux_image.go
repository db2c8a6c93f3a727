package adapters

import (
	"context"
	"fmt"
	"net/http"
)

// FluxImage implements ImageModel via Black Forest Labs' Flux, hosted on
// Replicate, grounded on the submit/poll shape shared with
// KlingAdapter. Used for scene images (S3), character avatars (S4) and
// shot keyframes (S5).
type FluxImage struct {
	httpClient *http.Client
	version    string
}

func NewFluxImage() *FluxImage {
	return &FluxImage{
		httpClient: &http.Client{Timeout: ImageTimeout},
		version:    "black-forest-labs/flux-1.1-pro",
	}
}

func (a *FluxImage) ModelName() string { return "flux-1.1-pro" }

func (a *FluxImage) GenerateImage(ctx context.Context, apiToken string, req ImageRequest) (*ImageResult, error) {
	input := map[string]interface{}{
		"prompt":       req.Prompt,
		"aspect_ratio": defaultAspectRatio(req.AspectRatio),
	}
	if len(req.ReferenceURLs) > 0 {
		input["image_prompt"] = req.ReferenceURLs[0]
	}

	pred, err := replicateSubmit(ctx, a.httpClient, apiToken, a.version, input, true)
	if err != nil {
		return nil, err
	}
	if pred.Error != "" {
		return nil, fmt.Errorf("flux error: %s", pred.Error)
	}

	url, ok := extractFirstString(pred.Output)
	if !ok {
		return nil, fmt.Errorf("flux returned no image output")
	}
	return &ImageResult{ImageURL: url}, nil
}

func defaultAspectRatio(ar string) string {
	if ar == "" {
		return "16:9"
	}
	return ar
}

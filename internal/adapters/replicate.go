package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// replicatePrediction mirrors the shared Replicate prediction envelope
// (grounded on GPT4oResponse/KlingResponse): every Replicate-hosted
// adapter in this package submits against the same /predictions endpoint
// and polls the same shape back.
type replicatePrediction struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Output interface{} `json:"output,omitempty"`
	Error  string      `json:"error,omitempty"`
}

const replicatePredictionsURL = "https://api.replicate.com/v1/predictions"

// replicateSubmit posts a version+input body and returns the raw
// prediction. wait selects the "Prefer: wait" header the teacher's
// GPT4oAdapter uses for synchronous-feeling text calls; video calls pass
// wait=false since polling happens on the Sweeper's own schedule (§4.1).
func replicateSubmit(ctx context.Context, client *http.Client, apiToken, version string, input map[string]interface{}, wait bool) (*replicatePrediction, error) {
	body, err := json.Marshal(map[string]interface{}{"version": version, "input": input})
	if err != nil {
		return nil, fmt.Errorf("marshal replicate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, replicatePredictionsURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build replicate request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiToken)
	req.Header.Set("Content-Type", "application/json")
	if wait {
		req.Header.Set("Prefer", "wait")
	} else {
		req.Header.Set("Prefer", "wait=0")
	}

	return doReplicate(client, req)
}

func replicatePoll(ctx context.Context, client *http.Client, apiToken, predictionID string) (*replicatePrediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, replicatePredictionsURL+"/"+predictionID, nil)
	if err != nil {
		return nil, fmt.Errorf("build replicate poll request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiToken)
	return doReplicate(client, req)
}

func doReplicate(client *http.Client, req *http.Request) (*replicatePrediction, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read replicate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("replicate status %d: %s", resp.StatusCode, string(raw))
	}

	var pred replicatePrediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return nil, fmt.Errorf("parse replicate response: %w", err)
	}
	return &pred, nil
}

// extractFirstString handles Replicate's habit of returning output as
// either a bare string or a one-element array of strings (grounded on
// KlingAdapter.extractVideoURL).
func extractFirstString(output interface{}) (string, bool) {
	switch v := output.(type) {
	case string:
		return v, true
	case []interface{}:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func mapReplicateStatus(status string) VideoStatus {
	switch status {
	case "succeeded":
		return VideoStatusCompleted
	case "failed", "canceled":
		return VideoStatusFailed
	default:
		return VideoStatusProcessing
	}
}

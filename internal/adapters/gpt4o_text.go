package adapters

import (
	"fmt"
	"net/http"
	"strings"

	"context"
)

// GPT4oText implements TextModel via OpenAI GPT-4o hosted on Replicate,
// grounded on GPT4oAdapter. Used for S0 (character extraction), S1
// (scene extraction) and S2 (shot extraction) in movie mode, and for
// narrative prompt derivation.
type GPT4oText struct {
	httpClient *http.Client
	version    string
}

func NewGPT4oText() *GPT4oText {
	return &GPT4oText{
		httpClient: &http.Client{Timeout: TextTimeout},
		version:    "openai/gpt-4o:ad45308bffd6defaaa05dff12658b454a3a8dcfd7cc1440420a74d87a48caa9e",
	}
}

func (a *GPT4oText) ModelName() string { return "gpt-4o" }

func (a *GPT4oText) GenerateText(ctx context.Context, apiToken string, req TextRequest) (*TextResult, error) {
	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	input := map[string]interface{}{
		"messages": []map[string]string{
			{"role": "system", "content": req.SystemPrompt},
			{"role": "user", "content": req.UserPrompt},
		},
		"temperature": temperature,
	}

	pred, err := replicateSubmit(ctx, a.httpClient, apiToken, a.version, input, true)
	if err != nil {
		return nil, err
	}
	if pred.Error != "" {
		return nil, fmt.Errorf("gpt-4o error: %s", pred.Error)
	}

	text, ok := extractJoinedOutput(pred.Output)
	if !ok {
		return nil, fmt.Errorf("gpt-4o returned no usable output")
	}
	return &TextResult{Text: stripCodeFence(text)}, nil
}

// extractJoinedOutput handles GPT-4o's streamed array-of-tokens output
// shape in addition to the bare-string shape other models return.
func extractJoinedOutput(output interface{}) (string, bool) {
	switch v := output.(type) {
	case string:
		return v, true
	case []interface{}:
		var sb strings.Builder
		for _, tok := range v {
			if s, ok := tok.(string); ok {
				sb.WriteString(s)
			}
		}
		if sb.Len() > 0 {
			return sb.String(), true
		}
	}
	return "", false
}

// stripCodeFence removes a ```json ... ``` or ``` ... ``` wrapper models
// routinely add around structured output, grounded on GPT4oAdapter's
// extractJSON helper.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

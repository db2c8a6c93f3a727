package adapters

import (
	"context"
	"fmt"
	"net/http"
)

// LlamaText implements TextModel via Meta Llama hosted on Replicate,
// grounded on llama_adapter.go. Offered as the cheaper alternative
// model for extraction stages where GPT-4o's cost isn't warranted.
type LlamaText struct {
	httpClient *http.Client
	version    string
}

func NewLlamaText() *LlamaText {
	return &LlamaText{
		httpClient: &http.Client{Timeout: TextTimeout},
		version:    "meta/meta-llama-3.1-405b-instruct",
	}
}

func (a *LlamaText) ModelName() string { return "llama-3.1-405b" }

func (a *LlamaText) GenerateText(ctx context.Context, apiToken string, req TextRequest) (*TextResult, error) {
	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	input := map[string]interface{}{
		"prompt":        req.UserPrompt,
		"system_prompt": req.SystemPrompt,
		"temperature":   temperature,
	}

	pred, err := replicateSubmit(ctx, a.httpClient, apiToken, a.version, input, true)
	if err != nil {
		return nil, err
	}
	if pred.Error != "" {
		return nil, fmt.Errorf("llama error: %s", pred.Error)
	}

	text, ok := extractJoinedOutput(pred.Output)
	if !ok {
		return nil, fmt.Errorf("llama returned no usable output")
	}
	return &TextResult{Text: stripCodeFence(text)}, nil
}

package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// OpenAITTS implements TTSModel via the OpenAI TTS API, grounded on
// OpenAITTSAdapter.GenerateVoiceoverWithDuration: it writes the response
// to a temp file and shells out to ffprobe for the duration, since the
// response body itself carries no duration header.
type OpenAITTS struct {
	httpClient *http.Client
	model      string
	endpoint   string
}

func NewOpenAITTS() *OpenAITTS {
	return &OpenAITTS{
		httpClient: &http.Client{Timeout: TTSTimeout},
		model:      "tts-1",
		endpoint:   "https://api.openai.com/v1/audio/speech",
	}
}

func (a *OpenAITTS) ModelName() string { return "tts-1" }

var voiceMap = map[string]string{"male": "onyx", "female": "nova"}

func (a *OpenAITTS) GenerateSpeech(ctx context.Context, apiToken string, req TTSRequest) (*TTSResult, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("empty text for tts")
	}
	voice, ok := voiceMap[req.VoiceID]
	if !ok {
		voice = req.VoiceID // allow a raw OpenAI voice name to pass through
	}

	payload, err := json.Marshal(map[string]interface{}{
		"model":           a.model,
		"input":           req.Text,
		"voice":           voice,
		"response_format": "mp3",
		"speed":           1.0,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts status %d: %s", resp.StatusCode, string(audio))
	}

	durationMs, err := probeAudioDurationMs(audio)
	if err != nil {
		return nil, fmt.Errorf("probe tts duration: %w", err)
	}

	return &TTSResult{AudioData: audio, DurationMs: durationMs}, nil
}

// probeAudioDurationMs writes audio to a temp file and shells out to
// ffprobe, grounded on getAudioDurationFromFile.
func probeAudioDurationMs(audio []byte) (int64, error) {
	tmp, err := os.CreateTemp("", "tts-*.mp3")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(audio); err != nil {
		return 0, fmt.Errorf("write temp file: %w", err)
	}

	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		tmp.Name(),
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration: %w", err)
	}
	return int64(seconds * 1000), nil
}

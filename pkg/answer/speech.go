package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AudioFormatMP3 is the only format the speech endpoint produces.
const AudioFormatMP3 = "mp3"

// Synthesizer renders answer text as speech audio. Implementations are
// best effort; a failed synthesis only drops the audio from the answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

// HTTPSynthesizer calls an external text-to-speech endpoint that accepts
// {"text": ..., "lang": ...} and responds with raw MP3 bytes.
type HTTPSynthesizer struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPSynthesizer creates a synthesizer against endpoint.
func NewHTTPSynthesizer(endpoint string, timeout time.Duration) *HTTPSynthesizer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPSynthesizer{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type speechRequest struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("nothing to synthesize")
	}
	if language == "" {
		language = "en"
	}

	body, err := json.Marshal(speechRequest{Text: text, Lang: language})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("speech endpoint returned %d: %s", resp.StatusCode, payload)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speech endpoint returned no audio")
	}

	return audio, nil
}

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

// Translator converts text between languages. Implementations are best
// effort; the pipeline falls back to the untranslated text when a
// translator fails.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// NoopTranslator returns text unchanged. Used when no translation
// endpoint is configured.
type NoopTranslator struct{}

func (NoopTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	return text, nil
}

// HTTPTranslator calls a LibreTranslate-compatible endpoint.
type HTTPTranslator struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPTranslator creates a translator against endpoint.
func NewHTTPTranslator(endpoint string, timeout time.Duration) *HTTPTranslator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPTranslator{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

func (t *HTTPTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if text == "" || target == "" || source == target {
		return text, nil
	}
	if source == "" {
		source = "auto"
	}

	body, err := json.Marshal(translateRequest{
		Q:      text,
		Source: source,
		Target: target,
		Format: "text",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("translate endpoint returned %d: %s", resp.StatusCode, payload)
	}

	var result translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode translate response: %w", err)
	}

	if result.TranslatedText == "" {
		return "", fmt.Errorf("translate endpoint returned empty text")
	}

	return result.TranslatedText, nil
}

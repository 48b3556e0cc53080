package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const translateTTSURL = "https://translate.google.com/translate_tts"

// TranslateSynthesizer renders speech with the public translate TTS
// endpoint. It needs no API key and serves as the benchmark voice when no
// OpenAI key is configured.
type TranslateSynthesizer struct {
	baseURL  string
	language string
	client   *http.Client
}

// NewTranslateSynthesizer creates a German synthesizer. An empty baseURL
// selects the public endpoint.
func NewTranslateSynthesizer(baseURL string) *TranslateSynthesizer {
	if baseURL == "" {
		baseURL = translateTTSURL
	}
	return &TranslateSynthesizer{
		baseURL:  baseURL,
		language: "de",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Synthesize implements Synthesizer.
func (s *TranslateSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	params := url.Values{}
	params.Set("ie", "UTF-8")
	params.Set("q", text)
	params.Set("tl", s.language)
	params.Set("client", "tw-ob")
	params.Set("textlen", strconv.Itoa(len([]rune(text))))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("audio: create request: %w", err)
	}
	// The endpoint rejects requests without a browser user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audio: fetch speech: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audio: unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxSize))
	if err != nil {
		return nil, fmt.Errorf("audio: read speech: %w", err)
	}
	return data, nil
}

package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Transcriber turns a recording into German text.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, filename string) (string, error)
}

// Synthesizer renders German text as MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ErrNoSpeech is returned when the transcriber hears nothing.
var ErrNoSpeech = errors.New("audio: no speech recognized")

// Option configures the OpenAI clients.
type Option func(*clientConfig)

type clientConfig struct {
	baseURL string
	timeout time.Duration
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

func newClient(apiKey string, opts []Option) (oai.Client, error) {
	if apiKey == "" {
		return oai.Client{}, fmt.Errorf("audio: apiKey must not be empty")
	}
	var cfg clientConfig
	for _, o := range opts {
		o(&cfg)
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	return oai.NewClient(reqOpts...), nil
}

// OpenAITranscriber implements Transcriber with the audio transcription API.
type OpenAITranscriber struct {
	client oai.Client
	model  string
}

// NewOpenAITranscriber creates a transcriber. An empty model selects whisper-1.
func NewOpenAITranscriber(apiKey, model string, opts ...Option) (*OpenAITranscriber, error) {
	client, err := newClient(apiKey, opts)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = string(oai.AudioModelWhisper1)
	}
	return &OpenAITranscriber{client: client, model: model}, nil
}

// Transcribe implements Transcriber.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, data []byte, filename string) (string, error) {
	if filename == "" {
		filename = "recording." + Extension(ContentType(data, ""))
	}
	res, err := t.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		File:     oai.File(bytes.NewReader(data), filename, ContentType(data, filename)),
		Model:    oai.AudioModel(t.model),
		Language: oai.String("de"),
	})
	if err != nil {
		return "", fmt.Errorf("audio: transcribe: %w", err)
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

// OpenAISynthesizer implements Synthesizer with the speech API.
type OpenAISynthesizer struct {
	client oai.Client
	voice  string
}

// NewOpenAISynthesizer creates a synthesizer. An empty voice selects alloy.
func NewOpenAISynthesizer(apiKey, voice string, opts ...Option) (*OpenAISynthesizer, error) {
	client, err := newClient(apiKey, opts)
	if err != nil {
		return nil, err
	}
	if voice == "" {
		voice = string(oai.AudioSpeechNewParamsVoiceAlloy)
	}
	return &OpenAISynthesizer{client: client, voice: voice}, nil
}

// Synthesize implements Synthesizer.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Input:          text,
		Model:          oai.SpeechModelTTS1,
		Voice:          oai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("audio: synthesize: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("audio: read speech: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("audio: synthesize: empty response")
	}
	return data, nil
}

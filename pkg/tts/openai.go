package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const (
	providerOpenAI  = "openai"
	openAISpeechURL = "https://api.openai.com/v1/audio/speech"
	openAIModelsURL = "https://api.openai.com/v1/models"
)

// OpenAI voices and models.
const (
	VoiceAlloy   = "alloy"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"

	ModelTTS1   = "tts-1"
	ModelTTS1HD = "tts-1-hd"
)

// OpenAI speaks through /v1/audio/speech. Output is always MP3 at 44.1kHz.
type OpenAI struct {
	*endpoint
	model, voice string
}

// NewOpenAI requires an API key. Voice defaults to shimmer.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTTS1
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerOpenAI, ErrNoAPIKey)
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = VoiceShimmer
	}

	ep := newEndpoint(providerOpenAI, openAISpeechURL, cfg)
	ep.header.Set("Authorization", "Bearer "+cfg.APIKey)
	ep.decode = func(body []byte) (string, string) {
		var e struct {
			Error struct {
				Message string `json:"message"`
				Code    string `json:"code"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &e)
		return e.Error.Message, e.Error.Code
	}
	return &OpenAI{endpoint: ep, model: cfg.ModelID, voice: cfg.VoiceID}, nil
}

// Synthesize returns MP3 audio for text.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if text == "" {
		return nil, WrapError(providerOpenAI, ErrEmptyText)
	}
	start := time.Now()

	body, err := json.Marshal(struct {
		Model          string `json:"model"`
		Voice          string `json:"voice"`
		Input          string `json:"input"`
		ResponseFormat string `json:"response_format"`
	}{o.model, o.voice, text, "mp3"})
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}

	audio, err := o.fetch(ctx, http.MethodPost, o.base, body, nil)
	if err != nil {
		return nil, err
	}
	res := &AudioResult{
		Audio:     audio,
		Format:    AudioFormat{Encoding: EncodingMP3, SampleRate: 44100, Channels: 1},
		CharCount: len(text),
		LatencyMs: time.Since(start).Milliseconds(),
	}
	o.logger.Debug("synthesized", "voice", o.voice, "chars", res.CharCount, "bytes", len(audio), "latency_ms", res.LatencyMs)
	return res, nil
}

// Health lists models with the configured key.
func (o *OpenAI) Health(ctx context.Context) error {
	return o.ping(ctx, openAIModelsURL)
}

var _ Provider = (*OpenAI)(nil)

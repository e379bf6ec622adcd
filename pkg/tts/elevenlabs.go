package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

const (
	providerElevenLabs = "elevenlabs"
	elevenLabsBaseURL  = "https://api.elevenlabs.io/v1"
)

// ElevenLabs models.
const (
	ModelMultilingualV2 = "eleven_multilingual_v2"
	ModelTurboV2_5      = "eleven_turbo_v2_5"
	ModelFlashV2_5      = "eleven_flash_v2_5"
)

// ElevenLabsVoices are the preset names accepted by WithVoice.
var ElevenLabsVoices = map[string]string{
	"rachel":    "21m00Tcm4TlvDq8ikWAM",
	"charlotte": "XB0fDUnXU5powFXDhCwa",
	"aria":      "9BWtsMINqrJLrRacOk9x",
	"adam":      "pNInz6obpgDQGcFmaJgB",
}

// ResolveElevenLabsVoice maps a preset name to its voice ID. Anything else
// is assumed to be an ID already.
func ResolveElevenLabsVoice(name string) string {
	if id, ok := ElevenLabsVoices[name]; ok {
		return id
	}
	return name
}

// ElevenLabs is the primary voice.
type ElevenLabs struct {
	*endpoint
	voiceID  string
	model    string
	format   Encoding
	settings VoiceSettings
}

// NewElevenLabs requires an API key and a voice.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	switch {
	case cfg.APIKey == "":
		return nil, WrapError(providerElevenLabs, ErrNoAPIKey)
	case cfg.VoiceID == "":
		return nil, WrapError(providerElevenLabs, ErrNoVoiceID)
	}

	ep := newEndpoint(providerElevenLabs, elevenLabsBaseURL, cfg)
	ep.header.Set("xi-api-key", cfg.APIKey)
	ep.decode = func(body []byte) (string, string) {
		// {"detail":{"status":"quota_exceeded","message":"..."}}
		var e struct {
			Detail struct {
				Status  string `json:"status"`
				Message string `json:"message"`
			} `json:"detail"`
		}
		_ = json.Unmarshal(body, &e)
		return e.Detail.Message, e.Detail.Status
	}

	return &ElevenLabs{
		endpoint: ep,
		voiceID:  ResolveElevenLabsVoice(cfg.VoiceID),
		model:    cfg.ModelID,
		format:   cfg.OutputFormat,
		settings: cfg.VoiceSettings,
	}, nil
}

// VoiceID is the resolved voice.
func (e *ElevenLabs) VoiceID() string { return e.voiceID }

type elevenLabsSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	SpeakerBoost    bool    `json:"use_speaker_boost"`
}

// Synthesize returns audio in the configured output format.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if text == "" {
		return nil, WrapError(providerElevenLabs, ErrEmptyText)
	}
	start := time.Now()

	body, err := json.Marshal(struct {
		Text     string             `json:"text"`
		ModelID  string             `json:"model_id"`
		Settings elevenLabsSettings `json:"voice_settings"`
	}{text, e.model, elevenLabsSettings(e.settings)})
	if err != nil {
		return nil, WrapError(providerElevenLabs, err)
	}

	target := e.base + "/text-to-speech/" + url.PathEscape(e.voiceID) +
		"?" + url.Values{"output_format": {string(e.format)}}.Encode()
	accept := "audio/pcm"
	if e.format.IsMP3() {
		accept = "audio/mpeg"
	}

	audio, err := e.fetch(ctx, http.MethodPost, target, body, http.Header{"Accept": {accept}})
	if err != nil {
		return nil, err
	}

	res := &AudioResult{
		Audio:     audio,
		Format:    AudioFormat{Encoding: e.format, SampleRate: SampleRateFromEncoding(e.format), Channels: 1},
		CharCount: len(text),
		LatencyMs: time.Since(start).Milliseconds(),
	}
	e.logger.Debug("synthesized", "model", e.model, "chars", res.CharCount, "bytes", len(audio), "latency_ms", res.LatencyMs)
	return res, nil
}

// Health fetches the account behind the key.
func (e *ElevenLabs) Health(ctx context.Context) error {
	return e.ping(ctx, e.base+"/user")
}

var _ Provider = (*ElevenLabs)(nil)

package tts

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	gtranslateURL      = "https://translate.google.com/translate_tts"
	providerGTranslate = "gtranslate"

	// gtranslateMaxChars is the longest text the endpoint accepts per request.
	gtranslateMaxChars = 100
)

// GTranslate speaks through Google Translate's keyless TTS endpoint. It
// needs no credentials, so it serves as the backup voice.
type GTranslate struct {
	*endpoint
	lang string
}

// NewGTranslate creates the free-tier provider.
func NewGTranslate(opts ...Option) *GTranslate {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if cfg.Language == "" {
		cfg.Language = "en"
	}

	ep := newEndpoint(providerGTranslate, gtranslateURL, cfg)
	ep.header.Set("User-Agent", "Mozilla/5.0")
	ep.header.Set("Referer", "https://translate.google.com/")
	return &GTranslate{endpoint: ep, lang: cfg.Language}
}

// Synthesize fetches MP3 for each text chunk and concatenates the frames.
func (g *GTranslate) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	chunks := splitText(text, gtranslateMaxChars)
	if len(chunks) == 0 {
		return nil, WrapError(providerGTranslate, ErrEmptyText)
	}
	start := time.Now()

	var audio bytes.Buffer
	for i, chunk := range chunks {
		q := url.Values{
			"ie":      {"UTF-8"},
			"q":       {chunk},
			"tl":      {g.lang},
			"client":  {"tw-ob"},
			"total":   {fmt.Sprint(len(chunks))},
			"idx":     {fmt.Sprint(i)},
			"textlen": {fmt.Sprint(utf8.RuneCountInString(chunk))},
		}
		data, err := g.fetch(ctx, http.MethodGet, g.base+"?"+q.Encode(), nil, nil)
		if err != nil {
			return nil, err
		}
		audio.Write(data)
	}

	latency := time.Since(start).Milliseconds()
	g.logger.Debug("synthesized audio", "chars", len(text), "chunks", len(chunks), "bytes", audio.Len(), "latency_ms", latency)

	return &AudioResult{
		Audio:     audio.Bytes(),
		Format:    AudioFormat{Encoding: EncodingMP3Low, SampleRate: 24000, Channels: 1},
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Health is a no-op; the endpoint has no account to check.
func (g *GTranslate) Health(ctx context.Context) error {
	return nil
}

// splitText breaks text into pieces of at most max runes, preferring
// sentence then word boundaries.
func splitText(text string, max int) []string {
	var out []string
	rest := strings.Join(strings.Fields(text), " ")

	for rest != "" {
		if utf8.RuneCountInString(rest) <= max {
			out = append(out, rest)
			break
		}

		runes := []rune(rest)
		window := string(runes[:max])
		cut := strings.LastIndexAny(window, ".!?;:,")
		if cut < max/2 {
			cut = strings.LastIndex(window, " ")
		}
		if cut <= 0 {
			cut = len(window)
		} else {
			cut++
		}

		if piece := strings.TrimSpace(rest[:cut]); piece != "" {
			out = append(out, piece)
		}
		rest = strings.TrimSpace(rest[cut:])
	}
	return out
}

var _ Provider = (*GTranslate)(nil)

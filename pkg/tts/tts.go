// Package tts turns reply text into audio. Speaker saves each reply to a
// file and hands it to a Player.
//
// ElevenLabs is the primary voice. When its quota runs out the Google
// Translate endpoint, which needs no key, takes over. OpenAI TTS can be
// configured as the primary instead.
//
//	el, _ := tts.NewElevenLabs(tts.WithAPIKey(key), tts.WithVoice("rachel"))
//	err := tts.NewSpeaker(el, player, "final.mp3", nil).Speak(ctx, "Hello")
package tts

import (
	"context"
	"strings"
)

// Provider synthesizes a whole utterance at once.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string) (*AudioResult, error)
	Health(ctx context.Context) error
	Close() error
}

// AudioResult is one synthesized utterance.
type AudioResult struct {
	Audio     []byte
	Format    AudioFormat
	CharCount int
	LatencyMs int64
}

// AudioFormat describes Audio.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
}

// Encoding names an output format. Values match ElevenLabs output_format.
type Encoding string

const (
	EncodingMP3Low Encoding = "mp3_22050_32"  // 22.05kHz MP3 32kbps
	EncodingMP3    Encoding = "mp3_44100_128" // 44.1kHz MP3 128kbps
	EncodingPCM16  Encoding = "pcm_16000"     // 16kHz mono PCM16
	EncodingPCM24  Encoding = "pcm_24000"     // 24kHz mono PCM16
)

// SampleRateFromEncoding defaults to 44.1kHz for unknown encodings.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingMP3Low:
		return 22050
	case EncodingPCM16:
		return 16000
	case EncodingPCM24:
		return 24000
	default:
		return 44100
	}
}

// IsMP3 reports whether enc is an MP3 variant.
func (e Encoding) IsMP3() bool {
	return strings.HasPrefix(string(e), "mp3")
}

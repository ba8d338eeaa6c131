package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// TTSService is the common interface for text-to-speech providers.
// ElevenLabs, Cartesia and OpenAI implement it so the worker can use whichever
// is configured without knowing the underlying provider.
// ---------------------------------------------------------------------------

// TTSResponse is the common response type from any TTS provider.
type TTSResponse struct {
	AudioData []byte
	Format    string // "mp3", "wav", etc.
}

// TTSService is the interface that any TTS provider must implement.
type TTSService interface {
	// GenerateSpeech converts text to audio. voice is a selector such as
	// "female" or "male"; providers map it to one of their own voices.
	GenerateSpeech(ctx context.Context, text, voice string) (*TTSResponse, error)
}

// VoiceOver writes synthesized narration to a file.
type VoiceOver struct {
	tts    TTSService
	logger zerolog.Logger
}

func NewVoiceOver(tts TTSService, logger zerolog.Logger) *VoiceOver {
	return &VoiceOver{
		tts:    tts,
		logger: logger.With().Str("component", "voice").Logger(),
	}
}

// Synthesize voices text and stores the audio at outputPath.
func (v *VoiceOver) Synthesize(ctx context.Context, text, voice, outputPath string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("nothing to synthesize")
	}

	resp, err := v.tts.GenerateSpeech(ctx, text, voice)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("ensure audio dir: %w", err)
	}
	if err := os.WriteFile(outputPath, resp.AudioData, 0o644); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}

	v.logger.Info().Str("voice", voice).Int("bytes", len(resp.AudioData)).Str("output", outputPath).Msg("narration saved")
	return outputPath, nil
}

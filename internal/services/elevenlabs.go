package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// ElevenLabs Text-to-Speech Service
// Uses ElevenLabs REST API to convert text into speech audio.
// Model: eleven_flash_v2_5 (fast, 32 languages)
// ---------------------------------------------------------------------------

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	elevenLabsDefaultModel = "eleven_flash_v2_5"
	elevenLabsOutputFormat = "mp3_44100_128"
)

// Voice selectors mapped to stock ElevenLabs voices.
var elevenLabsVoices = map[string]string{
	"female": "21m00Tcm4TlvDq8ikWAM",
	"male":   "pNInz6obpgDQGcFmaJgB",
}

// ElevenLabsService handles text-to-speech via ElevenLabs API.
type ElevenLabsService struct {
	apiKey  string
	voiceID string // overrides the selector when set
	modelID string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// Ensure ElevenLabsService implements TTSService at compile time.
var _ TTSService = (*ElevenLabsService)(nil)

// NewElevenLabsService creates an ElevenLabs service. A non-empty voiceID is
// used for every request regardless of the voice selector.
func NewElevenLabsService(apiKey, voiceID string, logger zerolog.Logger) *ElevenLabsService {
	return &ElevenLabsService{
		apiKey:  apiKey,
		voiceID: voiceID,
		modelID: elevenLabsDefaultModel,
		baseURL: elevenLabsBaseURL,
		client:  &http.Client{Timeout: 90 * time.Second},
		logger:  logger.With().Str("component", "elevenlabs").Logger(),
	}
}

// ---------------------------------------------------------------------------
// Request types
// ---------------------------------------------------------------------------

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

func (s *ElevenLabsService) resolveVoice(voice string) string {
	if s.voiceID != "" {
		return s.voiceID
	}
	if id, ok := elevenLabsVoices[voice]; ok {
		return id
	}
	return elevenLabsVoices["female"]
}

// GenerateSpeech converts text to speech using ElevenLabs.
func (s *ElevenLabsService) GenerateSpeech(ctx context.Context, text, voice string) (*TTSResponse, error) {
	voiceID := s.resolveVoice(voice)

	reqBody := elevenLabsRequest{
		Text:    text,
		ModelID: s.modelID,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       0.50,
			SimilarityBoost: 0.75,
			Style:           0.30,
			UseSpeakerBoost: true,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ElevenLabs request: %w", err)
	}

	// POST /v1/text-to-speech/{voice_id}?output_format=mp3_44100_128
	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", s.baseURL, voiceID, elevenLabsOutputFormat)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create ElevenLabs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	s.logger.Debug().Str("voice_id", voiceID).Str("model", s.modelID).Int("text_len", len(text)).Msg("generating speech")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ElevenLabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ElevenLabs returned status %d: %s", resp.StatusCode, string(body))
	}

	// The response body is the audio file
	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ElevenLabs audio response: %w", err)
	}
	if len(audioData) == 0 {
		return nil, fmt.Errorf("ElevenLabs returned empty audio")
	}

	s.logger.Info().Str("voice_id", voiceID).Int("bytes", len(audioData)).Msg("speech generated")
	return &TTSResponse{AudioData: audioData, Format: "mp3"}, nil
}

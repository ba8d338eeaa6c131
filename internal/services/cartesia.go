package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	cartesiaBaseURL    = "https://api.cartesia.ai"
	cartesiaAPIVersion = "2024-06-10"
	cartesiaModel      = "sonic-multilingual"
)

// Voice selectors mapped to stock Cartesia voices.
var cartesiaVoices = map[string]string{
	"female": "a0e99841-438c-4a64-b679-ae501e7d6091",
	"male":   "694f9389-aac1-45b6-b726-9d9369183238",
}

// Narration language codes keyed by the configured script language.
var cartesiaLanguages = map[string]string{
	"english":    "en",
	"indonesian": "id",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"portuguese": "pt",
	"japanese":   "ja",
}

type CartesiaService struct {
	apiKey   string
	voiceID  string
	language string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

var _ TTSService = (*CartesiaService)(nil)

// NewCartesiaService creates a Cartesia provider. A non-empty voiceID is used
// for every request; language is a script language name such as "English".
func NewCartesiaService(apiKey, voiceID, language string, logger zerolog.Logger) *CartesiaService {
	lang, ok := cartesiaLanguages[strings.ToLower(strings.TrimSpace(language))]
	if !ok {
		lang = "en"
	}
	return &CartesiaService{
		apiKey:   apiKey,
		voiceID:  voiceID,
		language: lang,
		baseURL:  cartesiaBaseURL,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger.With().Str("component", "cartesia").Logger(),
	}
}

type cartesiaRequest struct {
	ModelID      string               `json:"model_id"`
	Transcript   string               `json:"transcript"`
	Voice        cartesiaVoice        `json:"voice"`
	Language     string               `json:"language,omitempty"`
	OutputFormat cartesiaOutputFormat `json:"output_format"`
}

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	SampleRate int    `json:"sample_rate"`
	BitRate    int    `json:"bit_rate,omitempty"`
}

func (s *CartesiaService) resolveVoice(voice string) string {
	if s.voiceID != "" {
		return s.voiceID
	}
	if id, ok := cartesiaVoices[voice]; ok {
		return id
	}
	return cartesiaVoices["female"]
}

// GenerateSpeech calls POST /tts/bytes and returns mp3 audio.
func (s *CartesiaService) GenerateSpeech(ctx context.Context, text, voice string) (*TTSResponse, error) {
	voiceID := s.resolveVoice(voice)
	reqBody := cartesiaRequest{
		ModelID:    cartesiaModel,
		Transcript: text,
		Voice:      cartesiaVoice{Mode: "id", ID: voiceID},
		Language:   s.language,
		OutputFormat: cartesiaOutputFormat{
			Container:  "mp3",
			SampleRate: 44100,
			BitRate:    192000,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Cartesia request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/tts/bytes", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create Cartesia request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cartesia-Version", cartesiaAPIVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Cartesia request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("Cartesia returned status %d: %s", resp.StatusCode, string(body))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Cartesia audio: %w", err)
	}
	if len(audioData) == 0 {
		return nil, fmt.Errorf("Cartesia returned empty audio")
	}

	s.logger.Info().Str("voice_id", voiceID).Str("language", s.language).Int("bytes", len(audioData)).Msg("speech generated")
	return &TTSResponse{AudioData: audioData, Format: "mp3"}, nil
}

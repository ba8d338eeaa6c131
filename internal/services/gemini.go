package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const defaultGeminiTextModel = "gemini-2.0-flash"

// GeminiService writes narration scripts with a Gemini text model.
type GeminiService struct {
	client *genai.Client
	model  string
	logger zerolog.Logger
}

var _ ScriptProvider = (*GeminiService)(nil)

func NewGeminiService(ctx context.Context, apiKey, model string, logger zerolog.Logger) (*GeminiService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini script provider")
	}
	if model == "" {
		model = defaultGeminiTextModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiService{
		client: client,
		model:  model,
		logger: logger.With().Str("component", "gemini").Logger(),
	}, nil
}

// GenerateScriptText implements ScriptProvider.
func (s *GeminiService) GenerateScriptText(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}

	var b strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil {
				b.WriteString(part.Text)
			}
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	s.logger.Debug().Str("model", s.model).Int("chars", len(text)).Msg("script generated")
	return text, nil
}

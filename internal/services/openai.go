package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

var openAIVoices = map[string]openai.SpeechVoice{
	"female": openai.VoiceNova,
	"male":   openai.VoiceOnyx,
}

// OpenAIService writes scripts with chat completions and can also voice them.
type OpenAIService struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

var (
	_ ScriptProvider = (*OpenAIService)(nil)
	_ TTSService     = (*OpenAIService)(nil)
)

func NewOpenAIService(apiKey, model string, logger zerolog.Logger) *OpenAIService {
	return NewOpenAIServiceWithConfig(openai.DefaultConfig(apiKey), model, logger)
}

// NewOpenAIServiceWithConfig allows a custom base URL or HTTP client.
func NewOpenAIServiceWithConfig(cfg openai.ClientConfig, model string, logger zerolog.Logger) *OpenAIService {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIService{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger.With().Str("component", "openai").Logger(),
	}
}

// GenerateScriptText implements ScriptProvider.
func (s *OpenAIService) GenerateScriptText(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You write short, punchy voice-over scripts for vertical product videos.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.8,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	s.logger.Debug().Int("tokens", resp.Usage.TotalTokens).Int("chars", len(content)).Msg("script generated")
	return content, nil
}

// GenerateSpeech implements TTSService with the OpenAI speech endpoint.
func (s *OpenAIService) GenerateSpeech(ctx context.Context, text, voice string) (*TTSResponse, error) {
	speechVoice, ok := openAIVoices[voice]
	if !ok {
		speechVoice = openAIVoices["female"]
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          speechVoice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI speech request failed: %w", err)
	}
	defer resp.Close()

	audioData, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAI speech response: %w", err)
	}
	if len(audioData) == 0 {
		return nil, fmt.Errorf("OpenAI returned empty audio")
	}

	s.logger.Info().Str("voice", string(speechVoice)).Int("bytes", len(audioData)).Msg("speech generated")
	return &TTSResponse{AudioData: audioData, Format: "mp3"}, nil
}

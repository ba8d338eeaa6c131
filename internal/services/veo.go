package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bobarin/productreel/internal/models"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Veo Video Generation
// Backs VideoOperations with the Google Gen AI SDK. Each call maps to one
// SDK request; waiting is left to RemoteGenerator.
// ---------------------------------------------------------------------------

const defaultVeoModel = "veo-3.0-generate-preview"

type VeoClient struct {
	client *genai.Client
	model  string
	logger zerolog.Logger
}

var _ VideoOperations = (*VeoClient)(nil)

// NewVeoClient creates the SDK client once. A missing key is a configuration error.
func NewVeoClient(ctx context.Context, apiKey, model string, logger zerolog.Logger) (*VeoClient, error) {
	if apiKey == "" {
		return nil, models.NewError(models.KindConfiguration, "veo client", errors.New("GEMINI_API_KEY is not set"))
	}
	if model == "" {
		model = defaultVeoModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, models.NewError(models.KindConfiguration, "veo client", fmt.Errorf("failed to create genai client: %w", err))
	}

	return &VeoClient{
		client: client,
		model:  model,
		logger: logger.With().Str("component", "veo").Logger(),
	}, nil
}

func (c *VeoClient) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	config := &genai.GenerateVideosConfig{
		AspectRatio:      req.AspectRatio,
		PersonGeneration: "dont_allow",
		NumberOfVideos:   1,
	}
	if req.DurationSeconds > 0 {
		config.DurationSeconds = int32Ptr(int32(req.DurationSeconds))
	}

	var firstFrame *genai.Image
	if req.Image != nil {
		firstFrame = &genai.Image{
			ImageBytes: req.Image.Data,
			MIMEType:   req.Image.MIMEType,
		}
	}

	c.logger.Info().
		Str("model", c.model).
		Int("prompt_len", len(req.Prompt)).
		Bool("image", firstFrame != nil).
		Msg("starting video generation")

	operation, err := c.client.Models.GenerateVideos(ctx, c.model, req.Prompt, firstFrame, config)
	if err != nil {
		return "", classifyGenAIError("submit", models.KindSubmission, err)
	}
	if operation == nil || operation.Name == "" {
		return "", models.NewError(models.KindSubmission, "submit", models.ErrNoOperationRef)
	}
	return operation.Name, nil
}

func (c *VeoClient) Poll(ctx context.Context, handle string) (*OperationStatus, error) {
	operation, err := c.client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: handle}, nil)
	if err != nil {
		return nil, classifyGenAIError("poll", models.KindRemote, err)
	}
	if !operation.Done {
		return &OperationStatus{}, nil
	}

	// Check for operation-level errors (e.g. invalid request, quota exceeded)
	if len(operation.Error) > 0 {
		errJSON, _ := json.Marshal(operation.Error)
		return &OperationStatus{Done: true, Error: "video generation operation failed: " + string(errJSON)}, nil
	}
	if operation.Response == nil {
		return &OperationStatus{Done: true, Error: "no response in completed operation " + operation.Name}, nil
	}

	// Videos blocked by RAI safety filters
	if operation.Response.RAIMediaFilteredCount > 0 {
		reasons := "unknown"
		if len(operation.Response.RAIMediaFilteredReasons) > 0 {
			reasons = strings.Join(operation.Response.RAIMediaFilteredReasons, ", ")
		}
		return &OperationStatus{Done: true, Error: fmt.Sprintf("video blocked by safety filters: %d filtered, reasons: %s", operation.Response.RAIMediaFilteredCount, reasons)}, nil
	}

	if len(operation.Response.GeneratedVideos) == 0 || operation.Response.GeneratedVideos[0].Video == nil {
		return &OperationStatus{Done: true}, nil
	}

	video := operation.Response.GeneratedVideos[0].Video
	if len(video.VideoBytes) > 0 {
		return &OperationStatus{Done: true, Payload: video.VideoBytes}, nil
	}

	payload, err := c.client.Files.Download(ctx, genai.NewDownloadURIFromVideo(video), nil)
	if err != nil {
		return nil, classifyGenAIError("download", models.KindRemote, err)
	}
	return &OperationStatus{Done: true, Payload: payload}, nil
}

// classifyGenAIError marks auth failures as configuration errors and
// everything else with fallback.
func classifyGenAIError(op string, fallback models.ErrorKind, err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return models.NewError(models.KindConfiguration, op, err)
	}
	return models.NewError(fallback, op, err)
}

func int32Ptr(v int32) *int32 { return &v }

package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bobarin/productreel/internal/models"
	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// xAI Grok Imagine Video backend
// Deferred request pattern: submit generation, poll by request_id, download.
// Plugs into RemoteGenerator as an alternative to Veo.
// ---------------------------------------------------------------------------

const (
	xaiBaseURL           = "https://api.x.ai/v1"
	xaiVideoModel        = "grok-imagine-video"
	xaiMinDuration       = 1
	xaiMaxDuration       = 15
	xaiDefaultResolution = "720p"
)

type XAIVideoClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	// downloads can be large, so they get their own timeout
	downloadClient *http.Client
	logger         zerolog.Logger
}

var _ VideoOperations = (*XAIVideoClient)(nil)

func NewXAIVideoClient(apiKey string, logger zerolog.Logger) (*XAIVideoClient, error) {
	if apiKey == "" {
		return nil, models.NewError(models.KindConfiguration, "xai", models.ErrNotConfigured)
	}
	return &XAIVideoClient{
		apiKey:         apiKey,
		baseURL:        xaiBaseURL,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		downloadClient: &http.Client{Timeout: 120 * time.Second},
		logger:         logger.With().Str("component", "xai_video").Logger(),
	}, nil
}

// POST /v1/videos/generations
type xaiGenerationRequest struct {
	Prompt      string         `json:"prompt"`
	Model       string         `json:"model"`
	Image       *xaiImageInput `json:"image,omitempty"`
	Duration    int            `json:"duration,omitempty"`
	AspectRatio string         `json:"aspect_ratio,omitempty"`
	Resolution  string         `json:"resolution,omitempty"`
}

// URL may be a data: URI carrying the image inline.
type xaiImageInput struct {
	URL string `json:"url"`
}

type xaiGenerationResponse struct {
	RequestID string `json:"request_id"`
}

// GET /v1/videos/{request_id}. Pending responses carry {"status":"pending"};
// completed ones carry a video object and no status; failures carry
// {"status":"failed","error":"..."}.
type xaiVideoResult struct {
	Status string          `json:"status"`
	Video  *xaiVideoOutput `json:"video,omitempty"`
	Error  string          `json:"error"`
}

type xaiVideoOutput struct {
	URL      string `json:"url"`
	Duration int    `json:"duration"`
}

func (c *XAIVideoClient) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	body := xaiGenerationRequest{
		Prompt:      req.Prompt,
		Model:       xaiVideoModel,
		Duration:    min(max(req.DurationSeconds, xaiMinDuration), xaiMaxDuration),
		AspectRatio: req.AspectRatio,
		Resolution:  xaiDefaultResolution,
	}
	if req.Image != nil {
		body.Image = &xaiImageInput{
			URL: "data:" + req.Image.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(req.Image.Data),
		}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", models.NewError(models.KindSubmission, "submit", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/videos/generations", bytes.NewReader(jsonData))
	if err != nil {
		return "", models.NewError(models.KindSubmission, "submit", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, status, err := c.do(httpReq)
	if err != nil {
		return "", models.NewError(models.KindSubmission, "submit", err)
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusAccepted {
		return "", xaiStatusError("submit", models.KindSubmission, status, respBody)
	}

	var genResp xaiGenerationResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", models.NewError(models.KindSubmission, "submit", fmt.Errorf("failed to parse generation response: %w", err))
	}
	if genResp.RequestID == "" {
		return "", models.NewError(models.KindSubmission, "submit", models.ErrNoOperationRef)
	}

	c.logger.Info().Str("handle", genResp.RequestID).Bool("has_image", req.Image != nil).Int("duration", body.Duration).Msg("generation submitted")
	return genResp.RequestID, nil
}

func (c *XAIVideoClient) Poll(ctx context.Context, handle string) (*OperationStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/"+handle, nil)
	if err != nil {
		return nil, models.NewError(models.KindRemote, "poll", err)
	}

	respBody, status, err := c.do(httpReq)
	if err != nil {
		return nil, models.NewError(models.KindRemote, "poll", err)
	}
	// 202 means still processing
	if status != http.StatusOK && status != http.StatusAccepted {
		return nil, xaiStatusError("poll", models.KindRemote, status, respBody)
	}

	var result xaiVideoResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, models.NewError(models.KindRemote, "poll", fmt.Errorf("failed to parse video result: %w", err))
	}

	switch {
	case result.Video != nil && result.Video.URL != "":
		payload, err := c.download(ctx, result.Video.URL)
		if err != nil {
			return nil, models.NewError(models.KindRemote, "download", err)
		}
		return &OperationStatus{Done: true, Payload: payload}, nil
	case result.Status == "failed":
		msg := result.Error
		if msg == "" {
			msg = "unknown error"
		}
		return &OperationStatus{Done: true, Error: "video generation failed: " + msg}, nil
	default:
		return &OperationStatus{}, nil
	}
}

func (c *XAIVideoClient) do(req *http.Request) ([]byte, int, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *XAIVideoClient) download(ctx context.Context, videoURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func xaiStatusError(op string, kind models.ErrorKind, status int, body []byte) error {
	if len(body) > 512 {
		body = body[:512]
	}
	err := fmt.Errorf("xAI returned status %d: %s", status, string(body))
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return models.NewError(models.KindConfiguration, op, err)
	}
	return models.NewError(kind, op, err)
}

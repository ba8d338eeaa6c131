package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bobarin/productreel/internal/models"
	"github.com/rs/zerolog"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxWait      = 300 * time.Second
)

// SubmitRequest is one remote generation job. Image is nil for text-to-video.
type SubmitRequest struct {
	Prompt          string
	Image           *ImageInput
	AspectRatio     string
	DurationSeconds int
}

type ImageInput struct {
	Data     []byte
	MIMEType string
}

// OperationStatus is a snapshot of a remote long-running operation.
// Error is set when the operation finished unsuccessfully.
type OperationStatus struct {
	Done    bool
	Error   string
	Payload []byte
}

// VideoOperations is the long-running-operation API of a remote video model.
type VideoOperations interface {
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	Poll(ctx context.Context, handle string) (*OperationStatus, error)
}

// VideoRequest asks for one clip to be generated and saved at OutputPath.
type VideoRequest struct {
	Prompt          string
	ImagePath       string
	AspectRatio     string
	DurationSeconds int
	OutputPath      string
}

type PollOptions struct {
	Interval time.Duration
	MaxWait  time.Duration
}

// RemoteGenerator submits clips to a remote model and waits for them.
// It never falls back on its own; every failure is returned as a typed error.
type RemoteGenerator struct {
	ops    VideoOperations
	poll   PollOptions
	logger zerolog.Logger
}

// NewRemoteGenerator wraps ops. Zero poll options take the 5s/300s defaults.
func NewRemoteGenerator(ops VideoOperations, poll PollOptions, logger zerolog.Logger) *RemoteGenerator {
	if poll.Interval <= 0 {
		poll.Interval = DefaultPollInterval
	}
	if poll.MaxWait <= 0 {
		poll.MaxWait = DefaultMaxWait
	}
	return &RemoteGenerator{
		ops:    ops,
		poll:   poll,
		logger: logger.With().Str("component", "remote").Logger(),
	}
}

// GenerateFromImage animates the image at req.ImagePath.
func (g *RemoteGenerator) GenerateFromImage(ctx context.Context, req VideoRequest) (string, error) {
	if g.ops == nil {
		return "", models.NewError(models.KindConfiguration, "generate from image", models.ErrNotConfigured)
	}
	data, err := os.ReadFile(req.ImagePath)
	if err != nil {
		return "", models.NewError(models.KindSubmission, "generate from image", fmt.Errorf("read image: %w", err))
	}
	image := &ImageInput{Data: data, MIMEType: imageMIMEType(req.ImagePath)}
	return g.generate(ctx, req, image)
}

// GenerateFromText produces a clip from the prompt alone.
func (g *RemoteGenerator) GenerateFromText(ctx context.Context, req VideoRequest) (string, error) {
	if g.ops == nil {
		return "", models.NewError(models.KindConfiguration, "generate from text", models.ErrNotConfigured)
	}
	return g.generate(ctx, req, nil)
}

func (g *RemoteGenerator) generate(ctx context.Context, req VideoRequest, image *ImageInput) (string, error) {
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = PortraitAspectRatio
	}

	handle, err := g.ops.Submit(ctx, SubmitRequest{
		Prompt:          req.Prompt,
		Image:           image,
		AspectRatio:     aspect,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("submit cancelled: %w", ctx.Err())
		}
		return "", models.NewError(models.KindSubmission, "submit", err)
	}
	if handle == "" {
		return "", models.NewError(models.KindSubmission, "submit", models.ErrNoOperationRef)
	}

	g.logger.Info().Str("handle", handle).Bool("image", image != nil).Int("duration", req.DurationSeconds).Msg("remote generation submitted")
	return g.PollUntilDone(ctx, handle, req.OutputPath, g.poll)
}

// PollUntilDone waits for handle to complete and writes the clip to outputPath.
// It gives up with a timeout error once opts.MaxWait has elapsed.
func (g *RemoteGenerator) PollUntilDone(ctx context.Context, handle, outputPath string, opts PollOptions) (string, error) {
	if g.ops == nil {
		return "", models.NewError(models.KindConfiguration, "poll", models.ErrNotConfigured)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}

	start := time.Now()
	deadline := time.NewTimer(opts.MaxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for polls := 1; ; polls++ {
		status, err := g.ops.Poll(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("poll cancelled after %d attempts: %w", polls, ctx.Err())
			}
			return "", models.NewError(models.KindRemote, "poll", fmt.Errorf("attempt %d: %w", polls, err))
		}

		if status.Done {
			g.logger.Debug().Str("handle", handle).Int("polls", polls).Dur("elapsed", time.Since(start)).Msg("remote operation finished")
			return g.finish(status, outputPath)
		}

		select {
		case <-ctx.Done():
			// Cancellation is the caller's decision, not a remote timeout.
			return "", fmt.Errorf("poll cancelled after %d attempts: %w", polls, ctx.Err())
		case <-deadline.C:
			return "", models.NewError(models.KindTimeout, "poll", fmt.Errorf("operation %s not done after %v (%d polls)", handle, opts.MaxWait, polls))
		case <-ticker.C:
		}
	}
}

func (g *RemoteGenerator) finish(status *OperationStatus, outputPath string) (string, error) {
	if status.Error != "" {
		return "", models.NewError(models.KindRemote, "result", errors.New(status.Error))
	}
	if len(status.Payload) == 0 {
		return "", models.NewError(models.KindRemote, "result", models.ErrEmptyPayload)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", models.NewError(models.KindRemote, "save", err)
	}
	if err := os.WriteFile(outputPath, status.Payload, 0o644); err != nil {
		return "", models.NewError(models.KindRemote, "save", err)
	}

	g.logger.Info().Str("output", outputPath).Int("bytes", len(status.Payload)).Msg("remote clip saved")
	return outputPath, nil
}

func imageMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/bobarin/productreel/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
)

const (
	thumbnailSize    = 400
	thumbnailQuality = 85
)

// Assembler stitches per-scene clips into the deliverable video.
type Assembler struct {
	ffmpeg *FFmpegService
	logger zerolog.Logger
}

func NewAssembler(ffmpeg *FFmpegService, logger zerolog.Logger) *Assembler {
	return &Assembler{
		ffmpeg: ffmpeg,
		logger: logger.With().Str("component", "assembler").Logger(),
	}
}

// Concatenate joins clips in scene order. A single clip is returned as is.
func (a *Assembler) Concatenate(ctx context.Context, clips []models.Clip, outputPath string) (string, error) {
	if len(clips) == 0 {
		return "", models.NewError(models.KindAssembly, "concatenate", errors.New("no clips"))
	}
	if len(clips) == 1 {
		return clips[0].Path, nil
	}

	paths := make([]string, len(clips))
	for i, c := range clips {
		paths[i] = c.Path
	}
	if err := a.ffmpeg.ConcatenateClips(ctx, paths, outputPath); err != nil {
		return "", models.NewError(models.KindAssembly, "concatenate", err)
	}

	a.logger.Info().Int("clips", len(clips)).Str("output", outputPath).Msg("clips concatenated")
	return outputPath, nil
}

// ReconcileDurations returns the output length and how much of the audio
// survives when audio of length audioSec is laid under video of length videoSec.
func ReconcileDurations(audioSec, videoSec float64) (outputSec, audioKeptSec float64) {
	if audioSec > videoSec {
		return videoSec, videoSec
	}
	return videoSec, audioSec
}

// MergeAudio replaces the video's audio with the narration, keeping the video length.
func (a *Assembler) MergeAudio(ctx context.Context, videoPath, audioPath, outputPath string) (string, error) {
	videoSec, err := a.ffmpeg.MediaDuration(ctx, videoPath)
	if err != nil {
		return "", models.NewError(models.KindAssembly, "merge audio", fmt.Errorf("probe video: %w", err))
	}
	audioSec, err := a.ffmpeg.MediaDuration(ctx, audioPath)
	if err != nil {
		return "", models.NewError(models.KindAssembly, "merge audio", fmt.Errorf("probe audio: %w", err))
	}

	outputSec, keptSec := ReconcileDurations(audioSec, videoSec)
	if keptSec < audioSec {
		a.logger.Info().Float64("audio", audioSec).Float64("video", videoSec).Msg("trimming narration to video length")
	}

	if err := a.ffmpeg.MergeAudio(ctx, videoPath, audioPath, outputPath, outputSec); err != nil {
		return "", models.NewError(models.KindAssembly, "merge audio", err)
	}
	return outputPath, nil
}

// Duration probes a media file.
func (a *Assembler) Duration(ctx context.Context, path string) (float64, error) {
	return a.ffmpeg.MediaDuration(ctx, path)
}

// MakeThumbnail writes a JPEG preview of the first product image. It never
// fails: an empty string means no thumbnail could be made.
func (a *Assembler) MakeThumbnail(imagePath, outputPath string) string {
	if err := writeThumbnail(imagePath, outputPath); err != nil {
		a.logger.Warn().Err(err).Str("image", imagePath).Msg("thumbnail generation failed")
		return ""
	}
	return outputPath
}

func writeThumbnail(imagePath, outputPath string) error {
	src, err := decodeImageFile(imagePath)
	if err != nil {
		return err
	}

	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), thumbnailSize, thumbnailSize)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create thumbnail: %w", err)
	}
	if err := jpeg.Encode(f, dst, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		f.Close()
		os.Remove(outputPath)
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	return f.Close()
}

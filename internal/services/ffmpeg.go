package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Resolution is the output frame size. Portrait 9:16 by default.
type Resolution struct {
	Width  int
	Height int
}

var DefaultResolution = Resolution{Width: 1080, Height: 1920}

// ParseResolution parses "WIDTHxHEIGHT", returning DefaultResolution on malformed input.
// Dimensions are rounded down to even numbers for yuv420p.
func ParseResolution(s string) Resolution {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return DefaultResolution
	}
	width, err1 := strconv.Atoi(w)
	height, err2 := strconv.Atoi(h)
	if err1 != nil || err2 != nil || width < 2 || height < 2 {
		return DefaultResolution
	}
	return Resolution{Width: width &^ 1, Height: height &^ 1}
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// CommandRunner executes an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%s: %w: %s", name, err, tail(stderr.String(), 512))
	}
	return out, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// ---------------------------------------------------------------------------
// FFmpegService
// ---------------------------------------------------------------------------

type FFmpegService struct {
	resolution Resolution
	fps        int
	runner     CommandRunner
	logger     zerolog.Logger
}

func NewFFmpegService(resolution Resolution, fps int, logger zerolog.Logger) *FFmpegService {
	return NewFFmpegServiceWithRunner(resolution, fps, execRunner{}, logger)
}

func NewFFmpegServiceWithRunner(resolution Resolution, fps int, runner CommandRunner, logger zerolog.Logger) *FFmpegService {
	if fps <= 0 {
		fps = 30
	}
	return &FFmpegService{
		resolution: resolution,
		fps:        fps,
		runner:     runner,
		logger:     logger.With().Str("component", "ffmpeg").Logger(),
	}
}

func (s *FFmpegService) Resolution() Resolution { return s.resolution }

// EncodeStill turns a single frame into a silent clip of exactly durationSec seconds.
func (s *FFmpegService) EncodeStill(ctx context.Context, framePath, outputPath string, durationSec float64) error {
	if durationSec <= 0 {
		return fmt.Errorf("invalid clip duration %.3fs", durationSec)
	}

	args := []string{
		"-loop", "1",
		"-i", framePath,
		"-t", formatSeconds(durationSec),
		"-r", strconv.Itoa(s.fps),
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-pix_fmt", "yuv420p",
		"-an",
		"-y",
		outputPath,
	}

	s.logger.Debug().Str("frame", framePath).Float64("duration", durationSec).Msg("encoding still clip")
	if _, err := s.runner.Run(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("ffmpeg encode still failed: %w", err)
	}
	return nil
}

// ConcatenateClips joins clips in order. Inputs may differ in size, frame rate
// and codec, so each one is scaled and padded to the output frame and the
// result is re-encoded. Source audio tracks are dropped.
func (s *FFmpegService) ConcatenateClips(ctx context.Context, clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	args := make([]string, 0, 2*len(clipPaths)+16)
	for _, path := range clipPaths {
		args = append(args, "-i", path)
	}
	args = append(args,
		"-filter_complex", s.composeFilter(len(clipPaths)),
		"-map", "[outv]",
		"-c:v", "libx264",
		"-r", strconv.Itoa(s.fps),
		"-pix_fmt", "yuv420p",
		"-an",
		"-y",
		outputPath,
	)

	s.logger.Debug().Int("clips", len(clipPaths)).Str("output", outputPath).Msg("concatenating clips")
	if _, err := s.runner.Run(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("ffmpeg concatenate failed: %w", err)
	}
	return nil
}

func (s *FFmpegService) composeFilter(n int) string {
	w, h := s.resolution.Width, s.resolution.Height
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b,
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d,format=yuv420p[v%d];",
			i, w, h, w, h, s.fps, i)
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[v%d]", i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=1:a=0[outv]", n)
	return b.String()
}

// MergeAudio lays audioPath under the video stream of videoPath. The output
// always lasts videoDurationSec: longer audio is cut, shorter audio leaves
// silence at the end.
func (s *FFmpegService) MergeAudio(ctx context.Context, videoPath, audioPath, outputPath string, videoDurationSec float64) error {
	args := []string{
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-t", formatSeconds(videoDurationSec),
		"-y",
		outputPath,
	}

	if _, err := s.runner.Run(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("ffmpeg merge audio failed: %w", err)
	}
	return nil
}

// MediaDuration returns the container duration of an audio or video file in seconds.
func (s *FFmpegService) MediaDuration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	output, err := s.runner.Run(ctx, "ffprobe", args...)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	durationSec, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", strings.TrimSpace(string(output)), err)
	}
	if durationSec <= 0 {
		return 0, errors.New("ffprobe reported a non-positive duration")
	}
	return durationSec, nil
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

package models

import (
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enums
type VideoStatus string

const (
	VideoStatusPending          VideoStatus = "pending"
	VideoStatusProcessing       VideoStatus = "processing"
	VideoStatusGeneratingScript VideoStatus = "generating_script"
	VideoStatusGeneratingAudio  VideoStatus = "generating_audio"
	VideoStatusGeneratingVideo  VideoStatus = "generating_video"
	VideoStatusDone             VideoStatus = "done"
	VideoStatusFailed           VideoStatus = "failed"
)

var validTransitions = map[VideoStatus][]VideoStatus{
	VideoStatusPending:          {VideoStatusProcessing, VideoStatusGeneratingScript, VideoStatusFailed},
	VideoStatusProcessing:       {VideoStatusGeneratingScript, VideoStatusFailed},
	VideoStatusGeneratingScript: {VideoStatusGeneratingAudio, VideoStatusFailed},
	VideoStatusGeneratingAudio:  {VideoStatusGeneratingVideo, VideoStatusFailed},
	VideoStatusGeneratingVideo:  {VideoStatusDone, VideoStatusFailed},
}

var progressMessages = map[VideoStatus]string{
	VideoStatusPending:          "waiting",
	VideoStatusProcessing:       "processing",
	VideoStatusGeneratingScript: "writing script",
	VideoStatusGeneratingAudio:  "recording voice-over",
	VideoStatusGeneratingVideo:  "rendering video",
	VideoStatusDone:             "ready",
	VideoStatusFailed:           "generation failed",
}

// IsTerminal reports whether no further transition is possible.
func (s VideoStatus) IsTerminal() bool {
	return s == VideoStatusDone || s == VideoStatusFailed
}

// IsValid reports whether s is one of the known statuses.
func (s VideoStatus) IsValid() bool {
	_, ok := progressMessages[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Status only moves forward; FAILED is reachable from any non-terminal state.
func (s VideoStatus) CanTransitionTo(next VideoStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error when from -> to is not a legal edge.
func ValidateTransition(from, to VideoStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("invalid status transition from %s to %s", from, to)
	}
	return nil
}

// ProgressMessage returns the user-facing message for a status.
func ProgressMessage(s VideoStatus) string {
	if msg, ok := progressMessages[s]; ok {
		return msg
	}
	return "unknown status"
}

type Style string

const (
	StyleLuxury    Style = "luxury"
	StyleMinimal   Style = "minimal"
	StyleTech      Style = "tech"
	StyleLifestyle Style = "lifestyle"

	DefaultStyle = StyleMinimal
)

// StyleConfig is the visual parameter set used by the local renderer.
type StyleConfig struct {
	Background color.RGBA
	Text       color.RGBA
	Accent     color.RGBA
	FontSize   int
}

var styleConfigs = map[Style]StyleConfig{
	StyleLuxury: {
		Background: color.RGBA{20, 20, 30, 255},
		Text:       color.RGBA{212, 175, 55, 255},
		Accent:     color.RGBA{255, 215, 0, 255},
		FontSize:   48,
	},
	StyleMinimal: {
		Background: color.RGBA{250, 250, 250, 255},
		Text:       color.RGBA{30, 30, 30, 255},
		Accent:     color.RGBA{100, 100, 100, 255},
		FontSize:   44,
	},
	StyleTech: {
		Background: color.RGBA{15, 15, 25, 255},
		Text:       color.RGBA{0, 255, 200, 255},
		Accent:     color.RGBA{100, 200, 255, 255},
		FontSize:   46,
	},
	StyleLifestyle: {
		Background: color.RGBA{255, 245, 238, 255},
		Text:       color.RGBA{60, 60, 60, 255},
		Accent:     color.RGBA{255, 150, 150, 255},
		FontSize:   42,
	},
}

var motionPrompts = map[Style]string{
	StyleLuxury:    "elegant, premium, golden lighting, slow smooth motion, luxurious atmosphere, high-end commercial quality",
	StyleMinimal:   "clean, modern, soft white lighting, gentle floating motion, minimalist aesthetic, professional product shot",
	StyleTech:      "futuristic, neon blue accents, dynamic rotation, tech commercial style, sleek and innovative",
	StyleLifestyle: "warm, inviting, natural lighting, lifestyle setting, friendly and approachable",
}

// ParseStyle resolves user input to a known style. Unknown values map to DefaultStyle.
func ParseStyle(s string) Style {
	style := Style(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := styleConfigs[style]; ok {
		return style
	}
	return DefaultStyle
}

// Config returns the render parameters for the style, falling back to DefaultStyle.
func (s Style) Config() StyleConfig {
	if cfg, ok := styleConfigs[s]; ok {
		return cfg
	}
	return styleConfigs[DefaultStyle]
}

// MotionPrompt returns the descriptor appended to remote generation prompts.
func (s Style) MotionPrompt() string {
	if p, ok := motionPrompts[s]; ok {
		return p
	}
	return motionPrompts[DefaultStyle]
}

type ClipProvenance string

const (
	ProvenanceRemote        ClipProvenance = "remote"
	ProvenanceLocalFallback ClipProvenance = "local-fallback"
)

// Models

// Video is one end-to-end generation job. Status and artifact fields are
// written only by the worker while the job is being processed.
type Video struct {
	ID                 uuid.UUID   `json:"id"`
	ProductName        string      `json:"product_name"`
	ProductDescription *string     `json:"product_description,omitempty"`
	Style              Style       `json:"style"`
	Status             VideoStatus `json:"status"`
	Script             *string     `json:"script,omitempty"`
	AudioPath          *string     `json:"audio_url,omitempty"`
	VideoPath          *string     `json:"video_url,omitempty"`
	ThumbnailPath      *string     `json:"thumbnail_url,omitempty"`
	ImagePaths         []string    `json:"image_paths"`
	ErrorMessage       *string     `json:"error_message,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

type Script struct {
	Hook     string `json:"hook"`
	Benefits string `json:"benefits"`
	CTA      string `json:"cta"`
	FullText string `json:"full_script"`
}

// Scene is one visual segment; all scenes of a job split the narration evenly.
type Scene struct {
	Index       int
	ImagePath   string // empty for text-only scenes
	Text        string
	DurationSec float64
}

type Clip struct {
	SceneIndex  int
	Path        string
	DurationSec float64
	Provenance  ClipProvenance
}

// DTOs for API responses
type VideoStatusResponse struct {
	ID              uuid.UUID   `json:"id"`
	Status          VideoStatus `json:"status"`
	VideoURL        *string     `json:"video_url,omitempty"`
	ErrorMessage    *string     `json:"error_message,omitempty"`
	ProgressMessage string      `json:"progress_message"`
}

type CreateVideoRequest struct {
	ProductName        string
	ProductDescription *string
	Style              Style
	ImagePaths         []string
}

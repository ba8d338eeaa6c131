package services

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/bobarin/productreel/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Frame layout, in pixels.
const (
	textMargin     = 100 // wrapped text never exceeds width - textMargin
	imageMarginX   = 100
	imageMarginY   = 400
	imageLift      = 100 // product image sits this far above vertical center
	bottomPadding  = 150
	shadowOffset   = 10
	shadowAlpha    = 100
	shadowSoftness = 6
)

// StillEncoder turns a single frame into a fixed-length clip.
type StillEncoder interface {
	EncodeStill(ctx context.Context, framePath, outputPath string, durationSec float64) error
}

// SceneRequest describes one locally rendered scene.
type SceneRequest struct {
	ImagePath   string // optional
	Text        string
	Style       models.Style
	DurationSec float64
	OutputPath  string
}

// Renderer draws slideshow scenes without any network dependency.
type Renderer struct {
	resolution Resolution
	typeface   *Typeface
	encoder    StillEncoder
	logger     zerolog.Logger
}

func NewRenderer(resolution Resolution, typeface *Typeface, encoder StillEncoder, logger zerolog.Logger) *Renderer {
	return &Renderer{
		resolution: resolution,
		typeface:   typeface,
		encoder:    encoder,
		logger:     logger.With().Str("component", "renderer").Logger(),
	}
}

// ComposeFrame draws one frame. img may be nil for text-only scenes.
// The output depends only on its inputs and the loaded typeface.
func (r *Renderer) ComposeFrame(img image.Image, text string, cfg models.StyleConfig) (*image.RGBA, error) {
	w, h := r.resolution.Width, r.resolution.Height
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(cfg.Background), image.Point{}, draw.Src)

	pos := textCentered
	if img != nil {
		placeProductImage(canvas, img)
		pos = textBottom
	}

	if strings.TrimSpace(text) != "" {
		face, err := r.typeface.Face(cfg.FontSize)
		if err != nil {
			return nil, fmt.Errorf("create font face: %w", err)
		}
		defer face.Close()
		drawTextBlock(canvas, face, text, cfg.FontSize, cfg.Text, pos)
	}
	return canvas, nil
}

func placeProductImage(canvas *image.RGBA, img image.Image) {
	w, h := canvas.Bounds().Dx(), canvas.Bounds().Dy()
	maxSize := min(w-imageMarginX, h-imageMarginY)

	sb := img.Bounds()
	sw, sh := fitWithin(sb.Dx(), sb.Dy(), maxSize, maxSize)
	scaled := image.NewRGBA(image.Rect(0, 0, sw, sh))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, sb, draw.Src, nil)

	x := (w - sw) / 2
	y := (h-sh)/2 - imageLift
	target := image.Rect(x, y, x+sw, y+sh)

	drawSoftShadow(canvas, target.Add(image.Pt(shadowOffset, shadowOffset)))
	draw.Draw(canvas, target, scaled, image.Point{}, draw.Over)
}

// drawSoftShadow stacks translucent rectangles shrinking toward r so the
// shadow fades out over shadowSoftness pixels around its edge.
func drawSoftShadow(dst *image.RGBA, r image.Rectangle) {
	layer := image.NewUniform(color.NRGBA{A: uint8(shadowAlpha / (shadowSoftness + 1))})
	for i := shadowSoftness; i >= 0; i-- {
		draw.Draw(dst, r.Inset(-i), layer, image.Point{}, draw.Over)
	}
}

// RenderScene composes the frame for req and encodes it to req.OutputPath.
// An image that cannot be decoded is skipped and the scene renders as text only.
func (r *Renderer) RenderScene(ctx context.Context, req SceneRequest) (string, error) {
	var img image.Image
	if req.ImagePath != "" {
		decoded, err := decodeImageFile(req.ImagePath)
		if err != nil {
			r.logger.Warn().Err(err).Str("image", req.ImagePath).Msg("product image unreadable, rendering text only")
		} else {
			img = decoded
		}
	}

	frame, err := r.ComposeFrame(img, req.Text, req.Style.Config())
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return "", fmt.Errorf("ensure output dir: %w", err)
	}
	framePath := strings.TrimSuffix(req.OutputPath, filepath.Ext(req.OutputPath)) + "_frame.png"
	if err := writePNG(framePath, frame); err != nil {
		return "", err
	}
	defer os.Remove(framePath)

	if err := r.encoder.EncodeStill(ctx, framePath, req.OutputPath, req.DurationSec); err != nil {
		return "", err
	}

	r.logger.Debug().Str("output", req.OutputPath).Float64("duration", req.DurationSec).Bool("image", img != nil).Msg("scene rendered")
	return req.OutputPath, nil
}

// RenderSlides renders every scene in order, stopping at the first failure.
func (r *Renderer) RenderSlides(ctx context.Context, scenes []SceneRequest) ([]string, error) {
	paths := make([]string, 0, len(scenes))
	for i, scene := range scenes {
		path, err := r.RenderScene(ctx, scene)
		if err != nil {
			return nil, fmt.Errorf("scene %d: %w", i, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create frame: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode frame: %w", err)
	}
	return f.Close()
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// fitWithin shrinks w x h to fit inside maxW x maxH keeping the aspect ratio.
// Images that already fit are left at their size.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(1, int(float64(w)*scale+0.5))
	nh := max(1, int(float64(h)*scale+0.5))
	return min(nw, maxW), min(nh, maxH)
}

package services

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	lineSpacing      = 10
	textShadowOffset = 2
)

// Typeface is a parsed font that can produce faces at any size.
// Faces are not safe for concurrent use, so each frame gets its own.
type Typeface struct {
	font *opentype.Font
}

// LoadTypeface parses TTF/OTF data. Nil data selects the embedded Go Regular font.
func LoadTypeface(data []byte) (*Typeface, error) {
	if len(data) == 0 {
		data = goregular.TTF
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Typeface{font: f}, nil
}

func (t *Typeface) Face(size int) (font.Face, error) {
	return opentype.NewFace(t.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// WrapText greedily packs words into lines no wider than maxWidth pixels.
// A word that cannot fit on a line of its own is split between runes.
func WrapText(face font.Face, text string, maxWidth int) []string {
	limit := fixed.I(maxWidth)
	var lines []string
	current := ""

	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if font.MeasureString(face, candidate) <= limit {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
			current = ""
		}
		if font.MeasureString(face, word) <= limit {
			current = word
			continue
		}
		pieces := splitWord(face, word, limit)
		lines = append(lines, pieces[:len(pieces)-1]...)
		current = pieces[len(pieces)-1]
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func splitWord(face font.Face, word string, limit fixed.Int26_6) []string {
	var pieces []string
	var b strings.Builder
	for _, r := range word {
		next := b.String() + string(r)
		if b.Len() > 0 && font.MeasureString(face, next) > limit {
			pieces = append(pieces, b.String())
			b.Reset()
		}
		b.WriteRune(r)
	}
	return append(pieces, b.String())
}

type textPosition int

const (
	textCentered textPosition = iota
	textBottom
)

// drawTextBlock renders wrapped, horizontally centered lines with a drop shadow.
func drawTextBlock(dst *image.RGBA, face font.Face, text string, fontSize int, fill color.Color, pos textPosition) {
	width, height := dst.Bounds().Dx(), dst.Bounds().Dy()
	lines := WrapText(face, text, width-textMargin)
	if len(lines) == 0 {
		return
	}

	lineHeight := fontSize + lineSpacing
	total := len(lines) * lineHeight

	y := (height - total) / 2
	if pos == textBottom {
		y = height - total - bottomPadding
	}

	ascent := face.Metrics().Ascent.Ceil()
	shadow := &font.Drawer{Dst: dst, Src: image.NewUniform(color.Black), Face: face}
	fg := &font.Drawer{Dst: dst, Src: image.NewUniform(fill), Face: face}

	for i, line := range lines {
		lineWidth := font.MeasureString(face, line).Ceil()
		x := (width - lineWidth) / 2
		baseline := y + i*lineHeight + ascent

		shadow.Dot = fixed.P(x+textShadowOffset, baseline+textShadowOffset)
		shadow.DrawString(line)
		fg.Dot = fixed.P(x, baseline)
		fg.DrawString(line)
	}
}

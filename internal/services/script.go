package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobarin/productreel/internal/models"
	"github.com/rs/zerolog"
)

// ScriptProvider produces raw script text from a prompt.
type ScriptProvider interface {
	GenerateScriptText(ctx context.Context, prompt string) (string, error)
}

var styleTones = map[models.Style]string{
	models.StyleLuxury:    "luxurious, exclusive and premium",
	models.StyleMinimal:   "simple, clean and modern",
	models.StyleTech:      "innovative, cutting-edge and futuristic",
	models.StyleLifestyle: "casual, friendly and relatable",
}

// ScriptWriter turns product details into a narration script. Provider
// failures never surface: the templated fallback script is used instead.
type ScriptWriter struct {
	provider ScriptProvider
	language string
	logger   zerolog.Logger
}

func NewScriptWriter(provider ScriptProvider, language string, logger zerolog.Logger) *ScriptWriter {
	if language == "" {
		language = "English"
	}
	return &ScriptWriter{
		provider: provider,
		language: language,
		logger:   logger.With().Str("component", "script").Logger(),
	}
}

func (w *ScriptWriter) Generate(ctx context.Context, productName string, description *string, style models.Style) (*models.Script, error) {
	if w.provider == nil {
		return FallbackScript(productName), nil
	}

	text, err := w.provider.GenerateScriptText(ctx, buildScriptPrompt(productName, description, style, w.language))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		w.logger.Warn().Err(err).Msg("script provider failed, using fallback script")
		return FallbackScript(productName), nil
	}

	script := ParseScript(text)
	if strings.TrimSpace(script.FullText) == "" {
		w.logger.Warn().Int("response_len", len(text)).Msg("script response had no sections, using fallback script")
		return FallbackScript(productName), nil
	}
	return script, nil
}

func buildScriptPrompt(productName string, description *string, style models.Style, language string) string {
	desc := "No description provided"
	if description != nil && strings.TrimSpace(*description) != "" {
		desc = strings.TrimSpace(*description)
	}
	tone, ok := styleTones[style]
	if !ok {
		tone = styleTones[models.DefaultStyle]
	}

	return fmt.Sprintf(`You are a professional copywriter for short product review videos (10-30 seconds).

Write a review script for this product:
- Product name: %s
- Description: %s
- Tone: %s

Write the script in %s using exactly this format:

HOOK:
[one attention-grabbing opening sentence, at most 10 words]

BENEFITS:
[2-3 sentences on the main benefits, at most 30 words in total]

CTA:
[one call-to-action sentence, at most 10 words]

The script must sound natural when spoken and suit TikTok or Reels.`, productName, desc, tone, language)
}

// ParseScript splits provider output on its HOOK / BENEFITS / CTA headers.
// Text on the header line itself is kept.
func ParseScript(text string) *models.Script {
	sections := map[string]*strings.Builder{
		"hook":     {},
		"benefits": {},
		"cta":      {},
	}
	current := ""

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		header := strings.ToUpper(strings.TrimLeft(line, "*#- "))

		switch {
		case strings.HasPrefix(header, "HOOK"):
			current, line = "hook", afterHeader(line)
		case strings.HasPrefix(header, "BENEFIT"):
			current, line = "benefits", afterHeader(line)
		case strings.HasPrefix(header, "CTA"):
			current, line = "cta", afterHeader(line)
		}

		if current == "" || line == "" {
			continue
		}
		b := sections[current]
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(line)
	}

	s := &models.Script{
		Hook:     sections["hook"].String(),
		Benefits: sections["benefits"].String(),
		CTA:      sections["cta"].String(),
	}
	s.FullText = joinNonEmpty(s.Hook, s.Benefits, s.CTA)
	return s
}

func afterHeader(line string) string {
	_, rest, found := strings.Cut(line, ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(strings.Trim(rest, "* "))
}

// FallbackScript is the deterministic script used when no provider output is usable.
func FallbackScript(productName string) *models.Script {
	s := &models.Script{
		Hook:     "Made for anyone looking for a practical upgrade!",
		Benefits: fmt.Sprintf("%s delivers top quality with an elegant design. Perfect for everyday use.", productName),
		CTA:      "Get yours now before it sells out!",
	}
	s.FullText = joinNonEmpty(s.Hook, s.Benefits, s.CTA)
	return s
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

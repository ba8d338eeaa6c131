package worker

import (
	"strings"

	"github.com/bobarin/productreel/internal/models"
)

const (
	maxScenes = 3

	// defaultAudioSeconds is used when the narration length cannot be probed.
	defaultAudioSeconds = 10.0
)

// PlanScenes splits the narration across the product images. Every scene
// gets an equal share of audioSec. Without images there is a single scene
// carrying the whole script.
func PlanScenes(imagePaths []string, script *models.Script, productName string, audioSec float64) []models.Scene {
	if len(imagePaths) == 0 {
		return []models.Scene{{
			Index:       0,
			Text:        firstNonBlank(script.FullText, productName),
			DurationSec: audioSec,
		}}
	}

	n := min(len(imagePaths), maxScenes)
	texts := []string{script.Hook, script.Benefits, script.CTA}
	per := audioSec / float64(n)

	scenes := make([]models.Scene, n)
	for i := 0; i < n; i++ {
		scenes[i] = models.Scene{
			Index:       i,
			ImagePath:   imagePaths[i],
			Text:        firstNonBlank(texts[i], productName),
			DurationSec: per,
		}
	}
	return scenes
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

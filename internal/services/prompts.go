package services

import (
	"fmt"
	"strings"

	"github.com/bobarin/productreel/internal/models"
)

// SceneRole selects the camera treatment of a remote scene.
type SceneRole string

const (
	RoleIntro  SceneRole = "intro"
	RoleMain   SceneRole = "main"
	RoleDetail SceneRole = "detail"
	RoleOutro  SceneRole = "outro"
)

const (
	// MaxRemoteScenes bounds how many scenes of one job go to remote generation.
	MaxRemoteScenes = 2

	// Remote clip lengths, in seconds.
	ImageSceneSeconds = 4
	TextSceneSeconds  = 8

	PortraitAspectRatio = "9:16"

	maxPromptDescriptionRunes = 100
)

var sceneRoleCycle = []SceneRole{RoleIntro, RoleMain, RoleOutro}

var scenePromptTemplates = map[SceneRole]string{
	RoleIntro:  "Cinematic opening shot of %s, slowly emerging from darkness, %s, dramatic reveal",
	RoleMain:   "Product showcase of %s, smooth 360-degree rotation, %s, commercial quality, studio lighting",
	RoleDetail: "Close-up detail shot of %s, highlighting texture and quality, %s, macro lens effect",
	RoleOutro:  "Final hero shot of %s, floating elegantly, %s, fade to subtle glow",
}

// SceneRoleFor returns the role for the scene at index i, cycling intro, main, outro.
func SceneRoleFor(i int) SceneRole {
	if i < 0 {
		i = 0
	}
	return sceneRoleCycle[i%len(sceneRoleCycle)]
}

// BuildScenePrompt assembles the remote generation prompt for one scene.
// Unknown roles use the main template.
func BuildScenePrompt(productName string, description *string, style models.Style, role SceneRole) string {
	tmpl, ok := scenePromptTemplates[role]
	if !ok {
		tmpl = scenePromptTemplates[RoleMain]
	}
	prompt := fmt.Sprintf(tmpl, productName, style.MotionPrompt())

	if description != nil {
		if d := strings.TrimSpace(*description); d != "" {
			prompt += ", " + truncateRunes(d, maxPromptDescriptionRunes)
		}
	}
	return prompt
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

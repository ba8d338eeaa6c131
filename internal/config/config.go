package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	AppEnv             string
	APIPort            string
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis (optional, status events are skipped when empty)
	RedisURL string

	// Filesystem
	UploadDir string
	OutputDir string

	// Rendering
	RenderResolution string // WIDTHxHEIGHT, portrait 9:16
	VideoFPS         int
	FontPath         string // optional TTF; the embedded Go font is used when empty

	// Remote image-to-video / text-to-video
	RemoteVideoProvider string // "veo" or "xai"
	GeminiKey           string
	XAIKey              string
	VeoEnabled          bool // switches remote generation on for either provider
	VeoModel            string
	VeoPollInterval     time.Duration
	VeoMaxWait          time.Duration

	// Script generation
	ScriptProvider  string // "gemini" or "openai"
	GeminiTextModel string
	ScriptLanguage  string
	OpenAIKey       string
	OpenAIModel     string

	// Voice-over
	TTSProvider       string // "elevenlabs", "cartesia" or "openai"
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	CartesiaKey       string
	CartesiaVoiceID   string
	Voice             string // "female" or "male"
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		APIPort:             getEnv("API_PORT", "8080"),
		BackendAPIKey:       getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", ""),
		UploadDir:           getEnv("UPLOAD_DIR", "./uploads"),
		OutputDir:           getEnv("OUTPUT_DIR", "./outputs"),
		RenderResolution:    getEnv("RENDER_RESOLUTION", "1080x1920"),
		VideoFPS:            getEnvInt("VIDEO_FPS", 30),
		FontPath:            getEnv("FONT_PATH", ""),
		RemoteVideoProvider: strings.ToLower(getEnv("REMOTE_VIDEO_PROVIDER", "veo")),
		GeminiKey:           getEnv("GEMINI_API_KEY", ""),
		XAIKey:              getEnv("XAI_API_KEY", ""),
		VeoEnabled:          getEnvBool("VEO_ENABLED", true),
		VeoModel:            getEnv("VEO_MODEL", "veo-3.0-generate-preview"),
		VeoPollInterval:     getEnvDuration("VEO_POLL_INTERVAL", 5*time.Second),
		VeoMaxWait:          getEnvDuration("VEO_MAX_WAIT", 300*time.Second),
		ScriptProvider:      strings.ToLower(getEnv("SCRIPT_PROVIDER", "gemini")),
		GeminiTextModel:     getEnv("GEMINI_TEXT_MODEL", "gemini-2.0-flash"),
		ScriptLanguage:      getEnv("SCRIPT_LANGUAGE", "English"),
		OpenAIKey:           getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		TTSProvider:         strings.ToLower(getEnv("TTS_PROVIDER", "elevenlabs")),
		ElevenLabsKey:       getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:   getEnv("ELEVENLABS_VOICE_ID", ""),
		CartesiaKey:         getEnv("CARTESIA_API_KEY", ""),
		CartesiaVoiceID:     getEnv("CARTESIA_VOICE_ID", ""),
		Voice:               strings.ToLower(getEnv("VOICE", "female")),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.TTSProvider {
	case "elevenlabs":
		if cfg.ElevenLabsKey == "" {
			return nil, fmt.Errorf("ELEVENLABS_API_KEY is required when TTS_PROVIDER=elevenlabs")
		}
	case "cartesia":
		if cfg.CartesiaKey == "" {
			return nil, fmt.Errorf("CARTESIA_API_KEY is required when TTS_PROVIDER=cartesia")
		}
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when TTS_PROVIDER=openai")
		}
	default:
		return nil, fmt.Errorf("unsupported TTS_PROVIDER %q", cfg.TTSProvider)
	}

	switch cfg.RemoteVideoProvider {
	case "veo", "xai":
	default:
		return nil, fmt.Errorf("unsupported REMOTE_VIDEO_PROVIDER %q", cfg.RemoteVideoProvider)
	}

	switch cfg.ScriptProvider {
	case "gemini", "openai":
	default:
		return nil, fmt.Errorf("unsupported SCRIPT_PROVIDER %q", cfg.ScriptProvider)
	}

	if cfg.Voice != "female" && cfg.Voice != "male" {
		return nil, fmt.Errorf("VOICE must be female or male, got %q", cfg.Voice)
	}

	if cfg.VideoFPS <= 0 {
		return nil, fmt.Errorf("VIDEO_FPS must be positive")
	}

	if cfg.VeoPollInterval <= 0 || cfg.VeoMaxWait < cfg.VeoPollInterval {
		return nil, fmt.Errorf("VEO_POLL_INTERVAL must be positive and not exceed VEO_MAX_WAIT")
	}

	return cfg, nil
}

// RemoteVideoKey returns the credential of the selected remote video provider.
func (c *Config) RemoteVideoKey() string {
	if c.RemoteVideoProvider == "xai" {
		return c.XAIKey
	}
	return c.GeminiKey
}

// RemoteVideoEnabled reports whether remote generation can be attempted at all.
func (c *Config) RemoteVideoEnabled() bool {
	return c.VeoEnabled && c.RemoteVideoKey() != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/productreel/internal/api"
	"github.com/bobarin/productreel/internal/config"
	"github.com/bobarin/productreel/internal/db"
	"github.com/bobarin/productreel/internal/events"
	"github.com/bobarin/productreel/internal/logging"
	"github.com/bobarin/productreel/internal/services"
	"github.com/bobarin/productreel/internal/storage"
	"github.com/bobarin/productreel/internal/worker"
	"github.com/rs/zerolog"
)

const (
	serverShutdownTimeout = 15 * time.Second
	jobShutdownTimeout    = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("production")
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}

	logger := logging.New(cfg.AppEnv)
	logger.Info().Str("env", cfg.AppEnv).Msg("starting product video API")

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare schema")
	}
	logger.Info().Msg("connected to database")

	workspace, err := storage.New(cfg.UploadDir, cfg.OutputDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare workspace")
	}

	// Status events are optional
	var publisher *events.Publisher
	if cfg.RedisURL != "" {
		publisher, err = events.New(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, status events disabled")
			publisher = nil
		} else {
			defer publisher.Close()
			logger.Info().Msg("connected to redis for status events")
		}
	}

	w := buildWorker(ctx, cfg, database, workspace, publisher, logger)
	dispatcher := worker.NewDispatcher(context.Background(), w, logger)

	var subscriber api.StatusSubscriber
	if publisher != nil {
		subscriber = publisher
	}
	handler := api.NewHandler(database, workspace, dispatcher, subscriber, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey == "" {
		logger.Warn().Msg("no BACKEND_API_KEY set, API is unprotected")
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.APIPort).Msg("API server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	drain(server, dispatcher, logger, serverShutdownTimeout, jobShutdownTimeout)

	logger.Info().Msg("server exited")
}

// drain stops the HTTP server, then the job dispatcher, each under its own deadline.
func drain(server *http.Server, dispatcher *worker.Dispatcher, logger zerolog.Logger, serverTimeout, jobTimeout time.Duration) {
	serverCtx, cancelServer := context.WithTimeout(context.Background(), serverTimeout)
	defer cancelServer()
	if err := server.Shutdown(serverCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	jobsCtx, cancelJobs := context.WithTimeout(context.Background(), jobTimeout)
	defer cancelJobs()
	if err := dispatcher.Shutdown(jobsCtx); err != nil {
		logger.Warn().Err(err).Msg("running jobs were cancelled")
	}
}

func buildWorker(ctx context.Context, cfg *config.Config, database *db.DB, workspace *storage.Workspace, publisher *events.Publisher, logger zerolog.Logger) *worker.Worker {
	ffmpeg := services.NewFFmpegService(services.ParseResolution(cfg.RenderResolution), cfg.VideoFPS, logger)

	var fontData []byte
	if cfg.FontPath != "" {
		data, err := os.ReadFile(cfg.FontPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.FontPath).Msg("font unreadable, using embedded font")
		}
		fontData = data
	}
	typeface, err := services.LoadTypeface(fontData)
	if err != nil {
		logger.Warn().Err(err).Msg("font invalid, using embedded font")
		if typeface, err = services.LoadTypeface(nil); err != nil {
			logger.Fatal().Err(err).Msg("failed to load embedded font")
		}
	}
	renderer := services.NewRenderer(ffmpeg.Resolution(), typeface, ffmpeg, logger)
	assembler := services.NewAssembler(ffmpeg, logger)

	// Remote video generation; nil keeps the pipeline local-only
	var remote worker.RemoteGenerator
	if ops := buildVideoOperations(ctx, cfg, logger); ops != nil {
		remote = services.NewRemoteGenerator(ops, services.PollOptions{
			Interval: cfg.VeoPollInterval,
			MaxWait:  cfg.VeoMaxWait,
		}, logger)
	}

	// Script provider; the writer falls back to a template without one
	var scriptProvider services.ScriptProvider
	switch cfg.ScriptProvider {
	case "openai":
		if cfg.OpenAIKey != "" {
			scriptProvider = services.NewOpenAIService(cfg.OpenAIKey, cfg.OpenAIModel, logger)
		}
	default:
		if cfg.GeminiKey != "" {
			gemini, err := services.NewGeminiService(ctx, cfg.GeminiKey, cfg.GeminiTextModel, logger)
			if err != nil {
				logger.Warn().Err(err).Msg("gemini unavailable, using template scripts")
			} else {
				scriptProvider = gemini
			}
		}
	}
	if scriptProvider == nil {
		logger.Warn().Str("provider", cfg.ScriptProvider).Msg("no script provider configured, using template scripts")
	}

	var tts services.TTSService
	switch cfg.TTSProvider {
	case "openai":
		tts = services.NewOpenAIService(cfg.OpenAIKey, cfg.OpenAIModel, logger)
	case "cartesia":
		tts = services.NewCartesiaService(cfg.CartesiaKey, cfg.CartesiaVoiceID, cfg.ScriptLanguage, logger)
	default:
		tts = services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID, logger)
	}
	logger.Info().Str("tts", cfg.TTSProvider).Str("voice", cfg.Voice).Msg("voice-over configured")

	var notifier worker.StatusNotifier
	if publisher != nil {
		notifier = publisher
	}

	opts := worker.DefaultOptions()
	opts.RemoteEnabled = remote != nil
	opts.Voice = cfg.Voice

	return worker.New(worker.Dependencies{
		Store:     database,
		Script:    services.NewScriptWriter(scriptProvider, cfg.ScriptLanguage, logger),
		Voice:     services.NewVoiceOver(tts, logger),
		Remote:    remote,
		Renderer:  renderer,
		Assembler: assembler,
		Notifier:  notifier,
		Workspace: workspace,
	}, opts, logger)
}

func buildVideoOperations(ctx context.Context, cfg *config.Config, logger zerolog.Logger) services.VideoOperations {
	if !cfg.RemoteVideoEnabled() {
		if cfg.VeoEnabled {
			logger.Warn().Str("provider", cfg.RemoteVideoProvider).Msg("remote video enabled without an API key, rendering locally")
		} else {
			logger.Info().Msg("remote video generation disabled, rendering locally")
		}
		return nil
	}

	switch cfg.RemoteVideoProvider {
	case "xai":
		client, err := services.NewXAIVideoClient(cfg.XAIKey, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("xai client unavailable, rendering locally")
			return nil
		}
		logger.Info().Msg("xai video generation enabled")
		return client
	default:
		client, err := services.NewVeoClient(ctx, cfg.GeminiKey, cfg.VeoModel, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("veo client unavailable, rendering locally")
			return nil
		}
		logger.Info().Str("model", cfg.VeoModel).Msg("veo video generation enabled")
		return client
	}
}

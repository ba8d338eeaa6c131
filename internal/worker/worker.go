package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/bobarin/productreel/internal/models"
	"github.com/bobarin/productreel/internal/services"
	"github.com/bobarin/productreel/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Store is the job persistence the worker writes through. Every method is a
// single atomic update.
type Store interface {
	GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error)
	UpdateVideoStatus(ctx context.Context, id uuid.UUID, status models.VideoStatus) error
	SetVideoScript(ctx context.Context, id uuid.UUID, script string) error
	SetVideoAudio(ctx context.Context, id uuid.UUID, path string) error
	SetVideoOutput(ctx context.Context, id uuid.UUID, path string) error
	SetVideoThumbnail(ctx context.Context, id uuid.UUID, path string) error
	SetVideoError(ctx context.Context, id uuid.UUID, message string) error
}

type ScriptWriter interface {
	Generate(ctx context.Context, productName string, description *string, style models.Style) (*models.Script, error)
}

type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, text, voice, outputPath string) (string, error)
}

type RemoteGenerator interface {
	GenerateFromImage(ctx context.Context, req services.VideoRequest) (string, error)
	GenerateFromText(ctx context.Context, req services.VideoRequest) (string, error)
}

type SceneRenderer interface {
	RenderScene(ctx context.Context, req services.SceneRequest) (string, error)
	RenderSlides(ctx context.Context, scenes []services.SceneRequest) ([]string, error)
}

type MediaAssembler interface {
	Concatenate(ctx context.Context, clips []models.Clip, outputPath string) (string, error)
	MergeAudio(ctx context.Context, videoPath, audioPath, outputPath string) (string, error)
	MakeThumbnail(imagePath, outputPath string) string
	Duration(ctx context.Context, path string) (float64, error)
}

// StatusNotifier is told about every persisted status change. Optional.
type StatusNotifier interface {
	PublishStatus(ctx context.Context, id uuid.UUID, status models.VideoStatus) error
}

// Dependencies groups the collaborators of a Worker. Remote and Notifier may be nil.
type Dependencies struct {
	Store     Store
	Script    ScriptWriter
	Voice     VoiceSynthesizer
	Remote    RemoteGenerator
	Renderer  SceneRenderer
	Assembler MediaAssembler
	Notifier  StatusNotifier
	Workspace *storage.Workspace
}

type Options struct {
	// RemoteEnabled turns remote generation on; false renders every scene locally.
	RemoteEnabled   bool
	MaxRemoteScenes int
	Voice           string
	AspectRatio     string
}

func DefaultOptions() Options {
	return Options{
		RemoteEnabled:   true,
		MaxRemoteScenes: services.MaxRemoteScenes,
		Voice:           "female",
		AspectRatio:     services.PortraitAspectRatio,
	}
}

// Worker runs the generation pipeline for one video at a time per call.
// Calls for different videos share nothing and may run concurrently.
type Worker struct {
	deps   Dependencies
	opts   Options
	logger zerolog.Logger
}

func New(deps Dependencies, opts Options, logger zerolog.Logger) *Worker {
	if opts.MaxRemoteScenes <= 0 {
		opts.MaxRemoteScenes = services.MaxRemoteScenes
	}
	if opts.Voice == "" {
		opts.Voice = "female"
	}
	if opts.AspectRatio == "" {
		opts.AspectRatio = services.PortraitAspectRatio
	}
	return &Worker{
		deps:   deps,
		opts:   opts,
		logger: logger.With().Str("component", "worker").Logger(),
	}
}

func (w *Worker) remoteEnabled() bool {
	return w.opts.RemoteEnabled && w.deps.Remote != nil
}

// Process generates the video for videoID. When it returns, the job is DONE
// or FAILED; a returned error has already been recorded on the job.
func (w *Worker) Process(ctx context.Context, videoID uuid.UUID) (err error) {
	logger := w.logger.With().Str("video_id", videoID.String()).Logger()

	video, err := w.deps.Store.GetVideo(ctx, videoID)
	if err != nil {
		err = fmt.Errorf("failed to load video: %w", err)
		w.fail(ctx, &models.Video{ID: videoID, Status: models.VideoStatusPending}, err, logger)
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during generation: %v", r)
			logger.Error().Str("stack", string(debug.Stack())).Msg("recovered panic")
		}
		if err != nil {
			w.fail(ctx, video, err, logger)
		}
	}()

	return w.run(ctx, video, logger)
}

func (w *Worker) run(ctx context.Context, video *models.Video, logger zerolog.Logger) error {
	ws := w.deps.Workspace
	if _, err := ws.JobDir(video.ID); err != nil {
		return err
	}

	if err := w.advance(ctx, video, models.VideoStatusProcessing); err != nil {
		return err
	}

	// Stage 1: script
	if err := w.advance(ctx, video, models.VideoStatusGeneratingScript); err != nil {
		return err
	}
	script, err := w.deps.Script.Generate(ctx, video.ProductName, video.ProductDescription, video.Style)
	if err != nil {
		return fmt.Errorf("failed to generate script: %w", err)
	}
	if err := w.deps.Store.SetVideoScript(ctx, video.ID, script.FullText); err != nil {
		return fmt.Errorf("failed to save script: %w", err)
	}
	logger.Info().Int("chars", len(script.FullText)).Msg("script ready")

	// Stage 2: narration
	if err := w.advance(ctx, video, models.VideoStatusGeneratingAudio); err != nil {
		return err
	}
	audioPath, err := w.deps.Voice.Synthesize(ctx, script.FullText, w.opts.Voice, ws.AudioPath(video.ID))
	if err != nil {
		return fmt.Errorf("failed to synthesize narration: %w", err)
	}
	if err := w.deps.Store.SetVideoAudio(ctx, video.ID, audioPath); err != nil {
		return fmt.Errorf("failed to save audio path: %w", err)
	}

	// Stage 3: visuals
	if err := w.advance(ctx, video, models.VideoStatusGeneratingVideo); err != nil {
		return err
	}
	audioSec, err := w.deps.Assembler.Duration(ctx, audioPath)
	if err != nil {
		logger.Warn().Err(err).Float64("assumed", defaultAudioSeconds).Msg("could not probe narration length")
		audioSec = defaultAudioSeconds
	}

	scenes := PlanScenes(video.ImagePaths, script, video.ProductName, audioSec)
	clips, err := w.generateClips(ctx, video, scenes, logger)
	if err != nil {
		return err
	}

	// Stage 4: assembly
	combined, err := w.deps.Assembler.Concatenate(ctx, clips, ws.CombinedPath(video.ID))
	if err != nil {
		return fmt.Errorf("failed to concatenate clips: %w", err)
	}

	final, err := w.deps.Assembler.MergeAudio(ctx, combined, audioPath, ws.FinalPath(video.ID))
	if err != nil {
		logger.Warn().Err(err).Msg("audio merge failed, keeping silent video")
		final = combined
	}
	if err := w.deps.Store.SetVideoOutput(ctx, video.ID, final); err != nil {
		return fmt.Errorf("failed to save video path: %w", err)
	}

	if len(video.ImagePaths) > 0 {
		thumb := w.deps.Assembler.MakeThumbnail(video.ImagePaths[0], ws.ThumbnailPath(video.ID))
		if err := w.deps.Store.SetVideoThumbnail(ctx, video.ID, thumb); err != nil {
			return fmt.Errorf("failed to save thumbnail path: %w", err)
		}
	}

	if err := w.advance(ctx, video, models.VideoStatusDone); err != nil {
		return err
	}

	intermediates := []string{combined}
	for _, c := range clips {
		intermediates = append(intermediates, c.Path)
	}
	ws.Cleanup(intermediates, final)

	logger.Info().Int("clips", len(clips)).Str("output", final).Msg("video ready")
	return nil
}

// advance persists the next status before the stage it names starts.
func (w *Worker) advance(ctx context.Context, video *models.Video, next models.VideoStatus) error {
	if err := models.ValidateTransition(video.Status, next); err != nil {
		return err
	}
	if err := w.deps.Store.UpdateVideoStatus(ctx, video.ID, next); err != nil {
		return fmt.Errorf("failed to update status to %s: %w", next, err)
	}
	video.Status = next
	w.notify(ctx, video.ID, next)
	return nil
}

func (w *Worker) notify(ctx context.Context, id uuid.UUID, status models.VideoStatus) {
	if w.deps.Notifier == nil {
		return
	}
	if err := w.deps.Notifier.PublishStatus(ctx, id, status); err != nil {
		w.logger.Warn().Err(err).Str("video_id", id.String()).Str("status", string(status)).Msg("status event not published")
	}
}

// fail records cause on the job. It runs detached from ctx so a cancelled
// job still reaches a terminal state.
func (w *Worker) fail(ctx context.Context, video *models.Video, cause error, logger zerolog.Logger) {
	logger.Error().Err(cause).Str("kind", string(models.KindOf(cause))).Str("status", string(video.Status)).Msg("video generation failed")
	if video.Status.IsTerminal() {
		return
	}

	ctx = context.WithoutCancel(ctx)
	if err := w.deps.Store.SetVideoError(ctx, video.ID, cause.Error()); err != nil {
		logger.Error().Err(err).Msg("failed to record failure")
		return
	}
	video.Status = models.VideoStatusFailed
	w.notify(ctx, video.ID, models.VideoStatusFailed)
}

type sceneAction int

const (
	useRemote sceneAction = iota
	renderLocally
	// renderLocallyUnclassified still falls back, but the error carried no
	// adapter kind and is reported as unexpected.
	renderLocallyUnclassified
	abortJob
)

// decideScene is the fallback policy for one remote attempt: any adapter
// failure is replaced by a local render unless the job itself was cancelled.
func decideScene(ctx context.Context, remoteErr error) sceneAction {
	switch {
	case remoteErr == nil:
		return useRemote
	case ctx.Err() != nil:
		return abortJob
	case models.IsFallbackEligible(remoteErr):
		return renderLocally
	default:
		return renderLocallyUnclassified
	}
}

func logFallback(logger zerolog.Logger, action sceneAction, err error, scene int, msg string) {
	ev := logger.Warn()
	if action == renderLocallyUnclassified {
		ev = logger.Error().Bool("unclassified", true)
	}
	ev.Err(err).Int("scene", scene).Str("kind", string(models.KindOf(err))).Msg(msg)
}

func (w *Worker) generateClips(ctx context.Context, video *models.Video, scenes []models.Scene, logger zerolog.Logger) ([]models.Clip, error) {
	if len(video.ImagePaths) == 0 {
		return w.textOnlyClips(ctx, video, scenes, logger)
	}

	// Scenes are independent; each writes only its own slot.
	clips := make([]models.Clip, len(scenes))
	g, gctx := errgroup.WithContext(ctx)
	for i, scene := range scenes {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic in scene %d: %v", scene.Index, r)
				}
			}()
			clip, err := w.imageSceneClip(gctx, video, scene, logger)
			if err != nil {
				return fmt.Errorf("scene %d: %w", scene.Index, err)
			}
			clips[i] = clip
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clips, nil
}

func (w *Worker) imageSceneClip(ctx context.Context, video *models.Video, scene models.Scene, logger zerolog.Logger) (models.Clip, error) {
	if w.remoteEnabled() && scene.Index < w.opts.MaxRemoteScenes {
		path, err := w.deps.Remote.GenerateFromImage(ctx, services.VideoRequest{
			Prompt:          services.BuildScenePrompt(video.ProductName, video.ProductDescription, video.Style, services.SceneRoleFor(scene.Index)),
			ImagePath:       scene.ImagePath,
			AspectRatio:     w.opts.AspectRatio,
			DurationSeconds: services.ImageSceneSeconds,
			OutputPath:      w.deps.Workspace.RemoteClipPath(video.ID, scene.Index),
		})
		switch action := decideScene(ctx, err); action {
		case useRemote:
			return models.Clip{
				SceneIndex:  scene.Index,
				Path:        path,
				DurationSec: services.ImageSceneSeconds,
				Provenance:  models.ProvenanceRemote,
			}, nil
		case abortJob:
			return models.Clip{}, err
		case renderLocally, renderLocallyUnclassified:
			logFallback(logger, action, err, scene.Index, "remote scene failed, rendering locally")
		}
	}
	return w.localClip(ctx, video, scene)
}

func (w *Worker) localClip(ctx context.Context, video *models.Video, scene models.Scene) (models.Clip, error) {
	path, err := w.deps.Renderer.RenderScene(ctx, w.sceneRequest(video, scene))
	if err != nil {
		return models.Clip{}, fmt.Errorf("failed to render scene locally: %w", err)
	}
	return models.Clip{
		SceneIndex:  scene.Index,
		Path:        path,
		DurationSec: scene.DurationSec,
		Provenance:  models.ProvenanceLocalFallback,
	}, nil
}

func (w *Worker) textOnlyClips(ctx context.Context, video *models.Video, scenes []models.Scene, logger zerolog.Logger) ([]models.Clip, error) {
	if w.remoteEnabled() {
		path, err := w.deps.Remote.GenerateFromText(ctx, services.VideoRequest{
			Prompt:          services.BuildScenePrompt(video.ProductName, video.ProductDescription, video.Style, services.RoleMain),
			AspectRatio:     w.opts.AspectRatio,
			DurationSeconds: services.TextSceneSeconds,
			OutputPath:      w.deps.Workspace.RemoteClipPath(video.ID, 0),
		})
		switch action := decideScene(ctx, err); action {
		case useRemote:
			return []models.Clip{{
				SceneIndex:  0,
				Path:        path,
				DurationSec: services.TextSceneSeconds,
				Provenance:  models.ProvenanceRemote,
			}}, nil
		case abortJob:
			return nil, err
		case renderLocally, renderLocallyUnclassified:
			logFallback(logger, action, err, 0, "text-to-video failed, rendering slides locally")
		}
	}

	reqs := make([]services.SceneRequest, len(scenes))
	for i, scene := range scenes {
		reqs[i] = w.sceneRequest(video, scene)
	}
	paths, err := w.deps.Renderer.RenderSlides(ctx, reqs)
	if err != nil {
		return nil, fmt.Errorf("failed to render slides: %w", err)
	}
	if len(paths) != len(scenes) {
		return nil, errors.New("renderer returned a different number of clips than scenes")
	}

	clips := make([]models.Clip, len(scenes))
	for i, scene := range scenes {
		clips[i] = models.Clip{
			SceneIndex:  scene.Index,
			Path:        paths[i],
			DurationSec: scene.DurationSec,
			Provenance:  models.ProvenanceLocalFallback,
		}
	}
	return clips, nil
}

func (w *Worker) sceneRequest(video *models.Video, scene models.Scene) services.SceneRequest {
	return services.SceneRequest{
		ImagePath:   scene.ImagePath,
		Text:        scene.Text,
		Style:       video.Style,
		DurationSec: scene.DurationSec,
		OutputPath:  w.deps.Workspace.LocalClipPath(video.ID, scene.Index),
	}
}

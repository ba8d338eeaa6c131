package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bobarin/productreel/internal/models"
	"github.com/bobarin/productreel/internal/services"
	"github.com/bobarin/productreel/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fakeStore struct {
	mu      sync.Mutex
	videos  map[uuid.UUID]*models.Video
	history map[uuid.UUID][]models.VideoStatus
}

func newFakeStore(videos ...*models.Video) *fakeStore {
	s := &fakeStore{
		videos:  make(map[uuid.UUID]*models.Video),
		history: make(map[uuid.UUID][]models.VideoStatus),
	}
	for _, v := range videos {
		s.videos[v.ID] = v
	}
	return s
}

func (s *fakeStore) get(id uuid.UUID) (*models.Video, error) {
	v, ok := s.videos[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return v, nil
}

func (s *fakeStore) GetVideo(_ context.Context, id uuid.UUID) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.get(id)
	if err != nil {
		return nil, err
	}
	cp := *v
	return &cp, nil
}

func (s *fakeStore) UpdateVideoStatus(_ context.Context, id uuid.UUID, status models.VideoStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.get(id)
	if err != nil {
		return err
	}
	v.Status = status
	s.history[id] = append(s.history[id], status)
	return nil
}

func (s *fakeStore) set(id uuid.UUID, fn func(v *models.Video)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.get(id)
	if err != nil {
		return err
	}
	fn(v)
	return nil
}

func (s *fakeStore) SetVideoScript(_ context.Context, id uuid.UUID, script string) error {
	return s.set(id, func(v *models.Video) { v.Script = &script })
}

func (s *fakeStore) SetVideoAudio(_ context.Context, id uuid.UUID, path string) error {
	return s.set(id, func(v *models.Video) { v.AudioPath = &path })
}

func (s *fakeStore) SetVideoOutput(_ context.Context, id uuid.UUID, path string) error {
	return s.set(id, func(v *models.Video) { v.VideoPath = &path })
}

func (s *fakeStore) SetVideoThumbnail(_ context.Context, id uuid.UUID, path string) error {
	return s.set(id, func(v *models.Video) { v.ThumbnailPath = &path })
}

func (s *fakeStore) SetVideoError(_ context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.get(id)
	if err != nil {
		return err
	}
	v.Status = models.VideoStatusFailed
	v.ErrorMessage = &message
	s.history[id] = append(s.history[id], models.VideoStatusFailed)
	return nil
}

func (s *fakeStore) snapshot(id uuid.UUID) (models.Video, []models.VideoStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.videos[id], append([]models.VideoStatus(nil), s.history[id]...)
}

type fakeScript struct {
	script *models.Script
	err    error
}

func (f *fakeScript) Generate(context.Context, string, *string, models.Style) (*models.Script, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.script, nil
}

type fakeVoice struct {
	err   error
	voice string
}

func (f *fakeVoice) Synthesize(_ context.Context, _ string, voice, outputPath string) (string, error) {
	f.voice = voice
	if f.err != nil {
		return "", f.err
	}
	return outputPath, nil
}

type fakeRemote struct {
	mu        sync.Mutex
	imageReqs []services.VideoRequest
	textReqs  []services.VideoRequest
	// fail decides the outcome of each call; nil means success.
	fail func(req services.VideoRequest) error
}

func (f *fakeRemote) call(req services.VideoRequest) (string, error) {
	if f.fail != nil {
		if err := f.fail(req); err != nil {
			return "", err
		}
	}
	return req.OutputPath, nil
}

func (f *fakeRemote) GenerateFromImage(_ context.Context, req services.VideoRequest) (string, error) {
	f.mu.Lock()
	f.imageReqs = append(f.imageReqs, req)
	f.mu.Unlock()
	return f.call(req)
}

func (f *fakeRemote) GenerateFromText(_ context.Context, req services.VideoRequest) (string, error) {
	f.mu.Lock()
	f.textReqs = append(f.textReqs, req)
	f.mu.Unlock()
	return f.call(req)
}

type fakeRenderer struct {
	mu     sync.Mutex
	scenes []services.SceneRequest
	slides []services.SceneRequest
	err    error
	panics bool
}

func (f *fakeRenderer) RenderScene(_ context.Context, req services.SceneRequest) (string, error) {
	if f.panics {
		panic("renderer exploded")
	}
	f.mu.Lock()
	f.scenes = append(f.scenes, req)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return req.OutputPath, nil
}

func (f *fakeRenderer) RenderSlides(_ context.Context, reqs []services.SceneRequest) ([]string, error) {
	f.mu.Lock()
	f.slides = append(f.slides, reqs...)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	paths := make([]string, len(reqs))
	for i, r := range reqs {
		paths[i] = r.OutputPath
	}
	return paths, nil
}

type fakeAssembler struct {
	audioSec    float64
	durationErr error
	concatErr   error
	mergeErr    error
	noThumbnail bool

	clips     []models.Clip
	thumbFrom string
}

func (f *fakeAssembler) Concatenate(_ context.Context, clips []models.Clip, outputPath string) (string, error) {
	f.clips = clips
	if f.concatErr != nil {
		return "", f.concatErr
	}
	if len(clips) == 1 {
		return clips[0].Path, nil
	}
	return outputPath, nil
}

func (f *fakeAssembler) MergeAudio(_ context.Context, _, _, outputPath string) (string, error) {
	if f.mergeErr != nil {
		return "", f.mergeErr
	}
	return outputPath, nil
}

func (f *fakeAssembler) MakeThumbnail(imagePath, outputPath string) string {
	f.thumbFrom = imagePath
	if f.noThumbnail {
		return ""
	}
	return outputPath
}

func (f *fakeAssembler) Duration(context.Context, string) (float64, error) {
	return f.audioSec, f.durationErr
}

type fakeNotifier struct {
	mu       sync.Mutex
	statuses []models.VideoStatus
}

func (f *fakeNotifier) PublishStatus(_ context.Context, _ uuid.UUID, status models.VideoStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return errors.New("redis down")
}

type harness struct {
	store     *fakeStore
	script    *fakeScript
	voice     *fakeVoice
	remote    *fakeRemote
	renderer  *fakeRenderer
	assembler *fakeAssembler
	notifier  *fakeNotifier
	opts      Options
	video     *models.Video
	logs      *syncBuffer
}

// syncBuffer collects log lines written from concurrent scene goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newHarness(t *testing.T, images int) *harness {
	t.Helper()
	paths := make([]string, images)
	for i := range paths {
		paths[i] = fmt.Sprintf("/uploads/img%d.jpg", i)
	}
	video := &models.Video{
		ID:          uuid.New(),
		ProductName: "Aurora Lamp",
		Style:       models.StyleLuxury,
		Status:      models.VideoStatusPending,
		ImagePaths:  paths,
	}
	return &harness{
		store: newFakeStore(video),
		script: &fakeScript{script: &models.Script{
			Hook:     "Meet Aurora.",
			Benefits: "Warm light all night.",
			CTA:      "Order today.",
			FullText: "Meet Aurora. Warm light all night. Order today.",
		}},
		voice:     &fakeVoice{},
		remote:    &fakeRemote{},
		renderer:  &fakeRenderer{},
		assembler: &fakeAssembler{audioSec: 12},
		notifier:  &fakeNotifier{},
		opts:      DefaultOptions(),
		video:     video,
	}
}

func (h *harness) worker(t *testing.T) *Worker {
	t.Helper()
	ws, err := storage.New(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	logger := zerolog.Nop()
	if h.logs != nil {
		logger = zerolog.New(h.logs)
	}
	return New(Dependencies{
		Store:     h.store,
		Script:    h.script,
		Voice:     h.voice,
		Remote:    h.remote,
		Renderer:  h.renderer,
		Assembler: h.assembler,
		Notifier:  h.notifier,
		Workspace: ws,
	}, h.opts, logger)
}

func (h *harness) run(t *testing.T) (models.Video, []models.VideoStatus, error) {
	t.Helper()
	err := h.worker(t).Process(context.Background(), h.video.ID)
	v, hist := h.store.snapshot(h.video.ID)
	return v, hist, err
}

var happyPath = []models.VideoStatus{
	models.VideoStatusProcessing,
	models.VideoStatusGeneratingScript,
	models.VideoStatusGeneratingAudio,
	models.VideoStatusGeneratingVideo,
	models.VideoStatusDone,
}

func equalStatuses(a, b []models.VideoStatus) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestProcessTwoImagesAllRemote(t *testing.T) {
	h := newHarness(t, 2)
	v, hist, err := h.run(t)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !equalStatuses(hist, happyPath) {
		t.Errorf("status history = %v", hist)
	}
	if len(h.remote.imageReqs) != 2 {
		t.Fatalf("remote attempts = %d, want 2", len(h.remote.imageReqs))
	}
	for _, req := range h.remote.imageReqs {
		if req.DurationSeconds != services.ImageSceneSeconds || req.AspectRatio != "9:16" {
			t.Errorf("unexpected remote request %+v", req)
		}
		if !strings.Contains(req.Prompt, "Aurora Lamp") {
			t.Errorf("prompt missing product name: %q", req.Prompt)
		}
	}
	for _, c := range h.assembler.clips {
		if c.Provenance != models.ProvenanceRemote {
			t.Errorf("clip %d provenance = %s", c.SceneIndex, c.Provenance)
		}
	}
	if len(h.renderer.scenes) != 0 {
		t.Errorf("local renders = %d, want 0", len(h.renderer.scenes))
	}
	if v.VideoPath == nil || v.ThumbnailPath == nil || v.Script == nil || v.AudioPath == nil {
		t.Errorf("outputs not recorded: %+v", v)
	}
	if h.assembler.thumbFrom != "/uploads/img0.jpg" {
		t.Errorf("thumbnail source = %s", h.assembler.thumbFrom)
	}
	if h.voice.voice != "female" {
		t.Errorf("voice = %s", h.voice.voice)
	}
}

func TestProcessRemoteFailureFallsBackPerScene(t *testing.T) {
	for _, kind := range []models.ErrorKind{models.KindSubmission, models.KindTimeout, models.KindRemote, models.KindConfiguration} {
		t.Run(string(kind), func(t *testing.T) {
			h := newHarness(t, 2)
			h.remote.fail = func(req services.VideoRequest) error {
				if strings.Contains(req.OutputPath, "scene_1") {
					return models.NewError(kind, "veo", errors.New("boom"))
				}
				return nil
			}
			v, _, err := h.run(t)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if v.Status != models.VideoStatusDone {
				t.Fatalf("status = %s", v.Status)
			}
			clips := h.assembler.clips
			if len(clips) != 2 {
				t.Fatalf("clips = %d", len(clips))
			}
			if clips[0].Provenance != models.ProvenanceRemote || clips[1].Provenance != models.ProvenanceLocalFallback {
				t.Errorf("provenance = %s, %s", clips[0].Provenance, clips[1].Provenance)
			}
			if len(h.renderer.scenes) != 1 || h.renderer.scenes[0].Text != "Warm light all night." {
				t.Errorf("unexpected local renders %+v", h.renderer.scenes)
			}
		})
	}
}

func TestProcessThirdImageRendersLocally(t *testing.T) {
	h := newHarness(t, 3)
	_, _, err := h.run(t)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(h.remote.imageReqs) != services.MaxRemoteScenes {
		t.Errorf("remote attempts = %d", len(h.remote.imageReqs))
	}
	if len(h.renderer.scenes) != 1 {
		t.Fatalf("local renders = %d", len(h.renderer.scenes))
	}
	local := h.renderer.scenes[0]
	if local.ImagePath != "/uploads/img2.jpg" || local.Text != "Order today." || local.DurationSec != 4 {
		t.Errorf("unexpected local scene %+v", local)
	}
	if got := h.assembler.clips; len(got) != 3 || got[2].SceneIndex != 2 {
		t.Errorf("clips out of order: %+v", got)
	}
}

func TestProcessWithoutImages(t *testing.T) {
	h := newHarness(t, 0)
	h.remote.fail = func(services.VideoRequest) error {
		return models.NewError(models.KindTimeout, "poll", context.DeadlineExceeded)
	}
	v, hist, err := h.run(t)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !equalStatuses(hist, happyPath) {
		t.Errorf("status history = %v", hist)
	}
	if len(h.remote.textReqs) != 1 || h.remote.textReqs[0].DurationSeconds != services.TextSceneSeconds {
		t.Fatalf("text requests = %+v", h.remote.textReqs)
	}
	if len(h.remote.imageReqs) != 0 {
		t.Errorf("unexpected image requests")
	}
	if len(h.renderer.slides) != 1 {
		t.Fatalf("slides = %d", len(h.renderer.slides))
	}
	slide := h.renderer.slides[0]
	if slide.Text != h.script.script.FullText || slide.DurationSec != 12 || slide.ImagePath != "" {
		t.Errorf("unexpected slide %+v", slide)
	}
	if v.ThumbnailPath != nil {
		t.Errorf("thumbnail should not be set without images")
	}
}

func TestProcessWithoutImagesRemoteSucceeds(t *testing.T) {
	h := newHarness(t, 0)
	_, _, err := h.run(t)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(h.renderer.slides) != 0 {
		t.Errorf("slides rendered despite remote success")
	}
	if c := h.assembler.clips; len(c) != 1 || c[0].DurationSec != services.TextSceneSeconds {
		t.Errorf("clips = %+v", c)
	}
}

func TestProcessLocalOnly(t *testing.T) {
	h := newHarness(t, 2)
	h.opts.RemoteEnabled = false
	_, _, err := h.run(t)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if n := len(h.remote.imageReqs) + len(h.remote.textReqs); n != 0 {
		t.Errorf("remote calls = %d, want 0", n)
	}
	if len(h.renderer.scenes) != 2 {
		t.Errorf("local renders = %d", len(h.renderer.scenes))
	}
}

func TestLocalSceneDurationsMatchAudio(t *testing.T) {
	for images := 1; images <= 5; images++ {
		h := newHarness(t, images)
		h.opts.RemoteEnabled = false
		h.assembler.audioSec = 13.7
		if _, _, err := h.run(t); err != nil {
			t.Fatalf("Process(%d images): %v", images, err)
		}
		var total float64
		for _, c := range h.assembler.clips {
			total += c.DurationSec
		}
		if math.Abs(total-13.7) > 1e-9 {
			t.Errorf("%d images: clip durations sum to %f", images, total)
		}
	}
}

func TestProcessUnprobedAudioUsesDefault(t *testing.T) {
	h := newHarness(t, 1)
	h.opts.RemoteEnabled = false
	h.assembler.durationErr = errors.New("ffprobe missing")
	if _, _, err := h.run(t); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := h.renderer.scenes[0].DurationSec; got != defaultAudioSeconds {
		t.Errorf("duration = %f, want %f", got, defaultAudioSeconds)
	}
}

func TestProcessMergeFailureKeepsSilentVideo(t *testing.T) {
	h := newHarness(t, 2)
	h.assembler.mergeErr = errors.New("aac encoder missing")
	v, _, err := h.run(t)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if v.Status != models.VideoStatusDone || v.VideoPath == nil || !strings.HasSuffix(*v.VideoPath, "combined.mp4") {
		t.Errorf("unexpected result %+v", v)
	}
}

func TestProcessThumbnailFailureStillDone(t *testing.T) {
	h := newHarness(t, 1)
	h.assembler.noThumbnail = true
	v, _, err := h.run(t)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if v.Status != models.VideoStatusDone {
		t.Errorf("status = %s", v.Status)
	}
	if v.ThumbnailPath == nil || *v.ThumbnailPath != "" {
		t.Errorf("thumbnail = %v", v.ThumbnailPath)
	}
}

func TestProcessFailures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(h *harness)
		lastGood models.VideoStatus
		message  string
	}{
		{
			name:     "script",
			setup:    func(h *harness) { h.script.err = errors.New("llm offline") },
			lastGood: models.VideoStatusGeneratingScript,
			message:  "llm offline",
		},
		{
			name:     "voice",
			setup:    func(h *harness) { h.voice.err = errors.New("tts quota") },
			lastGood: models.VideoStatusGeneratingAudio,
			message:  "tts quota",
		},
		{
			name:     "concat",
			setup:    func(h *harness) { h.assembler.concatErr = errors.New("ffmpeg crashed") },
			lastGood: models.VideoStatusGeneratingVideo,
			message:  "ffmpeg crashed",
		},
		{
			name: "local render",
			setup: func(h *harness) {
				h.opts.RemoteEnabled = false
				h.renderer.err = errors.New("disk full")
			},
			lastGood: models.VideoStatusGeneratingVideo,
			message:  "disk full",
		},
		{
			name: "panic in scene",
			setup: func(h *harness) {
				h.opts.RemoteEnabled = false
				h.renderer.panics = true
			},
			lastGood: models.VideoStatusGeneratingVideo,
			message:  "panic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 2)
			tt.setup(h)
			v, hist, err := h.run(t)
			if err == nil {
				t.Fatal("expected error")
			}
			if v.Status != models.VideoStatusFailed {
				t.Fatalf("status = %s", v.Status)
			}
			if v.ErrorMessage == nil || !strings.Contains(*v.ErrorMessage, tt.message) {
				t.Errorf("error message = %v, want it to mention %q", v.ErrorMessage, tt.message)
			}
			if len(hist) < 2 || hist[len(hist)-2] != tt.lastGood {
				t.Errorf("status history = %v", hist)
			}
			if v.VideoPath != nil {
				t.Errorf("failed job has a video path")
			}
		})
	}
}

type panicScript struct{}

func (panicScript) Generate(context.Context, string, *string, models.Style) (*models.Script, error) {
	panic("nil map write")
}

func TestProcessRecoversPanicInPipeline(t *testing.T) {
	h := newHarness(t, 1)
	w := h.worker(t)
	w.deps.Script = panicScript{}
	if err := w.Process(context.Background(), h.video.ID); err == nil {
		t.Fatal("expected error")
	}
	v, _ := h.store.snapshot(h.video.ID)
	if v.Status != models.VideoStatusFailed || !strings.Contains(*v.ErrorMessage, "panic") {
		t.Errorf("unexpected result %+v", v)
	}
}

type blockingRemote struct{}

func (blockingRemote) GenerateFromImage(ctx context.Context, _ services.VideoRequest) (string, error) {
	<-ctx.Done()
	return "", models.NewError(models.KindTimeout, "poll", ctx.Err())
}

func (blockingRemote) GenerateFromText(ctx context.Context, req services.VideoRequest) (string, error) {
	return blockingRemote{}.GenerateFromImage(ctx, req)
}

func TestProcessCancelledJobFails(t *testing.T) {
	h := newHarness(t, 2)
	w := h.worker(t)
	w.deps.Remote = blockingRemote{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := w.Process(ctx, h.video.ID); err == nil {
		t.Fatal("expected error")
	}
	v, _ := h.store.snapshot(h.video.ID)
	if v.Status != models.VideoStatusFailed {
		t.Errorf("status = %s, want failed", v.Status)
	}
	if len(h.renderer.scenes) != 0 {
		t.Errorf("cancelled job should not fall back to local rendering")
	}
}

func TestProcessRejectsFinishedJob(t *testing.T) {
	h := newHarness(t, 1)
	h.video.Status = models.VideoStatusDone
	if _, _, err := h.run(t); err == nil {
		t.Fatal("expected error for a finished job")
	}
	v, hist := h.store.snapshot(h.video.ID)
	if v.Status != models.VideoStatusDone || len(hist) != 0 {
		t.Errorf("finished job was modified: %s %v", v.Status, hist)
	}
}

func TestProcessUnknownVideo(t *testing.T) {
	h := newHarness(t, 1)
	err := h.worker(t).Process(context.Background(), uuid.New())
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestNotifierErrorsAreIgnored(t *testing.T) {
	h := newHarness(t, 1)
	if _, _, err := h.run(t); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !equalStatuses(h.notifier.statuses, happyPath) {
		t.Errorf("published = %v", h.notifier.statuses)
	}
}

func TestDecideScene(t *testing.T) {
	live := context.Background()
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	remoteErr := models.NewError(models.KindRemote, "poll", errors.New("filtered"))
	if got := decideScene(live, nil); got != useRemote {
		t.Errorf("success = %v", got)
	}
	if got := decideScene(live, remoteErr); got != renderLocally {
		t.Errorf("remote failure = %v", got)
	}
	if got := decideScene(live, errors.New("untyped")); got != renderLocallyUnclassified {
		t.Errorf("untyped failure = %v", got)
	}
	for _, kind := range []models.ErrorKind{models.KindConfiguration, models.KindSubmission, models.KindTimeout, models.KindRemote} {
		if got := decideScene(live, models.NewError(kind, "op", errors.New("x"))); got != renderLocally {
			t.Errorf("%s failure = %v", kind, got)
		}
	}
	if got := decideScene(cancelled, remoteErr); got != abortJob {
		t.Errorf("cancelled = %v", got)
	}
}

func TestProcessUnclassifiedRemoteFailureStillFallsBack(t *testing.T) {
	h := newHarness(t, 2)
	h.logs = &syncBuffer{}
	h.remote.fail = func(req services.VideoRequest) error {
		if strings.Contains(req.OutputPath, "scene_1") {
			return errors.New("unexpected decoder state")
		}
		if strings.Contains(req.OutputPath, "scene_0") {
			return models.NewError(models.KindTimeout, "poll", errors.New("slow"))
		}
		return nil
	}
	v, _, err := h.run(t)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if v.Status != models.VideoStatusDone {
		t.Fatalf("status = %s", v.Status)
	}
	clips := h.assembler.clips
	if len(clips) != 2 || clips[0].Provenance != models.ProvenanceLocalFallback || clips[1].Provenance != models.ProvenanceLocalFallback {
		t.Fatalf("clips = %+v", clips)
	}

	var warned, unclassified int
	for _, line := range strings.Split(strings.TrimSpace(h.logs.String()), "\n") {
		if !strings.Contains(line, "rendering locally") {
			continue
		}
		switch {
		case strings.Contains(line, `"level":"error"`) && strings.Contains(line, `"unclassified":true`) && strings.Contains(line, `"kind":"fatal"`):
			unclassified++
		case strings.Contains(line, `"level":"warn"`) && strings.Contains(line, `"kind":"timeout"`):
			warned++
		}
	}
	if warned != 1 || unclassified != 1 {
		t.Errorf("warned=%d unclassified=%d\n%s", warned, unclassified, h.logs.String())
	}
}

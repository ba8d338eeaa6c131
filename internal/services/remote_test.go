package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bobarin/productreel/internal/models"
)

type fakeOperations struct {
	mu          sync.Mutex
	submitted   []SubmitRequest
	submitErr   error
	handle      string
	doneAfter   int // polls until done; 0 = never
	polls       int
	pollErr     error
	resultError string
	payload     []byte
}

func (f *fakeOperations) Submit(_ context.Context, req SubmitRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.handle, nil
}

func (f *fakeOperations) Poll(_ context.Context, handle string) (*OperationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if f.doneAfter == 0 || f.polls < f.doneAfter {
		return &OperationStatus{}, nil
	}
	return &OperationStatus{Done: true, Error: f.resultError, Payload: f.payload}, nil
}

var fastPoll = PollOptions{Interval: time.Millisecond, MaxWait: 50 * time.Millisecond}

func TestGenerateFromImageSuccess(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "product.png")
	os.WriteFile(img, []byte("png"), 0o644)

	ops := &fakeOperations{handle: "operations/123", doneAfter: 3, payload: []byte("mp4-bytes")}
	g := NewRemoteGenerator(ops, fastPoll, testLogger)

	out := filepath.Join(dir, "job", "scene_0_remote.mp4")
	path, err := g.GenerateFromImage(context.Background(), VideoRequest{
		Prompt:          "Cinematic opening shot",
		ImagePath:       img,
		DurationSeconds: ImageSceneSeconds,
		OutputPath:      out,
	})
	if err != nil {
		t.Fatalf("GenerateFromImage: %v", err)
	}
	if path != out {
		t.Errorf("path = %s, want %s", path, out)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "mp4-bytes" {
		t.Errorf("unexpected clip content %q", data)
	}

	if len(ops.submitted) != 1 {
		t.Fatalf("expected exactly one submission, got %d", len(ops.submitted))
	}
	req := ops.submitted[0]
	if req.Image == nil || req.Image.MIMEType != "image/png" || string(req.Image.Data) != "png" {
		t.Errorf("image not forwarded: %+v", req.Image)
	}
	if req.AspectRatio != "9:16" || req.DurationSeconds != 4 {
		t.Errorf("unexpected request %+v", req)
	}
	if ops.polls != 3 {
		t.Errorf("expected 3 polls, got %d", ops.polls)
	}
}

func TestGenerateFromTextHasNoImage(t *testing.T) {
	ops := &fakeOperations{handle: "op", doneAfter: 1, payload: []byte("x")}
	g := NewRemoteGenerator(ops, fastPoll, testLogger)

	if _, err := g.GenerateFromText(context.Background(), VideoRequest{
		Prompt:          "Product showcase",
		DurationSeconds: TextSceneSeconds,
		OutputPath:      filepath.Join(t.TempDir(), "clip.mp4"),
	}); err != nil {
		t.Fatalf("GenerateFromText: %v", err)
	}
	if ops.submitted[0].Image != nil || ops.submitted[0].DurationSeconds != 8 {
		t.Errorf("unexpected request %+v", ops.submitted[0])
	}
}

func TestPollTimesOut(t *testing.T) {
	ops := &fakeOperations{handle: "op"} // never completes
	g := NewRemoteGenerator(ops, PollOptions{Interval: time.Millisecond, MaxWait: 20 * time.Millisecond}, testLogger)

	start := time.Now()
	_, err := g.GenerateFromText(context.Background(), VideoRequest{OutputPath: filepath.Join(t.TempDir(), "c.mp4")})
	if models.KindOf(err) != models.KindTimeout {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("timeout took too long: %v", time.Since(start))
	}
	if ops.polls < 2 {
		t.Errorf("expected repeated polling, got %d polls", ops.polls)
	}
}

func TestPollRespectsCancellation(t *testing.T) {
	ops := &fakeOperations{handle: "op"}
	g := NewRemoteGenerator(ops, PollOptions{Interval: 10 * time.Millisecond, MaxWait: time.Minute}, testLogger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := g.PollUntilDone(ctx, "op", filepath.Join(t.TempDir(), "c.mp4"), g.poll)
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context error, got %v", err)
	}
	if kind := models.KindOf(err); kind == models.KindTimeout {
		t.Errorf("cancellation reported as %s", kind)
	}
}

// A backend whose request fails because the job context ended must not be
// reported as a remote or timeout failure.
func TestCancelledPollRequestIsNotRemoteError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ops := &cancellingOperations{cancel: cancel}
	g := NewRemoteGenerator(ops, PollOptions{Interval: time.Millisecond, MaxWait: time.Minute}, testLogger)

	_, err := g.GenerateFromText(ctx, VideoRequest{Prompt: "lamp", OutputPath: filepath.Join(t.TempDir(), "c.mp4")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if kind := models.KindOf(err); kind != models.KindFatal {
		t.Errorf("kind = %s, want untagged", kind)
	}
}

type cancellingOperations struct {
	cancel context.CancelFunc
}

func (c *cancellingOperations) Submit(context.Context, SubmitRequest) (string, error) {
	return "op", nil
}

func (c *cancellingOperations) Poll(ctx context.Context, _ string) (*OperationStatus, error) {
	c.cancel()
	return nil, ctx.Err()
}

func TestSubmissionErrors(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "p.jpg")
	os.WriteFile(img, []byte("jpg"), 0o644)

	tests := map[string]struct {
		ops       *fakeOperations
		imagePath string
		wantKind  models.ErrorKind
	}{
		"rejected":       {ops: &fakeOperations{submitErr: errors.New("400 bad request")}, imagePath: img, wantKind: models.KindSubmission},
		"no handle":      {ops: &fakeOperations{}, imagePath: img, wantKind: models.KindSubmission},
		"missing image":  {ops: &fakeOperations{handle: "op"}, imagePath: filepath.Join(dir, "nope.jpg"), wantKind: models.KindSubmission},
		"auth is config": {ops: &fakeOperations{submitErr: models.NewError(models.KindConfiguration, "submit", errors.New("403"))}, imagePath: img, wantKind: models.KindConfiguration},
		"failed poll":    {ops: &fakeOperations{handle: "op", pollErr: errors.New("503")}, imagePath: img, wantKind: models.KindRemote},
		"remote error":   {ops: &fakeOperations{handle: "op", doneAfter: 1, resultError: "quota exceeded"}, imagePath: img, wantKind: models.KindRemote},
		"empty payload":  {ops: &fakeOperations{handle: "op", doneAfter: 1}, imagePath: img, wantKind: models.KindRemote},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			g := NewRemoteGenerator(tt.ops, fastPoll, testLogger)
			_, err := g.GenerateFromImage(context.Background(), VideoRequest{
				ImagePath:  tt.imagePath,
				OutputPath: filepath.Join(dir, name+".mp4"),
			})
			if got := models.KindOf(err); got != tt.wantKind {
				t.Errorf("kind = %s, want %s (err=%v)", got, tt.wantKind, err)
			}
			if !models.IsFallbackEligible(err) {
				t.Errorf("adapter errors must be fallback eligible: %v", err)
			}
			if len(tt.ops.submitted) > 1 {
				t.Errorf("adapter must not retry, got %d submissions", len(tt.ops.submitted))
			}
		})
	}
}

func TestUnconfiguredGenerator(t *testing.T) {
	g := NewRemoteGenerator(nil, PollOptions{}, testLogger)
	_, err := g.GenerateFromText(context.Background(), VideoRequest{})
	if models.KindOf(err) != models.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if g.poll.Interval != DefaultPollInterval || g.poll.MaxWait != DefaultMaxWait {
		t.Errorf("unexpected default poll options %+v", g.poll)
	}
}

func TestBuildScenePrompt(t *testing.T) {
	desc := strings.Repeat("é", 150)
	prompt := BuildScenePrompt("Aurora Lamp", &desc, models.StyleLuxury, RoleIntro)

	if !strings.HasPrefix(prompt, "Cinematic opening shot of Aurora Lamp") {
		t.Errorf("unexpected prompt %q", prompt)
	}
	if !strings.Contains(prompt, models.StyleLuxury.MotionPrompt()) {
		t.Errorf("prompt is missing the style descriptor")
	}
	if !strings.HasSuffix(prompt, ", "+strings.Repeat("é", 100)) {
		t.Errorf("description should be truncated to 100 runes")
	}

	if BuildScenePrompt("X", nil, models.StyleTech, "spin") != BuildScenePrompt("X", nil, models.StyleTech, RoleMain) {
		t.Errorf("unknown roles should use the main template")
	}
	if BuildScenePrompt("X", nil, models.StyleTech, RoleOutro) != BuildScenePrompt("X", nil, models.StyleTech, RoleOutro) {
		t.Errorf("prompt building must be deterministic")
	}
}

func TestSceneRoleFor(t *testing.T) {
	want := []SceneRole{RoleIntro, RoleMain, RoleOutro, RoleIntro}
	for i, w := range want {
		if got := SceneRoleFor(i); got != w {
			t.Errorf("SceneRoleFor(%d) = %s, want %s", i, got, w)
		}
	}
}

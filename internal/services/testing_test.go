package services

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

var testLogger = zerolog.Nop()

// recordingRunner stands in for ffmpeg/ffprobe. ffprobe calls answer from
// durations keyed by the probed path; failFor makes matching commands fail.
type recordingRunner struct {
	mu        sync.Mutex
	calls     [][]string
	durations map[string]float64
	failFor   func(name string, args []string) bool
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.mu.Unlock()

	if r.failFor != nil && r.failFor(name, args) {
		return nil, fmt.Errorf("%s: exit status 1", name)
	}
	if name == "ffprobe" {
		path := args[len(args)-1]
		d, ok := r.durations[path]
		if !ok {
			return nil, fmt.Errorf("ffprobe: no such file %s", path)
		}
		return []byte(fmt.Sprintf("%.6f\n", d)), nil
	}
	return nil, nil
}

func (r *recordingRunner) commands(name string) [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][]string
	for _, c := range r.calls {
		if c[0] == name {
			out = append(out, c[1:])
		}
	}
	return out
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func writeTestPNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if strings.Contains(a, want) {
			return true
		}
	}
	return false
}

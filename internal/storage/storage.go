package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxUploadBytes caps a single product image upload.
	MaxUploadBytes = 20 << 20

	defaultImageExt = ".jpg"

	// PublicPrefix is the URL path the output directory is served under.
	PublicPrefix = "/outputs/"
)

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Workspace owns the on-disk layout: uploaded product images live under
// uploadDir, and every artifact of a job lives under outputDir/<video-id>/.
type Workspace struct {
	uploadDir string
	outputDir string
}

func New(uploadDir, outputDir string) (*Workspace, error) {
	uploadDir = strings.TrimSpace(uploadDir)
	outputDir = strings.TrimSpace(outputDir)
	if uploadDir == "" || outputDir == "" {
		return nil, errors.New("storage: upload and output directories are required")
	}
	for _, dir := range []string{uploadDir, outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: ensure %s: %w", dir, err)
		}
	}
	return &Workspace{uploadDir: uploadDir, outputDir: outputDir}, nil
}

func (w *Workspace) UploadDir() string { return w.uploadDir }
func (w *Workspace) OutputDir() string { return w.outputDir }

// SaveUpload stores an uploaded image under a fresh uuid name and returns its path.
// The original filename only contributes its extension.
func (w *Workspace) SaveUpload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(w.uploadDir, uuid.New().String()+imageExt(filename))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("storage: create upload: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(r, MaxUploadBytes+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && n > MaxUploadBytes {
		err = fmt.Errorf("upload exceeds %d bytes", MaxUploadBytes)
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("storage: write upload: %w", err)
	}
	return path, nil
}

// JobDir returns (and creates) the directory holding every artifact of a job.
func (w *Workspace) JobDir(videoID uuid.UUID) (string, error) {
	dir := filepath.Join(w.outputDir, videoID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure job dir: %w", err)
	}
	return dir, nil
}

func (w *Workspace) jobPath(videoID uuid.UUID, name string) string {
	return filepath.Join(w.outputDir, videoID.String(), name)
}

func (w *Workspace) AudioPath(videoID uuid.UUID) string {
	return w.jobPath(videoID, "narration.mp3")
}

func (w *Workspace) RemoteClipPath(videoID uuid.UUID, scene int) string {
	return w.jobPath(videoID, fmt.Sprintf("scene_%d_remote.mp4", scene))
}

func (w *Workspace) LocalClipPath(videoID uuid.UUID, scene int) string {
	return w.jobPath(videoID, fmt.Sprintf("scene_%d_local.mp4", scene))
}

func (w *Workspace) CombinedPath(videoID uuid.UUID) string {
	return w.jobPath(videoID, "combined.mp4")
}

func (w *Workspace) FinalPath(videoID uuid.UUID) string {
	return w.jobPath(videoID, "final.mp4")
}

func (w *Workspace) ThumbnailPath(videoID uuid.UUID) string {
	return w.jobPath(videoID, "thumbnail.jpg")
}

// Cleanup removes intermediate files, skipping anything listed in keep.
func (w *Workspace) Cleanup(paths []string, keep ...string) {
	kept := make(map[string]bool, len(keep))
	for _, k := range keep {
		kept[filepath.Clean(k)] = true
	}
	for _, p := range paths {
		if p == "" || kept[filepath.Clean(p)] {
			continue
		}
		os.Remove(p)
	}
}

// Contains reports whether path resolves inside the output directory.
func (w *Workspace) Contains(path string) bool {
	root, err := filepath.Abs(w.outputDir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// PublicURL maps an artifact path to its URL under /outputs/. Paths outside
// the output directory are returned unchanged.
func (w *Workspace) PublicURL(path string) string {
	if path == "" || !w.Contains(path) {
		return path
	}
	root, _ := filepath.Abs(w.outputDir)
	abs, _ := filepath.Abs(path)
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return path
	}
	return PublicPrefix + filepath.ToSlash(rel)
}

func imageExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if allowedImageExts[ext] {
		return ext
	}
	return defaultImageExt
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/bobarin/productreel/internal/events"
	"github.com/bobarin/productreel/internal/models"
	"github.com/bobarin/productreel/internal/storage"
	"github.com/bobarin/productreel/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	maxImages         = 3
	maxProductNameLen = 255
	maxFormMemory     = 32 << 20
)

type VideoStore interface {
	CreateVideo(ctx context.Context, video *models.Video) error
	GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error)
	ListVideos(ctx context.Context, limit, offset int) ([]models.Video, error)
	SetVideoError(ctx context.Context, id uuid.UUID, message string) error
}

type Dispatcher interface {
	Submit(videoID uuid.UUID) *worker.Task
}

// StatusSubscriber streams status changes of one video. Optional.
type StatusSubscriber interface {
	Subscribe(ctx context.Context, videoID uuid.UUID) (<-chan events.StatusEvent, error)
}

type Handler struct {
	store     VideoStore
	workspace *storage.Workspace
	jobs      Dispatcher
	events    StatusSubscriber
	logger    zerolog.Logger
}

func NewHandler(store VideoStore, workspace *storage.Workspace, jobs Dispatcher, subscriber StatusSubscriber, logger zerolog.Logger) *Handler {
	return &Handler{
		store:     store,
		workspace: workspace,
		jobs:      jobs,
		events:    subscriber,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

type listVideosResponse struct {
	Videos []models.Video `json:"videos"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// CreateVideo handles POST /api/videos
//
// Multipart fields: product_name (required), product_description, style,
// and up to three images.
func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		respondError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	req, err := h.parseCreateRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	video := &models.Video{
		ID:                 uuid.New(),
		ProductName:        req.ProductName,
		ProductDescription: req.ProductDescription,
		Style:              req.Style,
		Status:             models.VideoStatusPending,
		ImagePaths:         req.ImagePaths,
	}
	if err := h.store.CreateVideo(r.Context(), video); err != nil {
		h.logger.Error().Err(err).Msg("create video failed")
		h.workspace.Cleanup(req.ImagePaths)
		respondError(w, http.StatusInternalServerError, "Failed to create video")
		return
	}

	if task := h.jobs.Submit(video.ID); rejected(task) {
		h.logger.Warn().Str("video_id", video.ID.String()).Msg("job rejected during shutdown")
		if err := h.store.SetVideoError(context.WithoutCancel(r.Context()), video.ID, "service is shutting down"); err != nil {
			h.logger.Error().Err(err).Str("video_id", video.ID.String()).Msg("failed to record rejected job")
		}
		respondError(w, http.StatusServiceUnavailable, "Service is shutting down, try again later")
		return
	}
	h.logger.Info().Str("video_id", video.ID.String()).Int("images", len(video.ImagePaths)).Str("style", string(video.Style)).Msg("video queued")

	respondJSON(w, http.StatusCreated, h.present(video))
}

// rejected reports whether the dispatcher refused task without running it.
func rejected(task *worker.Task) bool {
	select {
	case <-task.Done():
		return errors.Is(task.Wait(), worker.ErrShuttingDown)
	default:
		return false
	}
}

func (h *Handler) parseCreateRequest(r *http.Request) (*models.CreateVideoRequest, error) {
	name := strings.TrimSpace(r.FormValue("product_name"))
	if name == "" {
		return nil, errors.New("product_name is required")
	}
	if len([]rune(name)) > maxProductNameLen {
		return nil, fmt.Errorf("product_name must be at most %d characters", maxProductNameLen)
	}

	req := &models.CreateVideoRequest{
		ProductName: name,
		Style:       models.ParseStyle(r.FormValue("style")),
		ImagePaths:  []string{},
	}
	if desc := strings.TrimSpace(r.FormValue("product_description")); desc != "" {
		req.ProductDescription = &desc
	}

	if r.MultipartForm == nil {
		return req, nil
	}
	for _, fh := range r.MultipartForm.File["images"] {
		if len(req.ImagePaths) == maxImages {
			break
		}
		if fh.Filename == "" {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			h.workspace.Cleanup(req.ImagePaths)
			return nil, fmt.Errorf("failed to read image %s", fh.Filename)
		}
		path, err := h.workspace.SaveUpload(r.Context(), fh.Filename, f)
		f.Close()
		if err != nil {
			h.workspace.Cleanup(req.ImagePaths)
			return nil, fmt.Errorf("failed to store image %s", fh.Filename)
		}
		req.ImagePaths = append(req.ImagePaths, path)
	}
	return req, nil
}

// ListVideos handles GET /api/videos
// Query params: limit (default 20, max 100) and offset.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	videos, err := h.store.ListVideos(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("list videos failed")
		respondError(w, http.StatusInternalServerError, "Failed to list videos")
		return
	}
	for i := range videos {
		videos[i] = *h.present(&videos[i])
	}

	respondJSON(w, http.StatusOK, listVideosResponse{Videos: videos, Limit: limit, Offset: offset})
}

// GetVideo handles GET /api/videos/{id}
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, h.present(video))
}

// GetVideoStatus handles GET /api/videos/{id}/status
func (h *Handler) GetVideoStatus(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}
	presented := h.present(video)
	respondJSON(w, http.StatusOK, models.VideoStatusResponse{
		ID:              video.ID,
		Status:          video.Status,
		VideoURL:        presented.VideoPath,
		ErrorMessage:    video.ErrorMessage,
		ProgressMessage: models.ProgressMessage(video.Status),
	})
}

// DownloadVideo handles GET /api/videos/{id}/download
func (h *Handler) DownloadVideo(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}

	if video.Status != models.VideoStatusDone {
		respondError(w, http.StatusBadRequest, "Video is not ready yet")
		return
	}
	if video.VideoPath == nil || *video.VideoPath == "" || !h.workspace.Contains(*video.VideoPath) {
		respondError(w, http.StatusNotFound, "Video file not found")
		return
	}
	if _, err := os.Stat(*video.VideoPath); err != nil {
		respondError(w, http.StatusNotFound, "Video file not found")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName(video.ProductName)))
	http.ServeFile(w, r, *video.VideoPath)
}

func downloadName(productName string) string {
	return strings.ReplaceAll(productName, " ", "_") + "_review.mp4"
}

// StreamVideoEvents handles GET /api/videos/{id}/events as server-sent events.
// The stream ends when the video reaches a terminal status.
func (h *Handler) StreamVideoEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		respondError(w, http.StatusNotImplemented, "Status events are not configured")
		return
	}
	videoID, ok := parseVideoID(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before reading the current status: pub/sub only delivers
	// events published after the subscription exists.
	stream, err := h.events.Subscribe(ctx, videoID)
	if err != nil {
		h.logger.Error().Err(err).Str("video_id", videoID.String()).Msg("subscribe failed")
		respondError(w, http.StatusServiceUnavailable, "Status events unavailable")
		return
	}

	video, ok := h.getVideo(w, r, videoID)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, events.NewStatusEvent(video.ID, video.Status))
	flusher.Flush()
	if video.Status.IsTerminal() {
		return
	}

	for ev := range stream {
		writeEvent(w, ev)
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, ev events.StatusEvent) {
	data, _ := json.Marshal(ev)
	fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
}

func (h *Handler) loadVideo(w http.ResponseWriter, r *http.Request) (*models.Video, bool) {
	videoID, ok := parseVideoID(w, r)
	if !ok {
		return nil, false
	}
	return h.getVideo(w, r, videoID)
}

func parseVideoID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	videoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid video ID format")
		return uuid.Nil, false
	}
	return videoID, true
}

func (h *Handler) getVideo(w http.ResponseWriter, r *http.Request, videoID uuid.UUID) (*models.Video, bool) {
	video, err := h.store.GetVideo(r.Context(), videoID)
	if errors.Is(err, models.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Video not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error().Err(err).Str("video_id", videoID.String()).Msg("get video failed")
		respondError(w, http.StatusInternalServerError, "Failed to get video")
		return nil, false
	}
	return video, true
}

// present rewrites artifact paths to their public URLs.
func (h *Handler) present(video *models.Video) *models.Video {
	out := *video
	out.AudioPath = h.publicURL(video.AudioPath)
	out.VideoPath = h.publicURL(video.VideoPath)
	out.ThumbnailPath = h.publicURL(video.ThumbnailPath)
	return &out
}

func (h *Handler) publicURL(path *string) *string {
	if path == nil || *path == "" {
		return nil
	}
	url := h.workspace.PublicURL(*path)
	return &url
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "version": "1.0.0"})
}

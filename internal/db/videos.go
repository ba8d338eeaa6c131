package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bobarin/productreel/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const videoColumns = `
	id, product_name, product_description, style, status, script,
	audio_url, video_url, thumbnail_url, image_paths, error_message,
	created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*models.Video, error) {
	v := &models.Video{}
	err := row.Scan(
		&v.ID, &v.ProductName, &v.ProductDescription, &v.Style, &v.Status, &v.Script,
		&v.AudioPath, &v.VideoPath, &v.ThumbnailPath, pq.Array(&v.ImagePaths), &v.ErrorMessage,
		&v.CreatedAt, &v.UpdatedAt,
	)
	return v, err
}

func (db *DB) CreateVideo(ctx context.Context, video *models.Video) error {
	if video.ID == uuid.Nil {
		video.ID = uuid.New()
	}
	if video.Status == "" {
		video.Status = models.VideoStatusPending
	}
	if video.ImagePaths == nil {
		video.ImagePaths = []string{}
	}

	query := `
		INSERT INTO videos (id, product_name, product_description, style, status, image_paths)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := db.QueryRowContext(
		ctx, query,
		video.ID, video.ProductName, video.ProductDescription,
		video.Style, video.Status, pq.Array(video.ImagePaths),
	).Scan(&video.CreatedAt, &video.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}
	return nil
}

func (db *DB) GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`

	video, err := scanVideo(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return video, nil
}

// ListVideos returns videos newest first.
func (db *DB) ListVideos(ctx context.Context, limit, offset int) ([]models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, *v)
	}
	return videos, rows.Err()
}

func (db *DB) UpdateVideoStatus(ctx context.Context, id uuid.UUID, status models.VideoStatus) error {
	return db.update(ctx, id, `status = $1`, status)
}

func (db *DB) SetVideoScript(ctx context.Context, id uuid.UUID, script string) error {
	return db.update(ctx, id, `script = $1`, script)
}

func (db *DB) SetVideoAudio(ctx context.Context, id uuid.UUID, path string) error {
	return db.update(ctx, id, `audio_url = $1`, path)
}

func (db *DB) SetVideoOutput(ctx context.Context, id uuid.UUID, path string) error {
	return db.update(ctx, id, `video_url = $1`, path)
}

func (db *DB) SetVideoThumbnail(ctx context.Context, id uuid.UUID, path string) error {
	return db.update(ctx, id, `thumbnail_url = $1`, path)
}

// SetVideoError marks the video failed and records message in the same statement.
func (db *DB) SetVideoError(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE videos
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3
	`
	res, err := db.ExecContext(ctx, query, models.VideoStatusFailed, message, id)
	if err != nil {
		return fmt.Errorf("failed to set video error: %w", err)
	}
	return expectOneRow(res)
}

func (db *DB) update(ctx context.Context, id uuid.UUID, set string, value any) error {
	query := `UPDATE videos SET ` + set + `, updated_at = NOW() WHERE id = $2`
	res, err := db.ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

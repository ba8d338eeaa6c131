package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bobarin/productreel/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const channelPrefix = "video:status:"

// StatusEvent is published whenever a video changes status.
type StatusEvent struct {
	ID              uuid.UUID          `json:"id"`
	Status          models.VideoStatus `json:"status"`
	ProgressMessage string             `json:"progress_message"`
	At              time.Time          `json:"at"`
}

func Channel(videoID uuid.UUID) string {
	return channelPrefix + videoID.String()
}

func NewStatusEvent(videoID uuid.UUID, status models.VideoStatus) StatusEvent {
	return StatusEvent{
		ID:              videoID,
		Status:          status,
		ProgressMessage: models.ProgressMessage(status),
		At:              time.Now().UTC(),
	}
}

type Publisher struct {
	client *redis.Client
}

func New(redisURL string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Publisher{client: client}, nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

func (p *Publisher) PublishStatus(ctx context.Context, videoID uuid.UUID, status models.VideoStatus) error {
	data, err := json.Marshal(NewStatusEvent(videoID, status))
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	if err := p.client.Publish(ctx, Channel(videoID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish status event: %w", err)
	}
	return nil
}

// Subscribe streams status events for one video until ctx is done or the
// video reaches a terminal status. The returned channel is closed afterwards.
func (p *Publisher) Subscribe(ctx context.Context, videoID uuid.UUID) (<-chan StatusEvent, error) {
	sub := p.client.Subscribe(ctx, Channel(videoID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan StatusEvent)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev StatusEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
				if ev.Status.IsTerminal() {
					return
				}
			}
		}
	}()
	return out, nil
}

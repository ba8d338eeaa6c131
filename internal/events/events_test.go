package events

import (
	"testing"

	"github.com/bobarin/productreel/internal/models"
	"github.com/google/uuid"
)

func TestChannel(t *testing.T) {
	id := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	if got := Channel(id); got != "video:status:7c9e6679-7425-40de-944b-e07fc1f90ae7" {
		t.Errorf("Channel = %s", got)
	}
}

func TestNewStatusEvent(t *testing.T) {
	id := uuid.New()
	ev := NewStatusEvent(id, models.VideoStatusGeneratingAudio)
	if ev.ID != id || ev.Status != models.VideoStatusGeneratingAudio {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.ProgressMessage != models.ProgressMessage(models.VideoStatusGeneratingAudio) {
		t.Errorf("ProgressMessage = %q", ev.ProgressMessage)
	}
	if ev.At.IsZero() {
		t.Error("At not set")
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("not-a-redis-url"); err == nil {
		t.Fatal("expected error for malformed URL")
	}
}

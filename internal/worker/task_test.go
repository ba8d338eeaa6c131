package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type processorFunc func(ctx context.Context, id uuid.UUID) error

func (f processorFunc) Process(ctx context.Context, id uuid.UUID) error { return f(ctx, id) }

func TestDispatcherRunsJobs(t *testing.T) {
	want := errors.New("boom")
	d := NewDispatcher(context.Background(), processorFunc(func(_ context.Context, id uuid.UUID) error {
		if id == uuid.Nil {
			return want
		}
		return nil
	}), zerolog.Nop())

	ok := d.Submit(uuid.New())
	bad := d.Submit(uuid.Nil)
	if err := ok.Wait(); err != nil {
		t.Errorf("ok.Wait() = %v", err)
	}
	if err := bad.Wait(); !errors.Is(err, want) {
		t.Errorf("bad.Wait() = %v, want %v", err, want)
	}
	if err := d.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestDispatcherRecoversPanics(t *testing.T) {
	d := NewDispatcher(context.Background(), processorFunc(func(context.Context, uuid.UUID) error {
		panic("boom")
	}), zerolog.Nop())
	if err := d.Submit(uuid.New()).Wait(); err == nil {
		t.Fatal("expected panic to surface as an error")
	}
}

func TestDispatcherRejectsAfterShutdown(t *testing.T) {
	d := NewDispatcher(context.Background(), processorFunc(func(context.Context, uuid.UUID) error { return nil }), zerolog.Nop())
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	task := d.Submit(uuid.New())
	select {
	case <-task.Done():
	default:
		t.Fatal("task should be done immediately")
	}
	if !errors.Is(task.Wait(), ErrShuttingDown) {
		t.Errorf("Wait() = %v", task.Wait())
	}
}

func TestDispatcherShutdownCancelsSlowJobs(t *testing.T) {
	started := make(chan struct{})
	d := NewDispatcher(context.Background(), processorFunc(func(ctx context.Context, _ uuid.UUID) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}), zerolog.Nop())

	task := d.Submit(uuid.New())
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown = %v, want deadline exceeded", err)
	}
	if !errors.Is(task.Wait(), context.Canceled) {
		t.Errorf("job error = %v, want canceled", task.Wait())
	}
}

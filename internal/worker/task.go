package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrShuttingDown = errors.New("dispatcher is shutting down")

// Processor runs one job to completion.
type Processor interface {
	Process(ctx context.Context, videoID uuid.UUID) error
}

// Task is a handle on one background job.
type Task struct {
	videoID uuid.UUID
	done    chan struct{}
	err     error
}

func (t *Task) VideoID() uuid.UUID { return t.videoID }

// Done is closed once the job has reached a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the job finishes and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Dispatcher runs each submitted job in its own goroutine.
type Dispatcher struct {
	processor Processor
	ctx       context.Context
	cancel    context.CancelFunc
	logger    zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher derives job contexts from parent; cancelling parent aborts running jobs.
func NewDispatcher(parent context.Context, processor Processor, logger zerolog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(parent)
	return &Dispatcher{
		processor: processor,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Submit starts processing videoID in the background.
func (d *Dispatcher) Submit(videoID uuid.UUID) *Task {
	t := &Task{videoID: videoID, done: make(chan struct{})}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		t.err = ErrShuttingDown
		close(t.done)
		return t
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("task panic: %v", r)
				d.logger.Error().Str("video_id", videoID.String()).Interface("panic", r).Msg("task crashed")
			}
		}()

		d.logger.Info().Str("video_id", videoID.String()).Msg("job started")
		t.err = d.processor.Process(d.ctx, videoID)
		if t.err != nil {
			d.logger.Warn().Err(t.err).Str("video_id", videoID.String()).Msg("job failed")
		} else {
			d.logger.Info().Str("video_id", videoID.String()).Msg("job finished")
		}
	}()
	return t
}

// Shutdown stops accepting jobs and waits for running ones. If ctx expires
// first, running jobs are cancelled and Shutdown waits for them to record
// their failure.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

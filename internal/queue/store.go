package queue

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"trueshuffle/internal/core"
)

const (
	// DefaultEventBuffer is the number of task events buffered ahead of the store loop
	DefaultEventBuffer = 1024
)

var (
	// ErrTaskNotFound means no task with the id was ever submitted
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskEvicted means the task state was dropped from retention
	ErrTaskEvicted = errors.New("task state no longer retained")
)

// Store holds task states for polling. New records are inserted by Create;
// afterwards the event loop in Run is the only writer.
type Store struct {
	retention *retention
	events    chan core.TaskEvent
	done      chan struct{}
	logger    *zap.Logger
	now       func() time.Time
}

func NewStore(retentionSize int, logger *zap.Logger) *Store {
	return &Store{
		retention: newRetention(retentionSize, DefaultEvictedFalsePositiveRate),
		events:    make(chan core.TaskEvent, DefaultEventBuffer),
		done:      make(chan struct{}),
		logger:    logger,
		now:       time.Now,
	}
}

// Create records a new PENDING task.
func (s *Store) Create(handle core.TaskHandle, message string) core.TaskStatus {
	status := &core.TaskStatus{
		ID:          handle.ID,
		Kind:        handle.Kind,
		State:       core.StatePending,
		Message:     message,
		SubmittedAt: s.now(),
	}
	s.retention.put(status)
	return *status
}

// Discard drops a task that was never enqueued.
func (s *Store) Discard(id string) {
	s.retention.remove(id)
}

// Emit hands an event to the store loop. Progress events are dropped when the
// buffer is full; terminal events wait until the loop accepts them or stops.
func (s *Store) Emit(evt core.TaskEvent) {
	if !evt.State.Terminal() {
		select {
		case s.events <- evt:
		default:
			s.logger.Debug("Dropped progress event",
				zap.String("taskID", evt.TaskID),
				zap.String("message", evt.Message))
		}
		return
	}

	select {
	case s.events <- evt:
	case <-s.done:
		s.logger.Warn("Task store stopped - terminal state lost",
			zap.String("taskID", evt.TaskID),
			zap.String("state", string(evt.State)))
	}
}

// Get returns the current state of a task.
func (s *Store) Get(id string) (core.TaskStatus, error) {
	if status, ok := s.retention.get(id); ok {
		return status, nil
	}
	if s.retention.wasEvicted(id) {
		return core.TaskStatus{}, ErrTaskEvicted
	}
	return core.TaskStatus{}, ErrTaskNotFound
}

// Len returns the number of retained task states.
func (s *Store) Len() int {
	return s.retention.len()
}

// Run applies events until ctx is cancelled, then drains what is already buffered.
func (s *Store) Run(ctx context.Context) error {
	defer close(s.done)

	for {
		select {
		case evt := <-s.events:
			s.apply(evt)
		case <-ctx.Done():
			for {
				select {
				case evt := <-s.events:
					s.apply(evt)
				default:
					return nil
				}
			}
		}
	}
}

func (s *Store) apply(evt core.TaskEvent) {
	now := s.now()
	found := s.retention.update(evt.TaskID, func(status *core.TaskStatus) {
		if status.State.Terminal() {
			s.logger.Debug("Ignoring event for finished task",
				zap.String("taskID", evt.TaskID),
				zap.String("state", string(evt.State)))
			return
		}

		if status.StartedAt == nil && evt.State == core.StateProgress {
			started := now
			status.StartedAt = &started
		}

		status.State = evt.State
		if evt.Message != "" {
			status.Message = evt.Message
		}

		if evt.State.Terminal() {
			completed := now
			status.CompletedAt = &completed
			status.Result = evt.Result
			status.Error = evt.Error
		}
	})

	if !found {
		s.logger.Warn("Event for unknown task",
			zap.String("taskID", evt.TaskID),
			zap.String("state", string(evt.State)))
	}
}

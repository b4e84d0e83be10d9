// Package queue runs submitted shuffle and export tasks on a bounded worker pool
// and keeps their states for polling.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trueshuffle/internal/core"
	"trueshuffle/internal/i18n"
)

var (
	// ErrQueueFull means the submission was rejected because no queue slot was free
	ErrQueueFull = errors.New("task queue is full")
	// ErrInvalidParams means the submission lacks a required parameter
	ErrInvalidParams = errors.New("invalid task parameters")
	// ErrUnknownKind means the submission names no known task kind
	ErrUnknownKind = errors.New("unknown task kind")
	// ErrTaskPanicked wraps a panic recovered while running a task
	ErrTaskPanicked = errors.New("task panicked")
)

// Runner executes the task pipelines.
type Runner interface {
	Shuffle(ctx context.Context, handle *core.TaskHandle, auth core.AuthContext,
		playlistID, playlistName string) (*core.PlaylistResult, error)
	ExportLikedTracks(ctx context.Context, handle *core.TaskHandle, auth core.AuthContext,
		playlistName string) (*core.PlaylistResult, error)
}

// AuthValidator rejects unusable credentials before a task is queued.
type AuthValidator interface {
	Validate(auth core.AuthContext) error
}

// Recorder receives task lifecycle measurements.
type Recorder interface {
	TaskSubmitted(kind core.TaskKind)
	TaskRejected(kind core.TaskKind, reason string)
	TaskExpired(kind core.TaskKind)
	TaskFinished(kind core.TaskKind, state core.TaskState, duration time.Duration)
	TracksWritten(kind core.TaskKind, count int)
	QueueDepth(depth int)
}

type nopRecorder struct{}

func (nopRecorder) TaskSubmitted(core.TaskKind)                               {}
func (nopRecorder) TaskRejected(core.TaskKind, string)                        {}
func (nopRecorder) TaskExpired(core.TaskKind)                                 {}
func (nopRecorder) TaskFinished(core.TaskKind, core.TaskState, time.Duration) {}
func (nopRecorder) TracksWritten(core.TaskKind, int)                          {}
func (nopRecorder) QueueDepth(int)                                            {}

type job struct {
	handle      core.TaskHandle
	auth        core.AuthContext
	params      core.TaskParams
	submittedAt time.Time
}

// Pool accepts task submissions and runs them on a fixed number of workers.
// A started task always runs to completion; only waiting in the queue expires.
type Pool struct {
	runner    Runner
	validator AuthValidator
	store     *Store
	localizer *i18n.Localizer
	recorder  Recorder
	logger    *zap.Logger

	jobs    chan job
	workers int
	expiry  time.Duration
	running atomic.Bool

	now   func() time.Time
	newID func() string
}

func NewPool(
	cfg core.QueueConfig,
	runner Runner,
	validator AuthValidator,
	store *Store,
	localizer *i18n.Localizer,
	recorder Recorder,
	logger *zap.Logger,
) *Pool {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if localizer == nil {
		localizer = i18n.NewLocalizer(i18n.DefaultLanguage)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = core.DefaultWorkers
	}
	depth := cfg.Depth
	if depth <= 0 {
		depth = core.DefaultQueueDepth
	}

	return &Pool{
		runner:    runner,
		validator: validator,
		store:     store,
		localizer: localizer,
		recorder:  recorder,
		logger:    logger,
		jobs:      make(chan job, depth),
		workers:   workers,
		expiry:    cfg.Expiry(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Submit validates and enqueues a task and returns its id without waiting for it.
func (p *Pool) Submit(kind core.TaskKind, auth core.AuthContext, params core.TaskParams) (string, error) {
	switch kind {
	case core.TaskKindShuffle:
		if params.PlaylistID == "" || params.PlaylistName == "" {
			p.recorder.TaskRejected(kind, "invalid_params")
			return "", fmt.Errorf("%w: playlist id and name are required", ErrInvalidParams)
		}
	case core.TaskKindExport:
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if err := p.validator.Validate(auth); err != nil {
		p.recorder.TaskRejected(kind, "auth_invalid")
		return "", err
	}

	handle := core.TaskHandle{ID: p.newID(), Kind: kind}
	status := p.store.Create(handle, p.localizer.T("progress.queued"))

	select {
	case p.jobs <- job{handle: handle, auth: auth, params: params, submittedAt: status.SubmittedAt}:
	default:
		p.store.Discard(handle.ID)
		p.recorder.TaskRejected(kind, "queue_full")
		p.logger.Warn("Rejected task, queue is full",
			zap.String("kind", string(kind)),
			zap.Int("depth", cap(p.jobs)))
		return "", ErrQueueFull
	}

	p.recorder.TaskSubmitted(kind)
	p.recorder.QueueDepth(len(p.jobs))
	p.logger.Info("Submitted task",
		zap.String("taskID", handle.ID),
		zap.String("kind", string(kind)))

	return handle.ID, nil
}

// Poll returns the current state of a task.
func (p *Pool) Poll(id string) (core.TaskStatus, error) {
	return p.store.Get(id)
}

// Running reports whether the workers are accepting jobs.
func (p *Pool) Running() bool {
	return p.running.Load()
}

// Run starts the workers and blocks until ctx is cancelled and every running
// task has finished. Tasks still waiting in the queue are dropped.
func (p *Pool) Run(ctx context.Context) error {
	p.running.Store(true)
	defer p.running.Store(false)

	p.logger.Info("Starting workers", zap.Int("workers", p.workers), zap.Int("depth", cap(p.jobs)))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		worker := p.logger.With(zap.Int("worker", i))
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case j := <-p.jobs:
					p.recorder.QueueDepth(len(p.jobs))
					p.execute(gctx, j, worker)
				}
			}
		})
	}

	err := g.Wait()
	p.logger.Info("Workers stopped", zap.Int("dropped", len(p.jobs)))
	return err
}

func (p *Pool) execute(ctx context.Context, j job, logger *zap.Logger) {
	logger = logger.With(zap.String("taskID", j.handle.ID), zap.String("kind", string(j.handle.Kind)))

	if waited := p.now().Sub(j.submittedAt); waited > p.expiry {
		logger.Warn("Task expired in queue", zap.Duration("waited", waited))
		p.recorder.TaskExpired(j.handle.Kind)
		p.store.Emit(core.TaskEvent{
			TaskID: j.handle.ID,
			State:  core.StateFailure,
			Error:  p.localizer.T("error.task_expired"),
		})
		return
	}

	start := p.now()
	result, err := p.run(context.WithoutCancel(ctx), j)
	duration := p.now().Sub(start)

	if err != nil {
		logger.Error("Task failed", zap.Duration("duration", duration), zap.Error(err))
		p.recorder.TaskFinished(j.handle.Kind, core.StateFailure, duration)
		p.store.Emit(core.TaskEvent{
			TaskID: j.handle.ID,
			State:  core.StateFailure,
			Error:  err.Error(),
		})
		return
	}

	logger.Info("Task succeeded",
		zap.Duration("duration", duration),
		zap.String("playlistID", result.PlaylistID))
	p.recorder.TaskFinished(j.handle.Kind, core.StateSuccess, duration)
	p.recorder.TracksWritten(j.handle.Kind, result.TrackCount)
	p.store.Emit(core.TaskEvent{
		TaskID:  j.handle.ID,
		State:   core.StateSuccess,
		Message: p.localizer.T("progress.done"),
		Result:  result,
	})
}

// run dispatches to the pipeline and converts a panic into an error.
func (p *Pool) run(ctx context.Context, j job) (result *core.PlaylistResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Recovered from task panic",
				zap.String("taskID", j.handle.ID),
				zap.Any("panic", r),
				zap.Stack("stack"))
			result, err = nil, fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()

	handle := j.handle
	switch handle.Kind {
	case core.TaskKindShuffle:
		result, err = p.runner.Shuffle(ctx, &handle, j.auth, j.params.PlaylistID, j.params.PlaylistName)
	case core.TaskKindExport:
		result, err = p.runner.ExportLikedTracks(ctx, &handle, j.auth, j.params.PlaylistName)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownKind, handle.Kind)
	}

	if err == nil && result == nil {
		err = errors.New("task returned no result")
	}
	return result, err
}

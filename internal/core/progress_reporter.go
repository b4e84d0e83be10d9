package core

import (
	"go.uber.org/zap"

	"trueshuffle/internal/i18n"
)

// ProgressReporter publishes advisory progress text for a running task.
type ProgressReporter struct {
	sink      EventSink
	localizer *i18n.Localizer
	logger    *zap.Logger
}

func NewProgressReporter(sink EventSink, localizer *i18n.Localizer, logger *zap.Logger) *ProgressReporter {
	if localizer == nil {
		localizer = i18n.NewLocalizer(i18n.DefaultLanguage)
	}
	return &ProgressReporter{
		sink:      sink,
		localizer: localizer,
		logger:    logger,
	}
}

// Publish emits (state, message) for the task. Without a live handle or sink it
// only logs a warning, so pipelines can run detached from a task store.
func (r *ProgressReporter) Publish(handle *TaskHandle, state TaskState, message string) {
	if handle == nil || r.sink == nil {
		r.logger.Warn("Task is missing - unable to update task state",
			zap.String("state", string(state)),
			zap.String("message", message))
		return
	}

	r.sink.Emit(TaskEvent{
		TaskID:  handle.ID,
		State:   state,
		Message: message,
	})
}

// Progressf publishes a localized PROGRESS message.
func (r *ProgressReporter) Progressf(handle *TaskHandle, key string, args ...interface{}) {
	r.Publish(handle, StateProgress, r.localizer.T(key, args...))
}


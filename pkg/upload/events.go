package upload

import (
	"github.com/voiceiq/viq-cli/pkg/logging"
)

// Events receives queue lifecycle notifications. Calls are made in order,
// one at a time, outside the queue lock; handlers may call back into the queue.
type Events interface {
	OnEnqueued(tasks []Task)
	OnStarted(task Task)
	OnProgress(task Task)
	// OnComplete is the files-ready hand-off for a finished upload.
	OnComplete(task Task)
	OnFailed(task Task, err error)
	OnCancelled(task Task)
	OnRemoved(task Task)
	OnCleared(n int)
}

// EventFuncs implements Events with optional callbacks. Nil fields are skipped.
type EventFuncs struct {
	Enqueued  func(tasks []Task)
	Started   func(task Task)
	Progress  func(task Task)
	Complete  func(task Task)
	Failed    func(task Task, err error)
	Cancelled func(task Task)
	Removed   func(task Task)
	Cleared   func(n int)
}

func (f EventFuncs) OnEnqueued(tasks []Task) {
	if f.Enqueued != nil {
		f.Enqueued(tasks)
	}
}

func (f EventFuncs) OnStarted(task Task) {
	if f.Started != nil {
		f.Started(task)
	}
}

func (f EventFuncs) OnProgress(task Task) {
	if f.Progress != nil {
		f.Progress(task)
	}
}

func (f EventFuncs) OnComplete(task Task) {
	if f.Complete != nil {
		f.Complete(task)
	}
}

func (f EventFuncs) OnFailed(task Task, err error) {
	if f.Failed != nil {
		f.Failed(task, err)
	}
}

func (f EventFuncs) OnCancelled(task Task) {
	if f.Cancelled != nil {
		f.Cancelled(task)
	}
}

func (f EventFuncs) OnRemoved(task Task) {
	if f.Removed != nil {
		f.Removed(task)
	}
}

func (f EventFuncs) OnCleared(n int) {
	if f.Cleared != nil {
		f.Cleared(n)
	}
}

// MultiEvents fans each notification out to every handler in order.
type MultiEvents []Events

func (m MultiEvents) OnEnqueued(tasks []Task) {
	for _, e := range m {
		e.OnEnqueued(tasks)
	}
}

func (m MultiEvents) OnStarted(task Task) {
	for _, e := range m {
		e.OnStarted(task)
	}
}

func (m MultiEvents) OnProgress(task Task) {
	for _, e := range m {
		e.OnProgress(task)
	}
}

func (m MultiEvents) OnComplete(task Task) {
	for _, e := range m {
		e.OnComplete(task)
	}
}

func (m MultiEvents) OnFailed(task Task, err error) {
	for _, e := range m {
		e.OnFailed(task, err)
	}
}

func (m MultiEvents) OnCancelled(task Task) {
	for _, e := range m {
		e.OnCancelled(task)
	}
}

func (m MultiEvents) OnRemoved(task Task) {
	for _, e := range m {
		e.OnRemoved(task)
	}
}

func (m MultiEvents) OnCleared(n int) {
	for _, e := range m {
		e.OnCleared(n)
	}
}

// LoggingEvents writes a log line per lifecycle change.
type LoggingEvents struct {
	logger logging.Logger
}

// NewLoggingEvents creates a LoggingEvents.
func NewLoggingEvents(logger logging.Logger) *LoggingEvents {
	return &LoggingEvents{logger: logger.With(logging.F("component", "upload_queue"))}
}

func taskFields(t Task) []logging.Field {
	return []logging.Field{
		logging.F("task_id", t.ID),
		logging.F("file", t.Name()),
		logging.F("size", FormatSize(t.Size())),
	}
}

func (l *LoggingEvents) OnEnqueued(tasks []Task) {
	l.logger.Info("Files added to queue", logging.F("count", len(tasks)))
}

func (l *LoggingEvents) OnStarted(task Task) {
	l.logger.Info("Upload started", taskFields(task)...)
}

func (l *LoggingEvents) OnProgress(task Task) {
	l.logger.Debug("Upload progress", append(taskFields(task), logging.F("progress", task.Progress))...)
}

func (l *LoggingEvents) OnComplete(task Task) {
	l.logger.Info("Upload complete", taskFields(task)...)
}

func (l *LoggingEvents) OnFailed(task Task, err error) {
	l.logger.Error("Upload failed", append(taskFields(task), logging.Err(err))...)
}

func (l *LoggingEvents) OnCancelled(task Task) {
	l.logger.Info("Upload cancelled", taskFields(task)...)
}

func (l *LoggingEvents) OnRemoved(task Task) {
	l.logger.Info("File removed", taskFields(task)...)
}

func (l *LoggingEvents) OnCleared(n int) {
	l.logger.Info("Queue cleared", logging.F("count", n))
}

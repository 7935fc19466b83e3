package upload

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voiceiq/viq-cli/pkg/logging"
)

func TestLoggingEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.Config{
		Level:       logging.LevelInfo,
		ServiceName: "viq",
		JSONFormat:  true,
		Output:      &buf,
	})
	events := NewLoggingEvents(logger)

	task := finishedTask("call.wav")
	events.OnEnqueued([]Task{task})
	events.OnStarted(task)
	events.OnProgress(task)
	events.OnComplete(task)
	events.OnFailed(task, errors.New("boom"))
	events.OnCancelled(task)
	events.OnRemoved(task)
	events.OnCleared(2)

	out := buf.String()
	for _, msg := range []string{
		"Files added to queue",
		"Upload started",
		"Upload complete",
		"Upload failed",
		"Upload cancelled",
		"File removed",
		"Queue cleared",
	} {
		assert.Contains(t, out, msg)
	}
	assert.NotContains(t, out, "Upload progress", "progress is debug level")
	assert.Contains(t, out, `"file":"call.wav"`)
	assert.Contains(t, out, `"size":"0.00 MB"`)
}

func TestMultiEvents_FansOutInOrder(t *testing.T) {
	var got []string
	a := EventFuncs{Complete: func(Task) { got = append(got, "a") }}
	b := EventFuncs{Complete: func(Task) { got = append(got, "b") }}

	MultiEvents{a, b}.OnComplete(Task{})
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestEventFuncs_NilCallbacksAreSkipped(t *testing.T) {
	var e Events = EventFuncs{}
	assert.NotPanics(t, func() {
		e.OnEnqueued(nil)
		e.OnStarted(Task{})
		e.OnProgress(Task{})
		e.OnComplete(Task{})
		e.OnFailed(Task{}, nil)
		e.OnCancelled(Task{})
		e.OnRemoved(Task{})
		e.OnCleared(0)
	})
}

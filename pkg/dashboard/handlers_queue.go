package dashboard

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	viqerrors "github.com/voiceiq/viq-cli/pkg/errors"
	"github.com/voiceiq/viq-cli/pkg/logging"
	"github.com/voiceiq/viq-cli/pkg/upload"
)

// formFiles is the multipart field carrying audio files.
const formFiles = "files"

// TaskView is the API shape of an upload task.
type TaskView struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Size          int64        `json:"size"`
	SizeLabel     string       `json:"size_label"`
	State         upload.State `json:"state"`
	Progress      float64      `json:"progress"`
	Indeterminate bool         `json:"indeterminate,omitempty"`
	Error         string       `json:"error,omitempty"`
}

func newTaskView(t upload.Task) TaskView {
	v := TaskView{
		ID:            t.ID,
		Name:          t.Name(),
		Size:          t.Size(),
		SizeLabel:     upload.FormatSize(t.Size()),
		State:         t.State,
		Progress:      t.Progress,
		Indeterminate: t.Indeterminate,
	}
	if t.Err != nil {
		v.Error = t.Err.Error()
	}
	return v
}

// QueueView is the API shape of the queue snapshot.
type QueueView struct {
	Current   *TaskView  `json:"current"`
	Queued    []TaskView `json:"queued"`
	Completed int        `json:"completed"`
	Failed    int        `json:"failed"`
	Cancelled int        `json:"cancelled"`
}

func newQueueView(s upload.Snapshot) QueueView {
	v := QueueView{
		Queued:    make([]TaskView, 0, len(s.Queued)),
		Completed: s.Completed,
		Failed:    s.Failed,
		Cancelled: s.Cancelled,
	}
	if s.Current != nil {
		cur := newTaskView(*s.Current)
		v.Current = &cur
	}
	for _, t := range s.Queued {
		v.Queued = append(v.Queued, newTaskView(t))
	}
	return v
}

// EnqueueResponse lists the tasks created and the files refused.
type EnqueueResponse struct {
	Enqueued []TaskView `json:"enqueued"`
	Rejected []string   `json:"rejected"`
}

// QueueHandler serves the upload queue.
type QueueHandler struct {
	queue    *upload.Queue
	spoolDir string
	logger   logging.Logger
}

// NewQueueHandler creates a queue handler. Uploaded parts are spooled to
// spoolDir ("" for the system temp dir) until their transfer finishes.
func NewQueueHandler(queue *upload.Queue, spoolDir string, logger logging.Logger) *QueueHandler {
	return &QueueHandler{
		queue:    queue,
		spoolDir: spoolDir,
		logger:   logger.With(logging.F("component", "dashboard_queue")),
	}
}

// HandleSnapshot returns the current queue state.
func (h *QueueHandler) HandleSnapshot(c echo.Context) error {
	return c.JSON(http.StatusOK, newQueueView(h.queue.Snapshot()))
}

// HandleEnqueue accepts multipart audio files and queues the accepted ones.
func (h *QueueHandler) HandleEnqueue(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}
	headers := form.File[formFiles]
	if len(headers) == 0 {
		return NewValidationError(formFiles, errors.New("no files provided"))
	}

	resp := EnqueueResponse{Enqueued: []TaskView{}, Rejected: []string{}}
	var files []upload.File
	for _, fh := range headers {
		if !upload.Accepts(fh.Filename) {
			resp.Rejected = append(resp.Rejected, fh.Filename)
			continue
		}
		f, err := h.spool(fh)
		if err != nil {
			releaseAll(files)
			return NewInternalError("failed to spool upload", err)
		}
		files = append(files, f)
	}

	if len(files) == 0 {
		return NewValidationError(formFiles, fmt.Errorf("unsupported file type: %s (accepted: %s)",
			strings.Join(resp.Rejected, ", "), strings.Join(upload.AcceptedExtensions, ", ")))
	}

	tasks, err := h.queue.Enqueue(files...)
	if err != nil {
		releaseAll(files)
		if errors.Is(err, upload.ErrClosed) {
			return NewConflictError("upload queue is closed")
		}
		return NewInternalError("failed to enqueue files", err)
	}
	for _, t := range tasks {
		resp.Enqueued = append(resp.Enqueued, newTaskView(t))
	}
	if len(resp.Rejected) > 0 {
		h.logger.Warn("Rejected unsupported files", logging.F("files", resp.Rejected))
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *QueueHandler) spool(fh *multipart.FileHeader) (upload.File, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return upload.SpoolFile(fh.Filename, src, h.spoolDir)
}

func releaseAll(files []upload.File) {
	for _, f := range files {
		if r, ok := f.(upload.Releaser); ok {
			_ = r.Release()
		}
	}
}

// HandleCancel cancels the current task, or drops a queued one.
func (h *QueueHandler) HandleCancel(c echo.Context) error {
	id := c.Param("id")
	if err := h.queue.Cancel(id); err != nil {
		if viqerrors.IsNotFound(err) {
			return NewNotFoundError("task", id)
		}
		return FromDomainError("failed to cancel task", err)
	}
	return c.JSON(http.StatusOK, newQueueView(h.queue.Snapshot()))
}

// HandleRemove drops a queued task. The uploading task cannot be removed.
func (h *QueueHandler) HandleRemove(c echo.Context) error {
	id := c.Param("id")
	if err := h.queue.Remove(id); err != nil {
		switch {
		case viqerrors.IsNotFound(err):
			return NewNotFoundError("task", id)
		case viqerrors.IsInvalidState(err):
			return NewConflictError("task is uploading; cancel it instead")
		}
		return FromDomainError("failed to remove task", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleClear drops every queued task and keeps the current one.
func (h *QueueHandler) HandleClear(c echo.Context) error {
	n := h.queue.Clear()
	return c.JSON(http.StatusOK, map[string]int{"removed": n})
}

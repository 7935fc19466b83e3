// Package upload is the client-side upload queue: a FIFO of audio files
// transferred to the backend one at a time, with progress tracking,
// cancellation and ordered lifecycle events.
package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// State is the lifecycle state of a task.
type State string

const (
	StateQueued    State = "queued"
	StateUploading State = "uploading"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// File is one file to upload.
type File interface {
	Name() string
	// Size is the length in bytes, or -1 when unknown.
	Size() int64
	Open() (io.ReadCloser, error)
}

// Releaser is implemented by files that hold resources (temp files) which
// must be freed once the queue is done with them.
type Releaser interface {
	Release() error
}

// LocalFile is a file on disk.
type LocalFile struct {
	path    string
	name    string
	size    int64
	release func() error
}

// NewLocalFile stats path and returns it as a File.
func NewLocalFile(path string) (*LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &LocalFile{path: path, name: filepath.Base(path), size: info.Size()}, nil
}

// SpoolFile copies r into a temp file under dir (os.TempDir when empty).
// The temp file is removed by Release.
func SpoolFile(name string, r io.Reader, dir string) (*LocalFile, error) {
	tmp, err := os.CreateTemp(dir, "viq-upload-*"+filepath.Ext(name))
	if err != nil {
		return nil, fmt.Errorf("creating spool file: %w", err)
	}
	n, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmp.Name())
		if copyErr != nil {
			return nil, fmt.Errorf("spooling %s: %w", name, copyErr)
		}
		return nil, fmt.Errorf("spooling %s: %w", name, closeErr)
	}

	path := tmp.Name()
	return &LocalFile{
		path: path,
		name: filepath.Base(name),
		size: n,
		release: func() error {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return err
			}
			return nil
		},
	}, nil
}

func (f *LocalFile) Name() string { return f.name }
func (f *LocalFile) Size() int64  { return f.size }
func (f *LocalFile) Path() string { return f.path }

// Open opens the file for reading.
func (f *LocalFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// Release removes spooled temp files. It is a no-op for user files.
func (f *LocalFile) Release() error {
	if f.release == nil {
		return nil
	}
	return f.release()
}

// Task is one file's upload lifecycle. Queue methods and events hand out
// copies; the queue owns the live value.
type Task struct {
	ID            string     `json:"id"`
	File          File       `json:"-"`
	State         State      `json:"state"`
	Progress      float64    `json:"progress"`
	Indeterminate bool       `json:"indeterminate,omitempty"`
	Err           error      `json:"-"`
	EnqueuedAt    time.Time  `json:"enqueued_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Name is the file name.
func (t Task) Name() string {
	if t.File == nil {
		return ""
	}
	return t.File.Name()
}

// Size is the file size in bytes, or -1 when unknown.
func (t Task) Size() int64 {
	if t.File == nil {
		return -1
	}
	return t.File.Size()
}

// ProgressFunc receives transfer progress. total <= 0 means the size is unknown.
type ProgressFunc func(sent, total int64)

// Uploader transfers one file. It must return promptly after ctx is
// cancelled: the queue holds the next task until a cancelled Upload returns.
type Uploader interface {
	Upload(ctx context.Context, file File, progress ProgressFunc) error
}

// UploaderFunc adapts a function to Uploader.
type UploaderFunc func(ctx context.Context, file File, progress ProgressFunc) error

// Upload calls f.
func (f UploaderFunc) Upload(ctx context.Context, file File, progress ProgressFunc) error {
	return f(ctx, file, progress)
}

package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"

	"github.com/voiceiq/viq-cli/pkg/upload"
)

// CreateLog uploads one recording to POST /create_log as the multipart
// "file" field. The body is streamed; progress receives bytes of the file
// sent so far and size (<= 0 when unknown).
func (c *Client) CreateLog(ctx context.Context, fileName string, r io.Reader, size int64, progress upload.ProgressFunc) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pw.CloseWithError(writeFilePart(mw, fileName, &countingReader{r: r, total: size, progress: progress}))
	}()

	err := c.do(ctx, call{
		method:      http.MethodPost,
		path:        "/create_log",
		endpoint:    EndpointCreateLog,
		body:        pr,
		contentType: mw.FormDataContentType(),
	}, nil)

	// Unblock the writer if the request ended before the body was consumed.
	pr.CloseWithError(io.ErrClosedPipe)
	wg.Wait()

	if err != nil {
		return fmt.Errorf("uploading %s: %w", fileName, err)
	}
	return nil
}

func writeFilePart(mw *multipart.Writer, fileName string, r io.Reader) error {
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}

// Upload implements upload.Uploader.
func (c *Client) Upload(ctx context.Context, file upload.File, progress upload.ProgressFunc) error {
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", file.Name(), err)
	}
	defer rc.Close()
	return c.CreateLog(ctx, file.Name(), rc, file.Size(), progress)
}

// countingReader reports cumulative bytes read.
type countingReader struct {
	r        io.Reader
	sent     int64
	total    int64
	progress upload.ProgressFunc
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.sent += int64(n)
		if cr.progress != nil {
			cr.progress(cr.sent, cr.total)
		}
	}
	return n, err
}

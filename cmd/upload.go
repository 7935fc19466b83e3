package cmd

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/voiceiq/viq-cli/config"
	"github.com/voiceiq/viq-cli/pkg/logging"
	"github.com/voiceiq/viq-cli/pkg/upload"
)

// UploadResult is the outcome of one file in `viq upload`.
type UploadResult struct {
	ID    string       `json:"id" yaml:"id"`
	File  string       `json:"file" yaml:"file"`
	Size  string       `json:"size" yaml:"size"`
	State upload.State `json:"state" yaml:"state"`
	Error string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// UploadSummary is the result of `viq upload`.
type UploadSummary struct {
	Results  []UploadResult `json:"results" yaml:"results"`
	Rejected []string       `json:"rejected,omitempty" yaml:"rejected,omitempty"`
}

// NewUploadCommand creates the upload command.
func NewUploadCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}
	var (
		output    string
		noPublish bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload call recordings for analysis",
		Long: `Upload audio recordings to the backend, one at a time in the order given.

Accepted formats: ` + strings.Join(upload.AcceptedExtensions, " ") + `. Other files are skipped.
A failed upload does not stop the rest. Press Ctrl-C to cancel the remaining
uploads.

When events.redis_addr is configured, completions and failures are published
to the events channel.

Examples:
  viq upload call-0412.mp3
  viq upload recordings/*.wav --output json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, deps, args, output, !noPublish)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	cmd.Flags().BoolVar(&noPublish, "no-publish", false, "Do not publish upload events even if configured")
	return cmd
}

func runUpload(cmd *cobra.Command, deps *Deps, paths []string, output string, publish bool) error {
	e, err := deps.setup(cmd)
	if err != nil {
		return err
	}
	format, err := resolveFormat(output, e.cfg)
	if err != nil {
		return err
	}

	accepted, rejected := upload.Partition(paths)
	for _, name := range rejected {
		fmt.Fprintf(cmd.ErrOrStderr(), "Skipping unsupported file: %s (accepted: %s)\n",
			name, strings.Join(upload.AcceptedExtensions, ", "))
	}
	if len(accepted) == 0 {
		return fmt.Errorf("no supported audio files to upload")
	}

	files := make([]upload.File, 0, len(accepted))
	for _, p := range accepted {
		f, err := upload.NewLocalFile(p)
		if err != nil {
			return err
		}
		files = append(files, f)
	}

	c, err := deps.client(e)
	if err != nil {
		return err
	}

	collector := &resultCollector{}
	events := upload.MultiEvents{upload.NewLoggingEvents(e.logger), collector.events()}
	if format == config.OutputFormatText {
		events = append(events, progressPrinter(e))
	}
	var publisher *upload.RedisPublisher
	if publish && e.cfg.Events.Enabled() {
		p, rdb, err := upload.NewRedisPublisherFromConfig(e.cfg.Events, e.logger)
		if err != nil {
			e.logger.Warn("Upload events disabled", logging.Err(err))
		} else {
			defer rdb.Close()
			publisher = p
			events = append(events, publisher)
		}
	}

	q := upload.NewQueue(c, upload.Config{
		Events:  events,
		Logger:  e.logger,
		Metrics: deps.metrics.upload,
		Tracer:  deps.tracer,
		Now:     deps.Now,
	})
	defer q.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			q.Close()
		case <-stop:
		}
	}()

	if _, err := q.Enqueue(files...); err != nil {
		return fmt.Errorf("queueing uploads: %w", err)
	}
	if err := q.Wait(context.Background()); err != nil {
		return err
	}
	if publisher != nil && publisher.Dropped() > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %d upload events could not be published\n", publisher.Dropped())
	}

	summary := UploadSummary{Results: collector.results(), Rejected: rejected}
	err = render(e.out, format, summary, func() error {
		snap := q.Snapshot()
		fmt.Fprintf(e.out, "\n%d uploaded, %d failed, %d cancelled\n", snap.Completed, snap.Failed, snap.Cancelled)
		return nil
	})
	if err != nil {
		return err
	}

	if failed := countState(summary.Results, upload.StateFailed); failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(summary.Results))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// resultCollector records terminal tasks in completion order.
type resultCollector struct {
	mu   sync.Mutex
	list []UploadResult
}

func (r *resultCollector) add(t upload.Task, err error) {
	res := UploadResult{ID: t.ID, File: t.Name(), Size: upload.FormatSize(t.Size()), State: t.State}
	if err != nil {
		res.Error = err.Error()
	}
	r.mu.Lock()
	r.list = append(r.list, res)
	r.mu.Unlock()
}

func (r *resultCollector) results() []UploadResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]UploadResult(nil), r.list...)
}

func (r *resultCollector) events() upload.EventFuncs {
	return upload.EventFuncs{
		Complete:  func(t upload.Task) { r.add(t, nil) },
		Failed:    func(t upload.Task, err error) { r.add(t, err) },
		Cancelled: func(t upload.Task) { r.add(t, nil) },
	}
}

// progressPrinter reports each transfer on stdout.
func progressPrinter(e *env) upload.EventFuncs {
	out := e.out
	return upload.EventFuncs{
		Started: func(t upload.Task) {
			fmt.Fprintf(out, "Uploading %s (%s)\n", t.Name(), upload.FormatSize(t.Size()))
		},
		Progress: func(t upload.Task) {
			if t.Indeterminate {
				return
			}
			fmt.Fprintf(out, "\r  %3.0f%%", t.Progress)
		},
		Complete: func(t upload.Task) {
			fmt.Fprintf(out, "\r  ✓ %s uploaded\n", t.Name())
		},
		Failed: func(t upload.Task, err error) {
			fmt.Fprintf(out, "\r  ✗ %s failed: %v\n", t.Name(), err)
		},
		Cancelled: func(t upload.Task) {
			fmt.Fprintf(out, "\r  - %s cancelled\n", t.Name())
		},
	}
}

func countState(results []UploadResult, s upload.State) int {
	n := 0
	for _, r := range results {
		if r.State == s {
			n++
		}
	}
	return n
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voiceiq/viq-cli/pkg/dashboard"
	"github.com/voiceiq/viq-cli/pkg/logging"
	"github.com/voiceiq/viq-cli/pkg/reports"
	"github.com/voiceiq/viq-cli/pkg/upload"
)

const drainTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}
	var (
		listen   string
		spoolDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local dashboard API",
		Long: `Run a local HTTP API over one upload queue and one report table.

Endpoints:
  GET    /health, /version, /metrics
  GET    /api/queue                 queue snapshot
  POST   /api/queue                 add files (multipart field "files")
  POST   /api/queue/:id/cancel      cancel a task
  DELETE /api/queue/:id             remove a queued task
  DELETE /api/queue                 clear queued tasks
  GET    /api/reports               current page with filters from the query
  POST   /api/reports/next|prev|refresh
  GET    /api/reports/:id           report detail
  DELETE /api/reports/:id           delete a report

Uploaded files are spooled to --spool-dir (a temporary directory by default)
until their upload finishes. Stop with Ctrl-C; the current upload is aborted.

Examples:
  viq serve
  viq serve --listen 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, deps, listen, spoolDir)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&spoolDir, "spool-dir", "", "Directory for files waiting to upload")
	return cmd
}

func runServe(cmd *cobra.Command, deps *Deps, listen, spoolDir string) error {
	e, err := deps.setup(cmd)
	if err != nil {
		return err
	}
	if listen == "" {
		listen = e.cfg.DashboardListen
	}
	if spoolDir == "" {
		dir, err := os.MkdirTemp("", "viq-spool-*")
		if err != nil {
			return fmt.Errorf("creating spool directory: %w", err)
		}
		defer os.RemoveAll(dir)
		spoolDir = dir
	} else if err := os.MkdirAll(spoolDir, 0700); err != nil {
		return fmt.Errorf("creating spool directory: %w", err)
	}

	c, err := deps.client(e)
	if err != nil {
		return err
	}

	events := upload.MultiEvents{upload.NewLoggingEvents(e.logger)}
	if e.cfg.Events.Enabled() {
		publisher, rdb, err := upload.NewRedisPublisherFromConfig(e.cfg.Events, e.logger)
		if err != nil {
			e.logger.Warn("Upload events disabled", logging.Err(err))
		} else {
			defer rdb.Close()
			events = append(events, publisher)
		}
	}

	queue := upload.NewQueue(c, upload.Config{
		Events:  events,
		Logger:  e.logger,
		Metrics: deps.metrics.upload,
		Tracer:  deps.tracer,
		Now:     deps.Now,
	})
	table := reports.NewTable(c, reports.TableConfig{
		PageSize: e.cfg.PageSize,
		Logger:   e.logger,
		Metrics:  deps.metrics.reports,
		Tracer:   deps.tracer,
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(e.out, "Dashboard API listening on http://%s\n", listen)
	serveErr := dashboard.Serve(ctx, listen, &dashboard.Dependencies{
		Queue:    queue,
		Table:    table,
		Details:  c,
		Gatherer: deps.Registry,
		SpoolDir: spoolDir,
		Logger:   e.logger,
		Now:      deps.Now,
	})

	queue.Close()
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := queue.Wait(drainCtx); err != nil {
		e.logger.Warn("Upload queue did not drain", logging.Err(err))
	}
	return serveErr
}

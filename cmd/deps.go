// Package cmd provides the viq subcommands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/voiceiq/viq-cli/client"
	"github.com/voiceiq/viq-cli/config"
	"github.com/voiceiq/viq-cli/credentials"
	"github.com/voiceiq/viq-cli/pkg/logging"
	"github.com/voiceiq/viq-cli/pkg/observability"
)

// Deps holds the dependencies shared by the viq commands. Tests replace
// the constructors to point commands at httptest backends.
type Deps struct {
	LoadConfig func() (*config.CLIConfig, error)
	NewClient  func(cfg *config.CLIConfig, opts *client.ClientOptions) (*client.Client, error)
	NewStore   func() (*credentials.Store, error)
	NewLogger  func(cfg *config.CLIConfig) logging.Logger

	// ReadPassword reads a secret without echo.
	ReadPassword func(prompt string) (string, error)
	// In is read for interactive prompts and chat input.
	In io.Reader

	Registry *prometheus.Registry
	Now      func() time.Time

	once    sync.Once
	metrics *commandMetrics
	tracer  *observability.Tracer
}

type commandMetrics struct {
	upload  *observability.UploadMetrics
	http    *observability.HTTPMetrics
	reports *observability.ReportMetrics
}

// DefaultDeps returns the dependencies for production use.
func DefaultDeps() *Deps {
	return &Deps{
		LoadConfig:   config.LoadConfig,
		NewClient:    defaultNewClient,
		NewStore:     credentials.NewStore,
		NewLogger:    defaultLogger,
		ReadPassword: readPassword,
		In:           os.Stdin,
		Registry:     prometheus.NewRegistry(),
		Now:          time.Now,
	}
}

// defaultNewClient authenticates with VIQ_TOKEN when set, otherwise with the
// credential store.
func defaultNewClient(cfg *config.CLIConfig, opts *client.ClientOptions) (*client.Client, error) {
	if token := os.Getenv(credentials.TokenEnvVar); token != "" {
		opts.Tokens = client.StaticToken(token)
	} else {
		store, err := credentials.NewStore()
		if err != nil {
			return nil, fmt.Errorf("initializing credential store: %w", err)
		}
		opts.Tokens = client.FromStore(store)
	}
	return client.FromConfig(cfg, opts)
}

func defaultLogger(cfg *config.CLIConfig) logging.Logger {
	level := logging.LevelWarn
	if cfg.Debug {
		level = logging.LevelDebug
	}
	return logging.NewLogger(&logging.Config{
		Level:       level,
		ServiceName: "viq",
		JSONFormat:  cfg.LogJSON,
		Output:      os.Stderr,
	})
}

func (d *Deps) init() {
	d.once.Do(func() {
		if d.Registry == nil {
			d.Registry = prometheus.NewRegistry()
		}
		if d.Now == nil {
			d.Now = time.Now
		}
		if d.In == nil {
			d.In = os.Stdin
		}
		d.metrics = &commandMetrics{
			upload:  observability.NewUploadMetrics(d.Registry),
			http:    observability.NewHTTPMetrics(d.Registry),
			reports: observability.NewReportMetrics(d.Registry),
		}
		d.tracer = observability.NewTracer()
	})
}

// env is the per-invocation state every command starts from.
type env struct {
	cfg    *config.CLIConfig
	logger logging.Logger
	out    io.Writer
}

func (d *Deps) setup(cmd *cobra.Command) (*env, error) {
	d.init()
	cfg, err := d.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger := logging.NewNopLogger()
	if d.NewLogger != nil {
		logger = d.NewLogger(cfg)
	}
	return &env{cfg: cfg, logger: logger, out: cmd.OutOrStdout()}, nil
}

func (d *Deps) client(e *env) (*client.Client, error) {
	opts := client.DefaultOptions()
	opts.Logger = e.logger
	opts.Metrics = d.metrics.http
	opts.Tracer = d.tracer
	c, err := d.NewClient(e.cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}
	return c, nil
}

// commandContext bounds ctx by the configured timeout. A zero timeout
// leaves ctx unbounded.
func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

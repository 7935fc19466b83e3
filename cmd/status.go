package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	viqerrors "github.com/voiceiq/viq-cli/pkg/errors"
)

// StatusResult is the structured output of `viq status`.
type StatusResult struct {
	BaseURL   string `json:"base_url" yaml:"base_url"`
	Reachable bool   `json:"reachable" yaml:"reachable"`
	LatencyMs int64  `json:"latency_ms,omitempty" yaml:"latency_ms,omitempty"`
	Reports   int    `json:"reports" yaml:"reports"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
	Hint      string `json:"hint,omitempty" yaml:"hint,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check the connection to the backend",
		Long: `Check that the backend is reachable and accepts the current token.

This fetches a single report, so it fails when you are not logged in.

Examples:
  viq status
  viq status -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := deps.setup(cmd)
			if err != nil {
				return err
			}
			format, err := resolveFormat(output, e.cfg)
			if err != nil {
				return err
			}
			c, err := deps.client(e)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, e.cfg.Timeout)
			defer cancel()

			result := StatusResult{BaseURL: c.BaseURL()}
			ping, err := c.Ping(ctx)
			if err != nil {
				result.Error = err.Error()
				result.Hint = viqerrors.Hint(err, "status")
			} else {
				result.Reachable = true
				result.LatencyMs = ping.Latency.Milliseconds()
				result.Reports = ping.Total
			}

			return render(e.out, format, result, func() error {
				if !result.Reachable {
					fmt.Fprintln(e.out, "Backend status: UNREACHABLE")
					fmt.Fprintf(e.out, "  Backend: %s\n", result.BaseURL)
					fmt.Fprintf(e.out, "  Error:   %s\n", result.Error)
					fmt.Fprintf(e.out, "  Hint:    %s\n", result.Hint)
					return nil
				}
				fmt.Fprintln(e.out, "Backend status: OK")
				fmt.Fprintf(e.out, "  Backend: %s\n", result.BaseURL)
				fmt.Fprintf(e.out, "  Latency: %s\n", time.Duration(result.LatencyMs)*time.Millisecond)
				fmt.Fprintf(e.out, "  Reports: %d\n", result.Reports)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

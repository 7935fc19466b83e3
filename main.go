// Package main provides the viq CLI entry point.
// viq uploads call recordings to the VoiceIQ backend and browses, exports
// and discusses the reports generated from them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voiceiq/viq-cli/cmd"
	"github.com/voiceiq/viq-cli/config"
	"github.com/voiceiq/viq-cli/pkg/buildinfo"
	viqerrors "github.com/voiceiq/viq-cli/pkg/errors"
)

// rootOptions holds the global flags.
type rootOptions struct {
	configDir    string
	baseURL      string
	timeout      time.Duration
	outputFormat string
	debug        bool
	insecure     bool
	logJSON      bool

	// cfg is loaded once per invocation with the flags applied.
	cfg *config.CLIConfig
}

// skipConfig lists commands that run without loading configuration.
var skipConfig = map[string]bool{
	"version":    true,
	"help":       true,
	"completion": true,
	"init":       true,
	"set":        true,
}

// newRootCommand builds the viq command tree.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	deps := cmd.DefaultDeps()
	deps.LoadConfig = func() (*config.CLIConfig, error) {
		if opts.cfg == nil {
			return nil, fmt.Errorf("configuration not loaded")
		}
		return opts.cfg, nil
	}

	rootCmd := &cobra.Command{
		Use:   "viq",
		Short: "VoiceIQ CLI - call recording analysis",
		Long: `viq is the command-line interface for the VoiceIQ call analysis backend.

Upload call recordings, then browse the generated reports, export them as
text files and ask questions about them.

COMMON WORKFLOWS:
  Get started:     viq auth login  →  viq status
  Analyze calls:   viq upload *.mp3  →  viq reports list
  Review a call:   viq reports show <id>  →  viq chat <id> "question"
  Export:          viq reports export <id> --kind transcription
  Local API:       viq serve

Every command supports --output json for structured data. Run
'viq <command> --help' for flags and examples.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			if opts.configDir != "" {
				if err := os.Setenv("VIQ_CONFIG_DIR", opts.configDir); err != nil {
					return fmt.Errorf("setting config directory: %w", err)
				}
			}
			if skipConfig[c.Name()] {
				return nil
			}
			return opts.load()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configDir, "config-dir", "", "config and credentials directory (default is ~/.viq)")
	flags.StringVar(&opts.baseURL, "base-url", "", "backend base URL")
	flags.DurationVar(&opts.timeout, "timeout", 0, "request timeout (e.g., 30s, 1m)")
	flags.StringVar(&opts.outputFormat, "output-format", "", "default output format: text, json, yaml")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.BoolVar(&opts.insecure, "insecure", false, "disable TLS verification")
	flags.BoolVar(&opts.logJSON, "log-json", false, "write logs as JSON lines")

	rootCmd.AddGroup(
		&cobra.Group{ID: "calls", Title: "Calls & Reports:"},
		&cobra.Group{ID: "ops", Title: "Operations:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	add := func(group string, cmds ...*cobra.Command) {
		for _, c := range cmds {
			c.GroupID = group
			rootCmd.AddCommand(c)
		}
	}

	add("calls",
		cmd.NewUploadCommand(deps),
		cmd.NewReportsCommand(deps),
		cmd.NewChatCommand(deps),
	)
	add("ops",
		cmd.NewStatusCommand(deps),
		cmd.NewServeCommand(deps),
	)
	add("setup",
		cmd.NewAuthCommand(deps),
		newConfigCommand(opts),
		newCompletionCommand(rootCmd),
		newVersionCommand(),
	)
	return rootCmd
}

// load reads the configuration and applies the global flags over it.
func (o *rootOptions) load() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := o.apply(cfg); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// apply overrides cfg with the flags that were set.
func (o *rootOptions) apply(cfg *config.CLIConfig) error {
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.timeout != 0 {
		cfg.Timeout = o.timeout
	}
	if o.outputFormat != "" {
		cfg.OutputFormat = config.OutputFormat(o.outputFormat)
	}
	if o.debug {
		cfg.Debug = true
	}
	if o.insecure {
		cfg.Insecure = true
	}
	if o.logJSON {
		cfg.LogJSON = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// newVersionCommand prints version information.
func newVersionCommand() *cobra.Command {
	var output string

	c := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the version, commit hash, and build time of the viq CLI.

Examples:
  viq version
  viq version -o json`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			info := buildinfo.Get(buildinfo.ComponentCLI)
			out := c.OutOrStdout()
			switch config.OutputFormat(output) {
			case config.OutputFormatJSON, config.OutputFormatYAML:
				return writeStructured(out, config.OutputFormat(output), info)
			case "", config.OutputFormatText:
				fmt.Fprintf(out, "viq version %s\n", info.Version)
				fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
				fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
				fmt.Fprintf(out, "  go:         %s\n", info.GoVersion)
				fmt.Fprintf(out, "  platform:   %s\n", info.Platform)
				return nil
			default:
				return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", output)
			}
		},
	}

	c.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return c
}

// newCompletionCommand generates shell completion scripts.
func newCompletionCommand(rootCmd *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for viq.

To load completions:

Bash:
  $ source <(viq completion bash)

Zsh:
  $ viq completion zsh > "${fpath[1]}/_viq"

Fish:
  $ viq completion fish | source

PowerShell:
  PS> viq completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(c *cobra.Command, args []string) error {
			out := c.OutOrStdout()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}

// errorHint returns the suggested action for err, or "" when there is
// nothing more specific to say than the error itself.
func errorHint(err error, op string) string {
	oe := viqerrors.ClassifyError(err, op)
	if oe == nil {
		return ""
	}
	switch oe.Code {
	case viqerrors.ErrRequestFailed, viqerrors.ErrContextCancelled:
		return ""
	}
	return viqerrors.Hint(err, op)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	executed, err := rootCmd.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	op := "viq"
	if executed != nil {
		op = executed.CommandPath()
	}
	if hint := errorHint(err, op); hint != "" {
		fmt.Fprintf(stderr, "Hint: %s\n", hint)
	}
	return 1
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

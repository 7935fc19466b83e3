package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/voiceiq/viq-cli/config"
)

// configView is the effective configuration as shown by `viq config show`.
type configView struct {
	ConfigFile      string `json:"config_file" yaml:"config_file"`
	BaseURL         string `json:"base_url" yaml:"base_url"`
	Timeout         string `json:"timeout" yaml:"timeout"`
	OutputFormat    string `json:"output_format" yaml:"output_format"`
	PageSize        int    `json:"page_size" yaml:"page_size"`
	ExportDir       string `json:"export_dir" yaml:"export_dir"`
	DashboardListen string `json:"dashboard_listen" yaml:"dashboard_listen"`
	Debug           bool   `json:"debug" yaml:"debug"`
	LogJSON         bool   `json:"log_json" yaml:"log_json"`
	Insecure        bool   `json:"insecure" yaml:"insecure"`
	EventsRedisAddr string `json:"events_redis_addr,omitempty" yaml:"events_redis_addr,omitempty"`
	EventsChannel   string `json:"events_channel,omitempty" yaml:"events_channel,omitempty"`
}

func newConfigView(cfg *config.CLIConfig) configView {
	path, _ := config.ConfigPath()
	v := configView{
		ConfigFile:      path,
		BaseURL:         cfg.BaseURL,
		Timeout:         cfg.Timeout.String(),
		OutputFormat:    cfg.OutputFormat.String(),
		PageSize:        cfg.PageSize,
		ExportDir:       cfg.ExportDir,
		DashboardListen: cfg.DashboardListen,
		Debug:           cfg.Debug,
		LogJSON:         cfg.LogJSON,
		Insecure:        cfg.Insecure,
	}
	if cfg.Events.Enabled() {
		v.EventsRedisAddr = cfg.Events.RedisAddr
		v.EventsChannel = cfg.Events.GetChannel()
	}
	return v
}

// newConfigCommand manages CLI configuration.
func newConfigCommand(opts *rootOptions) *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  `View and modify the viq CLI configuration in ~/.viq/config.yaml.`,
	}
	c.AddCommand(newConfigShowCommand(opts))
	c.AddCommand(newConfigInitCommand())
	c.AddCommand(newConfigSetCommand())
	return c
}

func newConfigShowCommand(opts *rootOptions) *cobra.Command {
	var output string

	c := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long: `Display the effective configuration: the config file, then VIQ_*
environment variables, then global flags.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			v := newConfigView(opts.cfg)
			out := c.OutOrStdout()

			format := config.OutputFormat(output)
			if output == "" {
				format = config.OutputFormatText
			}
			switch format {
			case config.OutputFormatJSON, config.OutputFormatYAML:
				return writeStructured(out, format, v)
			case config.OutputFormatText:
			default:
				return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", output)
			}

			fmt.Fprintln(out, "Current configuration:")
			fmt.Fprintf(out, "  Config file:      %s\n", v.ConfigFile)
			fmt.Fprintf(out, "  Base URL:         %s\n", v.BaseURL)
			fmt.Fprintf(out, "  Timeout:          %s\n", v.Timeout)
			fmt.Fprintf(out, "  Output format:    %s\n", v.OutputFormat)
			fmt.Fprintf(out, "  Page size:        %d\n", v.PageSize)
			fmt.Fprintf(out, "  Export dir:       %s\n", v.ExportDir)
			fmt.Fprintf(out, "  Dashboard listen: %s\n", v.DashboardListen)
			fmt.Fprintf(out, "  Debug:            %t\n", v.Debug)
			fmt.Fprintf(out, "  Insecure:         %t\n", v.Insecure)
			if v.EventsRedisAddr != "" {
				fmt.Fprintf(out, "  Events:           %s (channel %s)\n", v.EventsRedisAddr, v.EventsChannel)
			} else {
				fmt.Fprintln(out, "  Events:           (disabled)")
			}
			return nil
		},
	}

	c.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return c
}

func newConfigInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		Long:  `Create a configuration file with default values if one doesn't exist.`,
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			out := c.OutOrStdout()
			configPath, err := config.ConfigPath()
			if err != nil {
				return fmt.Errorf("getting config path: %w", err)
			}

			if _, err := os.Stat(configPath); err == nil {
				fmt.Fprintf(out, "Configuration file already exists: %s\n", configPath)
				fmt.Fprintln(out, "Use 'viq config show' to view current settings.")
				return nil
			}

			defaultCfg := config.DefaultConfig()
			if err := config.SaveConfig(defaultCfg); err != nil {
				return fmt.Errorf("saving configuration: %w", err)
			}

			fmt.Fprintf(out, "Created configuration file: %s\n", configPath)
			fmt.Fprintln(out, "\nDefault settings:")
			fmt.Fprintf(out, "  Base URL:      %s\n", defaultCfg.BaseURL)
			fmt.Fprintf(out, "  Timeout:       %s\n", defaultCfg.Timeout)
			fmt.Fprintf(out, "  Output format: %s\n", defaultCfg.OutputFormat)
			fmt.Fprintf(out, "  Page size:     %d\n", defaultCfg.PageSize)
			return nil
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the config file.

Available keys:
  base_url           - Backend root URL
  timeout            - Command timeout (e.g., 30s, 5m)
  output_format      - Default output format (text, json, yaml)
  page_size          - Reports per page (1-500)
  export_dir         - Directory for exported reports (supports ~)
  dashboard_listen   - Listen address for 'viq serve'
  debug              - Enable debug logging (true/false)
  insecure           - Disable TLS verification (true/false)
  events.redis_addr  - Redis host:port for upload events (empty disables)
  events.channel     - Redis channel for upload events

Examples:
  viq config set base_url https://calls.example.com/api
  viq config set page_size 50
  viq config set events.redis_addr localhost:6379`,
		Args: cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			currentCfg, err := config.LoadConfig()
			if err != nil {
				currentCfg = config.DefaultConfig()
			}
			if err := currentCfg.Set(key, value); err != nil {
				return fmt.Errorf("setting %s: %w", key, err)
			}
			if err := config.SaveConfig(currentCfg); err != nil {
				return fmt.Errorf("saving configuration: %w", err)
			}

			fmt.Fprintf(c.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

func writeStructured(w io.Writer, format config.OutputFormat, v interface{}) error {
	if format == config.OutputFormatYAML {
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/voiceiq/viq-cli/config"
)

// outputJSON outputs data as JSON.
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputYAML outputs data as YAML.
func outputYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(v)
}

// render writes v in the requested format; text uses the text callback.
func render(w io.Writer, format config.OutputFormat, v interface{}, text func() error) error {
	switch format {
	case config.OutputFormatJSON:
		return outputJSON(w, v)
	case config.OutputFormatYAML:
		return outputYAML(w, v)
	default:
		return text()
	}
}

// resolveFormat prefers a per-command --output value over the config default.
func resolveFormat(flagValue string, cfg *config.CLIConfig) (config.OutputFormat, error) {
	if flagValue == "" {
		return cfg.OutputFormat, nil
	}
	f := config.OutputFormat(flagValue)
	if !f.IsValid() {
		return "", fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", flagValue)
	}
	return f, nil
}

func truncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}

// readPassword prompts on stderr and reads without echo, falling back to a
// plain line read when stdin is not a terminal.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readLine reads one trimmed line from r.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

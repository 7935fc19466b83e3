// Package buildinfo exposes the version stamped into the viq binary.
package buildinfo

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// These vars are set at build time via ldflags:
// -X github.com/voiceiq/viq-cli/pkg/buildinfo.Version=v0.3.0
// -X github.com/voiceiq/viq-cli/pkg/buildinfo.Commit=4f2c9e1
// -X github.com/voiceiq/viq-cli/pkg/buildinfo.BuildTime=2026-10-01T09:00:00Z
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Component names reported by the CLI and the dashboard daemon.
const (
	ComponentCLI       = "viq"
	ComponentDashboard = "viq-dashboard"
)

// Info holds build information for a component.
type Info struct {
	Component string `json:"component" yaml:"component"`
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns build info for the named component.
func Get(component string) Info {
	return Info{
		Component: component,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns a human-readable one-liner like "v0.3.0 (4f2c9e1, 2026-10-01T09:00:00Z)"
func String() string {
	return Version + " (" + Commit + ", " + BuildTime + ")"
}

// UserAgent is the User-Agent header sent to the backend, e.g. "viq-cli/v0.3.0".
func UserAgent() string {
	return "viq-cli/" + Version
}

// Handler returns an HTTP handler that responds with build info JSON.
func Handler(component string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info := Get(component)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info)
	}
}

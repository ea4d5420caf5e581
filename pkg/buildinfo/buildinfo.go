// Package buildinfo exposes the version stamped into the summit binary.
package buildinfo

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

// These vars are set at build time via ldflags:
// -X github.com/otherjamesbrown/summit/pkg/buildinfo.Version=v0.3.0
// -X github.com/otherjamesbrown/summit/pkg/buildinfo.Commit=1f0c2ab
// -X github.com/otherjamesbrown/summit/pkg/buildinfo.BuildTime=2026-10-01T09:00:00Z
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var startedAt = time.Now()

// Info holds build information for a service.
type Info struct {
	ServiceName string `json:"service_name" yaml:"service_name"`
	Version     string `json:"version" yaml:"version"`
	Commit      string `json:"commit" yaml:"commit"`
	BuildTime   string `json:"build_time" yaml:"build_time"`
	GoVersion   string `json:"go_version" yaml:"go_version"`
}

// Get returns build info for the named service.
func Get(serviceName string) Info {
	return Info{
		ServiceName: serviceName,
		Version:     Version,
		Commit:      Commit,
		BuildTime:   BuildTime,
		GoVersion:   runtime.Version(),
	}
}

// String returns a one-liner like "v0.3.0 (1f0c2ab, 2026-10-01T09:00:00Z)".
func String() string {
	return Version + " (" + Commit + ", " + BuildTime + ")"
}

// Uptime reports how long the process has been running.
func Uptime() time.Duration {
	return time.Since(startedAt)
}

// Handler returns an HTTP handler that responds with build info JSON.
func Handler(serviceName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Get(serviceName))
	}
}

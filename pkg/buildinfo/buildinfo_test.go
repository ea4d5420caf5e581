package buildinfo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// stamp sets the ldflags vars for one test.
func stamp(t *testing.T, version, commit, built string) {
	t.Helper()
	v, c, b := Version, Commit, BuildTime
	Version, Commit, BuildTime = version, commit, built
	t.Cleanup(func() { Version, Commit, BuildTime = v, c, b })
}

func TestGet_Unstamped(t *testing.T) {
	info := Get("summit")

	want := Info{
		ServiceName: "summit",
		Version:     "dev",
		Commit:      "unknown",
		BuildTime:   "unknown",
		GoVersion:   runtime.Version(),
	}
	if info != want {
		t.Errorf("Get() = %+v, want %+v", info, want)
	}
	if String() != "dev (unknown, unknown)" {
		t.Errorf("String() = %q", String())
	}
}

func TestGet_Stamped(t *testing.T) {
	stamp(t, "v0.3.0", "1f0c2ab", "2026-10-01T09:00:00Z")

	info := Get("summit-server")
	if info.Version != "v0.3.0" || info.Commit != "1f0c2ab" {
		t.Errorf("Get() = %+v, want stamped values", info)
	}
	if got := String(); got != "v0.3.0 (1f0c2ab, 2026-10-01T09:00:00Z)" {
		t.Errorf("String() = %q", got)
	}
}

func TestInfo_FieldNames(t *testing.T) {
	info := Get("summit")

	data, err := json.Marshal(info)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	var asJSON map[string]string
	if err := json.Unmarshal(data, &asJSON); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}

	out, err := yaml.Marshal(info)
	if err != nil {
		t.Fatalf("yaml.Marshal: %v", err)
	}
	var asYAML map[string]string
	if err := yaml.Unmarshal(out, &asYAML); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}

	for _, key := range []string{"service_name", "version", "commit", "build_time", "go_version"} {
		if _, ok := asJSON[key]; !ok {
			t.Errorf("json is missing %q: %s", key, data)
		}
		if asJSON[key] != asYAML[key] {
			t.Errorf("%s: json %q != yaml %q", key, asJSON[key], asYAML[key])
		}
	}
}

func TestUptime_Grows(t *testing.T) {
	first := Uptime()
	if first <= 0 {
		t.Fatalf("Uptime() = %v, want > 0", first)
	}
	time.Sleep(time.Millisecond)
	if Uptime() <= first {
		t.Error("Uptime should increase")
	}
}

func TestHandler_ServesStampedInfo(t *testing.T) {
	stamp(t, "v1.2.0", "abcd123", "2026-09-30T12:00:00Z")

	rec := httptest.NewRecorder()
	Handler("summit-server")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var info Info
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.ServiceName != "summit-server" || info.Version != "v1.2.0" {
		t.Errorf("info = %+v", info)
	}
	if !strings.HasPrefix(info.GoVersion, "go") {
		t.Errorf("go_version = %q", info.GoVersion)
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

type jsonReport struct {
	Engine            string `json:"engine"`
	Seed              string `json:"seed"`
	Trigger           string `json:"completion_trigger"`
	Total             int64  `json:"total_requests"`
	Successes         int64  `json:"successes"`
	Failures          int64  `json:"failures"`
	FailedConnections int64  `json:"failed_connections"`
	BytesWritten      int64  `json:"bytes_written"`
	ErrorsByKind      []struct {
		Kind  string `json:"kind"`
		Count int64  `json:"count"`
	} `json:"errors_by_kind"`
}

func decodeReport(t *testing.T, out string) jsonReport {
	t.Helper()
	var r jsonReport
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, out)
	}
	return r
}

func TestRunSimpleJSON(t *testing.T) {
	var hits int64
	var mu sync.Mutex
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	code, stdout, stderr := runCLI(t, "run", "simple",
		"--url", srv.URL,
		"-n", "12", "-c", "3", "-t", "2",
		"-m", "post", "--body", "hello",
		"--seed", "fixed",
		"--format", "json",
	)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}

	report := decodeReport(t, stdout)
	if report.Total != 12 || report.Successes != 12 {
		t.Fatalf("total=%d successes=%d, want 12/12", report.Total, report.Successes)
	}
	if report.Engine != "simple" || report.Seed != "fixed" || report.Trigger != "quota" {
		t.Fatalf("unexpected report header: %+v", report)
	}
	if report.BytesWritten != 12*5 {
		t.Fatalf("bytes written = %d, want 60", report.BytesWritten)
	}
	if got := atomic.LoadInt64(&hits); got != 12 {
		t.Fatalf("server saw %d requests, want 12", got)
	}
	mu.Lock()
	defer mu.Unlock()
	for _, m := range methods {
		if m != http.MethodPost {
			t.Fatalf("method = %s, want POST", m)
		}
	}
}

func TestRunSimplePrettyCompletesWithFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	code, stdout, stderr := runCLI(t, "run", "simple", "-u", srv.URL, "-n", "4", "-c", "2", "-t", "1")
	if code != 0 {
		t.Fatalf("soft failures should not change the exit code: %d, stderr = %s", code, stderr)
	}
	for _, want := range []string{"Total Requests:    4", "Failed:            4", "HTTP 503: 4"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("pretty report missing %q\n%s", want, stdout)
		}
	}
}

// objectStore is a minimal path-style object store.
type objectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *objectStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.objects[r.URL.Path] = body
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		s.mu.Lock()
		body, ok := s.objects[r.URL.Path]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestRunS3PutThenGet(t *testing.T) {
	store := &objectStore{objects: map[string][]byte{}}
	srv := httptest.NewServer(store)
	defer srv.Close()

	common := []string{
		"--url", srv.URL,
		"-n", "20", "-c", "4", "-t", "2",
		"--seed", "s3-seed",
		"--format", "json",
	}
	s3 := []string{
		"--bucket", "bench",
		"--object-size", "4KB",
		"--obj-prefix", "obj",
		"--folder_depth", "1",
		"--folder_branches", "4",
		"--num-objs-per-prefix-folder", "5",
		"--checksum-algorithm", "sha256",
	}

	args := append(append([]string{"run", "s3"}, common...), s3...)
	code, stdout, stderr := runCLI(t, append(args, "--traffic-pattern", "put")...)
	if code != 0 {
		t.Fatalf("put run exit code = %d, stderr = %s", code, stderr)
	}
	put := decodeReport(t, stdout)
	if put.Successes != 20 {
		t.Fatalf("put successes = %d, want 20", put.Successes)
	}
	if put.BytesWritten != 20*4096 {
		t.Fatalf("bytes written = %d, want %d", put.BytesWritten, 20*4096)
	}

	store.mu.Lock()
	stored := len(store.objects)
	store.mu.Unlock()
	if stored != 20 {
		t.Fatalf("store holds %d objects, want 20", stored)
	}

	code, stdout, stderr = runCLI(t, append(args, "--traffic-pattern", "get")...)
	if code != 0 {
		t.Fatalf("get run exit code = %d, stderr = %s", code, stderr)
	}
	get := decodeReport(t, stdout)
	if get.Successes != 20 || get.Failures != 0 {
		t.Fatalf("get successes=%d failures=%d, kinds=%v", get.Successes, get.Failures, get.ErrorsByKind)
	}

	// A different seed yields different payloads for the same keys.
	for i, a := range args {
		if a == "s3-seed" {
			args[i] = "other-seed"
		}
	}
	code, stdout, _ = runCLI(t, append(args, "--traffic-pattern", "get")...)
	if code != 0 {
		t.Fatalf("mismatched get run exit code = %d", code)
	}
	mismatch := decodeReport(t, stdout)
	if mismatch.Failures != 20 {
		t.Fatalf("failures with another seed = %d, want 20", mismatch.Failures)
	}
}

func TestRunConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing url", []string{"run", "simple", "-n", "1"}, "url is required"},
		{"duration and count", []string{"run", "simple", "-u", "http://127.0.0.1:1", "-n", "1", "-d", "5"}, "mutually exclusive"},
		{"s3 without size", []string{"run", "s3", "-u", "http://127.0.0.1:1", "-b", "bench"}, "object-size is required"},
		{"bad format", []string{"run", "simple", "-u", "http://127.0.0.1:1", "-f", "xml"}, "format"},
		{"unknown flag", []string{"run", "simple", "--bogus"}, "unknown flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, tt.args...)
			if code != 1 {
				t.Fatalf("exit code = %d, want 1", code)
			}
			if stdout != "" {
				t.Fatalf("no report expected on config error, got %q", stdout)
			}
			if !strings.Contains(stderr, tt.want) {
				t.Fatalf("stderr = %q, want substring %q", stderr, tt.want)
			}
		})
	}
}

func TestRunUnreachableTarget(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	code, stdout, stderr := runCLI(t, "run", "simple", "-u", url, "-n", "3")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if stdout != "" {
		t.Fatalf("no report expected on setup error, got %q", stdout)
	}
	if !strings.Contains(stderr, "unreachable") {
		t.Fatalf("stderr = %q, want unreachable target message", stderr)
	}
}

func TestGenCompletions(t *testing.T) {
	dir := t.TempDir()
	for shell, file := range completionFiles {
		t.Run(shell, func(t *testing.T) {
			code, _, stderr := runCLI(t, "gen-completions", "--shell", shell, "--out-dir", dir)
			if code != 0 {
				t.Fatalf("exit code = %d, stderr = %s", code, stderr)
			}
			data, err := os.ReadFile(filepath.Join(dir, file))
			if err != nil {
				t.Fatalf("completion file not written: %v", err)
			}
			if !strings.Contains(string(data), "loaded") {
				t.Fatalf("completion script does not mention the command")
			}
		})
	}

	code, stdout, _ := runCLI(t, "gen-completions", "--shell", "bash")
	if code != 0 || !strings.Contains(stdout, "bash completion") {
		t.Fatalf("bash completion to stdout failed: code=%d", code)
	}

	if code, _, _ := runCLI(t, "gen-completions", "--shell", "tcsh"); code != 1 {
		t.Fatalf("unsupported shell exit code = %d, want 1", code)
	}
}

func TestRunWithoutEngineShowsHelp(t *testing.T) {
	code, stdout, _ := runCLI(t, "run")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout, "simple") || !strings.Contains(stdout, "s3") {
		t.Fatalf("help should list the engines:\n%s", stdout)
	}
}

func TestRunMoreThreadsThanConnections(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
	}))
	defer srv.Close()

	code, stdout, stderr := runCLI(t, "run", "simple", "-u", srv.URL,
		"--threads", "4", "--connections", "2", "--num-requests", "10", "--format", "json")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	var report struct {
		Threads     int   `json:"threads"`
		Connections int   `json:"connections"`
		Total       int64 `json:"total_requests"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, stdout)
	}
	if report.Connections != 2 || report.Threads != 4 {
		t.Fatalf("connections=%d threads=%d, want 2 and 4", report.Connections, report.Threads)
	}
	if report.Total != 10 || atomic.LoadInt64(&hits) != 10 {
		t.Fatalf("total=%d hits=%d, want 10", report.Total, atomic.LoadInt64(&hits))
	}
}

func TestRunLogsConfigWarnings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	code, _, stderr := runCLI(t, "run", "simple", "-u", srv.URL, "-n", "1", "--insecure", "--format", "json")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	if !strings.Contains(stderr, "TLS certificate verification is disabled") {
		t.Fatalf("stderr = %q, want insecure warning", stderr)
	}

	code, _, stderr = runCLI(t, "run", "simple", "-u", srv.URL, "-n", "1", "--insecure", "--log-level", "error", "--format", "json")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	if strings.Contains(stderr, "TLS certificate verification") {
		t.Fatalf("warning printed despite --log-level error: %q", stderr)
	}
}

func TestEngineHelpDescribesThreads(t *testing.T) {
	code, stdout, _ := runCLI(t, "run", "simple", "--help")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout, "--threads") || !strings.Contains(stdout, "Does not limit OS threads") {
		t.Fatalf("help should explain --threads:\n%s", stdout)
	}
}

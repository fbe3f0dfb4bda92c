package config_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/torosent/loaded/internal/config"
)

// load parses args the way the CLI does: run flags are persistent on the
// parent command and engine flags live on the subcommand.
func load(t *testing.T, cores int, kind config.EngineKind, args ...string) (*config.Config, error) {
	t.Helper()
	loader := &config.Loader{Cores: func() int { return cores }}

	var cfg *config.Config
	var loadErr error
	run := &cobra.Command{Use: "run", SilenceErrors: true, SilenceUsage: true}
	config.RegisterRunFlags(run)
	engine := &cobra.Command{
		Use: string(kind),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, loadErr = loader.LoadFlags(kind, cmd.Flags())
			return nil
		},
	}
	config.RegisterEngineFlags(engine, kind)
	run.AddCommand(engine)
	run.SetOut(io.Discard)
	run.SetErr(io.Discard)
	run.SetArgs(append([]string{string(kind)}, args...))
	if err := run.Execute(); err != nil {
		return nil, err
	}
	return cfg, loadErr
}

func TestLoadSimpleDefaults(t *testing.T) {
	cfg, err := load(t, 8, config.EngineSimple, "-u", "http://localhost:8080")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "http://localhost:8080" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.Format != config.FormatPretty {
		t.Errorf("Format = %q, want pretty", cfg.Format)
	}
	if cfg.Connections != 1 {
		t.Errorf("Connections = %d, want 1", cfg.Connections)
	}
	if cfg.Threads != 1 {
		t.Errorf("Threads = %d, want 1 (clamped to connections)", cfg.Threads)
	}
	if cfg.ThreadsSet {
		t.Errorf("ThreadsSet = true, want false")
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s", cfg.Timeout)
	}
	if cfg.Retries != 3 {
		t.Errorf("Retries = %d, want 3", cfg.Retries)
	}
	if cfg.NumRequests != nil {
		t.Errorf("NumRequests = %d, want nil", *cfg.NumRequests)
	}
	if cfg.Seed == "" {
		t.Errorf("Seed is empty, want generated default")
	}
	if cfg.Simple.Method != "GET" {
		t.Errorf("Method = %q, want GET", cfg.Simple.Method)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadThreadsDefaultFromCores(t *testing.T) {
	cfg, err := load(t, 4, config.EngineSimple, "-u", "http://h", "-c", "16")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Threads != 4 {
		t.Errorf("Threads = %d, want 4", cfg.Threads)
	}

	cfg, err = load(t, 0, config.EngineSimple, "-u", "http://h", "-c", "16")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Threads != 1 {
		t.Errorf("Threads = %d, want 1 when core count is unknown", cfg.Threads)
	}
}

func TestExplicitThreadsAboveConnectionsIsKept(t *testing.T) {
	cfg, err := load(t, 8, config.EngineSimple, "-u", "http://h", "-t", "4", "-c", "2")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.ThreadsSet || cfg.Threads != 4 || cfg.Connections != 2 {
		t.Fatalf("Threads = %d (set=%v), Connections = %d; want 4, true, 2", cfg.Threads, cfg.ThreadsSet, cfg.Connections)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want more threads than connections to be accepted", err)
	}
}

func TestLoadS3Flags(t *testing.T) {
	args := []string{
		"-u", "http://127.0.0.1:9000",
		"-n", "1000",
		"-c", "4",
		"-b", "bench",
		"-o", "64KB",
		"--obj-prefix", "obj",
		"--traffic-pattern", "both",
		"--folder_depth", "2",
		"--folder_branches", "3",
		"--num-objs-per-prefix-folder", "10",
		"--checksum-algorithm", "sha2",
		"-s", "fixed",
	}
	cfg, err := load(t, 2, config.EngineS3, args...)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	total, ok := cfg.Total()
	if !ok || total != 1000 {
		t.Errorf("Total() = %d, %v; want 1000, true", total, ok)
	}
	if cfg.Seed != "fixed" {
		t.Errorf("Seed = %q, want fixed", cfg.Seed)
	}
	s3 := cfg.S3
	if s3.Bucket != "bench" {
		t.Errorf("Bucket = %q", s3.Bucket)
	}
	if s3.ObjectSize != 64*1024 {
		t.Errorf("ObjectSize = %d, want %d", s3.ObjectSize, 64*1024)
	}
	if s3.ObjPrefix != "obj" {
		t.Errorf("ObjPrefix = %q", s3.ObjPrefix)
	}
	if s3.TrafficPattern != config.TrafficBoth {
		t.Errorf("TrafficPattern = %q", s3.TrafficPattern)
	}
	if s3.FolderDepth != 2 || s3.FolderBranches != 3 || s3.ObjsPerFolder != 10 {
		t.Errorf("layout = depth %d, branches %d, per folder %d", s3.FolderDepth, s3.FolderBranches, s3.ObjsPerFolder)
	}
	if s3.ChecksumAlgorithm != config.ChecksumSHA256 {
		t.Errorf("ChecksumAlgorithm = %q, want sha256", s3.ChecksumAlgorithm)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestS3ObjectSizeRequired(t *testing.T) {
	cfg, err := load(t, 1, config.EngineS3, "-u", "http://h", "-b", "bench")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.S3.ObjPrefix == "" {
		t.Errorf("ObjPrefix is empty, want generated default")
	}
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "object-size is required") {
		t.Fatalf("Validate() error = %v, want object-size is required", err)
	}

	cfg, err = load(t, 1, config.EngineS3, "-u", "http://h", "-b", "bench", "-o", "0")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with zero object size error = %v", err)
	}
}

func TestDurationAcceptsSecondsAndGoDurations(t *testing.T) {
	tests := []struct {
		arg  string
		want time.Duration
	}{
		{"30", 30 * time.Second},
		{"1m30s", 90 * time.Second},
		{"250ms", 250 * time.Millisecond},
	}
	for _, tt := range tests {
		cfg, err := load(t, 1, config.EngineSimple, "-u", "http://h", "-d", tt.arg)
		if err != nil {
			t.Fatalf("Load(-d %s) error = %v", tt.arg, err)
		}
		if cfg.Duration != tt.want {
			t.Errorf("Duration(%s) = %s, want %s", tt.arg, cfg.Duration, tt.want)
		}
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loaded.json")
	if err := os.WriteFile(path, []byte(`{
		"url": "https://api.example.com",
		"connections": 10,
		"threads": 2,
		"rate_limit": 100,
		"duration": "2m",
		"timeout": "45s",
		"retries": 5,
		"format": "json",
		"simple": {
			"method": "PUT",
			"headers": {"Content-Type": "application/json"},
			"body": "{\"foo\":\"bar\"}"
		}
	}`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := load(t, 8, config.EngineSimple, "--config", path, "-m", "PATCH", "-X", "Authorization=Bearer token")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "https://api.example.com" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.Simple.Method != "PATCH" {
		t.Errorf("Method = %q, want PATCH", cfg.Simple.Method)
	}
	if cfg.Simple.Headers["Content-Type"] != "application/json" {
		t.Errorf("Headers[Content-Type] = %q", cfg.Simple.Headers["Content-Type"])
	}
	if cfg.Simple.Headers["Authorization"] != "Bearer token" {
		t.Errorf("Headers[Authorization] = %q", cfg.Simple.Headers["Authorization"])
	}
	if cfg.Simple.Body != `{"foo":"bar"}` {
		t.Errorf("Body = %q", cfg.Simple.Body)
	}
	if cfg.Connections != 10 || cfg.Threads != 2 || !cfg.ThreadsSet {
		t.Errorf("Connections = %d, Threads = %d (set=%v)", cfg.Connections, cfg.Threads, cfg.ThreadsSet)
	}
	if cfg.RateLimit != 100 {
		t.Errorf("RateLimit = %d, want 100", cfg.RateLimit)
	}
	if cfg.Duration != 2*time.Minute {
		t.Errorf("Duration = %s, want 2m", cfg.Duration)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %s, want 45s", cfg.Timeout)
	}
	if cfg.Retries != 5 {
		t.Errorf("Retries = %d, want 5", cfg.Retries)
	}
	if cfg.Format != config.FormatJSON {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loaded.yaml")
	if err := os.WriteFile(path, []byte(`
url: http://minio:9000
connections: 8
num_requests: 4000
seed: bench-1
tracing:
  endpoint: localhost:4317
  sample_rate: 0.25
s3:
  bucket: bench
  object_size: 1MB
  traffic_pattern: get
  checksum_algorithm: crc32c
`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := load(t, 4, config.EngineS3, "--config", path, "-c", "12")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Connections != 12 {
		t.Errorf("Connections = %d, want flag value 12", cfg.Connections)
	}
	if cfg.Threads != 4 {
		t.Errorf("Threads = %d, want 4", cfg.Threads)
	}
	if total, ok := cfg.Total(); !ok || total != 4000 {
		t.Errorf("Total() = %d, %v", total, ok)
	}
	if cfg.Seed != "bench-1" {
		t.Errorf("Seed = %q", cfg.Seed)
	}
	if !cfg.Tracing.Enabled() || cfg.Tracing.SampleRate != 0.25 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.S3.ObjectSize != 1024*1024 {
		t.Errorf("ObjectSize = %d, want 1MiB", cfg.S3.ObjectSize)
	}
	if cfg.S3.TrafficPattern != config.TrafficGet {
		t.Errorf("TrafficPattern = %q", cfg.S3.TrafficPattern)
	}
	if cfg.S3.ChecksumAlgorithm != config.ChecksumCRC32C {
		t.Errorf("ChecksumAlgorithm = %q", cfg.S3.ChecksumAlgorithm)
	}
}

func TestFlagBodyOverridesConfigBodyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loaded.json")
	if err := os.WriteFile(path, []byte(`{"url": "http://h", "simple": {"body_from_file": "payload.bin"}}`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := load(t, 1, config.EngineSimple, "--config", path, "--body", "inline")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Simple.Body != "inline" || cfg.Simple.BodyFile != "" {
		t.Errorf("Body = %q, BodyFile = %q", cfg.Simple.Body, cfg.Simple.BodyFile)
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := load(t, 1, config.EngineSimple, "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil, want error for missing config file")
	}
}

func TestUnknownFlagIsRejected(t *testing.T) {
	if _, err := load(t, 1, config.EngineSimple, "-u", "http://h", "--bucket", "b"); err == nil {
		t.Fatal("Load() error = nil, want unknown flag error for an s3 flag on simple")
	}
}

func TestWarnings(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want []string
	}{
		{"quiet", config.Config{RateLimit: 100, Connections: 10}, nil},
		{"rate", config.Config{RateLimit: 20000, Connections: 1}, []string{"high rate limit configured (20000 RPS)"}},
		{"connections", config.Config{Connections: 5000}, []string{"high connection count configured (5000)"}},
		{"insecure", config.Config{Connections: 1, Insecure: true}, []string{"TLS certificate verification is disabled"}},
		{"all", config.Config{RateLimit: 20000, Connections: 5000, Insecure: true}, []string{"rate limit", "connection count", "TLS"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.Warnings()
			if len(got) != len(tt.want) {
				t.Fatalf("Warnings() = %q, want %d entries", got, len(tt.want))
			}
			for i, w := range tt.want {
				if !strings.Contains(got[i], w) {
					t.Errorf("Warnings()[%d] = %q, want substring %q", i, got[i], w)
				}
			}
		})
	}
}

func TestConfigValidationErrors(t *testing.T) {
	n := uint64(10)
	base := func() config.Config {
		return config.Config{
			TargetURL:   "http://localhost",
			Format:      config.FormatPretty,
			Threads:     1,
			Connections: 1,
			Timeout:     time.Second,
			Arrival:     config.ArrivalConfig{Model: config.ArrivalModelUniform},
			Tracing:     config.TracingConfig{SampleRate: 1},
			Engine:      config.EngineS3,
			S3: config.S3Config{
				Bucket:         "bench",
				ObjectSize:     1024,
				TrafficPattern: config.TrafficPut,
				ObjsPerFolder:  10,
				FolderBranches: 10,
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing url", func(c *config.Config) { c.TargetURL = "" }, "url is required"},
		{"bad scheme", func(c *config.Config) { c.TargetURL = "ftp://host" }, "must use http or https"},
		{"bad format", func(c *config.Config) { c.Format = "xml" }, "format \"xml\""},
		{"zero connections", func(c *config.Config) { c.Connections = 0 }, "connections must be >= 1"},
		{"negative rate", func(c *config.Config) { c.RateLimit = -1 }, "rate-limit must be >= 0"},
		{"duration and count", func(c *config.Config) { c.Duration = time.Second; c.NumRequests = &n }, "mutually exclusive"},
		{"negative retries", func(c *config.Config) { c.Retries = -1 }, "retries must be >= 0"},
		{"arrival", func(c *config.Config) { c.Arrival.Model = "bursty" }, "arrival model"},
		{"log level", func(c *config.Config) { c.LogLevel = "verbose" }, "log-level"},
		{"sample rate", func(c *config.Config) { c.Tracing.SampleRate = 2 }, "sample_rate"},
		{"bucket slash", func(c *config.Config) { c.S3.Bucket = "a/b" }, "must not contain '/'"},
		{"pattern", func(c *config.Config) { c.S3.TrafficPattern = "delete" }, "traffic pattern"},
		{"objs per folder", func(c *config.Config) { c.S3.ObjsPerFolder = 0 }, "num-objs-per-prefix-folder"},
		{"branches", func(c *config.Config) { c.S3.FolderDepth = 2; c.S3.FolderBranches = 0 }, "folder_branches"},
		{"checksum", func(c *config.Config) { c.S3.ChecksumAlgorithm = "crc64" }, "checksum"},
		{"simple method", func(c *config.Config) {
			c.Engine = config.EngineSimple
			c.Simple = config.SimpleConfig{Method: "BAD METHOD"}
		}, "not a valid HTTP method"},
		{"simple body and file", func(c *config.Config) {
			c.Engine = config.EngineSimple
			c.Simple = config.SimpleConfig{Method: "POST", Body: "x", BodyFile: "y"}
		}, "mutually exclusive"},
	}

	valid := base()
	if err := valid.Validate(); err != nil {
		t.Fatalf("base config Validate() error = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.want)
			}
			var verr config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error type = %T, want ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestParseChecksumAlgorithm(t *testing.T) {
	tests := map[string]config.ChecksumAlgorithm{
		"":       config.ChecksumNone,
		"none":   config.ChecksumNone,
		"MD5":    config.ChecksumMD5,
		"crc32":  config.ChecksumCRC32,
		"crc32c": config.ChecksumCRC32C,
		"sha1":   config.ChecksumSHA1,
		"sha2":   config.ChecksumSHA256,
		"sha256": config.ChecksumSHA256,
	}
	for in, want := range tests {
		got, err := config.ParseChecksumAlgorithm(in)
		if err != nil {
			t.Errorf("ParseChecksumAlgorithm(%q) error = %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseChecksumAlgorithm(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := config.ParseChecksumAlgorithm("crc64"); err == nil {
		t.Error("ParseChecksumAlgorithm(crc64) error = nil")
	}
}

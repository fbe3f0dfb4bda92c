// Package config loads and validates the configuration of a load run.
package config

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/http/httpguts"
)

type Format string

const (
	FormatPretty Format = "pretty"
	FormatJSON   Format = "json"
)

type EngineKind string

const (
	EngineSimple EngineKind = "simple"
	EngineS3     EngineKind = "s3"
)

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type TrafficPattern string

const (
	TrafficPut  TrafficPattern = "put"
	TrafficGet  TrafficPattern = "get"
	TrafficBoth TrafficPattern = "both"
)

type ChecksumAlgorithm string

const (
	ChecksumNone   ChecksumAlgorithm = ""
	ChecksumMD5    ChecksumAlgorithm = "md5"
	ChecksumCRC32  ChecksumAlgorithm = "crc32"
	ChecksumCRC32C ChecksumAlgorithm = "crc32c"
	ChecksumSHA1   ChecksumAlgorithm = "sha1"
	ChecksumSHA256 ChecksumAlgorithm = "sha256"
)

// ParseChecksumAlgorithm normalizes a checksum name. "sha2" is accepted as an
// alias of sha256.
func ParseChecksumAlgorithm(s string) (ChecksumAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ChecksumNone, nil
	case "md5":
		return ChecksumMD5, nil
	case "crc32":
		return ChecksumCRC32, nil
	case "crc32c":
		return ChecksumCRC32C, nil
	case "sha1":
		return ChecksumSHA1, nil
	case "sha2", "sha256":
		return ChecksumSHA256, nil
	default:
		return ChecksumNone, fmt.Errorf("invalid checksum algorithm %q", s)
	}
}

// Config describes one load run.
type Config struct {
	TargetURL   string        `mapstructure:"url"`
	Format      Format        `mapstructure:"format"`
	Threads     int           `mapstructure:"threads"`
	Connections int           `mapstructure:"connections"`
	RateLimit   int           `mapstructure:"rate_limit"`
	Duration    time.Duration `mapstructure:"duration"`
	NumRequests *uint64       `mapstructure:"num_requests"`
	Seed        string        `mapstructure:"seed"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Retries     int           `mapstructure:"retries"`
	Arrival     ArrivalConfig `mapstructure:"arrival"`
	Insecure    bool          `mapstructure:"insecure"`
	LogLevel    string        `mapstructure:"log_level"`
	ConfigFile  string        `mapstructure:"-"`
	Tracing     TracingConfig `mapstructure:"tracing"`

	// ThreadsSet records whether Threads was chosen by the user rather than
	// defaulted from the number of physical cores.
	ThreadsSet bool `mapstructure:"-"`

	Engine EngineKind   `mapstructure:"-"`
	Simple SimpleConfig `mapstructure:"simple"`
	S3     S3Config     `mapstructure:"s3"`
}

type ArrivalConfig struct {
	Model ArrivalModel `mapstructure:"model"`
}

// SimpleConfig configures the engine that repeats one fixed request.
type SimpleConfig struct {
	Method   string            `mapstructure:"method"`
	Headers  map[string]string `mapstructure:"headers"`
	Body     string            `mapstructure:"body"`
	BodyFile string            `mapstructure:"body_file"`
}

// S3Config configures the engine that PUTs and GETs objects.
type S3Config struct {
	Bucket            string            `mapstructure:"bucket"`
	ObjectSize        int64             `mapstructure:"object_size"`
	ObjPrefix         string            `mapstructure:"obj_prefix"`
	TrafficPattern    TrafficPattern    `mapstructure:"traffic_pattern"`
	FolderDepth       int               `mapstructure:"folder_depth"`
	ObjsPerFolder     int               `mapstructure:"num_objs_per_prefix_folder"`
	FolderBranches    int               `mapstructure:"folder_branches"`
	ChecksumAlgorithm ChecksumAlgorithm `mapstructure:"checksum_algorithm"`
}

// TracingConfig configures OpenTelemetry export of per-request spans.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   bool    `mapstructure:"propagate"`
}

// Enabled reports whether spans should be produced at all.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || t.Propagate
}

// ShouldPropagate reports whether W3C trace headers are injected into
// outgoing requests.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Propagate || strings.TrimSpace(t.Endpoint) != ""
}

// Total returns the requested number of requests and whether it was set.
func (c Config) Total() (uint64, bool) {
	if c.NumRequests == nil {
		return 0, false
	}
	return *c.NumRequests, true
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Warnings lists settings that are valid but worth flagging before a run
// starts.
func (c Config) Warnings() []string {
	var warnings []string
	if c.RateLimit > 10000 {
		warnings = append(warnings, fmt.Sprintf("high rate limit configured (%d RPS), ensure you have authorization to test the target system", c.RateLimit))
	}
	if c.Connections > 1000 {
		warnings = append(warnings, fmt.Sprintf("high connection count configured (%d), ensure you have authorization to test the target system", c.Connections))
	}
	if c.Insecure {
		warnings = append(warnings, "TLS certificate verification is disabled (--insecure), man-in-the-middle attacks are possible")
	}
	return warnings
}

func (c Config) Validate() error {
	var issues []string

	issues = append(issues, validateTarget(c.TargetURL)...)

	switch c.Format {
	case FormatPretty, FormatJSON:
	default:
		issues = append(issues, fmt.Sprintf("format %q is not supported (use pretty or json)", c.Format))
	}

	if c.Threads < 1 {
		issues = append(issues, "threads must be >= 1")
	}
	if c.Connections < 1 {
		issues = append(issues, "connections must be >= 1")
	}
	if c.RateLimit < 0 {
		issues = append(issues, "rate-limit must be >= 0")
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	if c.Duration > 0 && c.NumRequests != nil {
		issues = append(issues, "duration and num-requests are mutually exclusive")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}

	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
			issues = append(issues, fmt.Sprintf("log-level %q is not supported (use trace, debug, info, warn, error or disabled)", c.LogLevel))
		}
	}

	issues = append(issues, validateArrivalConfig(c.Arrival)...)
	issues = append(issues, validateTracingConfig(c.Tracing)...)

	switch c.Engine {
	case EngineSimple:
		issues = append(issues, validateSimpleConfig(c.Simple)...)
	case EngineS3:
		issues = append(issues, validateS3Config(c.S3)...)
	default:
		issues = append(issues, fmt.Sprintf("engine %q is not supported (use simple or s3)", c.Engine))
	}


	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}

	return nil
}

func validateTarget(target string) []string {
	target = strings.TrimSpace(target)
	if target == "" {
		return []string{"url is required (use --help for usage information)"}
	}
	u, err := url.Parse(target)
	if err != nil {
		return []string{fmt.Sprintf("url %q is invalid: %v", target, err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return []string{fmt.Sprintf("url %q must use http or https", target)}
	}
	if u.Host == "" {
		return []string{fmt.Sprintf("url %q has no host", target)}
	}
	return nil
}

func validateArrivalConfig(arr ArrivalConfig) []string {
	model := arr.Model
	if model == "" {
		model = ArrivalModelUniform
	}
	switch model {
	case ArrivalModelUniform, ArrivalModelPoisson:
		return nil
	default:
		return []string{fmt.Sprintf("arrival model %q is not supported", model)}
	}
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}

func validateSimpleConfig(s SimpleConfig) []string {
	var issues []string
	if strings.TrimSpace(s.Method) == "" {
		issues = append(issues, "simple: method is required")
	} else if !httpguts.ValidHeaderFieldName(s.Method) {
		issues = append(issues, fmt.Sprintf("simple: method %q is not a valid HTTP method", s.Method))
	}
	if s.Body != "" && strings.TrimSpace(s.BodyFile) != "" {
		issues = append(issues, "simple: body and body-from-file are mutually exclusive")
	}
	for key, value := range s.Headers {
		trimmed := strings.TrimSpace(key)
		if !httpguts.ValidHeaderFieldName(trimmed) {
			issues = append(issues, fmt.Sprintf("simple: invalid header key %q", key))
			continue
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			issues = append(issues, fmt.Sprintf("simple: invalid header value for %s", http.CanonicalHeaderKey(trimmed)))
		}
	}
	return issues
}

func validateS3Config(s S3Config) []string {
	var issues []string
	if strings.TrimSpace(s.Bucket) == "" {
		issues = append(issues, "s3: bucket is required")
	} else if strings.Contains(s.Bucket, "/") {
		issues = append(issues, fmt.Sprintf("s3: bucket %q must not contain '/'", s.Bucket))
	}
	if s.ObjectSize < 0 {
		issues = append(issues, "s3: object-size is required")
	}
	switch s.TrafficPattern {
	case TrafficPut, TrafficGet, TrafficBoth:
	default:
		issues = append(issues, fmt.Sprintf("s3: traffic pattern %q is not supported (use put, get or both)", s.TrafficPattern))
	}
	if s.FolderDepth < 0 {
		issues = append(issues, "s3: folder_depth must be >= 0")
	}
	if s.ObjsPerFolder < 1 {
		issues = append(issues, "s3: num-objs-per-prefix-folder must be >= 1")
	}
	if s.FolderDepth > 0 && s.FolderBranches < 1 {
		issues = append(issues, "s3: folder_branches must be >= 1 when folder_depth > 0")
	}
	if _, err := ParseChecksumAlgorithm(string(s.ChecksumAlgorithm)); err != nil {
		issues = append(issues, "s3: "+err.Error())
	}
	return issues
}

package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterRunFlags registers the flags shared by every engine as persistent
// flags of the run command.
func RegisterRunFlags(cmd *cobra.Command) {
	configureRunFlags(cmd.PersistentFlags())
}

// RegisterEngineFlags registers the flags of one engine on its subcommand.
func RegisterEngineFlags(cmd *cobra.Command, kind EngineKind) {
	switch kind {
	case EngineSimple:
		configureSimpleFlags(cmd.Flags())
	case EngineS3:
		configureS3Flags(cmd.Flags())
	}
}

func configureRunFlags(flags *pflag.FlagSet) {
	flags.StringP("url", "u", "", "Target URL (scheme://host[:port])")
	flags.StringP("format", "f", string(FormatPretty), "Report format: pretty or json")
	flags.IntP("threads", "t", 0, "Number of workers the connections are split across (default: number of physical cores, at most --connections). Does not limit OS threads, see GOMAXPROCS")
	flags.IntP("connections", "c", 1, "Number of connections to open to the target")
	flags.IntP("rate-limit", "r", 0, "Requests per second across all connections (0 means unlimited)")
	flags.StringP("duration", "d", "", "How long to run, in seconds or as a Go duration (e.g. 30, 1m)")
	flags.Uint64P("num-requests", "n", 0, "Total number of requests to send")
	flags.StringP("seed", "s", "", "Seed for deterministic payloads and timings (default: random UUID)")
	flags.Duration("timeout", 30*time.Second, "Per-request timeout")
	flags.Int("retries", 3, "Retries per request on transport errors before a connection fails")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model to use when pacing requests (uniform or poisson)")
	flags.Bool("insecure", false, "Skip TLS certificate verification")
	flags.String("log-level", "warn", "Log level: trace, debug, info, warn, error")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	flags.String("tracing-endpoint", "", "OTLP collector endpoint for request spans")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.String("tracing-service-name", "", "Service name reported with spans (default: loaded)")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of requests to trace (0.0-1.0)")
	flags.Bool("tracing-insecure", false, "Disable TLS towards the OTLP collector")
	flags.Bool("tracing-propagate", false, "Inject W3C trace headers into requests")
}

func configureSimpleFlags(flags *pflag.FlagSet) {
	flags.StringP("method", "m", http.MethodGet, "HTTP method to use")
	flags.StringSliceP("headers", "X", nil, "Request header in key=value form (repeatable)")
	flags.String("body", "", "Inline request body payload")
	flags.String("body-from-file", "", "Path to file containing the request body")
}

func configureS3Flags(flags *pflag.FlagSet) {
	flags.StringP("bucket", "b", "", "Bucket to read and write objects in")
	flags.StringP("object-size", "o", "", "Size of each object in bytes, or with a unit (e.g. 4096, 64KB, 1MB)")
	flags.String("obj-prefix", "", "Prefix for object names (default: random UUID)")
	flags.String("traffic-pattern", string(TrafficPut), "Traffic pattern: put, get or both")
	flags.Int("folder_depth", 0, "Number of folder levels above each object")
	flags.Int("num-objs-per-prefix-folder", 10000, "Objects per leaf folder before moving to the next folder")
	flags.Int("folder_branches", 10, "Sub-folders per folder level")
	flags.String("checksum-algorithm", "", "Checksum sent with PUTs and verified on GETs: md5, crc32, crc32c, sha1, sha256")
}

// applyFlagOverrides applies command-line flag values to the config,
// overriding values from the config file. Flags that do not exist on fs are
// skipped so the same function serves every engine.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	changed := func(name string) bool {
		return fs.Lookup(name) != nil && fs.Changed(name)
	}

	if changed("url") {
		val, err := fs.GetString("url")
		if err != nil {
			return err
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if changed("format") {
		val, err := fs.GetString("format")
		if err != nil {
			return err
		}
		cfg.Format = Format(strings.ToLower(strings.TrimSpace(val)))
	}
	if changed("threads") {
		val, err := fs.GetInt("threads")
		if err != nil {
			return err
		}
		cfg.Threads = val
		cfg.ThreadsSet = true
	}
	if changed("connections") {
		val, err := fs.GetInt("connections")
		if err != nil {
			return err
		}
		cfg.Connections = val
	}
	if changed("rate-limit") {
		val, err := fs.GetInt("rate-limit")
		if err != nil {
			return err
		}
		cfg.RateLimit = val
	}
	if changed("duration") {
		val, err := fs.GetString("duration")
		if err != nil {
			return err
		}
		dur, err := parseDurationArg(val)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.Duration = dur
	}
	if changed("num-requests") {
		val, err := fs.GetUint64("num-requests")
		if err != nil {
			return err
		}
		cfg.NumRequests = &val
	}
	if changed("seed") {
		val, err := fs.GetString("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}
	if changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if changed("retries") {
		val, err := fs.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Retries = val
	}
	if changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}
	if changed("insecure") {
		val, err := fs.GetBool("insecure")
		if err != nil {
			return err
		}
		cfg.Insecure = val
	}
	if changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}

	if err := applyTracingFlags(cfg, fs, changed); err != nil {
		return err
	}

	switch cfg.Engine {
	case EngineSimple:
		return applySimpleFlags(cfg, fs, changed)
	case EngineS3:
		return applyS3Flags(cfg, fs, changed)
	}
	return nil
}

func applyTracingFlags(cfg *Config, fs *pflag.FlagSet, changed func(string) bool) error {
	if changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}
	if changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = val
	}
	return nil
}

func applySimpleFlags(cfg *Config, fs *pflag.FlagSet, changed func(string) bool) error {
	if changed("method") {
		val, err := fs.GetString("method")
		if err != nil {
			return err
		}
		cfg.Simple.Method = val
	}
	if changed("body") {
		val, err := fs.GetString("body")
		if err != nil {
			return err
		}
		cfg.Simple.Body = val
		cfg.Simple.BodyFile = ""
	}
	if changed("body-from-file") {
		val, err := fs.GetString("body-from-file")
		if err != nil {
			return err
		}
		cfg.Simple.BodyFile = val
		cfg.Simple.Body = ""
	}

	if fs.Lookup("headers") == nil {
		return nil
	}
	vals, err := fs.GetStringSlice("headers")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Simple.Headers == nil {
			cfg.Simple.Headers = map[string]string{}
		}
		for _, entry := range vals {
			key, value, err := parseHeader(entry)
			if err != nil {
				return err
			}
			cfg.Simple.Headers[key] = value
		}
	}
	return nil
}

func applyS3Flags(cfg *Config, fs *pflag.FlagSet, changed func(string) bool) error {
	if changed("bucket") {
		val, err := fs.GetString("bucket")
		if err != nil {
			return err
		}
		cfg.S3.Bucket = strings.TrimSpace(val)
	}
	if changed("object-size") {
		val, err := fs.GetString("object-size")
		if err != nil {
			return err
		}
		size, err := parseByteSize(val)
		if err != nil {
			return fmt.Errorf("object-size: %w", err)
		}
		cfg.S3.ObjectSize = size
	}
	if changed("obj-prefix") {
		val, err := fs.GetString("obj-prefix")
		if err != nil {
			return err
		}
		cfg.S3.ObjPrefix = val
	}
	if changed("traffic-pattern") {
		val, err := fs.GetString("traffic-pattern")
		if err != nil {
			return err
		}
		cfg.S3.TrafficPattern = TrafficPattern(strings.ToLower(strings.TrimSpace(val)))
	}
	if changed("folder_depth") {
		val, err := fs.GetInt("folder_depth")
		if err != nil {
			return err
		}
		cfg.S3.FolderDepth = val
	}
	if changed("num-objs-per-prefix-folder") {
		val, err := fs.GetInt("num-objs-per-prefix-folder")
		if err != nil {
			return err
		}
		cfg.S3.ObjsPerFolder = val
	}
	if changed("folder_branches") {
		val, err := fs.GetInt("folder_branches")
		if err != nil {
			return err
		}
		cfg.S3.FolderBranches = val
	}
	if changed("checksum-algorithm") {
		val, err := fs.GetString("checksum-algorithm")
		if err != nil {
			return err
		}
		algo, err := ParseChecksumAlgorithm(val)
		if err != nil {
			return err
		}
		cfg.S3.ChecksumAlgorithm = algo
	}
	return nil
}

func parseHeader(entry string) (string, string, error) {
	sep := strings.IndexAny(entry, "=:")
	if sep == -1 {
		return "", "", fmt.Errorf("header must be in key=value format: %s", entry)
	}
	key := http.CanonicalHeaderKey(strings.TrimSpace(entry[:sep]))
	if key == "" {
		return "", "", fmt.Errorf("header key cannot be empty")
	}
	return key, strings.TrimSpace(entry[sep+1:]), nil
}

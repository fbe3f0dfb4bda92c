package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct {
	// Cores returns the number of physical cores used as the default thread
	// count. Nil means query the host.
	Cores func() int
}

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadFlags builds a Config from an already parsed flag set. Values from the
// file named by --config are applied first and changed flags override them.
func (l Loader) LoadFlags(kind EngineKind, flagSet *pflag.FlagSet) (*Config, error) {
	configPath := ""
	if f := flagSet.Lookup("config"); f != nil {
		configPath = strings.TrimSpace(f.Value.String())
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := &Config{
		Format:      FormatPretty,
		Connections: 1,
		Timeout:     30 * time.Second,
		Retries:     3,
		Arrival:     ArrivalConfig{Model: ArrivalModelUniform},
		LogLevel:    "warn",
		ConfigFile:  configPath,
		Tracing:     TracingConfig{Protocol: "grpc", SampleRate: 1.0},
		Engine:      kind,
	}
	switch kind {
	case EngineSimple:
		cfg.Simple = SimpleConfig{Method: http.MethodGet, Headers: map[string]string{}}
	case EngineS3:
		cfg.S3 = S3Config{
			ObjectSize:     -1,
			TrafficPattern: TrafficPut,
			ObjsPerFolder:  10000,
			FolderBranches: 10,
		}
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	l.applyDefaults(cfg)
	return cfg, nil
}

func (l Loader) applyDefaults(cfg *Config) {
	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	if cfg.Seed == "" {
		cfg.Seed = uuid.NewString()
	}

	if !cfg.ThreadsSet {
		cores := l.Cores
		if cores == nil {
			cores = physicalCores
		}
		cfg.Threads = cores()
		if cfg.Threads < 1 {
			cfg.Threads = 1
		}
		if cfg.Connections >= 1 && cfg.Threads > cfg.Connections {
			cfg.Threads = cfg.Connections
		}
	}

	switch cfg.Engine {
	case EngineSimple:
		cfg.Simple.Method = strings.ToUpper(strings.TrimSpace(cfg.Simple.Method))
		cfg.Simple.BodyFile = strings.TrimSpace(cfg.Simple.BodyFile)
		if cfg.Simple.Headers == nil {
			cfg.Simple.Headers = map[string]string{}
		}
	case EngineS3:
		if cfg.S3.ObjPrefix == "" {
			cfg.S3.ObjPrefix = uuid.NewString()
		}
	}
}

func physicalCores() int {
	n, err := cpu.Counts(false)
	if err != nil || n < 1 {
		n, err = cpu.Counts(true)
		if err != nil || n < 1 {
			return 1
		}
	}
	return n
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]any) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "url", "target"); ok {
		val, err := cast.ToStringE(raw)
		if err != nil {
			return fmt.Errorf("url: %w", err)
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "format"); ok {
		val, err := cast.ToStringE(raw)
		if err != nil {
			return fmt.Errorf("format: %w", err)
		}
		if val != "" {
			cfg.Format = Format(strings.ToLower(strings.TrimSpace(val)))
		}
	}

	if raw, ok := lookupSetting(settings, "threads"); ok {
		val, err := cast.ToIntE(raw)
		if err != nil {
			return fmt.Errorf("threads: %w", err)
		}
		cfg.Threads = val
		cfg.ThreadsSet = true
	}

	if raw, ok := lookupSetting(settings, "connections"); ok {
		val, err := cast.ToIntE(raw)
		if err != nil {
			return fmt.Errorf("connections: %w", err)
		}
		cfg.Connections = val
	}

	if raw, ok := lookupSetting(settings, "ratelimit", "rate_limit", "rate-limit"); ok {
		val, err := cast.ToIntE(raw)
		if err != nil {
			return fmt.Errorf("rateLimit: %w", err)
		}
		cfg.RateLimit = val
	}

	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.Duration = dur
	}

	if raw, ok := lookupSetting(settings, "numrequests", "num_requests", "num-requests"); ok {
		val, err := cast.ToUint64E(raw)
		if err != nil {
			return fmt.Errorf("numRequests: %w", err)
		}
		cfg.NumRequests = &val
	}

	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := cast.ToStringE(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		cfg.Seed = val
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "retries"); ok {
		val, err := cast.ToIntE(raw)
		if err != nil {
			return fmt.Errorf("retries: %w", err)
		}
		cfg.Retries = val
	}

	if raw, ok := lookupSetting(settings, "arrivalmodel", "arrival_model", "arrival-model"); ok {
		val, err := cast.ToStringE(raw)
		if err != nil {
			return fmt.Errorf("arrivalModel: %w", err)
		}
		if val != "" {
			cfg.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
		}
	}

	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := cast.ToBoolE(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		cfg.Insecure = val
	}

	if raw, ok := lookupSetting(settings, "loglevel", "log_level", "log-level"); ok {
		val, err := cast.ToStringE(raw)
		if err != nil {
			return fmt.Errorf("logLevel: %w", err)
		}
		if val != "" {
			cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
		}
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	switch cfg.Engine {
	case EngineSimple:
		if raw, ok := lookupSetting(settings, "simple"); ok {
			if err := applySimpleSettings(&cfg.Simple, raw); err != nil {
				return fmt.Errorf("simple: %w", err)
			}
		}
	case EngineS3:
		if raw, ok := lookupSetting(settings, "s3"); ok {
			if err := applyS3Settings(&cfg.S3, raw); err != nil {
				return fmt.Errorf("s3: %w", err)
			}
		}
	}

	return nil
}

func applyTracingSettings(tc *TracingConfig, value any) error {
	settings, err := subSettings(value)
	if err != nil {
		return err
	}

	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := cast.ToStringE(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		tc.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := cast.ToStringE(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		tc.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := cast.ToStringE(raw)
		if err != nil {
			return fmt.Errorf("serviceName: %w", err)
		}
		tc.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := cast.ToFloat64E(raw)
		if err != nil {
			return fmt.Errorf("sampleRate: %w", err)
		}
		tc.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := cast.ToBoolE(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		tc.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := cast.ToBoolE(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		tc.Propagate = val
	}
	return nil
}

func applySimpleSettings(sc *SimpleConfig, value any) error {
	settings, err := subSettings(value)
	if err != nil {
		return err
	}

	if raw, ok := lookupSetting(settings, "method"); ok {
		val, err := cast.ToStringE(raw)
		if err != nil {
			return fmt.Errorf("method: %w", err)
		}
		if val != "" {
			sc.Method = val
		}
	}
	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := cast.ToStringMapStringE(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if sc.Headers == nil {
			sc.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			sc.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}
	if raw, ok := lookupSetting(settings, "body"); ok {
		val, err := cast.ToStringE(raw)
		if err != nil {
			return fmt.Errorf("body: %w", err)
		}
		sc.Body = val
	}
	if raw, ok := lookupSetting(settings, "bodyfromfile", "body_from_file", "body-from-file", "body_file"); ok {
		val, err := cast.ToStringE(raw)
		if err != nil {
			return fmt.Errorf("bodyFromFile: %w", err)
		}
		sc.BodyFile = val
	}
	return nil
}

func applyS3Settings(sc *S3Config, value any) error {
	settings, err := subSettings(value)
	if err != nil {
		return err
	}

	if raw, ok := lookupSetting(settings, "bucket"); ok {
		val, err := cast.ToStringE(raw)
		if err != nil {
			return fmt.Errorf("bucket: %w", err)
		}
		sc.Bucket = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "objectsize", "object_size", "object-size"); ok {
		size, err := asByteSize(raw)
		if err != nil {
			return fmt.Errorf("objectSize: %w", err)
		}
		sc.ObjectSize = size
	}
	if raw, ok := lookupSetting(settings, "objprefix", "obj_prefix", "obj-prefix"); ok {
		val, err := cast.ToStringE(raw)
		if err != nil {
			return fmt.Errorf("objPrefix: %w", err)
		}
		sc.ObjPrefix = val
	}
	if raw, ok := lookupSetting(settings, "trafficpattern", "traffic_pattern", "traffic-pattern"); ok {
		val, err := cast.ToStringE(raw)
		if err != nil {
			return fmt.Errorf("trafficPattern: %w", err)
		}
		if val != "" {
			sc.TrafficPattern = TrafficPattern(strings.ToLower(strings.TrimSpace(val)))
		}
	}
	if raw, ok := lookupSetting(settings, "folderdepth", "folder_depth", "folder-depth"); ok {
		val, err := cast.ToIntE(raw)
		if err != nil {
			return fmt.Errorf("folderDepth: %w", err)
		}
		sc.FolderDepth = val
	}
	if raw, ok := lookupSetting(settings, "numobjsperprefixfolder", "num_objs_per_prefix_folder", "num-objs-per-prefix-folder"); ok {
		val, err := cast.ToIntE(raw)
		if err != nil {
			return fmt.Errorf("numObjsPerPrefixFolder: %w", err)
		}
		sc.ObjsPerFolder = val
	}
	if raw, ok := lookupSetting(settings, "folderbranches", "folder_branches", "folder-branches"); ok {
		val, err := cast.ToIntE(raw)
		if err != nil {
			return fmt.Errorf("folderBranches: %w", err)
		}
		sc.FolderBranches = val
	}
	if raw, ok := lookupSetting(settings, "checksumalgorithm", "checksum_algorithm", "checksum-algorithm"); ok {
		val, err := cast.ToStringE(raw)
		if err != nil {
			return fmt.Errorf("checksumAlgorithm: %w", err)
		}
		algo, err := ParseChecksumAlgorithm(val)
		if err != nil {
			return err
		}
		sc.ChecksumAlgorithm = algo
	}
	return nil
}

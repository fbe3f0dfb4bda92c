package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/inhies/go-bytesize"
	"github.com/spf13/cast"
)

// lookupSetting returns the value stored under the first key present.
// viper lower-cases file keys, so only the lower-case form is checked.
func lookupSetting(settings map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if val, ok := settings[strings.ToLower(key)]; ok {
			return val, true
		}
	}
	return nil, false
}

// subSettings reads a nested section of the config file.
func subSettings(value any) (map[string]any, error) {
	section, err := cast.ToStringMapE(value)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(section))
	for k, v := range section {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out, nil
}

// asDuration reads a duration from a config file. Bare numbers are seconds,
// unlike cast.ToDuration which treats them as nanoseconds.
func asDuration(value any) (time.Duration, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		return parseDurationArg(v)
	}
	secs, err := cast.ToInt64E(value)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// asByteSize reads an object size: a byte count or a string like "64KB".
func asByteSize(value any) (int64, error) {
	if s, ok := value.(string); ok {
		return parseByteSize(s)
	}
	return cast.ToInt64E(value)
}

// parseDurationArg accepts whole seconds ("30") or a Go duration ("1m30s").
func parseDurationArg(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseUint(s, 10, 63); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// parseByteSize accepts a plain byte count ("4096") or a size with a binary
// unit suffix ("64KB", "1MB").
func parseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	size, err := bytesize.Parse(s)
	if err != nil {
		return 0, err
	}
	return int64(size), nil
}

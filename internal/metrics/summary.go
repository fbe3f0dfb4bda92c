package metrics

import (
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
)

// RunInfo describes the run a Summary reports on.
type RunInfo struct {
	ID          string
	Engine      string
	Target      string
	Threads     int
	Connections int
	Seed        string
	Trigger     string
	Elapsed     time.Duration
}

// NewRunID returns a fresh, time-ordered run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// KindSummary reports one non-success outcome kind.
type KindSummary struct {
	Kind   Kind    `json:"kind"`
	Count  int64   `json:"count"`
	MinMs  float64 `json:"min_ms"`
	MeanMs float64 `json:"mean_ms"`
	MaxMs  float64 `json:"max_ms"`
}

// Summary is the final report of a run. Its JSON form is the stable schema of
// the json output format.
type Summary struct {
	RunID       string `json:"run_id"`
	Engine      string `json:"engine"`
	Target      string `json:"target"`
	Threads     int    `json:"threads"`
	Connections int    `json:"connections"`
	Seed        string `json:"seed"`
	Trigger     string `json:"completion_trigger"`

	Total             int64 `json:"total_requests"`
	Successes         int64 `json:"successes"`
	Failures          int64 `json:"failures"`
	FailedConnections int64 `json:"failed_connections"`
	TransportErrors   int64 `json:"transport_errors"`

	ErrorsByKind    []KindSummary    `json:"errors_by_kind,omitempty"`
	StatusCodes     []StatusBucket   `json:"failures_by_status,omitempty"`
	TransportCauses map[string]int64 `json:"transport_error_causes,omitempty"`

	Duration         time.Duration `json:"-"`
	DurationMs       float64       `json:"duration_ms"`
	RequestsPerSec   float64       `json:"requests_per_sec"`
	BytesWritten     int64         `json:"bytes_written"`
	BytesRead        int64         `json:"bytes_read"`
	WriteBytesPerSec float64       `json:"write_bytes_per_sec"`
	ReadBytesPerSec  float64       `json:"read_bytes_per_sec"`

	LatencyPrecision float64      `json:"latency_precision"`
	Latency          LatencyStats `json:"latency"`
	TTFB             LatencyStats `json:"ttfb"`
}

// Summarize builds the report for a finished run from its merged aggregate.
func Summarize(info RunInfo, a *Aggregate) Summary {
	if a == nil {
		a = NewAggregate()
	}

	s := Summary{
		RunID:             info.ID,
		Engine:            info.Engine,
		Target:            info.Target,
		Threads:           info.Threads,
		Connections:       info.Connections,
		Seed:              info.Seed,
		Trigger:           info.Trigger,
		Total:             a.Completed,
		Successes:         a.Successes,
		Failures:          a.Failures,
		FailedConnections: a.FailedConnections,
		TransportErrors:   a.TransportErrors,
		StatusCodes:       FlattenStatusCodes(a.statusCodes),
		Duration:          info.Elapsed,
		DurationMs:        millis(info.Elapsed),
		BytesWritten:      a.BytesWritten,
		BytesRead:         a.BytesRead,
		LatencyPrecision:  LatencyPrecision,
		Latency:           a.RTT(),
		TTFB:              a.TTFB(),
	}

	if secs := info.Elapsed.Seconds(); secs > 0 {
		s.RequestsPerSec = float64(a.Completed) / secs
		s.WriteBytesPerSec = float64(a.BytesWritten) / secs
		s.ReadBytesPerSec = float64(a.BytesRead) / secs
	}

	for kind, ks := range a.kinds {
		if kind == KindSuccess {
			continue
		}
		s.ErrorsByKind = append(s.ErrorsByKind, KindSummary{
			Kind:   kind,
			Count:  ks.Count,
			MinMs:  millis(ks.Min),
			MeanMs: millis(ks.Mean()),
			MaxMs:  millis(ks.Max),
		})
	}
	if a.TransportErrors > 0 {
		s.ErrorsByKind = append(s.ErrorsByKind, KindSummary{Kind: KindTransport, Count: a.TransportErrors})
		s.TransportCauses = a.TransportErrorsByCause()
	}
	sort.Slice(s.ErrorsByKind, func(i, j int) bool {
		if s.ErrorsByKind[i].Count == s.ErrorsByKind[j].Count {
			return s.ErrorsByKind[i].Kind < s.ErrorsByKind[j].Kind
		}
		return s.ErrorsByKind[i].Count > s.ErrorsByKind[j].Count
	})
	return s
}

package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// LatencyPrecision is the worst-case relative error of reported percentiles.
const LatencyPrecision = 0.001

// LatencyStats summarizes one latency distribution.
type LatencyStats struct {
	Count int64         `json:"count"`
	Min   time.Duration `json:"-"`
	Mean  time.Duration `json:"-"`
	Max   time.Duration `json:"-"`
	P50   time.Duration `json:"-"`
	P90   time.Duration `json:"-"`
	P95   time.Duration `json:"-"`
	P99   time.Duration `json:"-"`
	P999  time.Duration `json:"-"`
	P9999 time.Duration `json:"-"`

	// JSON-friendly millisecond fields.
	MinMs   float64 `json:"min_ms"`
	MeanMs  float64 `json:"mean_ms"`
	MaxMs   float64 `json:"max_ms"`
	P50Ms   float64 `json:"p50_ms"`
	P90Ms   float64 `json:"p90_ms"`
	P95Ms   float64 `json:"p95_ms"`
	P99Ms   float64 `json:"p99_ms"`
	P999Ms  float64 `json:"p99_9_ms"`
	P9999Ms float64 `json:"p99_99_ms"`
}

func latencyStats(h *hdrhistogram.Histogram, totals KindStats) LatencyStats {
	stats := LatencyStats{
		Count: totals.Count,
		Min:   totals.Min,
		Mean:  totals.Mean(),
		Max:   totals.Max,
	}

	if h.TotalCount() > 0 {
		stats.P50 = quantile(h, 50)
		stats.P90 = quantile(h, 90)
		stats.P95 = quantile(h, 95)
		stats.P99 = quantile(h, 99)
		stats.P999 = quantile(h, 99.9)
		stats.P9999 = quantile(h, 99.99)
	}

	stats.MinMs = millis(stats.Min)
	stats.MeanMs = millis(stats.Mean)
	stats.MaxMs = millis(stats.Max)
	stats.P50Ms = millis(stats.P50)
	stats.P90Ms = millis(stats.P90)
	stats.P95Ms = millis(stats.P95)
	stats.P99Ms = millis(stats.P99)
	stats.P999Ms = millis(stats.P999)
	stats.P9999Ms = millis(stats.P9999)
	return stats
}

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	return time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

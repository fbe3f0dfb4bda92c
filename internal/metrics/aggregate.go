package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	lowestTrackableMicros  = 1
	highestTrackableMicros = 3_600_000_000
	significantFigures     = 3
)

// Record is the outcome of one completed request.
type Record struct {
	Latency      time.Duration
	TTFB         time.Duration
	Kind         Kind
	StatusCode   int
	BytesWritten int64
	BytesRead    int64
}

// KindStats accumulates latency totals for one outcome kind.
type KindStats struct {
	Count int64
	Sum   time.Duration
	Min   time.Duration
	Max   time.Duration
}

func (k *KindStats) add(latency time.Duration) {
	if k.Count == 0 || latency < k.Min {
		k.Min = latency
	}
	if latency > k.Max {
		k.Max = latency
	}
	k.Count++
	k.Sum += latency
}

func (k *KindStats) merge(other KindStats) {
	if other.Count == 0 {
		return
	}
	if k.Count == 0 || other.Min < k.Min {
		k.Min = other.Min
	}
	if other.Max > k.Max {
		k.Max = other.Max
	}
	k.Count += other.Count
	k.Sum += other.Sum
}

// Mean returns the average latency for the kind.
func (k KindStats) Mean() time.Duration {
	if k.Count == 0 {
		return 0
	}
	return time.Duration(int64(k.Sum) / k.Count)
}

// Aggregate holds running statistics for a set of requests. It is not safe
// for concurrent use; callers guard it or keep it goroutine-local and combine
// instances with Merge.
type Aggregate struct {
	Completed         int64
	Successes         int64
	Failures          int64
	TransportErrors   int64
	FailedConnections int64
	BytesWritten      int64
	BytesRead         int64

	kinds            map[Kind]*KindStats
	statusCodes      map[int]int64
	transportByCause map[string]int64
	rtt              *hdrhistogram.Histogram
	ttfb             *hdrhistogram.Histogram
	rttStats         KindStats
	ttfbStats        KindStats
}

// NewAggregate returns an empty aggregate tracking latencies from 1µs to 1h
// with 3 significant figures.
func NewAggregate() *Aggregate {
	return &Aggregate{
		kinds:            make(map[Kind]*KindStats),
		statusCodes:      make(map[int]int64),
		transportByCause: make(map[string]int64),
		rtt:              hdrhistogram.New(lowestTrackableMicros, highestTrackableMicros, significantFigures),
		ttfb:             hdrhistogram.New(lowestTrackableMicros, highestTrackableMicros, significantFigures),
	}
}

// Add folds a completed request into the aggregate.
func (a *Aggregate) Add(r Record) {
	a.Completed++
	if r.Kind == KindSuccess {
		a.Successes++
	} else {
		a.Failures++
		if r.Kind == KindStatus && r.StatusCode != 0 {
			a.statusCodes[r.StatusCode]++
		}
	}
	a.BytesWritten += r.BytesWritten
	a.BytesRead += r.BytesRead

	ks, ok := a.kinds[r.Kind]
	if !ok {
		ks = &KindStats{}
		a.kinds[r.Kind] = ks
	}
	ks.add(r.Latency)

	a.rttStats.add(r.Latency)
	recordMicros(a.rtt, r.Latency)
	if r.TTFB > 0 {
		a.ttfbStats.add(r.TTFB)
		recordMicros(a.ttfb, r.TTFB)
	}
}

// AddTransportError counts one failed send attempt. The cause label groups
// errors in the report; see ClassifyTransportError.
func (a *Aggregate) AddTransportError(cause string) {
	a.TransportErrors++
	if cause == "" {
		cause = "Unknown error"
	}
	a.transportByCause[cause]++
}

// AddFailedConnection counts one connection that stopped on an unrecoverable
// error.
func (a *Aggregate) AddFailedConnection() {
	a.FailedConnections++
}

// Merge folds other into a. Merging is associative and commutative.
func (a *Aggregate) Merge(other *Aggregate) {
	if other == nil {
		return
	}
	a.Completed += other.Completed
	a.Successes += other.Successes
	a.Failures += other.Failures
	a.TransportErrors += other.TransportErrors
	a.FailedConnections += other.FailedConnections
	a.BytesWritten += other.BytesWritten
	a.BytesRead += other.BytesRead

	for kind, ks := range other.kinds {
		mine, ok := a.kinds[kind]
		if !ok {
			mine = &KindStats{}
			a.kinds[kind] = mine
		}
		mine.merge(*ks)
	}
	for code, n := range other.statusCodes {
		a.statusCodes[code] += n
	}
	for cause, n := range other.transportByCause {
		a.transportByCause[cause] += n
	}
	a.rttStats.merge(other.rttStats)
	a.ttfbStats.merge(other.ttfbStats)
	a.rtt.Merge(other.rtt)
	a.ttfb.Merge(other.ttfb)
}

// Kinds returns a copy of the per-kind statistics.
func (a *Aggregate) Kinds() map[Kind]KindStats {
	out := make(map[Kind]KindStats, len(a.kinds))
	for kind, ks := range a.kinds {
		out[kind] = *ks
	}
	return out
}

// StatusCodes returns a copy of the failure counts by HTTP status code.
func (a *Aggregate) StatusCodes() map[int]int64 {
	out := make(map[int]int64, len(a.statusCodes))
	for code, n := range a.statusCodes {
		out[code] = n
	}
	return out
}

// TransportErrorsByCause returns a copy of the transport error counts keyed by
// cause label.
func (a *Aggregate) TransportErrorsByCause() map[string]int64 {
	out := make(map[string]int64, len(a.transportByCause))
	for cause, n := range a.transportByCause {
		out[cause] = n
	}
	return out
}

// RTT returns latency statistics for full request round trips.
func (a *Aggregate) RTT() LatencyStats {
	return latencyStats(a.rtt, a.rttStats)
}

// TTFB returns latency statistics for time to first response byte.
func (a *Aggregate) TTFB() LatencyStats {
	return latencyStats(a.ttfb, a.ttfbStats)
}

func recordMicros(h *hdrhistogram.Histogram, d time.Duration) {
	us := d.Microseconds()
	if us < h.LowestTrackableValue() {
		us = h.LowestTrackableValue()
	}
	if us > h.HighestTrackableValue() {
		us = h.HighestTrackableValue()
	}
	_ = h.RecordValue(us)
}

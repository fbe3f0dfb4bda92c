// Package metrics aggregates per-request results for a load run.
//
// Every connection folds each completed request into an [Aggregate] as soon
// as the request finishes, so memory stays constant no matter how long a run
// lasts. Aggregates are combined with [Aggregate.Merge], which is associative
// and commutative, and the merged result is turned into a [Summary] for the
// report:
//
//	agg := metrics.NewAggregate()
//	agg.Add(metrics.Record{Latency: rtt, TTFB: ttfb, Kind: metrics.KindSuccess})
//	total.Merge(agg)
//	summary := metrics.Summarize(info, total)
//
// # Latency
//
// Round-trip and time-to-first-byte latencies are kept in HDR histograms of
// microseconds from 1µs to 1h with 3 significant figures, so every reported
// percentile is within [LatencyPrecision] of the exact value.
//
// # Live counters
//
// [Live] is a set of atomic counters each connection updates after a request.
// The progress reporter reads them once per second with [Sum].
package metrics

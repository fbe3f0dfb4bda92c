package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/inhies/go-bytesize"

	"github.com/torosent/loaded/internal/metrics"
)

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, s metrics.Summary) {
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	fmt.Fprintf(w, "Run ID:            %s\n", s.RunID)
	fmt.Fprintf(w, "Engine:            %s\n", s.Engine)
	fmt.Fprintf(w, "Target:            %s\n", s.Target)
	fmt.Fprintf(w, "Threads:           %d\n", s.Threads)
	fmt.Fprintf(w, "Connections:       %d\n", s.Connections)
	fmt.Fprintf(w, "Seed:              %s\n", s.Seed)
	fmt.Fprintf(w, "Stopped by:        %s\n", s.Trigger)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total Requests:    %d\n", s.Total)
	fmt.Fprintf(w, "Successful:        %d\n", s.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", s.Failures)
	fmt.Fprintf(w, "Transport Errors:  %d\n", s.TransportErrors)
	fmt.Fprintf(w, "Failed Conns:      %d\n", s.FailedConnections)
	fmt.Fprintf(w, "Duration:          %s\n", s.Duration)
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", s.RequestsPerSec)

	fmt.Fprintln(w, "\nThroughput:")
	fmt.Fprintf(w, "  Written:         %s (%s/s)\n", humanBytes(float64(s.BytesWritten)), humanBytes(s.WriteBytesPerSec))
	fmt.Fprintf(w, "  Read:            %s (%s/s)\n", humanBytes(float64(s.BytesRead)), humanBytes(s.ReadBytesPerSec))

	fmt.Fprintf(w, "\nLatency (precision %.1f%%):\n", s.LatencyPrecision*100)
	fmt.Fprintf(w, "  %-7s %12s %12s\n", "", "RTT", "TTFB")
	for _, row := range latencyRows(s.Latency, s.TTFB) {
		fmt.Fprintf(w, "  %-7s %12s %12s\n", row.name, row.rtt, row.ttfb)
	}

	if len(s.ErrorsByKind) > 0 {
		fmt.Fprintln(w, "\nErrors by Kind:")
		for _, k := range s.ErrorsByKind {
			if k.Kind == metrics.KindTransport {
				fmt.Fprintf(w, "  %s: %d\n", k.Kind.Label(), k.Count)
				continue
			}
			fmt.Fprintf(w, "  %s: %d (min %.2fms, mean %.2fms, max %.2fms)\n",
				k.Kind.Label(), k.Count, k.MinMs, k.MeanMs, k.MaxMs)
		}
	}

	if len(s.StatusCodes) > 0 {
		fmt.Fprintln(w, "\nFailures by Status:")
		writeStatusBuckets(w, s.StatusCodes, "  ")
	}

	if len(s.TransportCauses) > 0 {
		fmt.Fprintln(w, "\nTransport Error Causes:")
		causes := make([]string, 0, len(s.TransportCauses))
		for cause := range s.TransportCauses {
			causes = append(causes, cause)
		}
		sort.Slice(causes, func(i, j int) bool {
			ci, cj := s.TransportCauses[causes[i]], s.TransportCauses[causes[j]]
			if ci == cj {
				return causes[i] < causes[j]
			}
			return ci > cj
		})
		for _, cause := range causes {
			fmt.Fprintf(w, "  %s: %d\n", cause, s.TransportCauses[cause])
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, s metrics.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

type latencyRow struct {
	name      string
	rtt, ttfb string
}

func latencyRows(rtt, ttfb metrics.LatencyStats) []latencyRow {
	pick := []struct {
		name string
		get  func(metrics.LatencyStats) float64
	}{
		{"Min", func(l metrics.LatencyStats) float64 { return l.MinMs }},
		{"Mean", func(l metrics.LatencyStats) float64 { return l.MeanMs }},
		{"P50", func(l metrics.LatencyStats) float64 { return l.P50Ms }},
		{"P90", func(l metrics.LatencyStats) float64 { return l.P90Ms }},
		{"P95", func(l metrics.LatencyStats) float64 { return l.P95Ms }},
		{"P99", func(l metrics.LatencyStats) float64 { return l.P99Ms }},
		{"P99.9", func(l metrics.LatencyStats) float64 { return l.P999Ms }},
		{"P99.99", func(l metrics.LatencyStats) float64 { return l.P9999Ms }},
		{"Max", func(l metrics.LatencyStats) float64 { return l.MaxMs }},
	}
	rows := make([]latencyRow, 0, len(pick))
	for _, p := range pick {
		rows = append(rows, latencyRow{
			name: p.name,
			rtt:  fmt.Sprintf("%.3fms", p.get(rtt)),
			ttfb: fmt.Sprintf("%.3fms", p.get(ttfb)),
		})
	}
	return rows
}

func writeStatusBuckets(w io.Writer, buckets []metrics.StatusBucket, indent string) {
	if len(buckets) == 0 {
		fmt.Fprintf(w, "%sNone\n", indent)
		return
	}
	for _, row := range buckets {
		fmt.Fprintf(w, "%sHTTP %s: %d\n", indent, row.Label(), row.Count)
	}
}

func humanBytes(n float64) string {
	if n < 0 {
		n = 0
	}
	return bytesize.New(n).String()
}

package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/loaded/internal/metrics"
)

// ProgressReporter displays real-time throughput while a run is in progress.
type ProgressReporter struct {
	source   func() metrics.Counters
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
	now      func() time.Time
}

// NewProgressReporter creates a progress reporter that samples the live
// counters at the given interval.
func NewProgressReporter(lives []*metrics.Live, interval time.Duration, writer io.Writer) *ProgressReporter {
	return newProgressReporter(func() metrics.Counters { return metrics.Sum(lives) }, interval, writer)
}

func newProgressReporter(source func() metrics.Counters, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		source:   source,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
		now:      time.Now,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and ends the progress line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)

	prev := p.source()
	last := p.now()
	wrote := false
	for {
		select {
		case <-p.ticker.C:
			cur := p.source()
			now := p.now()
			fmt.Fprint(p.writer, "\r"+formatProgress(cur.Sub(prev), now.Sub(last)))
			prev, last, wrote = cur, now, true
		case <-p.done:
			if wrote {
				fmt.Fprintln(p.writer)
			}
			return
		}
	}
}

// formatProgress renders one progress line for the delta observed over
// elapsed.
func formatProgress(delta metrics.Counters, elapsed time.Duration) string {
	secs := elapsed.Seconds()
	if secs <= 0 {
		secs = 1
	}
	return fmt.Sprintf("%.0f Req/s, Write/s: %s, Read/s: %s",
		float64(delta.Requests)/secs,
		humanBytes(float64(delta.BytesWritten)/secs),
		humanBytes(float64(delta.BytesRead)/secs),
	)
}

package runner

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/loaded/internal/metrics"
)

// WorkerResult is what a worker hands back once all its connections ended.
type WorkerResult struct {
	ID                int
	Stats             *metrics.Aggregate
	FailedConnections int
	Connections       []ConnectionResult
	Start             time.Time
	End               time.Time
}

// Worker owns a fixed set of connections and runs each on its own goroutine.
// Connections fold their records into the worker's aggregate, so one set of
// histograms serves every connection of the worker. The lock is held for one
// Add and is only shared by the connections of this worker.
type Worker struct {
	ID int

	conns []*Connection
	log   zerolog.Logger

	mu    sync.Mutex
	stats *metrics.Aggregate
}

func newWorker(id int, conns []*Connection, log zerolog.Logger) *Worker {
	return &Worker{
		ID:    id,
		conns: conns,
		log:   log,
		stats: metrics.NewAggregate(),
	}
}

// Record folds one request into the worker aggregate.
func (w *Worker) Record(rec metrics.Record) {
	w.mu.Lock()
	w.stats.Add(rec)
	w.mu.Unlock()
}

// TransportError counts one failed send attempt.
func (w *Worker) TransportError(cause string) {
	w.mu.Lock()
	w.stats.AddTransportError(cause)
	w.mu.Unlock()
}

// Start runs every connection and returns a channel that receives the
// worker's result exactly once.
func (w *Worker) Start(token *Token) <-chan WorkerResult {
	done := make(chan WorkerResult, 1)

	go func() {
		results := make([]ConnectionResult, len(w.conns))
		var g errgroup.Group
		for i, conn := range w.conns {
			g.Go(func() error {
				results[i] = conn.Run(token, w)
				return nil
			})
		}
		_ = g.Wait()

		res := WorkerResult{ID: w.ID, Connections: results}
		for _, cr := range results {
			if cr.Failed {
				res.FailedConnections++
				w.stats.AddFailedConnection()
			}
			if res.Start.IsZero() || cr.Start.Before(res.Start) {
				res.Start = cr.Start
			}
			if cr.End.After(res.End) {
				res.End = cr.End
			}
		}
		res.Stats = w.stats
		w.log.Debug().
			Int("connections", len(w.conns)).
			Int("failed", res.FailedConnections).
			Int64("requests", w.stats.Completed).
			Msg("worker finished")
		done <- res
	}()

	return done
}

package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/torosent/loaded/internal/config"
	"github.com/torosent/loaded/internal/engine"
	"github.com/torosent/loaded/internal/httpclient"
	"github.com/torosent/loaded/internal/metrics"
	"github.com/torosent/loaded/internal/plan"
)

// Result captures the outcome of a whole run.
type Result struct {
	Stats       *metrics.Aggregate
	Elapsed     time.Duration
	Trigger     Trigger
	Connections int
	Threads     int
	Workers     []WorkerResult
}

// Runner executes one load run: it plans quotas, builds a connection per
// quota, spreads the connections across workers and merges their statistics.
type Runner struct {
	opt        Options
	quotas     plan.QuotaPlan
	assignment plan.Assignment
	live       []*metrics.Live
}

// New validates the shape of the run and computes its plan. No network
// activity happens until Run.
func New(opt Options) (*Runner, error) {
	if opt.Config == nil {
		return nil, &SetupError{Op: "config", Err: fmt.Errorf("config cannot be nil")}
	}
	opt.normalize()
	cfg := opt.Config

	quotas, err := plan.Compute(cfg.NumRequests, cfg.Connections, plan.HashSeed(cfg.Seed))
	if err != nil {
		return nil, &SetupError{Op: "plan", Err: err}
	}
	assignment, err := plan.Assign(cfg.Connections, cfg.Threads)
	if err != nil {
		return nil, &SetupError{Op: "plan", Err: err}
	}

	if cfg.Engine == config.EngineS3 {
		warnKeyReuse(cfg, opt.Logger)
	}

	live := make([]*metrics.Live, cfg.Connections)
	for i := range live {
		live[i] = &metrics.Live{}
	}

	return &Runner{opt: opt, quotas: quotas, assignment: assignment, live: live}, nil
}

// Live returns the per-connection counters that are updated while the run
// is in progress.
func (r *Runner) Live() []*metrics.Live {
	return r.live
}

// Run executes the load run. It returns a *SetupError when an engine cannot
// be set up or the target is unreachable; in that case no request was sent.
// Cancelling ctx stops the run the same way an expired duration does: no new
// requests start, in-flight requests complete and their results are kept.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	cfg := r.opt.Config
	log := r.opt.Logger

	conns, err := r.buildConnections(ctx)
	if err != nil {
		return Result{}, err
	}

	if err := httpclient.Probe(ctx, cfg.TargetURL, cfg.Timeout); err != nil {
		for _, c := range conns {
			_ = c.engine.Cleanup()
		}
		return Result{}, &SetupError{Op: "preflight", Err: err}
	}

	token := NewToken()
	if cfg.Duration > 0 {
		timer := time.AfterFunc(cfg.Duration, func() {
			if token.Set(TriggerDuration) {
				log.Debug().Dur("duration", cfg.Duration).Msg("duration elapsed")
			}
		})
		defer timer.Stop()
	}
	go func() {
		select {
		case <-ctx.Done():
			if token.Set(TriggerSignal) {
				log.Debug().Msg("run interrupted")
			}
		case <-token.Done():
		}
	}()

	log.Debug().
		Int("connections", cfg.Connections).
		Int("threads", len(r.assignment.Workers)).
		Str("engine", string(cfg.Engine)).
		Msg("starting workers")
	if idle := len(r.assignment.Workers) - cfg.Connections; idle > 0 {
		log.Debug().Int("idle", idle).Msg("more threads than connections")
	}

	pending := make([]<-chan WorkerResult, len(r.assignment.Workers))
	for id, ids := range r.assignment.Workers {
		owned := make([]*Connection, len(ids))
		for i, idx := range ids {
			owned[i] = conns[idx]
		}
		w := newWorker(id, owned, log.With().Int("worker", id).Logger())
		pending[id] = w.Start(token)
	}

	res := Result{
		Stats:       metrics.NewAggregate(),
		Connections: cfg.Connections,
		Threads:     len(r.assignment.Workers),
		Workers:     make([]WorkerResult, 0, len(pending)),
	}
	for _, ch := range pending {
		wr := <-ch
		res.Workers = append(res.Workers, wr)
	}
	// Every quota is used up or every connection failed.
	token.Set(TriggerQuota)
	res.Trigger = token.Trigger()

	var start, end time.Time
	for _, wr := range res.Workers {
		res.Stats.Merge(wr.Stats)
		if start.IsZero() || (!wr.Start.IsZero() && wr.Start.Before(start)) {
			start = wr.Start
		}
		if wr.End.After(end) {
			end = wr.End
		}
	}
	if !start.IsZero() && end.After(start) {
		res.Elapsed = end.Sub(start)
	}

	log.Debug().
		Str("trigger", string(res.Trigger)).
		Int64("requests", res.Stats.Completed).
		Dur("elapsed", res.Elapsed).
		Msg("run finished")
	return res, nil
}

func (r *Runner) buildConnections(ctx context.Context) ([]*Connection, error) {
	cfg := r.opt.Config
	count := cfg.Connections

	var rps float64
	if cfg.RateLimit > 0 {
		rps = float64(cfg.RateLimit) / float64(count)
	}
	tracer := r.opt.Tracing.Tracer()
	propagate := r.opt.Tracing.ShouldPropagate()

	conns := make([]*Connection, 0, count)
	cleanup := func() {
		for _, c := range conns {
			_ = c.engine.Cleanup()
		}
	}

	for i := 0; i < count; i++ {
		subSeed := r.quotas.SubSeeds[i]
		eng, err := r.opt.NewEngine(engine.Params{Config: cfg, Index: i, Count: count, SubSeed: subSeed})
		if err != nil {
			cleanup()
			return nil, &SetupError{Op: "engine", Err: err}
		}
		if err := eng.Setup(ctx); err != nil {
			cleanup()
			return nil, &SetupError{Op: "engine " + eng.Name(), Err: err}
		}

		conns = append(conns, &Connection{
			Index:      i,
			quota:      r.quotas.Quotas[i],
			engine:     eng,
			client:     r.opt.NewClient(httpclient.Options{Timeout: cfg.Timeout, Insecure: cfg.Insecure}),
			arrival:    newArrivalController(arrivalModel(cfg), rps, subSeed, r.opt.LimiterFactory),
			retries:    cfg.Retries,
			newBackOff: r.opt.NewBackOff,
			live:       r.live[i],
			tracer:     tracer,
			propagate:  propagate,
			log:        r.opt.Logger.With().Int("connection", i).Logger(),
		})
	}
	return conns, nil
}

// warnKeyReuse flags bounded S3 runs that send more requests than the folder
// layout has distinct keys.
func warnKeyReuse(cfg *config.Config, log zerolog.Logger) {
	total, bounded := cfg.Total()
	if !bounded {
		return
	}
	capacity, ok := engine.NewKeySpace(cfg.S3).Capacity()
	if !ok || total <= capacity {
		return
	}
	log.Warn().
		Uint64("requests", total).
		Uint64("keys", capacity).
		Msg("more requests than distinct object keys, keys will be reused")
}

func arrivalModel(cfg *config.Config) config.ArrivalModel {
	if cfg.Arrival.Model == "" {
		return config.ArrivalModelUniform
	}
	return cfg.Arrival.Model
}

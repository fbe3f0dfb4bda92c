package runner

import (
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/loaded/internal/engine"
	"github.com/torosent/loaded/internal/metrics"
	"github.com/torosent/loaded/internal/plan"
)

// recorder receives the statistics of one connection. Worker implements it.
type recorder interface {
	Record(rec metrics.Record)
	TransportError(cause string)
}

// Connection drives one engine over one HTTP session, one request at a time.
type Connection struct {
	Index int

	quota      plan.Quota
	engine     engine.Engine
	client     *http.Client
	arrival    arrivalController
	retries    int
	newBackOff func() backoff.BackOff
	live       *metrics.Live
	tracer     trace.Tracer
	propagate  bool
	log        zerolog.Logger
}

// ConnectionResult describes how a connection ended.
type ConnectionResult struct {
	Index     int
	Requests  uint64
	Failed    bool
	Err       error
	Start     time.Time
	End       time.Time
	Cancelled bool
}

// Run loops until the token is set, the quota is used up or the connection
// fails. It never starts a request after observing the token.
func (c *Connection) Run(token *Token, rec recorder) (res ConnectionResult) {
	res = ConnectionResult{Index: c.Index, Start: time.Now()}
	defer func() {
		if err := c.engine.Cleanup(); err != nil {
			c.log.Warn().Err(err).Msg("engine cleanup failed")
		}
		c.client.CloseIdleConnections()
		res.End = time.Now()
	}()

	for {
		if token.IsSet() {
			res.Cancelled = true
			return res
		}
		if c.quota.Bounded && res.Requests >= c.quota.N {
			return res
		}

		if c.arrival != nil {
			if err := c.arrival.Wait(token.Context()); err != nil {
				res.Cancelled = true
				return res
			}
			if token.IsSet() {
				res.Cancelled = true
				return res
			}
		}

		spec, err := c.engine.Request(token.Context())
		if err != nil {
			return c.fail(res, err)
		}

		out, err := c.send(token, spec, rec.TransportError)
		if errors.Is(err, errStopped) {
			res.Cancelled = true
			return res
		}
		if err != nil {
			return c.fail(res, err)
		}

		written := spec.BytesToWrite()
		rec.Record(metrics.Record{
			Latency:      out.latency,
			TTFB:         out.ttfb,
			Kind:         out.outcome.Kind,
			StatusCode:   out.outcome.StatusCode,
			BytesWritten: written,
			BytesRead:    out.outcome.BytesRead,
		})
		c.live.Observe(written, out.outcome.BytesRead)
		res.Requests++

		if !out.outcome.Success() {
			c.log.Trace().
				Str("kind", string(out.outcome.Kind)).
				Int("status", out.outcome.StatusCode).
				Str("reason", out.outcome.Reason).
				Msg("request failed")
		}
	}
}

func (c *Connection) fail(res ConnectionResult, err error) ConnectionResult {
	res.Failed = true
	res.Err = err
	c.log.Warn().Err(err).Uint64("requests", res.Requests).Msg("connection failed")
	return res
}

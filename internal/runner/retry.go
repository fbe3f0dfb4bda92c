package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/torosent/loaded/internal/engine"
	"github.com/torosent/loaded/internal/httpclient"
	"github.com/torosent/loaded/internal/metrics"
	"github.com/torosent/loaded/internal/tracing"
)

// errStopped is returned by send when the run stopped during a backoff wait.
var errStopped = errors.New("run stopped")

// attempt is the result of one successful exchange.
type attempt struct {
	outcome engine.Outcome
	latency time.Duration
	ttfb    time.Duration
}

// send performs the exchange described by spec, retrying transport failures
// with exponential backoff. Every failed attempt is counted through
// onTransportError. It returns errStopped when the token was set while
// waiting to retry.
func (c *Connection) send(token *Token, spec engine.RequestSpec, onTransportError func(cause string)) (attempt, error) {
	tries := 0
	op := func() (attempt, error) {
		tries++
		res, err := c.exchange(spec)
		if err != nil {
			var buildErr *buildError
			if errors.As(err, &buildErr) {
				return attempt{}, backoff.Permanent(err)
			}
			onTransportError(metrics.ClassifyTransportError(err))
			return attempt{}, err
		}
		return res, nil
	}

	res, err := backoff.Retry(token.Context(), op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.retries)+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Debug().Err(err).Int("attempt", tries).Dur("backoff", next).Msg("retrying request")
		}),
	)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, context.Cause(token.Context())) {
		return attempt{}, errStopped
	}
	return attempt{}, fmt.Errorf("%s %s failed after %d attempts: %w", spec.Method, spec.URL, tries, err)
}

// buildError marks a request that could not be constructed. It is not retried.
type buildError struct{ err error }

func (e *buildError) Error() string { return "build request: " + e.err.Error() }
func (e *buildError) Unwrap() error { return e.err }

// exchange sends one attempt and lets the engine classify the response. The
// request context is independent of the run token so an in-flight exchange
// always completes or times out on its own.
func (c *Connection) exchange(spec engine.RequestSpec) (attempt, error) {
	ctx, span := tracing.StartRequestSpan(context.Background(), c.tracer, string(spec.Op), spec.Method, spec.URL)
	ctx, timing := httpclient.WithTiming(ctx)

	req, err := spec.Build(ctx)
	if err != nil {
		tracing.EndSpan(span, err)
		return attempt{}, &buildError{err: err}
	}
	if c.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		tracing.EndSpan(span, err)
		return attempt{}, err
	}
	outcome, err := c.engine.Response(resp)
	closeBody(resp)
	latency := time.Since(timing.Start())
	if err != nil {
		tracing.EndSpan(span, err)
		return attempt{}, err
	}

	var spanErr error
	if !outcome.Success() {
		spanErr = fmt.Errorf("%s: %s", outcome.Kind.Label(), outcome.Reason)
	}
	tracing.EndSpan(span, spanErr,
		attribute.Int("http.response.status_code", outcome.StatusCode),
		attribute.String("loaded.outcome", string(outcome.Kind)),
	)
	return attempt{outcome: outcome, latency: latency, ttfb: timing.TTFB()}, nil
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}

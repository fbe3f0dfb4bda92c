package runner

import (
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/torosent/loaded/internal/config"
	"github.com/torosent/loaded/internal/engine"
	"github.com/torosent/loaded/internal/httpclient"
	"github.com/torosent/loaded/internal/tracing"
)

// Options configure the Runner.
type Options struct {
	Config  *config.Config    // run configuration (required)
	Logger  zerolog.Logger    // structured logger; zero value discards
	Tracing *tracing.Provider // optional span provider

	// Test hooks. Nil means the production implementation.
	NewEngine      func(engine.Params) (engine.Engine, error)
	NewClient      func(httpclient.Options) *http.Client
	NewBackOff     func() backoff.BackOff
	LimiterFactory func(rps float64) *rate.Limiter
}

func (o *Options) normalize() {
	if o.NewEngine == nil {
		o.NewEngine = engine.New
	}
	if o.NewClient == nil {
		o.NewClient = httpclient.NewClient
	}
	if o.NewBackOff == nil {
		o.NewBackOff = defaultBackOff
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps float64) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst of one keeps each connection evenly paced.
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

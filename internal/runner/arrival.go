package runner

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/loaded/internal/config"
	"github.com/torosent/loaded/internal/plan"
)

type arrivalController interface {
	Wait(ctx context.Context) error
}

// newArrivalController paces one connection at rps requests per second. It
// returns nil when the run is not rate limited.
func newArrivalController(model config.ArrivalModel, rps float64, subSeed uint64, limiterFactory func(float64) *rate.Limiter) arrivalController {
	if rps <= 0 {
		return nil
	}

	switch model {
	case config.ArrivalModelPoisson:
		return &poissonArrival{rate: rps, sample: requestSampler(subSeed)}
	default:
		return &uniformArrival{limiter: limiterFactory(rps)}
	}
}

// requestSampler draws the n-th gap from the n-th request seed, so a gap
// depends only on the connection seed and the request number.
func requestSampler(subSeed uint64) func() float64 {
	var n uint64
	return func() float64 {
		seed := plan.RequestSeed(subSeed, n)
		n++
		return rand.New(rand.NewPCG(seed, ^seed)).ExpFloat64()
	}
}

// uniformArrival delegates pacing to a rate.Limiter (uniform spacing).
type uniformArrival struct {
	limiter *rate.Limiter
}

func (u *uniformArrival) Wait(ctx context.Context) error {
	if u == nil || u.limiter == nil {
		return nil
	}
	return u.limiter.Wait(ctx)
}

// poissonArrival samples exponential inter-arrival times to approximate a
// Poisson process. It belongs to a single connection and is not safe for
// concurrent use.
type poissonArrival struct {
	rate   float64
	sample func() float64
	next   time.Time
}

func (p *poissonArrival) Wait(ctx context.Context) error {
	now := time.Now()
	if p.next.IsZero() {
		p.next = now
	}
	delay := p.next.Sub(now)
	p.next = p.next.Add(p.nextDelay())
	if p.next.Before(now) {
		// Idle time spent inside a slow request is not banked.
		p.next = now
	}

	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *poissonArrival) nextDelay() time.Duration {
	if p.rate <= 0 || p.sample == nil {
		return 0
	}

	value := p.sample()
	delay := float64(time.Second) * value / p.rate
	if delay > math.MaxInt64 {
		delay = math.MaxInt64
	}
	return time.Duration(delay)
}

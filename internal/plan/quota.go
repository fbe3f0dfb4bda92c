// Package plan computes the static shape of a run: how many requests each
// connection owns, which worker drives which connection, and the seed each
// connection derives its randomness from. Everything here is a pure function
// of its inputs and is computed once before any worker starts.
package plan

import "fmt"

// Quota is the number of requests a single connection must complete.
// An unbounded quota runs until the run is cancelled.
type Quota struct {
	N       uint64
	Bounded bool
}

// Unbounded returns a quota without a request limit.
func Unbounded() Quota {
	return Quota{}
}

// Bounded returns a quota of exactly n requests.
func Bounded(n uint64) Quota {
	return Quota{N: n, Bounded: true}
}

func (q Quota) String() string {
	if !q.Bounded {
		return "unbounded"
	}
	return fmt.Sprintf("%d", q.N)
}

// QuotaPlan holds the per-connection quotas and sub-seeds, indexed by
// connection.
type QuotaPlan struct {
	Quotas   []Quota
	SubSeeds []uint64
}

// Connections returns the number of connections the plan covers.
func (p QuotaPlan) Connections() int {
	return len(p.Quotas)
}

// Total returns the sum of all bounded quotas and whether every quota is
// bounded.
func (p QuotaPlan) Total() (uint64, bool) {
	var total uint64
	for _, q := range p.Quotas {
		if !q.Bounded {
			return 0, false
		}
		total += q.N
	}
	return total, true
}

// Compute builds the quota plan for a run. When requests is nil every
// connection is unbounded. Otherwise the requests are spread so that the
// quotas sum to *requests and differ by at most one, with the remainder
// handed to the first connections.
func Compute(requests *uint64, connections int, seed uint64) (QuotaPlan, error) {
	if connections < 1 {
		return QuotaPlan{}, fmt.Errorf("connections must be >= 1, got %d", connections)
	}

	p := QuotaPlan{
		Quotas:   make([]Quota, connections),
		SubSeeds: make([]uint64, connections),
	}
	for i := range p.SubSeeds {
		p.SubSeeds[i] = SubSeed(seed, uint64(i))
	}

	if requests == nil {
		for i := range p.Quotas {
			p.Quotas[i] = Unbounded()
		}
		return p, nil
	}

	c := uint64(connections)
	base := *requests / c
	remainder := *requests % c
	for i := range p.Quotas {
		n := base
		if uint64(i) < remainder {
			n++
		}
		p.Quotas[i] = Bounded(n)
	}
	return p, nil
}

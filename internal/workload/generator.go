package workload

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"github.com/enesyesil/hostsim/internal/core"
)

type Range struct {
	Min, Max time.Duration
}

func (r Range) pick(rng *rand.Rand) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rng.Int64N(int64(r.Max-r.Min)+1))
}

// Generator produces random tasks: a uniform size class, a duration drawn
// from that class's range, a priority in [0, MaxPriority] and a preemptible
// flag with probability PreemptibleRatio.
type Generator struct {
	Count            int
	Rate             float64 // arrivals per second; 0 releases everything at once
	Burst            int
	Seed             uint64
	MaxPriority      int
	PreemptibleRatio float64
	Durations        map[core.SizeClass]Range
}

func DefaultGenerator() Generator {
	return Generator{
		Count:            200,
		Rate:             50,
		Burst:            1,
		Seed:             1,
		MaxPriority:      5,
		PreemptibleRatio: 0.5,
		Durations: map[core.SizeClass]Range{
			core.SizeShort:  {10 * time.Millisecond, 50 * time.Millisecond},
			core.SizeMedium: {50 * time.Millisecond, 200 * time.Millisecond},
			core.SizeLong:   {200 * time.Millisecond, 800 * time.Millisecond},
		},
	}
}

var sizes = []core.SizeClass{core.SizeShort, core.SizeMedium, core.SizeLong}

func (g Generator) rng() *rand.Rand {
	return rand.New(rand.NewPCG(g.Seed, g.Seed^0x9e3779b97f4a7c15))
}

func (g Generator) spec(rng *rand.Rand) TaskSpec {
	size := sizes[rng.IntN(len(sizes))]
	return TaskSpec{
		Size:        size,
		Priority:    rng.IntN(g.MaxPriority + 1),
		Duration:    g.Durations[size].pick(rng),
		Preemptible: rng.Float64() < g.PreemptibleRatio,
	}
}

// Scenario materializes Count tasks with evenly spaced arrivals at Rate.
// The same Seed always yields the same scenario.
func (g Generator) Scenario(name string) *Scenario {
	rng := g.rng()
	s := &Scenario{Name: name, Tasks: make([]TaskSpec, g.Count)}
	for i := range s.Tasks {
		ts := g.spec(rng)
		if g.Rate > 0 {
			ts.Arrival = time.Duration(math.Round(float64(time.Second) * float64(i) / g.Rate))
		}
		s.Tasks[i] = ts
	}
	return s
}

// Stream creates Count tasks live, paced by a token bucket, and hands each
// to sink. It stops early on ctx cancellation or the first sink error.
func (g Generator) Stream(ctx context.Context, sink func(*core.Task) error) error {
	limit := rate.Inf
	if g.Rate > 0 {
		limit = rate.Limit(g.Rate)
	}
	burst := g.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)

	rng := g.rng()
	for range g.Count {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		ts := g.spec(rng)
		if err := sink(core.NewTask(ts.Size, ts.Priority, ts.Duration, ts.Preemptible)); err != nil {
			return err
		}
	}
	return nil
}

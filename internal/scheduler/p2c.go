package scheduler

import (
	"math/rand/v2"

	"github.com/enesyesil/hostsim/internal/core"
)

// P2C samples D distinct hosts at random and keeps the least loaded of them.
// D = 2 is the classic power of two choices.
type P2C struct {
	D int
}

func (s *P2C) Name() string {
	if s.D <= 1 {
		return "p1"
	}
	if s.D == 2 {
		return "p2c"
	}
	return "pd"
}

func (s *P2C) MinHosts() int { return 1 }

func (s *P2C) Choose(_ *core.Task, hs []core.HostInfo) (*core.HostInfo, error) {
	n := len(hs)
	if n == 0 {
		return nil, ErrNoHosts
	}
	// a single sample ignores load
	if n == 1 || s.D <= 1 {
		return &hs[rand.IntN(n)], nil
	}

	d := min(s.D, n)
	best := -1
	for _, i := range rand.Perm(n)[:d] {
		if best == -1 {
			best = i
			continue
		}
		best = betterIdx(hs, best, i)
	}
	return &hs[best], nil
}

// betterIdx prefers less work left, then a shorter queue, then host order.
func betterIdx(hs []core.HostInfo, a, b int) int {
	ha, hb := hs[a], hs[b]
	if ha.WorkLeft != hb.WorkLeft {
		if ha.WorkLeft < hb.WorkLeft {
			return a
		}
		return b
	}
	if ha.QueueSize != hb.QueueSize {
		if ha.QueueSize < hb.QueueSize {
			return a
		}
		return b
	}
	return min(a, b)
}

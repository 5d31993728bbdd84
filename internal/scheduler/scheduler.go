package scheduler

import (
	"errors"
	"fmt"

	"github.com/enesyesil/hostsim/internal/core"
)

var (
	ErrNoHosts          = errors.New("scheduler: no hosts")
	ErrNotEnoughHosts   = errors.New("scheduler: not enough hosts for policy")
	ErrUnknownPolicy    = errors.New("scheduler: unknown policy")
	ErrUnknownSizeClass = errors.New("scheduler: unknown size class")
)

// Scheduler picks the destination host for a task. Implementations may
// assume hs is in host order and non-empty once MinHosts is satisfied.
type Scheduler interface {
	Name() string
	MinHosts() int
	Choose(t *core.Task, hs []core.HostInfo) (*core.HostInfo, error)
}

// New returns the scheduler implementing p.
func New(p core.Policy) (Scheduler, error) {
	switch p {
	case core.PolicyRoundRobin:
		return &RRScheduler{}, nil
	case core.PolicyShortestQueue:
		return &ShortestQueue{}, nil
	case core.PolicySITA:
		return &SITA{}, nil
	case core.PolicyLeastWorkLeft:
		return &LeastWorkLeft{}, nil
	case core.PolicyP2C:
		return &P2C{D: 2}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, p)
}

// argmin returns the first entry minimizing key.
func argmin[K int | int64](hs []core.HostInfo, key func(core.HostInfo) K) *core.HostInfo {
	if len(hs) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(hs); i++ {
		if key(hs[i]) < key(hs[best]) {
			best = i
		}
	}
	return &hs[best]
}

package scheduler

import (
	"sync/atomic"

	"github.com/enesyesil/hostsim/internal/core"
)

// RRScheduler cycles through hosts in order starting at host 0. The cursor
// advances exactly once per Choose, so concurrent callers never share a slot.
type RRScheduler struct {
	i atomic.Uint64
}

func (s *RRScheduler) Name() string { return "rr" }

func (s *RRScheduler) MinHosts() int { return 1 }

func (s *RRScheduler) Choose(_ *core.Task, hs []core.HostInfo) (*core.HostInfo, error) {
	if len(hs) == 0 {
		return nil, ErrNoHosts
	}
	idx := s.i.Add(1) - 1
	return &hs[idx%uint64(len(hs))], nil
}

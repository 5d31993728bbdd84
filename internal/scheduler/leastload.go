package scheduler

import "github.com/enesyesil/hostsim/internal/core"

// LeastWorkLeft picks the host with the least remaining work summed over its
// backlog and running task, the first one in host order on ties.
type LeastWorkLeft struct{}

func (s *LeastWorkLeft) Name() string { return "lwl" }

func (s *LeastWorkLeft) MinHosts() int { return 1 }

func (s *LeastWorkLeft) Choose(_ *core.Task, hs []core.HostInfo) (*core.HostInfo, error) {
	best := argmin(hs, func(h core.HostInfo) int64 { return int64(h.WorkLeft) })
	if best == nil {
		return nil, ErrNoHosts
	}
	return best, nil
}

package scheduler

import "github.com/enesyesil/hostsim/internal/core"

// ShortestQueue picks the host with the fewest queued plus running tasks,
// the first one in host order on ties.
type ShortestQueue struct{}

func (s *ShortestQueue) Name() string { return "sq" }

func (s *ShortestQueue) MinHosts() int { return 1 }

func (s *ShortestQueue) Choose(_ *core.Task, hs []core.HostInfo) (*core.HostInfo, error) {
	best := argmin(hs, func(h core.HostInfo) int { return h.QueueSize })
	if best == nil {
		return nil, ErrNoHosts
	}
	return best, nil
}

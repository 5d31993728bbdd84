package core

import (
	"slices"
	"sync"
	"time"
)

// Stats keeps task turnaround samples over a sliding window.
type Stats struct {
	mu     sync.Mutex
	recent []sample
	window time.Duration
	total  int
}

type sample struct {
	t          time.Time
	turnaround time.Duration
}

type StatsSnapshot struct {
	Window     time.Duration
	Samples    int
	Total      int
	Throughput float64 // tasks per second over the window
	P50        time.Duration
	P95        time.Duration
	Max        time.Duration
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = 10 * time.Second
	}
	return &Stats{window: window}
}

// Observe records finished tasks; other events are ignored.
func (s *Stats) Observe(ev Event) {
	if ev.Kind != EventFinished {
		return
	}
	s.Add(ev.At, ev.Task.Turnaround())
}

func (s *Stats) Add(t time.Time, turnaround time.Duration) {
	s.mu.Lock()
	s.dropBefore(t.Add(-s.window))
	s.recent = append(s.recent, sample{t: t, turnaround: turnaround})
	s.total++
	s.mu.Unlock()
}

func (s *Stats) Snapshot(now time.Time) StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropBefore(now.Add(-s.window))
	snap := StatsSnapshot{Window: s.window, Samples: len(s.recent), Total: s.total}
	n := len(s.recent)
	if n == 0 {
		return snap
	}
	snap.Throughput = float64(n) / s.window.Seconds()

	vals := make([]time.Duration, n)
	for i := range s.recent {
		vals[i] = s.recent[i].turnaround
	}
	slices.Sort(vals)
	snap.P50 = vals[rank(0.50, n)]
	snap.P95 = vals[rank(0.95, n)]
	snap.Max = vals[n-1]
	return snap
}

func (s *Stats) dropBefore(cut time.Time) {
	i := 0
	for ; i < len(s.recent); i++ {
		if s.recent[i].t.After(cut) {
			break
		}
	}
	if i > 0 {
		s.recent = append([]sample{}, s.recent[i:]...)
	}
}

// rank is the nearest-rank index for percentile q over n sorted values.
func rank(q float64, n int) int {
	idx := int(q*float64(n)+0.5) - 1
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}

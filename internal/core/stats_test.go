package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStats_Snapshot(t *testing.T) {
	s := NewStats(10 * time.Second)
	now := time.Now()
	for i := 1; i <= 20; i++ {
		s.Add(now, time.Duration(i)*time.Millisecond)
	}

	snap := s.Snapshot(now)
	assert.Equal(t, 20, snap.Samples)
	assert.Equal(t, 20, snap.Total)
	assert.InDelta(t, 2.0, snap.Throughput, 1e-9)
	assert.Equal(t, 10*time.Millisecond, snap.P50)
	assert.Equal(t, 19*time.Millisecond, snap.P95)
	assert.Equal(t, 20*time.Millisecond, snap.Max)
}

func TestStats_DropsSamplesOutsideWindow(t *testing.T) {
	s := NewStats(time.Second)
	base := time.Now()
	s.Add(base, 5*time.Millisecond)
	s.Add(base.Add(500*time.Millisecond), 7*time.Millisecond)

	snap := s.Snapshot(base.Add(1200 * time.Millisecond))
	assert.Equal(t, 1, snap.Samples)
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, 7*time.Millisecond, snap.P50)

	empty := s.Snapshot(base.Add(time.Hour))
	assert.Zero(t, empty.Samples)
	assert.Zero(t, empty.Throughput)
}

func TestStats_ObserveFinishedOnly(t *testing.T) {
	s := NewStats(0)
	task := NewTask(SizeShort, 1, 0, true)
	now := time.Now()
	s.Observe(Event{Kind: EventStarted, Task: task, At: now})
	task.finish(now)
	s.Observe(Event{Kind: EventFinished, Task: task, At: now})

	snap := s.Snapshot(now)
	assert.Equal(t, 1, snap.Samples)
	assert.Equal(t, 10*time.Second, snap.Window)
}

package core

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type SizeClass string

const (
	SizeShort  SizeClass = "short"
	SizeMedium SizeClass = "medium"
	SizeLong   SizeClass = "long"
)

func (s SizeClass) Valid() bool {
	switch s {
	case SizeShort, SizeMedium, SizeLong:
		return true
	}
	return false
}

// ParseSizeClass accepts "short", "SHORT", "Medium", ...
func ParseSizeClass(v string) (SizeClass, error) {
	s := SizeClass(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown size class %q", v)
	}
	return s, nil
}

type TaskState string

const (
	TaskQueued   TaskState = "queued"
	TaskRunning  TaskState = "running"
	TaskFinished TaskState = "finished"
)

type Policy string

const (
	PolicyRoundRobin    Policy = "round_robin"
	PolicyShortestQueue Policy = "shortest_queue"
	PolicySITA          Policy = "size_interval_task_assignment"
	PolicyLeastWorkLeft Policy = "least_work_left"
	PolicyP2C           Policy = "p2c"
)

// ParsePolicy maps user input (enum names like LEAST_WORK_LEFT or short
// aliases like "rr") onto a Policy.
func ParsePolicy(v string) (Policy, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(v)), "-", "_") {
	case "rr", "round_robin":
		return PolicyRoundRobin, nil
	case "sq", "shortest", "shortest_queue":
		return PolicyShortestQueue, nil
	case "sita", "size_interval_task_assignment":
		return PolicySITA, nil
	case "lwl", "ll", "least_work_left":
		return PolicyLeastWorkLeft, nil
	case "p2c", "power_of_two_choices":
		return PolicyP2C, nil
	}
	return "", fmt.Errorf("unknown policy %q", v)
}

// Task is a unit of simulated work. Its identity and scheduling attributes
// are fixed at creation; remaining work and lifecycle state are owned by the
// host that currently holds it.
type Task struct {
	ID          string
	Size        SizeClass
	Priority    int
	Preemptible bool
	Duration    time.Duration

	// Arrival is the offset from scenario start at which the task is released.
	Arrival time.Duration

	mu          sync.Mutex
	remaining   time.Duration
	executed    time.Duration
	state       TaskState
	preemptions int
	created     time.Time
	started     time.Time
	finished    time.Time

	// backlog position among equal priorities, set on first enqueue.
	seq uint64
}

func NewTask(size SizeClass, priority int, d time.Duration, preemptible bool) *Task {
	if d < 0 {
		d = 0
	}
	return &Task{
		ID:          uuid.NewString(),
		Size:        size,
		Priority:    priority,
		Preemptible: preemptible,
		Duration:    d,
		remaining:   d,
		state:       TaskQueued,
		created:     time.Now(),
	}
}

func (t *Task) String() string {
	return fmt.Sprintf("task %s (%s, prio %d)", shortID(t.ID), t.Size, t.Priority)
}

func (t *Task) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Executed is the cumulative time the task has spent in a running slot.
func (t *Task) Executed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.executed
}

func (t *Task) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) Preemptions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.preemptions
}

// Turnaround is the time from creation to completion, zero until finished.
func (t *Task) Turnaround() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TaskFinished {
		return 0
	}
	return t.finished.Sub(t.created)
}

// Release stamps the creation time, used when a pre-built task enters the
// cluster later than it was constructed.
func (t *Task) Release(now time.Time) {
	t.mu.Lock()
	t.created = now
	t.mu.Unlock()
}

func (t *Task) markQueued() {
	t.mu.Lock()
	t.state = TaskQueued
	t.mu.Unlock()
}

func (t *Task) markRunning(now time.Time) {
	t.mu.Lock()
	t.state = TaskRunning
	if t.started.IsZero() {
		t.started = now
	}
	t.mu.Unlock()
}

func (t *Task) markPreempted() {
	t.mu.Lock()
	t.state = TaskQueued
	t.preemptions++
	t.mu.Unlock()
}

// advance charges elapsed execution time, never below zero remaining.
func (t *Task) advance(elapsed time.Duration) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if elapsed > t.remaining {
		elapsed = t.remaining
	}
	if elapsed > 0 {
		t.remaining -= elapsed
		t.executed += elapsed
	}
	return t.remaining
}

func (t *Task) finish(now time.Time) {
	t.mu.Lock()
	t.executed += t.remaining
	t.remaining = 0
	t.state = TaskFinished
	t.finished = now
	t.mu.Unlock()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// HostInfo is a point-in-time view of a host's load, handed to policies.
// Index is the host's position in the registry that produced the view.
type HostInfo struct {
	Index       int
	Name        string
	QueueSize   int
	WorkLeft    time.Duration
	Finished    int
	Preemptions int
	Executed    time.Duration
	Stopped     bool
}

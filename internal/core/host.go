package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrHostRunning = errors.New("host: loop already started")
	ErrHostStopped = errors.New("host: loop has terminated")
)

type EventKind string

const (
	EventQueued    EventKind = "queued"
	EventStarted   EventKind = "started"
	EventPreempted EventKind = "preempted"
	EventFinished  EventKind = "finished"
)

// Event describes a task transition on a host together with the host's load
// right after it.
type Event struct {
	Kind      EventKind
	Host      int
	HostName  string
	Task      *Task
	QueueSize int
	WorkLeft  time.Duration
	At        time.Time
}

// Observer receives host events in the order they happen on that host. It
// is called with the host lock held and must not call back into the host.
type Observer interface {
	Observe(ev Event)
}

type ObserverFunc func(ev Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

type HostOption func(*Host)

func WithLogger(l zerolog.Logger) HostOption {
	return func(h *Host) { h.log = l }
}

func WithObserver(o Observer) HostOption {
	return func(h *Host) { h.observers = append(h.observers, o) }
}

func WithName(name string) HostOption {
	return func(h *Host) { h.name = name }
}

// Host is a single simulated worker. It runs one task at a time from a
// priority backlog and lets a strictly higher-priority arrival preempt a
// preemptible running task.
type Host struct {
	index     int
	name      string
	log       zerolog.Logger
	observers []Observer

	mu      sync.Mutex
	backlog backlog
	running *Task
	// sliceStart is when the running task last had its remaining work
	// charged; live remaining is running.remaining - since(sliceStart).
	sliceStart  time.Time
	stopping    bool
	exited      bool
	finished    int
	preemptions int
	executed    time.Duration

	wake     *waker
	started  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
}

func NewHost(index int, opts ...HostOption) *Host {
	h := &Host{
		index: index,
		name:  fmt.Sprintf("host-%d", index),
		log:   zerolog.Nop(),
		wake:  newWaker(),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With().Str("host", h.name).Logger()
	return h
}

func (h *Host) Index() int   { return h.index }
func (h *Host) Name() string { return h.name }

// AddTask queues t and, when t outranks a preemptible running task, asks the
// loop to preempt it.
func (h *Host) AddTask(t *Task) error {
	h.mu.Lock()
	if h.exited {
		h.mu.Unlock()
		return ErrHostStopped
	}
	t.markQueued()
	h.backlog.push(t)
	switch {
	case h.running == nil:
		h.wake.signal(WakeArrival)
	case h.running.Preemptible && t.Priority > h.running.Priority:
		h.log.Debug().
			Stringer("running", h.running).
			Stringer("incoming", t).
			Msg("preemption requested")
		h.wake.signal(WakePreempt)
	}
	h.emit(h.eventLocked(EventQueued, t, time.Now()))
	h.mu.Unlock()
	return nil
}

// QueueSize counts backlog entries plus the running task.
func (h *Host) QueueSize() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.queueSizeLocked()
}

// WorkLeft sums remaining work across the backlog and the running task. The
// running task is charged up to now without disturbing the loop.
func (h *Host) WorkLeft() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.workLeftLocked(time.Now())
}

func (h *Host) Info() HostInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HostInfo{
		Index:       h.index,
		Name:        h.name,
		QueueSize:   h.queueSizeLocked(),
		WorkLeft:    h.workLeftLocked(time.Now()),
		Finished:    h.finished,
		Preemptions: h.preemptions,
		Executed:    h.executed,
		Stopped:     h.exited,
	}
}

// Shutdown asks the loop to exit once the backlog and running slot are both
// empty. Pending work is still executed.
func (h *Host) Shutdown() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.stopping = true
		h.mu.Unlock()
		h.wake.signal(WakeStop)
		h.log.Debug().Msg("shutdown requested")
	})
}

// Done is closed when Run returns.
func (h *Host) Done() <-chan struct{} { return h.done }

func (h *Host) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes the host loop until Shutdown has been called and no work is
// left, or until ctx is cancelled. On cancellation the running task is put
// back in the backlog with its remaining work charged.
func (h *Host) Run(ctx context.Context) error {
	if !h.started.CompareAndSwap(false, true) {
		return ErrHostRunning
	}
	defer close(h.done)
	h.log.Debug().Msg("host loop started")

	for {
		t, slice, stop := h.next()
		if stop {
			h.log.Debug().Int("finished", h.Info().Finished).Msg("host loop stopped")
			return nil
		}
		if t == nil {
			if _, err := h.wake.wait(ctx, -1); err != nil {
				h.abort()
				return err
			}
			continue
		}
		reason, err := h.wake.wait(ctx, slice)
		if err != nil {
			h.abort()
			return err
		}
		h.settle(reason)
	}
}

// next returns the task to execute and how long to wait for it, picking a
// new one from the backlog when idle. stop is true once the loop may exit.
func (h *Host) next() (t *Task, slice time.Duration, stop bool) {
	h.mu.Lock()
	if h.running == nil {
		t = h.backlog.pop()
		if t == nil {
			stop = h.stopping
			if stop {
				h.exited = true
			}
			h.mu.Unlock()
			return nil, 0, stop
		}
		now := time.Now()
		t.markRunning(now)
		h.running = t
		h.sliceStart = now
		// a fresh pick already honours every queued priority
		h.wake.clear(WakeArrival | WakePreempt)
		h.emit(h.eventLocked(EventStarted, t, now))
		h.mu.Unlock()

		h.log.Debug().Stringer("task", t).Dur("remaining", t.Remaining()).Msg("task started")
		return t, t.Remaining(), false
	}
	t = h.running
	h.mu.Unlock()
	return t, t.Remaining(), false
}

// settle charges the elapsed slice to the running task and decides what
// happens to it after the loop woke up.
func (h *Host) settle(reason WakeReason) {
	h.mu.Lock()
	t := h.running
	if t == nil {
		h.mu.Unlock()
		return
	}
	now := time.Now()
	h.executed += h.chargeLocked(now)

	var kind EventKind
	switch {
	case reason.Has(WakeTimer) || t.Remaining() <= 0:
		before := t.Remaining()
		t.finish(now)
		h.executed += before
		h.running = nil
		h.finished++
		kind = EventFinished
	case reason.Has(WakePreempt) && h.outrankedLocked(t):
		t.markPreempted()
		h.backlog.push(t)
		h.running = nil
		h.preemptions++
		kind = EventPreempted
	default:
		// arrival, stop or stale preempt: keep running with fresh accounting
		h.mu.Unlock()
		h.log.Trace().Stringer("reason", reason).Stringer("task", t).Msg("wake-up without preemption")
		return
	}
	h.emit(h.eventLocked(kind, t, now))
	h.mu.Unlock()

	switch kind {
	case EventFinished:
		h.log.Debug().Stringer("task", t).Dur("executed", t.Executed()).Msg("task finished")
	case EventPreempted:
		h.log.Debug().Stringer("task", t).Dur("remaining", t.Remaining()).Msg("task preempted")
	}
}

func (h *Host) abort() {
	h.mu.Lock()
	if t := h.running; t != nil {
		h.executed += h.chargeLocked(time.Now())
		t.markQueued()
		h.backlog.push(t)
		h.running = nil
	}
	h.exited = true
	h.mu.Unlock()
	h.log.Warn().Msg("host loop cancelled")
}

// chargeLocked moves the elapsed part of the current slice from the running
// task's remaining work into its executed time.
func (h *Host) chargeLocked(now time.Time) time.Duration {
	before := h.running.Remaining()
	after := h.running.advance(now.Sub(h.sliceStart))
	h.sliceStart = now
	return before - after
}

func (h *Host) outrankedLocked(t *Task) bool {
	top := h.backlog.peek()
	return t.Preemptible && top != nil && top.Priority > t.Priority
}

func (h *Host) queueSizeLocked() int {
	n := h.backlog.Len()
	if h.running != nil {
		n++
	}
	return n
}

func (h *Host) workLeftLocked(now time.Time) time.Duration {
	sum := h.backlog.work()
	if h.running != nil {
		left := h.running.Remaining() - now.Sub(h.sliceStart)
		if left > 0 {
			sum += left
		}
	}
	return sum
}

func (h *Host) eventLocked(kind EventKind, t *Task, now time.Time) Event {
	return Event{
		Kind:      kind,
		Host:      h.index,
		HostName:  h.name,
		Task:      t,
		QueueSize: h.queueSizeLocked(),
		WorkLeft:  h.workLeftLocked(now),
		At:        now,
	}
}

func (h *Host) emit(ev Event) {
	for _, o := range h.observers {
		o.Observe(ev)
	}
}

package core

import (
	"context"
	"strings"
	"sync"
	"time"
)

// WakeReason records why a host loop stopped waiting. Several reasons can be
// pending at once.
type WakeReason uint8

const (
	WakeTimer WakeReason = 1 << iota
	WakeArrival
	WakePreempt
	WakeStop
)

func (r WakeReason) Has(x WakeReason) bool { return r&x != 0 }

func (r WakeReason) String() string {
	if r == 0 {
		return "none"
	}
	var parts []string
	for _, v := range []struct {
		bit  WakeReason
		name string
	}{
		{WakeTimer, "timer"},
		{WakeArrival, "arrival"},
		{WakePreempt, "preempt"},
		{WakeStop, "stop"},
	} {
		if r.Has(v.bit) {
			parts = append(parts, v.name)
		}
	}
	return strings.Join(parts, "|")
}

// waker is a cancellable wait: a host sleeps for the length of its current
// slice and other goroutines can cut the sleep short with a reason.
type waker struct {
	mu      sync.Mutex
	pending WakeReason
	ch      chan struct{}
}

func newWaker() *waker {
	return &waker{ch: make(chan struct{}, 1)}
}

func (w *waker) signal(r WakeReason) {
	w.mu.Lock()
	w.pending |= r
	select {
	case w.ch <- struct{}{}:
	default:
	}
	w.mu.Unlock()
}

// clear drops pending reasons that no longer apply.
func (w *waker) clear(r WakeReason) {
	w.mu.Lock()
	w.pending &^= r
	if w.pending == 0 {
		select {
		case <-w.ch:
		default:
		}
	}
	w.mu.Unlock()
}

func (w *waker) take() WakeReason {
	w.mu.Lock()
	r := w.pending
	w.pending = 0
	w.mu.Unlock()
	return r
}

// wait blocks for d, or until signalled, or until ctx is done. A negative d
// waits for a signal only. The returned reason carries WakeTimer when the
// full duration elapsed.
func (w *waker) wait(ctx context.Context, d time.Duration) (WakeReason, error) {
	var expired <-chan time.Time
	if d >= 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-ctx.Done():
		return w.take(), ctx.Err()
	case <-w.ch:
		return w.take(), nil
	case <-expired:
		return w.take() | WakeTimer, nil
	}
}

package dispatch

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/enesyesil/hostsim/internal/core"
	"github.com/enesyesil/hostsim/internal/metrics"
	"github.com/enesyesil/hostsim/internal/scheduler"
)

// ErrConfig marks a dispatcher that cannot be built for its host set. The
// underlying scheduler error is wrapped alongside it.
var ErrConfig = errors.New("dispatch: invalid configuration")

type Option func(*Dispatcher)

func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithScheduler replaces the scheduler derived from the policy, e.g. a P2C
// with a different sample size.
func WithScheduler(s scheduler.Scheduler) Option {
	return func(d *Dispatcher) { d.sched = s }
}

// Dispatcher routes every incoming task to exactly one host of a fixed set
// according to its policy. It is safe for concurrent producers and never
// waits on host execution.
type Dispatcher struct {
	policy core.Policy
	sched  scheduler.Scheduler
	reg    *core.Registry
	log    zerolog.Logger

	dispatched atomic.Uint64
	rejected   atomic.Uint64
}

func New(policy core.Policy, reg *core.Registry, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		policy: policy,
		reg:    reg,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.sched == nil {
		s, err := scheduler.New(policy)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		d.sched = s
	}
	if reg == nil || reg.Len() == 0 {
		return nil, fmt.Errorf("%w: %w", ErrConfig, scheduler.ErrNoHosts)
	}
	if reg.Len() < d.sched.MinHosts() {
		return nil, fmt.Errorf("%w: %w: %s needs %d hosts, have %d",
			ErrConfig, scheduler.ErrNotEnoughHosts, policy, d.sched.MinHosts(), reg.Len())
	}
	d.log = d.log.With().Str("policy", string(policy)).Logger()
	return d, nil
}

func (d *Dispatcher) Policy() core.Policy { return d.policy }

func (d *Dispatcher) Registry() *core.Registry { return d.reg }

// Dispatched is the number of tasks handed to a host so far.
func (d *Dispatcher) Dispatched() uint64 { return d.dispatched.Load() }

func (d *Dispatcher) Rejected() uint64 { return d.rejected.Load() }

// AddTask assigns t to one host. The task is not placed when the policy
// cannot classify it or the chosen host has already stopped.
func (d *Dispatcher) AddTask(t *core.Task) error {
	info, err := d.sched.Choose(t, d.reg.Snapshot())
	if err != nil {
		d.reject(t, "choose", err)
		return fmt.Errorf("dispatch %s: %w", t, err)
	}

	h := d.reg.Host(info.Index)
	if err := h.AddTask(t); err != nil {
		d.reject(t, "host", err)
		return fmt.Errorf("dispatch %s to %s: %w", t, h.Name(), err)
	}

	d.dispatched.Add(1)
	metrics.TasksDispatched.WithLabelValues(string(d.policy), h.Name()).Inc()
	d.log.Debug().
		Stringer("task", t).
		Str("host", h.Name()).
		Int("queue", info.QueueSize).
		Dur("work_left", info.WorkLeft).
		Msg("task dispatched")
	return nil
}

func (d *Dispatcher) reject(t *core.Task, reason string, err error) {
	d.rejected.Add(1)
	metrics.DispatchErrors.WithLabelValues(string(d.policy), reason).Inc()
	d.log.Warn().Err(err).Stringer("task", t).Msg("task rejected")
}

package core

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Registry is the fixed, ordered set of hosts a dispatcher routes to. The
// set is established at construction and never resized.
type Registry struct {
	hosts []*Host
	log   zerolog.Logger

	mu      sync.Mutex
	wg      sync.WaitGroup
	errs    []error
	running bool
}

func NewRegistry(hosts ...*Host) *Registry {
	cp := make([]*Host, len(hosts))
	copy(cp, hosts)
	return &Registry{hosts: cp, log: zerolog.Nop()}
}

// NewCluster builds n hosts sharing the same options.
func NewCluster(n int, opts ...HostOption) *Registry {
	hosts := make([]*Host, n)
	for i := range hosts {
		hosts[i] = NewHost(i, opts...)
	}
	return NewRegistry(hosts...)
}

func (r *Registry) WithLogger(l zerolog.Logger) *Registry {
	r.log = l
	return r
}

func (r *Registry) Len() int { return len(r.hosts) }

func (r *Registry) Host(i int) *Host { return r.hosts[i] }

func (r *Registry) Hosts() []*Host {
	cp := make([]*Host, len(r.hosts))
	copy(cp, r.hosts)
	return cp
}

// Snapshot reads every host's load in host order, with Index set to the
// registry position so it can be passed back to Host. Each entry is
// consistent on its own; entries are not taken atomically across hosts.
func (r *Registry) Snapshot() []HostInfo {
	cp := make([]HostInfo, len(r.hosts))
	for i, h := range r.hosts {
		cp[i] = h.Info()
		cp[i].Index = i
	}
	return cp
}

// Start launches every host loop in its own goroutine.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true

	r.log.Info().Int("hosts", len(r.hosts)).Msg("starting hosts")
	for _, h := range r.hosts {
		r.wg.Add(1)
		go func(h *Host) {
			defer r.wg.Done()
			if err := h.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.mu.Lock()
				r.errs = append(r.errs, err)
				r.mu.Unlock()
				r.log.Error().Err(err).Str("host", h.Name()).Msg("host loop failed")
			}
		}(h)
	}
}

// Shutdown requests a graceful stop of every host.
func (r *Registry) Shutdown() {
	for _, h := range r.hosts {
		h.Shutdown()
	}
}

// Wait blocks until every started host loop has returned or ctx is done.
// When ctx ends first the helper goroutine stays until the loops return,
// so callers should cancel the context given to Start as well.
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.errs...)
}

package workload

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/enesyesil/hostsim/internal/core"
)

// Sink receives released tasks, typically a dispatcher's AddTask.
type Sink func(*core.Task) error

type PlayResult struct {
	Released int
	Rejected int
	Errors   []error
}

// Player replays tasks at their arrival offsets. Arrivals are checked on a
// fixed window, so a task is released at most one window late; everything
// due within a window is released together in arrival order.
type Player struct {
	window time.Duration
	sink   Sink
	log    zerolog.Logger
}

func NewPlayer(window time.Duration, sink Sink, log zerolog.Logger) *Player {
	if window <= 0 {
		window = 5 * time.Millisecond
	}
	return &Player{window: window, sink: sink, log: log}
}

// Play releases tasks, which must be sorted by Arrival, and returns once all
// of them were handed to the sink or ctx is done.
func (p *Player) Play(ctx context.Context, tasks []*core.Task) (PlayResult, error) {
	var res PlayResult
	start := time.Now()
	i := p.flush(start, start, tasks, &res)
	if i == len(tasks) {
		return res, nil
	}

	ticker := time.NewTicker(p.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case now := <-ticker.C:
			i += p.flush(start, now, tasks[i:], &res)
			if i == len(tasks) {
				return res, nil
			}
		}
	}
}

// flush releases the due prefix of pending and reports how many it took.
func (p *Player) flush(start, now time.Time, pending []*core.Task, res *PlayResult) int {
	elapsed := now.Sub(start)
	n := 0
	for n < len(pending) && pending[n].Arrival <= elapsed {
		t := pending[n]
		t.Release(now)
		if err := p.sink(t); err != nil {
			res.Rejected++
			res.Errors = append(res.Errors, err)
		} else {
			res.Released++
		}
		n++
	}
	if n > 0 {
		p.log.Trace().Int("released", n).Dur("elapsed", elapsed).Msg("arrivals flushed")
	}
	return n
}

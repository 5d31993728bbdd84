package scheduler

import (
	"fmt"

	"github.com/enesyesil/hostsim/internal/core"
)

// SITA statically partitions by size class: short tasks go to host 0,
// medium to host 1 and long to host 2, whatever their load.
type SITA struct{}

func (s *SITA) Name() string { return "sita" }

func (s *SITA) MinHosts() int { return 3 }

func (s *SITA) Choose(t *core.Task, hs []core.HostInfo) (*core.HostInfo, error) {
	var idx int
	switch t.Size {
	case core.SizeShort:
		idx = 0
	case core.SizeMedium:
		idx = 1
	case core.SizeLong:
		idx = 2
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSizeClass, t.Size)
	}
	if idx >= len(hs) {
		return nil, fmt.Errorf("%w: sita needs %d, have %d", ErrNotEnoughHosts, s.MinHosts(), len(hs))
	}
	return &hs[idx], nil
}

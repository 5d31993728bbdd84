package workload

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/enesyesil/hostsim/internal/core"
)

var ErrEmptyScenario = errors.New("workload: scenario has no tasks")

// TaskSpec is one task of a scenario as written in YAML:
//
//	- arrival: 150ms
//	  size: medium
//	  priority: 3
//	  duration: 400ms
//	  preemptible: true
type TaskSpec struct {
	Arrival     time.Duration  `yaml:"arrival"`
	Size        core.SizeClass `yaml:"size"`
	Priority    int            `yaml:"priority"`
	Duration    time.Duration  `yaml:"duration"`
	Preemptible bool           `yaml:"preemptible"`
}

type Scenario struct {
	Name  string     `yaml:"name,omitempty"`
	Tasks []TaskSpec `yaml:"tasks"`
}

func LoadScenario(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, nil
}

func Decode(r io.Reader) (*Scenario, error) {
	var s Scenario
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

func (s *Scenario) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *Scenario) Validate() error {
	if len(s.Tasks) == 0 {
		return ErrEmptyScenario
	}
	var errs []error
	for i, ts := range s.Tasks {
		size, err := core.ParseSizeClass(string(ts.Size))
		if err != nil {
			errs = append(errs, fmt.Errorf("task %d: %w", i, err))
		} else {
			s.Tasks[i].Size = size
		}
		if ts.Duration < 0 {
			errs = append(errs, fmt.Errorf("task %d: negative duration %s", i, ts.Duration))
		}
		if ts.Arrival < 0 {
			errs = append(errs, fmt.Errorf("task %d: negative arrival %s", i, ts.Arrival))
		}
	}
	return errors.Join(errs...)
}

// Build creates the scenario's tasks ordered by arrival; tasks arriving at
// the same offset keep their file order.
func (s *Scenario) Build() []*core.Task {
	tasks := make([]*core.Task, len(s.Tasks))
	for i, ts := range s.Tasks {
		t := core.NewTask(ts.Size, ts.Priority, ts.Duration, ts.Preemptible)
		t.Arrival = ts.Arrival
		tasks[i] = t
	}
	slices.SortStableFunc(tasks, func(a, b *core.Task) int {
		return cmp.Compare(a.Arrival, b.Arrival)
	})
	return tasks
}

// TotalWork is the sum of all task durations.
func (s *Scenario) TotalWork() time.Duration {
	var sum time.Duration
	for _, ts := range s.Tasks {
		sum += ts.Duration
	}
	return sum
}

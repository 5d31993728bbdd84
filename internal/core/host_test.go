package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder keeps host events in the order observed.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds(task *Task) []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventKind
	for _, ev := range r.events {
		if ev.Task == task {
			out = append(out, ev.Kind)
		}
	}
	return out
}

func (r *recorder) finished() []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Task
	for _, ev := range r.events {
		if ev.Kind == EventFinished {
			out = append(out, ev.Task)
		}
	}
	return out
}

func startHost(t *testing.T, opts ...HostOption) (*Host, *recorder) {
	t.Helper()
	rec := &recorder{}
	h := NewHost(0, append(opts, WithObserver(rec))...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h, rec
}

func drain(t *testing.T, h *Host) {
	t.Helper()
	h.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Wait(ctx))
}

func TestHost_RunsTaskToCompletion(t *testing.T) {
	h, rec := startHost(t)
	task := NewTask(SizeShort, 1, 30*time.Millisecond, true)
	require.NoError(t, h.AddTask(task))

	drain(t, h)

	assert.Equal(t, TaskFinished, task.State())
	assert.Zero(t, task.Remaining())
	assert.Equal(t, 30*time.Millisecond, task.Executed())
	assert.GreaterOrEqual(t, task.Turnaround(), 30*time.Millisecond)
	assert.Equal(t, []EventKind{EventQueued, EventStarted, EventFinished}, rec.kinds(task))

	info := h.Info()
	assert.Equal(t, 1, info.Finished)
	assert.Equal(t, 30*time.Millisecond, info.Executed)
	assert.True(t, info.Stopped)
}

func TestHost_ServesHigherPriorityFirst(t *testing.T) {
	rec := &recorder{}
	h := NewHost(0, WithObserver(rec))

	low := NewTask(SizeShort, 1, 10*time.Millisecond, false)
	high := NewTask(SizeShort, 9, 10*time.Millisecond, false)
	mid := NewTask(SizeShort, 5, 10*time.Millisecond, false)
	for _, task := range []*Task{low, high, mid} {
		require.NoError(t, h.AddTask(task))
	}

	go h.Run(context.Background())
	drain(t, h)

	assert.Equal(t, []*Task{high, mid, low}, rec.finished())
}

func TestHost_FIFOAmongEqualPriorities(t *testing.T) {
	h, rec := startHost(t)
	blocker := NewTask(SizeLong, 9, 60*time.Millisecond, false)
	require.NoError(t, h.AddTask(blocker))
	require.Eventually(t, func() bool { return blocker.State() == TaskRunning }, time.Second, time.Millisecond)

	var same []*Task
	for range 5 {
		task := NewTask(SizeShort, 3, 5*time.Millisecond, true)
		same = append(same, task)
		require.NoError(t, h.AddTask(task))
	}
	drain(t, h)

	assert.Equal(t, append([]*Task{blocker}, same...), rec.finished())
}

func TestHost_PreemptsLowerPriority(t *testing.T) {
	h, rec := startHost(t)
	low := NewTask(SizeLong, 1, 400*time.Millisecond, true)
	require.NoError(t, h.AddTask(low))
	require.Eventually(t, func() bool { return low.State() == TaskRunning }, time.Second, time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	high := NewTask(SizeShort, 5, 50*time.Millisecond, false)
	require.NoError(t, h.AddTask(high))

	require.Eventually(t, func() bool { return low.Preemptions() == 1 }, time.Second, time.Millisecond)
	left := low.Remaining()
	assert.LessOrEqual(t, left, 300*time.Millisecond)
	assert.Positive(t, left)

	drain(t, h)

	assert.Equal(t, []*Task{high, low}, rec.finished())
	assert.Equal(t,
		[]EventKind{EventQueued, EventStarted, EventPreempted, EventStarted, EventFinished},
		rec.kinds(low))
	assert.Equal(t, TaskFinished, low.State())
	assert.Equal(t, 400*time.Millisecond, low.Executed())
	assert.Equal(t, 50*time.Millisecond, high.Executed())
	assert.Equal(t, 1, h.Info().Preemptions)
}

func TestHost_NonPreemptibleRunsUninterrupted(t *testing.T) {
	h, rec := startHost(t)
	low := NewTask(SizeMedium, 1, 150*time.Millisecond, false)
	require.NoError(t, h.AddTask(low))
	require.Eventually(t, func() bool { return low.State() == TaskRunning }, time.Second, time.Millisecond)

	high := NewTask(SizeShort, 10, 10*time.Millisecond, true)
	require.NoError(t, h.AddTask(high))
	drain(t, h)

	assert.Equal(t, []*Task{low, high}, rec.finished())
	assert.Zero(t, low.Preemptions())
	assert.Equal(t, []EventKind{EventQueued, EventStarted, EventFinished}, rec.kinds(low))
}

func TestHost_EqualPriorityDoesNotPreempt(t *testing.T) {
	h, rec := startHost(t)
	first := NewTask(SizeMedium, 4, 80*time.Millisecond, true)
	require.NoError(t, h.AddTask(first))
	require.Eventually(t, func() bool { return first.State() == TaskRunning }, time.Second, time.Millisecond)

	second := NewTask(SizeShort, 4, 10*time.Millisecond, true)
	require.NoError(t, h.AddTask(second))
	drain(t, h)

	assert.Equal(t, []*Task{first, second}, rec.finished())
	assert.Zero(t, first.Preemptions())
}

func TestHost_SpuriousWakeupsKeepTaskRunning(t *testing.T) {
	h, rec := startHost(t)
	task := NewTask(SizeMedium, 1, 120*time.Millisecond, true)
	require.NoError(t, h.AddTask(task))
	require.Eventually(t, func() bool { return task.State() == TaskRunning }, time.Second, time.Millisecond)

	// preempt without a higher-priority task waiting is stale
	for _, r := range []WakeReason{WakeArrival, WakePreempt, WakeArrival | WakePreempt} {
		time.Sleep(15 * time.Millisecond)
		h.wake.signal(r)
	}
	drain(t, h)

	assert.Zero(t, task.Preemptions())
	assert.Equal(t, 120*time.Millisecond, task.Executed())
	assert.Equal(t, []EventKind{EventQueued, EventStarted, EventFinished}, rec.kinds(task))
}

func TestHost_QueueSizeAndWorkLeft(t *testing.T) {
	h := NewHost(0)
	assert.Zero(t, h.QueueSize())
	assert.Zero(t, h.WorkLeft())

	require.NoError(t, h.AddTask(NewTask(SizeShort, 1, 100*time.Millisecond, true)))
	require.NoError(t, h.AddTask(NewTask(SizeLong, 2, 250*time.Millisecond, true)))
	assert.Equal(t, 2, h.QueueSize())
	assert.Equal(t, 350*time.Millisecond, h.WorkLeft())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	require.Eventually(t, func() bool { return h.WorkLeft() < 350*time.Millisecond }, time.Second, time.Millisecond)
	assert.Equal(t, 2, h.QueueSize(), "running task still counts")
}

func TestHost_WorkLeftIsPureAndDecreasing(t *testing.T) {
	h, rec := startHost(t)
	task := NewTask(SizeLong, 1, 300*time.Millisecond, true)
	require.NoError(t, h.AddTask(task))
	require.Eventually(t, func() bool { return task.State() == TaskRunning }, time.Second, time.Millisecond)

	prev := h.WorkLeft()
	assert.LessOrEqual(t, prev, 300*time.Millisecond)
	for range 5 {
		time.Sleep(20 * time.Millisecond)
		cur := h.WorkLeft()
		assert.Less(t, cur, prev)
		prev = cur
	}
	drain(t, h)

	assert.Zero(t, h.WorkLeft())
	assert.Equal(t, []EventKind{EventQueued, EventStarted, EventFinished}, rec.kinds(task))
}

func TestHost_WorkNeverIncreasesWithoutArrivals(t *testing.T) {
	h, _ := startHost(t)
	for i := range 4 {
		require.NoError(t, h.AddTask(NewTask(SizeShort, i, 25*time.Millisecond, true)))
	}

	prev := h.WorkLeft()
	assert.LessOrEqual(t, prev, 100*time.Millisecond)
	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		cur := h.WorkLeft()
		require.LessOrEqual(t, cur, prev)
		prev = cur
		time.Sleep(2 * time.Millisecond)
	}
	drain(t, h)
}

func TestHost_ShutdownDrainsBacklog(t *testing.T) {
	h, rec := startHost(t)
	var tasks []*Task
	for i := range 4 {
		task := NewTask(SizeShort, i%2, 15*time.Millisecond, true)
		tasks = append(tasks, task)
		require.NoError(t, h.AddTask(task))
	}
	h.Shutdown()

	select {
	case <-h.Done():
		t.Fatal("loop exited with pending work")
	case <-time.After(20 * time.Millisecond):
	}
	drain(t, h)

	assert.Len(t, rec.finished(), len(tasks))
	for _, task := range tasks {
		assert.Equal(t, TaskFinished, task.State())
	}
	assert.ErrorIs(t, h.AddTask(NewTask(SizeShort, 1, time.Millisecond, true)), ErrHostStopped)
}

func TestHost_ShutdownWhenIdle(t *testing.T) {
	h, _ := startHost(t)
	drain(t, h)
	assert.True(t, h.Info().Stopped)
}

func TestHost_RunOnlyOnce(t *testing.T) {
	h, _ := startHost(t)
	require.Eventually(t, func() bool { return h.started.Load() }, time.Second, time.Millisecond)
	assert.ErrorIs(t, h.Run(context.Background()), ErrHostRunning)
	drain(t, h)
}

func TestHost_CancelRequeuesRunningTask(t *testing.T) {
	h := NewHost(0)
	task := NewTask(SizeLong, 1, time.Second, true)
	require.NoError(t, h.AddTask(task))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.Run(ctx) }()

	require.Eventually(t, func() bool { return task.State() == TaskRunning }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on cancel")
	}
	assert.Equal(t, TaskQueued, task.State())
	assert.Less(t, task.Remaining(), time.Second)
	assert.Equal(t, time.Second, task.Remaining()+task.Executed())
	assert.Equal(t, 1, h.QueueSize())
	assert.ErrorIs(t, h.AddTask(NewTask(SizeShort, 1, time.Millisecond, true)), ErrHostStopped)
}

func TestHost_ZeroDurationTask(t *testing.T) {
	h, rec := startHost(t)
	task := NewTask(SizeShort, 1, 0, true)
	require.NoError(t, h.AddTask(task))
	drain(t, h)
	assert.Equal(t, []*Task{task}, rec.finished())
}

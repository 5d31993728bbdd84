package core

import (
	"container/heap"
	"time"
)

// backlog orders queued tasks by descending priority, FIFO among equals.
// Not safe for concurrent use; the owning host serializes access.
type backlog struct {
	items []*Task
	next  uint64
}

func (b *backlog) Len() int { return len(b.items) }

func (b *backlog) Less(i, j int) bool {
	a, c := b.items[i], b.items[j]
	if a.Priority != c.Priority {
		return a.Priority > c.Priority
	}
	return a.seq < c.seq
}

func (b *backlog) Swap(i, j int) { b.items[i], b.items[j] = b.items[j], b.items[i] }

func (b *backlog) Push(x any) { b.items = append(b.items, x.(*Task)) }

func (b *backlog) Pop() any {
	n := len(b.items)
	t := b.items[n-1]
	b.items[n-1] = nil
	b.items = b.items[:n-1]
	return t
}

// push enqueues t. A task re-entering after preemption keeps the position it
// was first given, so it stays ahead of equal-priority tasks that arrived
// after it.
func (b *backlog) push(t *Task) {
	if t.seq == 0 {
		b.next++
		t.seq = b.next
	}
	heap.Push(b, t)
}

func (b *backlog) pop() *Task {
	if len(b.items) == 0 {
		return nil
	}
	return heap.Pop(b).(*Task)
}

func (b *backlog) peek() *Task {
	if len(b.items) == 0 {
		return nil
	}
	return b.items[0]
}

func (b *backlog) work() time.Duration {
	var sum time.Duration
	for _, t := range b.items {
		sum += t.Remaining()
	}
	return sum
}

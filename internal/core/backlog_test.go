package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBacklog_PriorityOrder(t *testing.T) {
	var b backlog
	low := NewTask(SizeShort, 1, time.Millisecond, true)
	mid := NewTask(SizeShort, 3, time.Millisecond, true)
	high := NewTask(SizeShort, 7, time.Millisecond, true)

	b.push(mid)
	b.push(low)
	b.push(high)

	assert.Equal(t, 3, b.Len())
	assert.Same(t, high, b.peek())
	assert.Same(t, high, b.pop())
	assert.Same(t, mid, b.pop())
	assert.Same(t, low, b.pop())
	assert.Nil(t, b.pop())
	assert.Nil(t, b.peek())
}

func TestBacklog_FIFOAmongEqualPriorities(t *testing.T) {
	var b backlog
	var in []*Task
	for range 10 {
		task := NewTask(SizeMedium, 2, time.Millisecond, false)
		in = append(in, task)
		b.push(task)
	}
	b.push(NewTask(SizeShort, 1, time.Millisecond, false))

	for i := range in {
		assert.Same(t, in[i], b.pop(), "position %d", i)
	}
	assert.Equal(t, 1, b.pop().Priority)
}

func TestBacklog_RequeueKeepsPosition(t *testing.T) {
	var b backlog
	first := NewTask(SizeShort, 2, time.Millisecond, true)
	b.push(first)
	assert.Same(t, first, b.pop())

	later := NewTask(SizeShort, 2, time.Millisecond, true)
	b.push(later)
	b.push(first)

	assert.Same(t, first, b.pop())
	assert.Same(t, later, b.pop())
}

func TestBacklog_Work(t *testing.T) {
	var b backlog
	assert.Zero(t, b.work())
	b.push(NewTask(SizeShort, 1, 30*time.Millisecond, true))
	b.push(NewTask(SizeLong, 4, 70*time.Millisecond, true))
	assert.Equal(t, 100*time.Millisecond, b.work())
}

package taskqueue

import (
	"sync/atomic"

	"github.com/skyformat99/ccbase/pkg/types"
)

const cacheLinePad = 64

// ring is a bounded MPMC queue using per-cell sequence numbers, after the
// design by Dmitry Vyukov. Capacity is rounded up to a power of two.
type ring struct {
	head  atomic.Uint64
	_     [cacheLinePad]byte
	tail  atomic.Uint64
	_     [cacheLinePad]byte
	mask  uint64
	cells []ringCell
}

type ringCell struct {
	sequence atomic.Uint64
	task     types.Task
}

func newRing(capacity int) *ring {
	if capacity < 2 {
		capacity = 2
	}
	size := 1
	for size < capacity {
		size <<= 1
	}

	r := &ring{
		mask:  uint64(size - 1),
		cells: make([]ringCell, size),
	}
	for i := range r.cells {
		r.cells[i].sequence.Store(uint64(i))
	}
	return r
}

// enqueue adds task; returns false if the ring is full.
func (r *ring) enqueue(task types.Task) bool {
	for {
		tail := r.tail.Load()
		c := &r.cells[tail&r.mask]
		seq := c.sequence.Load()
		diff := int64(seq) - int64(tail)

		switch {
		case diff == 0:
			if r.tail.CompareAndSwap(tail, tail+1) {
				c.task = task
				c.sequence.Store(tail + 1)
				return true
			}
		case diff < 0:
			return false // full
		default:
			// tail moved, retry
		}
	}
}

// dequeue removes and returns a task; ok is false if the ring is empty.
func (r *ring) dequeue() (task types.Task, ok bool) {
	for {
		head := r.head.Load()
		c := &r.cells[head&r.mask]
		seq := c.sequence.Load()
		diff := int64(seq) - int64(head+1)

		switch {
		case diff == 0:
			if r.head.CompareAndSwap(head, head+1) {
				task = c.task
				c.task = nil
				c.sequence.Store(head + r.mask + 1)
				return task, true
			}
		case diff < 0:
			return nil, false // empty
		default:
			// head moved, retry
		}
	}
}

// length is an approximate count of queued tasks; exact only when the ring
// is quiescent.
func (r *ring) length() int {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail < head {
		return 0
	}
	return int(tail - head)
}

// capacity returns the rounded-up cell count.
func (r *ring) capacity() int {
	return len(r.cells)
}

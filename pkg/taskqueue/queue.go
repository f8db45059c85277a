// Package taskqueue implements a bounded multi-producer task queue with
// independent consumer lanes.
//
// A TaskQueue is created with a per-lane capacity. Each consumer registers
// exactly one Lane and pops from it without observing other lanes. Producers
// register a Producer handle and either target a specific lane (PushTo) or
// let the handle pick one (Push, round-robin with fallback to any lane with
// room). Push never blocks; a full lane (or queue) is reported as false.
package taskqueue

import (
	"sync"
	"sync/atomic"

	"github.com/skyformat99/ccbase/pkg/types"
)

// TaskQueue is a bounded MPMC closure queue partitioned into consumer lanes.
// All methods are safe for concurrent use; Lane.Pop is additionally safe for
// a single popping goroutine per lane, which is how worker groups use it.
type TaskQueue struct {
	capacity int

	mu    sync.Mutex
	lanes []*ring
}

// New creates a queue whose lanes each hold up to capacity tasks. Capacity is
// rounded up to a power of two per lane.
func New(capacity int) *TaskQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &TaskQueue{capacity: capacity}
}

// Capacity returns the configured per-lane capacity before rounding.
func (q *TaskQueue) Capacity() int {
	return q.capacity
}

// LaneNum returns the number of registered consumer lanes.
func (q *TaskQueue) LaneNum() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}

// RegisterConsumer adds a new consumer lane and returns it. Each lane is
// intended for exactly one popping goroutine.
func (q *TaskQueue) RegisterConsumer() *Lane {
	q.mu.Lock()
	defer q.mu.Unlock()

	r := newRing(q.capacity)
	q.lanes = append(q.lanes, r)
	return &Lane{index: len(q.lanes) - 1, ring: r}
}

// RegisterProducer creates a producer handle bound to the lanes registered so
// far. Registration is the expensive step; callers are expected to cache the
// handle rather than re-register per push.
func (q *TaskQueue) RegisterProducer() (*Producer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.lanes) == 0 {
		return nil, types.ErrNoConsumers
	}
	lanes := make([]*ring, len(q.lanes))
	copy(lanes, q.lanes)
	return &Producer{lanes: lanes}, nil
}

// Lane is one consumer's private view of the queue.
type Lane struct {
	index int
	ring  *ring
}

// Index returns the lane's position in registration order.
func (l *Lane) Index() int {
	return l.index
}

// Pop removes the oldest task from the lane. ok is false when the lane is
// empty; Pop never blocks.
func (l *Lane) Pop() (task types.Task, ok bool) {
	return l.ring.dequeue()
}

// Len is an approximate count of tasks waiting in the lane.
func (l *Lane) Len() int {
	return l.ring.length()
}

// Producer is a registered write handle into the queue. A Producer is safe
// for concurrent use, though the worker-group layer caches one per goroutine
// so the round-robin cursor normally sees a single writer.
type Producer struct {
	lanes []*ring
	next  atomic.Uint64
}

// Push enqueues the task on a lane of the producer's choosing. Lanes are
// tried round-robin starting from a per-producer cursor so load spreads
// across consumers; false means every lane was full.
func (p *Producer) Push(task types.Task) bool {
	n := uint64(len(p.lanes))
	start := p.next.Add(1) - 1
	for i := uint64(0); i < n; i++ {
		if p.lanes[(start+i)%n].enqueue(task) {
			return true
		}
	}
	return false
}

// PushTo enqueues the task on the given lane. false means the lane was full
// or the index is out of range.
func (p *Producer) PushTo(lane int, task types.Task) bool {
	if lane < 0 || lane >= len(p.lanes) {
		return false
	}
	return p.lanes[lane].enqueue(task)
}

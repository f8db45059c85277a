// Package timerwheel provides a hashed timer wheel for one-shot and periodic
// tasks, driven by explicit Tick calls rather than a background goroutine.
//
// A Wheel is owned by a single goroutine (in this codebase, a worker's run
// loop): Tick, AddTimer and AddPeriodTimer must all be called from that
// goroutine. Tasks fired by Tick may re-arm timers on the same wheel.
package timerwheel

import (
	"time"

	"github.com/eapache/queue"

	"github.com/skyformat99/ccbase/pkg/types"
)

const (
	// DefaultGranularity is the logical duration of one wheel tick.
	DefaultGranularity = time.Millisecond

	// DefaultBucketNum is the default number of wheel buckets.
	DefaultBucketNum = 512
)

// entry is one armed timer. rounds counts full wheel revolutions left before
// the entry fires when its bucket is drained.
type entry struct {
	rounds   int
	ticks    int
	periodic bool
	task     types.Task
}

// Wheel is a hashed timer wheel. Deadlines are quantized to the wheel's
// granularity; a timer never fires early but may fire up to one granularity
// late, plus however long the owning goroutine goes between Tick calls.
type Wheel struct {
	clock       types.Clock
	granularity time.Duration
	buckets     []*queue.Queue
	cursor      int
	last        time.Time
	armed       int
}

// New creates a wheel using the given clock. Zero granularity or bucketNum
// fall back to the defaults.
func New(clock types.Clock, granularity time.Duration, bucketNum int) *Wheel {
	if clock == nil {
		clock = types.NewRealClock()
	}
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	if bucketNum <= 0 {
		bucketNum = DefaultBucketNum
	}

	buckets := make([]*queue.Queue, bucketNum)
	for i := range buckets {
		buckets[i] = queue.New()
	}
	return &Wheel{
		clock:       clock,
		granularity: granularity,
		buckets:     buckets,
		last:        clock.Now(),
	}
}

// Len returns the number of armed timers.
func (w *Wheel) Len() int {
	return w.armed
}

// AddTimer arms a one-shot timer firing on the first Tick at or after delay
// from now. A zero or negative delay fires on the next Tick.
func (w *Wheel) AddTimer(delay time.Duration, task types.Task) {
	w.schedule(&entry{ticks: w.durationToTicks(delay), task: task})
}

// AddPeriodTimer arms a repeating timer with the given period. The timer
// re-arms itself after every firing and runs until the wheel is discarded.
func (w *Wheel) AddPeriodTimer(period time.Duration, task types.Task) {
	w.schedule(&entry{ticks: w.durationToTicks(period), periodic: true, task: task})
}

// Tick advances the wheel by however many granularity steps have elapsed
// since the previous Tick, firing every due timer. It returns the number of
// timers fired.
func (w *Wheel) Tick() int {
	steps := int(w.clock.Since(w.last) / w.granularity)
	if steps <= 0 {
		return 0
	}
	w.last = w.last.Add(time.Duration(steps) * w.granularity)

	fired := 0
	for s := 0; s < steps; s++ {
		w.cursor = (w.cursor + 1) % len(w.buckets)
		fired += w.drainBucket(w.buckets[w.cursor])
	}
	return fired
}

// drainBucket visits every entry currently in the bucket exactly once.
// Entries appended by fired tasks land behind the captured count and are not
// visited until a later revolution.
func (w *Wheel) drainBucket(b *queue.Queue) int {
	fired := 0
	for n := b.Length(); n > 0; n-- {
		e := b.Remove().(*entry)
		if e.rounds > 0 {
			e.rounds--
			b.Add(e)
			continue
		}

		w.armed--
		fired++
		e.task()
		if e.periodic {
			w.schedule(e)
		}
	}
	return fired
}

// durationToTicks quantizes d, rounding up so timers never fire early. The
// minimum is one tick: even a zero delay waits for the next Tick.
func (w *Wheel) durationToTicks(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	ticks := int((d + w.granularity - 1) / w.granularity)
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}

func (w *Wheel) schedule(e *entry) {
	n := len(w.buckets)
	e.rounds = (e.ticks - 1) / n
	slot := (w.cursor + e.ticks) % n
	w.buckets[slot].Add(e)
	w.armed++
}

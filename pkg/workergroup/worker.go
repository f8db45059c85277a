package workergroup

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"
	"github.com/rs/zerolog"

	"github.com/skyformat99/ccbase/pkg/taskqueue"
	"github.com/skyformat99/ccbase/pkg/timerwheel"
	"github.com/skyformat99/ccbase/pkg/types"
)

// liveWorkers maps a run-loop goroutine's id to its Worker, so tasks can
// reach "the worker currently running me" without parameter threading.
var liveWorkers sync.Map // int64 -> *Worker

// CurrentWorker returns the Worker whose run loop is executing on the calling
// goroutine, or nil when called from any other goroutine. It is how a task
// schedules timers on the worker that dequeued it.
func CurrentWorker() *Worker {
	if v, ok := liveWorkers.Load(goid.Get()); ok {
		return v.(*Worker)
	}
	return nil
}

// Worker owns one consumer lane, one timer wheel and one OS thread. Its run
// loop interleaves timer advancement, bounded batch draining and idle
// polling until the owning group is closed.
type Worker struct {
	group  *WorkerGroup
	id     int
	name   string
	lane   *taskqueue.Lane
	wheel  *timerwheel.Wheel
	poller Poller
	log    zerolog.Logger

	stop atomic.Bool
	done chan struct{}

	processed   atomic.Uint64
	timersFired atomic.Uint64
}

// newWorker registers the worker's lane and spawns its run loop immediately.
func newWorker(group *WorkerGroup, id int, poller Poller) *Worker {
	w := &Worker{
		group:  group,
		id:     id,
		name:   fmt.Sprintf("w%d-%d", group.id, id),
		lane:   group.queue.RegisterConsumer(),
		wheel:  timerwheel.New(group.clock, group.timerGranularity, 0),
		poller: poller,
		done:   make(chan struct{}),
	}
	w.log = group.logger.With().Str("worker", w.name).Logger()
	go w.run()
	return w
}

// ID returns the worker's index within its group.
func (w *Worker) ID() int {
	return w.id
}

// Name returns the worker's log name, "w<group>-<index>".
func (w *Worker) Name() string {
	return w.name
}

// Group returns the owning group.
func (w *Worker) Group() *WorkerGroup {
	return w.group
}

// Processed returns the number of tasks the worker has executed.
func (w *Worker) Processed() uint64 {
	return w.processed.Load()
}

// TimersFired returns the number of timers the worker's wheel has fired,
// counting every firing of a periodic timer.
func (w *Worker) TimersFired() uint64 {
	return w.timersFired.Load()
}

// Post submits a task targeted back at this worker. Any goroutine may call
// it; a task uses it to queue follow-up work on the same lane.
func (w *Worker) Post(task types.Task) bool {
	return w.group.PostTo(w.id, task)
}

// AddTimer arms a one-shot timer on this worker's wheel. Must be called from
// a task running on this worker; the wheel is not shared.
func (w *Worker) AddTimer(delay time.Duration, task types.Task) {
	w.wheel.AddTimer(delay, task)
}

// AddPeriodTimer arms a repeating timer on this worker's wheel. Same calling
// restriction as AddTimer.
func (w *Worker) AddPeriodTimer(period time.Duration, task types.Task) {
	w.wheel.AddPeriodTimer(period, task)
}

func (w *Worker) run() {
	// the run loop stays on one OS thread for the worker's whole life
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	gid := goid.Get()
	liveWorkers.Store(gid, w)
	defer liveWorkers.Delete(gid)
	defer close(w.done)

	w.log.Debug().Msg("worker started")

	for !w.stop.Load() {
		if fired := w.wheel.Tick(); fired > 0 {
			w.timersFired.Add(uint64(fired))
		}
		n := w.drainTasks(w.group.batchSize)
		if n < w.group.batchSize {
			w.poller.Poll(w.group.pollTimeout)
		} else {
			w.poller.Poll(0)
		}
	}

	w.log.Debug().Uint64("processed", w.processed.Load()).Msg("worker stopped")
}

// drainTasks pops and runs up to max tasks, stopping early on an empty lane.
// The cap keeps a task storm from starving the timer wheel.
func (w *Worker) drainTasks(max int) int {
	cnt := 0
	for ; cnt < max; cnt++ {
		task, ok := w.lane.Pop()
		if !ok {
			break
		}
		w.invoke(task)
	}
	return cnt
}

func (w *Worker) invoke(task types.Task) {
	defer func() {
		if r := recover(); r != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)
			w.log.Error().
				Interface("panic", r).
				Str("stack", string(buf[:n])).
				Msg("task panicked")
		}
	}()

	task()
	w.processed.Add(1)
}

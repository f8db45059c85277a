package workergroup

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/skyformat99/ccbase/pkg/taskqueue"
	"github.com/skyformat99/ccbase/pkg/types"
)

const (
	// DefaultBatchSize is the maximum number of tasks a worker drains per
	// run-loop iteration.
	DefaultBatchSize = 16

	// DefaultPollTimeout is how long an idle worker waits before rechecking
	// its lane and timer wheel.
	DefaultPollTimeout = time.Millisecond
)

// nextGroupID hands out dense, process-wide unique group ids. Ids are never
// reused, which keeps the client-cache fast path collision free.
var nextGroupID atomic.Uint64

// Config defines configuration for a worker group
type Config struct {
	// WorkerNum is the number of workers, each on its own OS thread
	WorkerNum int

	// QueueSize is the per-lane task queue capacity
	QueueSize int

	// PollerSupplier overrides the idle-wait strategy per worker index
	// (optional, defaults to a sleep-based poller)
	PollerSupplier PollerSupplier

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// Logger receives worker lifecycle and task-panic events (optional,
	// defaults to a no-op logger)
	Logger *zerolog.Logger

	// BatchSize caps tasks drained per run-loop iteration (optional)
	BatchSize int

	// PollTimeout is the idle wait hint passed to the poller (optional)
	PollTimeout time.Duration

	// TimerGranularity is the timer wheel tick duration (optional,
	// defaults to one millisecond)
	TimerGranularity time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		WorkerNum:   4,
		QueueSize:   1024,
		BatchSize:   DefaultBatchSize,
		PollTimeout: DefaultPollTimeout,
		Clock:       types.NewRealClock(),
	}
}

// WorkerGroup multiplexes task submission from arbitrary goroutines onto a
// fixed set of workers. Submissions go through a per-goroutine cached
// producer handle and never block; a full queue is reported as false.
//
// The shared queue outlives the group: goroutines holding cached producer
// handles may keep pushing after Close, and those tasks are silently dropped
// since no worker drains them anymore. Stop submitting before closing a
// group if that matters.
type WorkerGroup struct {
	id      uint64
	queue   *taskqueue.TaskQueue
	workers []*Worker

	clock            types.Clock
	logger           zerolog.Logger
	batchSize        int
	pollTimeout      time.Duration
	timerGranularity time.Duration

	dropped atomic.Uint64

	closeOnce sync.Once
}

// NewWorkerGroup creates a group of workerNum workers over a shared queue
// with queueSize capacity per lane, using the default sleep-based poller.
func NewWorkerGroup(workerNum, queueSize int) (*WorkerGroup, error) {
	return NewWorkerGroupWithConfig(&Config{WorkerNum: workerNum, QueueSize: queueSize})
}

// NewWorkerGroupWithConfig creates a worker group from the given config.
// Workers start immediately; there is no separate Start step.
func NewWorkerGroupWithConfig(config *Config) (*WorkerGroup, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if config.WorkerNum <= 0 {
		return nil, fmt.Errorf("worker num must be positive, got %d", config.WorkerNum)
	}
	if config.QueueSize <= 0 {
		return nil, fmt.Errorf("queue size must be positive, got %d", config.QueueSize)
	}

	clock := config.Clock
	if clock == nil {
		clock = types.NewRealClock()
	}
	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	pollTimeout := config.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	supplier := config.PollerSupplier
	if supplier == nil {
		defaultPoller := NewSleepPoller(clock)
		supplier = func(int) Poller { return defaultPoller }
	}

	g := &WorkerGroup{
		id:               nextGroupID.Add(1) - 1,
		queue:            taskqueue.New(config.QueueSize),
		clock:            clock,
		batchSize:        batchSize,
		pollTimeout:      pollTimeout,
		timerGranularity: config.TimerGranularity,
	}
	g.logger = logger.With().Uint64("group", g.id).Logger()

	g.workers = make([]*Worker, 0, config.WorkerNum)
	for id := 0; id < config.WorkerNum; id++ {
		g.workers = append(g.workers, newWorker(g, id, supplier(id)))
	}
	return g, nil
}

// ID returns the group's process-wide unique id.
func (g *WorkerGroup) ID() uint64 {
	return g.id
}

// WorkerNum returns the fixed worker count.
func (g *WorkerGroup) WorkerNum() int {
	return len(g.workers)
}

// Worker returns the worker at the given index, or nil when the index is
// out of range, mirroring PostTo's defined false.
func (g *WorkerGroup) Worker(id int) *Worker {
	if id < 0 || id >= len(g.workers) {
		return nil
	}
	return g.workers[id]
}

// Post submits a task to a worker of the queue's choosing. It returns false
// when every lane is full.
func (g *WorkerGroup) Post(task types.Task) bool {
	out, err := g.outQueue()
	if err != nil {
		return g.pushed(false)
	}
	return g.pushed(out.Push(task))
}

// PostTo submits a task targeted at the worker with the given index. It
// returns false when that worker's lane is full or the index is out of
// range.
func (g *WorkerGroup) PostTo(workerID int, task types.Task) bool {
	out, err := g.outQueue()
	if err != nil {
		return g.pushed(false)
	}
	return g.pushed(out.PushTo(workerID, task))
}

// PostDelayed submits a task to run after delay. The timer is registered on
// whichever worker dequeues the wrapping task, and the task later runs on
// that same worker; use PostDelayedTo for deterministic worker affinity.
func (g *WorkerGroup) PostDelayed(task types.Task, delay time.Duration) bool {
	out, err := g.outQueue()
	if err != nil {
		return g.pushed(false)
	}
	return g.pushed(out.Push(g.timerTask(delay, task, false)))
}

// PostDelayedTo submits a task to run on the given worker after delay.
func (g *WorkerGroup) PostDelayedTo(workerID int, task types.Task, delay time.Duration) bool {
	out, err := g.outQueue()
	if err != nil {
		return g.pushed(false)
	}
	return g.pushed(out.PushTo(workerID, g.timerTask(delay, task, false)))
}

// PostPeriodic submits a task to run every period. Worker placement follows
// the same rule as PostDelayed.
func (g *WorkerGroup) PostPeriodic(task types.Task, period time.Duration) bool {
	out, err := g.outQueue()
	if err != nil {
		return g.pushed(false)
	}
	return g.pushed(out.Push(g.timerTask(period, task, true)))
}

// PostPeriodicTo submits a task to run every period on the given worker.
func (g *WorkerGroup) PostPeriodicTo(workerID int, task types.Task, period time.Duration) bool {
	out, err := g.outQueue()
	if err != nil {
		return g.pushed(false)
	}
	return g.pushed(out.PushTo(workerID, g.timerTask(period, task, true)))
}

// pushed counts rejected submissions so Stats can surface them.
func (g *WorkerGroup) pushed(ok bool) bool {
	if !ok {
		g.dropped.Add(1)
	}
	return ok
}

// timerTask wraps task in a closure that registers it on the wheel of the
// worker executing the closure.
func (g *WorkerGroup) timerTask(d time.Duration, task types.Task, periodic bool) types.Task {
	return func() {
		w := CurrentWorker()
		if w == nil {
			// only reachable if the closure escapes a worker goroutine
			g.logger.Error().Msg("timer registration outside worker context, task dropped")
			return
		}
		if periodic {
			w.AddPeriodTimer(d, task)
		} else {
			w.AddTimer(d, task)
		}
	}
}

// Stats returns a snapshot of the group's counters.
func (g *WorkerGroup) Stats() Stats {
	s := Stats{
		GroupID:       g.id,
		WorkerNum:     len(g.workers),
		QueueCapacity: g.queue.Capacity(),
		Dropped:       g.dropped.Load(),
	}
	for _, w := range g.workers {
		s.Processed += w.Processed()
		s.TimersFired += w.TimersFired()
	}
	return s
}

// Stats is a point-in-time view of a group's activity.
type Stats struct {
	GroupID       uint64
	WorkerNum     int
	QueueCapacity int
	Processed     uint64
	// Dropped counts submissions rejected with false; a rejected task was
	// never queued, so it is absent from Processed
	Dropped uint64
	// TimersFired counts wheel firings across all workers, including every
	// repetition of periodic timers
	TimersFired uint64
}

// Close stops every worker and joins their threads. Tasks still queued when
// a worker observes its stop flag are abandoned, as are armed timers. Close
// is idempotent and must not be called from a task running on one of the
// group's own workers.
func (g *WorkerGroup) Close() {
	g.closeOnce.Do(func() {
		for _, w := range g.workers {
			w.stop.Store(true)
		}
		for _, w := range g.workers {
			<-w.done
		}
		g.logger.Debug().Msg("worker group closed")
	})
}

/*
Package workergroup provides a fixed-size worker group that multiplexes task
submission from arbitrary goroutines onto dedicated worker OS threads, each
of which also drives a timer wheel for delayed and periodic tasks.

# Overview

A WorkerGroup owns a bounded task queue partitioned into one consumer lane
per worker. Each worker runs a dedicated, OS-thread-locked run loop that
interleaves three things per iteration: advancing its timer wheel, draining
up to a fixed batch of tasks from its lane, and backing off through a
pluggable idle poller when the lane runs dry.

Submission never blocks. Post load-balances across lanes, PostTo targets one
worker, and both report a full queue as a plain false. PostDelayed and
PostPeriodic route a small wrapper through the queue; the wrapper registers
the real task on the timer wheel of whichever worker dequeued it, so the
eventual execution stays on that worker. Callers that need a specific worker
for timer tasks must use the targeted variants.

# Producer caching

Registering a producer handle against the queue involves bookkeeping worth
amortizing. The package caches one handle per (goroutine, group) pair in a
two-tier per-goroutine table: an array indexed by group id for the first 128
groups, a map beyond that. Group ids are dense and never reused, so the fast
path is collision free. The cache pins the shared queue, which therefore
outlives the group itself: pushes from stale handles after Close succeed and
are silently dropped.

# Usage

	group, err := workergroup.NewWorkerGroup(4, 1024)
	if err != nil {
		log.Fatal(err)
	}
	defer group.Close()

	group.Post(func() { fmt.Println("anywhere") })
	group.PostTo(0, func() { fmt.Println("on worker 0") })
	group.PostDelayedTo(0, func() { fmt.Println("later, on worker 0") }, 50*time.Millisecond)
	group.PostPeriodic(func() { fmt.Println("repeatedly") }, time.Second)

Tasks are fire-and-forget closures; there is no result propagation, no
cancellation of queued tasks, and Close abandons whatever is still queued.

# Self-referential scheduling

Code running inside a task may call CurrentWorker to reach the worker
executing it, and Worker.AddTimer or Worker.Post to schedule follow-up work
on that same worker. The delayed/periodic submission machinery is built on
exactly this.
*/
package workergroup

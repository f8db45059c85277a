package workergroup

import (
	"time"

	"github.com/skyformat99/ccbase/pkg/types"
)

// Poller is a worker's idle-wait strategy. The run loop calls Poll with a
// zero timeout when its last batch drained a full batch (more work is likely
// queued) and with a small positive timeout when the lane came up short.
// Implementations may block up to the timeout; they must not block longer.
type Poller interface {
	Poll(timeout time.Duration)
}

// PollerSupplier returns the Poller for the worker with the given index.
// It lets embedding code wire individual workers into external event loops.
type PollerSupplier func(workerID int) Poller

// PollerFunc adapts a plain function to the Poller interface.
type PollerFunc func(timeout time.Duration)

// Poll implements Poller
func (f PollerFunc) Poll(timeout time.Duration) {
	f(timeout)
}

// sleepPoller is the default strategy: sleep for the timeout, or return
// immediately when the hint is zero.
type sleepPoller struct {
	clock types.Clock
}

// NewSleepPoller returns the default sleep-based Poller. A nil clock falls
// back to the real clock.
func NewSleepPoller(clock types.Clock) Poller {
	if clock == nil {
		clock = types.NewRealClock()
	}
	return &sleepPoller{clock: clock}
}

func (p *sleepPoller) Poll(timeout time.Duration) {
	if timeout > 0 {
		p.clock.Sleep(timeout)
	}
}

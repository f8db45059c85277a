package timerwheel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyformat99/ccbase/internal/testutils"
)

func newTestWheel(t *testing.T, bucketNum int) (*Wheel, *testutils.ClockWrapper) {
	mock := testutils.NewMockClock(t)
	clock := testutils.NewClockWrapper(mock)
	return New(clock, time.Millisecond, bucketNum), clock
}

func TestWheel_TickWithoutElapsedTime(t *testing.T) {
	w, _ := newTestWheel(t, 8)

	fired := 0
	w.AddTimer(0, func() { fired++ })

	assert.Equal(t, 0, w.Tick(), "no time elapsed, nothing fires")
	assert.Equal(t, 0, fired)
	assert.Equal(t, 1, w.Len())
}

func TestWheel_ZeroDelayFiresOnNextTick(t *testing.T) {
	w, clock := newTestWheel(t, 8)

	fired := 0
	w.AddTimer(0, func() { fired++ })

	clock.Mock.Advance(time.Millisecond)
	assert.Equal(t, 1, w.Tick())
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, w.Len())

	// one-shot: further ticks never fire it again
	clock.Mock.Advance(10 * time.Millisecond)
	assert.Equal(t, 0, w.Tick())
	assert.Equal(t, 1, fired)
}

func TestWheel_DelayNeverFiresEarly(t *testing.T) {
	w, clock := newTestWheel(t, 8)

	fired := false
	w.AddTimer(2500*time.Microsecond, func() { fired = true })

	// 2.5ms rounds up to 3 ticks
	clock.Mock.Advance(2 * time.Millisecond)
	w.Tick()
	assert.False(t, fired)

	clock.Mock.Advance(time.Millisecond)
	w.Tick()
	assert.True(t, fired)
}

func TestWheel_DelayBeyondOneRevolution(t *testing.T) {
	w, clock := newTestWheel(t, 4)

	var order []string
	w.AddTimer(2*time.Millisecond, func() { order = append(order, "short") })
	w.AddTimer(10*time.Millisecond, func() { order = append(order, "long") })

	for i := 0; i < 12; i++ {
		clock.Mock.Advance(time.Millisecond)
		w.Tick()
	}
	assert.Equal(t, []string{"short", "long"}, order)
	assert.Equal(t, 0, w.Len())
}

func TestWheel_ExactRevolutionDelay(t *testing.T) {
	w, clock := newTestWheel(t, 4)

	fired := false
	w.AddTimer(4*time.Millisecond, func() { fired = true })

	clock.Mock.Advance(3 * time.Millisecond)
	w.Tick()
	require.False(t, fired)

	clock.Mock.Advance(time.Millisecond)
	w.Tick()
	assert.True(t, fired)
}

func TestWheel_CatchesUpAfterStall(t *testing.T) {
	w, clock := newTestWheel(t, 8)

	fired := 0
	w.AddTimer(time.Millisecond, func() { fired++ })
	w.AddTimer(5*time.Millisecond, func() { fired++ })

	// a single late Tick covers both deadlines
	clock.Mock.Advance(50 * time.Millisecond)
	assert.Equal(t, 2, w.Tick())
	assert.Equal(t, 2, fired)
}

func TestWheel_PeriodTimerRearms(t *testing.T) {
	w, clock := newTestWheel(t, 8)

	fired := 0
	w.AddPeriodTimer(3*time.Millisecond, func() { fired++ })

	for i := 0; i < 9; i++ {
		clock.Mock.Advance(time.Millisecond)
		w.Tick()
	}
	assert.Equal(t, 3, fired)
	assert.Equal(t, 1, w.Len(), "periodic timer stays armed")
}

func TestWheel_TaskMayRearmDuringTick(t *testing.T) {
	w, clock := newTestWheel(t, 8)

	var order []string
	w.AddTimer(time.Millisecond, func() {
		order = append(order, "first")
		w.AddTimer(time.Millisecond, func() { order = append(order, "second") })
	})

	clock.Mock.Advance(time.Millisecond)
	w.Tick()
	require.Equal(t, []string{"first"}, order)

	clock.Mock.Advance(time.Millisecond)
	w.Tick()
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestWheel_DefaultsApplied(t *testing.T) {
	w := New(nil, 0, 0)

	assert.Equal(t, DefaultBucketNum, len(w.buckets))
	assert.Equal(t, DefaultGranularity, w.granularity)
	assert.Equal(t, 0, w.Len())
}

package workergroup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyformat99/ccbase/pkg/taskqueue"
)

func TestClientTable_FastPathSlots(t *testing.T) {
	table := &clientTable{}

	ctx := table.context(5)
	assert.Same(t, &table.fast[5], ctx, "ids below the cache size resolve into the array")
	assert.Same(t, ctx, table.context(5), "repeat lookups hit the same slot")
	assert.NotSame(t, ctx, table.context(6))
	assert.Nil(t, table.overflow, "fast-path lookups must not allocate the overflow map")
}

func TestClientTable_OverflowSlots(t *testing.T) {
	table := &clientTable{}

	highID := uint64(clientCacheSize + 7)
	ctx := table.context(highID)
	require.NotNil(t, ctx)
	assert.Nil(t, ctx.out, "fresh overflow slot starts empty")

	// registration state stored in the slot survives re-lookup, so the
	// expensive registration happens at most once per (goroutine, group)
	queue := taskqueue.New(4)
	queue.RegisterConsumer()
	out, err := queue.RegisterProducer()
	require.NoError(t, err)
	ctx.queue = queue
	ctx.out = out

	again := table.context(highID)
	assert.Same(t, ctx, again)
	assert.Same(t, out, again.out)

	// distinct overflow ids get distinct slots
	other := table.context(uint64(clientCacheSize + 8))
	assert.NotSame(t, ctx, other)
	assert.Nil(t, other.out)
}

func TestClientTable_BoundaryID(t *testing.T) {
	table := &clientTable{}

	last := table.context(clientCacheSize - 1)
	first := table.context(clientCacheSize)

	assert.Same(t, &table.fast[clientCacheSize-1], last)
	require.NotNil(t, table.overflow)
	assert.Same(t, table.overflow[clientCacheSize], first)
}

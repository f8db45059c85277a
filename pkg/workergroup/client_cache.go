package workergroup

import (
	"sync"

	"github.com/petermattis/goid"

	"github.com/skyformat99/ccbase/pkg/taskqueue"
)

// clientCacheSize is the group-id range served by the array fast path. Dense
// id allocation means early-created groups all land here.
const clientCacheSize = 128

// clientContext is one goroutine's cached write access to one group's queue.
// The queue reference pins the queue for as long as the context is cached,
// independent of the owning group's lifetime.
type clientContext struct {
	queue *taskqueue.TaskQueue
	out   *taskqueue.Producer
}

// clientTable holds every cached context of a single goroutine: an array
// indexed directly by group id for the common case, a map for the long tail.
// An empty slot is detected by a nil producer handle, not by absence.
type clientTable struct {
	fast     [clientCacheSize]clientContext
	overflow map[uint64]*clientContext
}

func (t *clientTable) context(groupID uint64) *clientContext {
	if groupID < clientCacheSize {
		return &t.fast[groupID]
	}
	if t.overflow == nil {
		t.overflow = make(map[uint64]*clientContext)
	}
	ctx, ok := t.overflow[groupID]
	if !ok {
		ctx = &clientContext{}
		t.overflow[groupID] = ctx
	}
	return ctx
}

// clientTables maps a goroutine id to its clientTable. Each table is only
// ever touched by its own goroutine, so the table itself needs no locking;
// the map is the lone cross-goroutine structure on the submission path.
var clientTables sync.Map // int64 -> *clientTable

func currentClientTable() *clientTable {
	gid := goid.Get()
	if v, ok := clientTables.Load(gid); ok {
		return v.(*clientTable)
	}
	v, _ := clientTables.LoadOrStore(gid, &clientTable{})
	return v.(*clientTable)
}

// outQueue resolves the calling goroutine's producer handle for this group,
// registering one on first use. Registration happens at most once per
// (goroutine, group) pair.
func (g *WorkerGroup) outQueue() (*taskqueue.Producer, error) {
	ctx := currentClientTable().context(g.id)
	if ctx.out == nil {
		out, err := g.queue.RegisterProducer()
		if err != nil {
			return nil, err
		}
		ctx.queue = g.queue
		ctx.out = out
	}
	return ctx.out, nil
}

// ReleaseClientContext drops every producer handle cached by the calling
// goroutine, across all groups. Goroutine exit does not clean the cache up
// automatically; long-lived programs that submit from many short-lived
// goroutines should call this before those goroutines return.
func ReleaseClientContext() {
	clientTables.Delete(goid.Get())
}

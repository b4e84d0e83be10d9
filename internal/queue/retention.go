package queue

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"trueshuffle/internal/core"
)

// DefaultEvictedFalsePositiveRate bounds how often an unknown id is reported as evicted.
const DefaultEvictedFalsePositiveRate = 0.001

// retention keeps the most recent task states and remembers, approximately,
// which ids were evicted so pollers can tell "gone" from "never existed".
type retention struct {
	mutex    sync.RWMutex
	capacity int
	statuses *lru.Cache[string, *core.TaskStatus]
	evicted  *bloom.BloomFilter
}

func newRetention(capacity int, falsePositiveRate float64) *retention {
	if capacity <= 0 {
		capacity = core.DefaultResultRetention
	}
	statuses, _ := lru.New[string, *core.TaskStatus](capacity)

	return &retention{
		capacity: capacity,
		statuses: statuses,
		// Sized for ten generations of evictions before the rate degrades
		evicted: bloom.NewWithEstimates(uint(capacity)*10, falsePositiveRate), //nolint:gosec // capacity is positive
	}
}

// put inserts a new task state, evicting the least recently used one when full.
func (r *retention) put(status *core.TaskStatus) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.statuses.Contains(status.ID) && r.statuses.Len() >= r.capacity {
		if id, _, ok := r.statuses.RemoveOldest(); ok {
			r.evicted.AddString(id)
		}
	}
	r.statuses.Add(status.ID, status)
}

// get returns a copy of the task state.
func (r *retention) get(id string) (core.TaskStatus, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	status, ok := r.statuses.Get(id)
	if !ok {
		return core.TaskStatus{}, false
	}
	return *status, true
}

// update applies fn to the stored state in place.
func (r *retention) update(id string, fn func(*core.TaskStatus)) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	status, ok := r.statuses.Peek(id)
	if !ok {
		return false
	}
	fn(status)
	return true
}

// remove drops a state without remembering it as evicted.
func (r *retention) remove(id string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.statuses.Remove(id)
}

// wasEvicted may return false positives, never false negatives.
func (r *retention) wasEvicted(id string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.evicted.TestString(id)
}

func (r *retention) len() int {
	return r.statuses.Len()
}

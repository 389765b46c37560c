package shared

import (
	"hash/fnv"
	"sync"
)

// Advisory lock key spaces. Batch transitions and tank check-then-transfer
// sequences each lock their resource for the duration of one transaction.
const (
	lockSpaceProduction int64 = 1 << 32
	lockSpaceTank       int64 = 2 << 32
)

// ProductionLockKey builds the advisory lock key for one batch.
func ProductionLockKey(productionID int64) int64 {
	return lockSpaceProduction | productionID
}

// TankLockKey builds the advisory lock key for one tank location.
func TankLockKey(locationID int64) int64 {
	return lockSpaceTank | locationID
}

// KeyedMutex serializes in-process work per key. Single-writer-per-batch
// semantics: transitions on the same batch queue here, different batches
// proceed in parallel.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

// NewKeyedMutex returns an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[uint64]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *KeyedMutex) Lock(key string) func() {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	sum := h.Sum64()

	k.mu.Lock()
	m, ok := k.locks[sum]
	if !ok {
		m = &sync.Mutex{}
		k.locks[sum] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

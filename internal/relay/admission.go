package relay

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of concurrently active plugin connections.
// Acquisition is strictly non-blocking: a connection beyond capacity
// is rejected immediately rather than queued.
type Gate struct {
	sem *semaphore.Weighted
}

func NewGate(maxConnections int64) *Gate {
	return &Gate{sem: semaphore.NewWeighted(maxConnections)}
}

// TryAcquire attempts to take a permit. It never blocks; ok is false
// when the gate is at capacity.
func (g *Gate) TryAcquire() (*Permit, bool) {
	if !g.sem.TryAcquire(1) {
		return nil, false
	}
	return &Permit{sem: g.sem}, true
}

// Permit is a capacity token held for the lifetime of one connection.
// Release is idempotent so teardown paths cannot double-free a slot.
type Permit struct {
	sem  *semaphore.Weighted
	once sync.Once
}

func (p *Permit) Release() {
	p.once.Do(func() { p.sem.Release(1) })
}

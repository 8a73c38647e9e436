package service

import "sync"

// keyedLocks hands out one mutex per id. Entries are never removed; the set
// is bounded by the number of users or conversations this process touches.
type keyedLocks struct {
	m sync.Map // id -> *sync.Mutex
}

func (k *keyedLocks) lock(id uint) func() {
	m, _ := k.m.LoadOrStore(id, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

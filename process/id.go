package process

import "sync"

// IDAllocator hands out monotonically increasing process ids, starting at 0.
// Ids are never reused.
type IDAllocator struct {
	mu     sync.Mutex
	nextID uint32
}

// NewIDAllocator creates an allocator whose first id is 0.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Peek returns the id the next call to Next will return.
func (a *IDAllocator) Peek() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.nextID
}

// Next returns a fresh id.
func (a *IDAllocator) Next() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++
	return id
}

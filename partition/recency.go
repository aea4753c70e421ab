package partition

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// recency tracks which processes touched memory most recently. It reuses a
// single fully-associative cache set: the tag of each block is a pid and the
// set's LRU order is the access order. When more pids are tracked than the
// set has ways, the least recent pid is forgotten.
type recency struct {
	directory *akitacache.DirectoryImpl
}

func newRecency(capacity int) *recency {
	if capacity < 1 {
		capacity = 1
	}

	return &recency{
		directory: akitacache.NewDirectory(
			1,
			capacity,
			1,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// touch marks pid as the most recently used.
func (r *recency) touch(pid uint32) {
	tag := uint64(pid)

	block := r.directory.Lookup(0, tag)
	if block == nil || !block.IsValid {
		block = r.directory.FindVictim(tag)
		if block == nil {
			return
		}
		block.Tag = tag
		block.IsValid = true
	}

	r.directory.Visit(block)
}

// forget stops tracking pid.
func (r *recency) forget(pid uint32) {
	block := r.directory.Lookup(0, uint64(pid))
	if block != nil && block.IsValid {
		block.IsValid = false
	}
}

// leastRecent returns the least recently used tracked pid accepted by
// eligible. Blocks that are not eligible are locked while the victim finder
// runs so it skips over them.
func (r *recency) leastRecent(eligible func(pid uint32) bool) (uint32, bool) {
	blocks := r.directory.GetSets()[0].Blocks
	for _, block := range blocks {
		block.IsLocked = !block.IsValid || !eligible(uint32(block.Tag))
	}

	victim := r.directory.FindVictim(0)
	found := victim != nil && victim.IsValid && !victim.IsLocked

	for _, block := range blocks {
		block.IsLocked = false
	}

	if !found {
		return 0, false
	}
	return uint32(victim.Tag), true
}

// Package partition implements the fixed-partition memory manager, including
// roll-out and roll-in of process images through a backing store.
package partition

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/jambos/backing"
	"github.com/sarchlab/jambos/emu"
	"github.com/sarchlab/jambos/process"
)

var (
	// ErrOutOfMemory is returned when no partition is free and nothing can
	// be rolled out to make room.
	ErrOutOfMemory = errors.New("out of memory")
	// ErrNoSwap is returned for swap operations when no backing store is
	// configured.
	ErrNoSwap = errors.New("swapping is disabled")
	// ErrProgramTooLarge is returned when a program does not fit in a
	// partition.
	ErrProgramTooLarge = errors.New("program does not fit in a partition")
	// ErrNotResident is returned when a process has no partition.
	ErrNotResident = errors.New("process is not in memory")
	// ErrInvalidPartition is returned for a partition index out of range.
	ErrInvalidPartition = errors.New("invalid partition")
	// ErrPartitionInUse is returned when allocating an occupied partition.
	ErrPartitionInUse = errors.New("partition in use")
)

// DefaultRecencyCapacity is the number of processes tracked for victim
// selection unless overridden.
const DefaultRecencyCapacity = 64

// Partition is one fixed region of main memory. Base and Limit are
// inclusive physical addresses.
type Partition struct {
	Index int
	Base  uint64
	Limit uint64
	Open  bool
}

// Size returns the number of bytes in the partition.
func (p Partition) Size() uint64 {
	return p.Limit - p.Base + 1
}

// Manager owns the partition table and every move of a process image in or
// out of main memory.
type Manager struct {
	memory     *emu.Memory
	partitions []Partition
	owners     []*process.PCB
	active     int

	store   backing.Store
	recency *recency
	logger  logrus.FieldLogger
}

// Option configures a Manager.
type Option func(*Manager)

// WithBackingStore enables swapping through the given store.
func WithBackingStore(store backing.Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithRecencyCapacity sets how many processes the LRU tracker remembers.
func WithRecencyCapacity(capacity int) Option {
	return func(m *Manager) {
		m.recency = newRecency(capacity)
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager splits memory into count equal partitions. Any remainder at the
// top of memory is left unused.
func NewManager(memory *emu.Memory, count int, opts ...Option) (*Manager, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: count %d", ErrInvalidPartition, count)
	}

	size := memory.Size() / uint64(count)
	if size == 0 {
		return nil, fmt.Errorf("memory of %d bytes cannot hold %d partitions", memory.Size(), count)
	}

	m := &Manager{
		memory:     memory,
		partitions: make([]Partition, count),
		owners:     make([]*process.PCB, count),
		logger:     logrus.StandardLogger(),
	}

	for i := range m.partitions {
		base := uint64(i) * size
		m.partitions[i] = Partition{
			Index: i,
			Base:  base,
			Limit: base + size - 1,
			Open:  true,
		}
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.recency == nil {
		m.recency = newRecency(DefaultRecencyCapacity)
	}
	m.updateActive()

	return m, nil
}

// Memory returns the managed main memory.
func (m *Manager) Memory() *emu.Memory {
	return m.memory
}

// Store returns the backing store, or nil if swapping is disabled.
func (m *Manager) Store() backing.Store {
	return m.store
}

// SwapEnabled reports whether a backing store is configured.
func (m *Manager) SwapEnabled() bool {
	return m.store != nil
}

// Partitions returns a copy of the partition table.
func (m *Manager) Partitions() []Partition {
	out := make([]Partition, len(m.partitions))
	copy(out, m.partitions)
	return out
}

// PartitionSize returns the size of every partition.
func (m *Manager) PartitionSize() uint64 {
	return m.partitions[0].Size()
}

// Active returns the lowest open partition, or -1 if all are occupied.
func (m *Manager) Active() int {
	return m.active
}

// OpenPartition returns the lowest open partition index.
func (m *Manager) OpenPartition() (int, bool) {
	for i, p := range m.partitions {
		if p.Open {
			return i, true
		}
	}
	return -1, false
}

// Owner returns the process occupying partition i, or nil.
func (m *Manager) Owner(i int) *process.PCB {
	if i < 0 || i >= len(m.owners) {
		return nil
	}
	return m.owners[i]
}

// Occupied returns the owners of every occupied partition in index order.
func (m *Manager) Occupied() []*process.PCB {
	var out []*process.PCB
	for _, owner := range m.owners {
		if owner != nil {
			out = append(out, owner)
		}
	}
	return out
}

func (m *Manager) updateActive() {
	m.active, _ = m.OpenPartition()
}

// Allocate assigns partition i to pcb.
func (m *Manager) Allocate(pcb *process.PCB, i int) error {
	if i < 0 || i >= len(m.partitions) {
		return fmt.Errorf("%w: %d", ErrInvalidPartition, i)
	}
	if !m.partitions[i].Open {
		return fmt.Errorf("%w: %d", ErrPartitionInUse, i)
	}

	p := &m.partitions[i]
	p.Open = false
	m.owners[i] = pcb

	pcb.Partition = i
	pcb.Base = p.Base
	pcb.Limit = p.Limit

	m.recency.touch(pcb.PID)
	m.updateActive()

	m.logger.WithFields(logrus.Fields{
		"pid":       pcb.PID,
		"partition": i,
	}).Debug("partition allocated")

	return nil
}

// Deallocate releases everything pcb holds: its partition is zero-filled and
// reopened, and any swapped-out image is deleted.
func (m *Manager) Deallocate(pcb *process.PCB) error {
	if !pcb.InMemory() {
		return m.Discard(pcb)
	}

	if err := m.free(pcb); err != nil {
		return err
	}
	m.recency.forget(pcb.PID)

	m.logger.WithField("pid", pcb.PID).Debug("partition deallocated")
	return nil
}

// free zero-fills and reopens the partition held by pcb.
func (m *Manager) free(pcb *process.PCB) error {
	i := pcb.Partition
	if i < 0 || i >= len(m.partitions) || m.owners[i] != pcb {
		return fmt.Errorf("%w: pid %d", ErrNotResident, pcb.PID)
	}

	p := &m.partitions[i]
	if err := m.memory.Zero(p.Base, p.Limit); err != nil {
		return err
	}

	p.Open = true
	m.owners[i] = nil

	pcb.Partition = process.NoPartition
	pcb.Base = 0
	pcb.Limit = 0

	m.updateActive()
	return nil
}

// Discard deletes the swapped-out image of pcb if one exists.
func (m *Manager) Discard(pcb *process.PCB) error {
	if m.store == nil {
		return nil
	}

	err := m.store.Delete(pcb.SwapKey())
	if err != nil && !errors.Is(err, backing.ErrNotFound) {
		return fmt.Errorf("failed to discard image of pid %d: %w", pcb.PID, err)
	}
	return nil
}

// ValidateAddress reports whether the physical address lies inside the
// partition of pcb.
func (m *Manager) ValidateAddress(addr uint64, pcb *process.PCB) bool {
	if pcb == nil || !pcb.InMemory() {
		return false
	}
	return addr >= pcb.Base && addr <= pcb.Limit
}

// Load places a new program. The lowest open partition is used; when none is
// free and swapping is enabled, the image goes straight to the backing store
// and pcb is left InBackingStore.
func (m *Manager) Load(pcb *process.PCB, program []byte) error {
	if uint64(len(program)) > m.PartitionSize() {
		return fmt.Errorf("%w: %d bytes, partition holds %d",
			ErrProgramTooLarge, len(program), m.PartitionSize())
	}

	i, ok := m.OpenPartition()
	if !ok {
		if m.store == nil {
			return ErrOutOfMemory
		}
		return m.loadToStore(pcb, program)
	}

	if err := m.Allocate(pcb, i); err != nil {
		return err
	}
	if err := m.LoadProgram(pcb, program); err != nil {
		_ = m.Deallocate(pcb)
		return err
	}
	return nil
}

func (m *Manager) loadToStore(pcb *process.PCB, program []byte) error {
	image := make([]byte, m.PartitionSize())
	copy(image, program)

	if err := m.writeImage(pcb.SwapKey(), image); err != nil {
		return err
	}
	pcb.State = process.StateInBackingStore

	m.logger.WithField("pid", pcb.PID).Info("program loaded into backing store")
	return nil
}

// LoadProgram writes program at the start of the partition owned by pcb.
func (m *Manager) LoadProgram(pcb *process.PCB, program []byte) error {
	if !pcb.InMemory() {
		return fmt.Errorf("%w: pid %d", ErrNotResident, pcb.PID)
	}
	if uint64(len(program)) > pcb.Size() {
		return fmt.Errorf("%w: %d bytes, partition holds %d",
			ErrProgramTooLarge, len(program), pcb.Size())
	}
	return m.memory.Write(pcb.Base, program)
}

// Touch records that pcb used memory just now.
func (m *Manager) Touch(pcb *process.PCB) {
	if pcb.InMemory() {
		m.recency.touch(pcb.PID)
	}
}

// RollOut copies the partition of pcb to the backing store and frees it.
func (m *Manager) RollOut(pcb *process.PCB) error {
	if m.store == nil {
		return ErrNoSwap
	}
	if !pcb.InMemory() {
		return fmt.Errorf("%w: pid %d", ErrNotResident, pcb.PID)
	}

	image, err := m.memory.Read(pcb.Base, pcb.Size())
	if err != nil {
		return err
	}
	if err := m.writeImage(pcb.SwapKey(), image); err != nil {
		return err
	}

	partition := pcb.Partition
	if err := m.free(pcb); err != nil {
		return err
	}
	m.recency.forget(pcb.PID)
	pcb.State = process.StateInBackingStore

	m.logger.WithFields(logrus.Fields{
		"pid":       pcb.PID,
		"partition": partition,
	}).Info("process rolled out")

	return nil
}

// RollIn brings the image of pcb back into memory, rolling out the least
// recently used idle process when every partition is occupied. On success
// pcb is Ready.
func (m *Manager) RollIn(pcb *process.PCB) error {
	if pcb.InMemory() {
		m.recency.touch(pcb.PID)
		return nil
	}
	if m.store == nil {
		return ErrNoSwap
	}

	image, err := m.store.Read(pcb.SwapKey())
	if err != nil {
		return fmt.Errorf("failed to roll in pid %d: %w", pcb.PID, err)
	}

	i, ok := m.OpenPartition()
	if !ok {
		victim := m.victim(pcb)
		if victim == nil {
			return ErrOutOfMemory
		}
		if err := m.RollOut(victim); err != nil {
			return err
		}
		i, _ = m.OpenPartition()
	}

	if err := m.Allocate(pcb, i); err != nil {
		return err
	}
	if uint64(len(image)) > pcb.Size() {
		image = image[:pcb.Size()]
	}
	if err := m.memory.Write(pcb.Base, image); err != nil {
		return err
	}
	if err := m.store.Delete(pcb.SwapKey()); err != nil {
		return fmt.Errorf("failed to remove image of pid %d: %w", pcb.PID, err)
	}
	pcb.State = process.StateReady

	m.logger.WithFields(logrus.Fields{
		"pid":       pcb.PID,
		"partition": i,
	}).Info("process rolled in")

	return nil
}

// victim picks the in-memory process to roll out: the least recently used
// one that is neither running nor terminated. Processes the tracker has
// forgotten fall back to partition order.
func (m *Manager) victim(incoming *process.PCB) *process.PCB {
	eligible := func(pcb *process.PCB) bool {
		return pcb != nil && pcb != incoming &&
			pcb.State != process.StateRunning &&
			pcb.State != process.StateTerminated
	}

	byPID := make(map[uint32]*process.PCB, len(m.owners))
	for _, owner := range m.owners {
		if owner != nil {
			byPID[owner.PID] = owner
		}
	}

	pid, ok := m.recency.leastRecent(func(pid uint32) bool {
		return eligible(byPID[pid])
	})
	if ok {
		return byPID[pid]
	}

	for _, owner := range m.owners {
		if eligible(owner) {
			return owner
		}
	}
	return nil
}

func (m *Manager) writeImage(key string, image []byte) error {
	err := m.store.Create(key)
	if err != nil && !errors.Is(err, backing.ErrExists) {
		return fmt.Errorf("failed to create swap entry %s: %w", key, err)
	}
	if err := m.store.Write(key, image); err != nil {
		return fmt.Errorf("failed to write swap entry %s: %w", key, err)
	}
	return nil
}

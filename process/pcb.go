// Package process defines the process control block and its life cycle.
package process

import "fmt"

// State is the life-cycle state of a process.
type State uint8

// Process states.
const (
	StateNew State = iota
	StateReady
	StateRunning
	StateWaiting
	StateInBackingStore
	StateTerminated
)

var stateNames = [...]string{
	StateNew:            "new",
	StateReady:          "ready",
	StateRunning:        "running",
	StateWaiting:        "waiting",
	StateInBackingStore: "in backing store",
	StateTerminated:     "terminated",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// NoPartition marks a PCB that does not occupy a memory partition.
const NoPartition = -1

// PCB is the process control block: a snapshot of one process's registers,
// its partition assignment, and its scheduling metadata.
type PCB struct {
	PID uint32

	// Saved registers. PC is relative to Base.
	PC  uint16
	ACC uint16
	X   uint16
	Y   uint16
	Z   bool

	State State

	// Partition is the index of the owned partition, or NoPartition.
	Partition int
	// Base and Limit mirror the owned partition's bounds (inclusive).
	Base  uint64
	Limit uint64

	// Priority orders dispatch under priority scheduling; lower runs first.
	Priority    int
	ProgramSize int
}

// New creates a PCB in the New state with no partition.
func New(pid uint32, priority, programSize int) *PCB {
	return &PCB{
		PID:         pid,
		State:       StateNew,
		Partition:   NoPartition,
		Priority:    priority,
		ProgramSize: programSize,
	}
}

// InMemory reports whether the process currently owns a partition.
func (p *PCB) InMemory() bool {
	return p.Partition != NoPartition
}

// Size returns the number of bytes addressable by the process.
func (p *PCB) Size() uint64 {
	if !p.InMemory() {
		return 0
	}
	return p.Limit - p.Base + 1
}

// SwapKey is the backing-store key under which the process image is kept.
func (p *PCB) SwapKey() string {
	return SwapKey(p.PID)
}

// SwapKey derives the backing-store key for a pid.
func SwapKey(pid uint32) string {
	return fmt.Sprintf("process-%d", pid)
}

// Snapshot returns a copy of the PCB that is safe to hand to callers.
func (p *PCB) Snapshot() PCB {
	return *p
}

func (p *PCB) String() string {
	return fmt.Sprintf("pid=%d state=%s pc=%d acc=%d x=%d y=%d z=%t partition=%d priority=%d",
		p.PID, p.State, p.PC, p.ACC, p.X, p.Y, p.Z, p.Partition, p.Priority)
}

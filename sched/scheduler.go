// Package sched implements process scheduling: the resident list, the ready
// queue, quantum accounting, and the context-switch protocol.
package sched

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/jambos/process"
)

// DefaultQuantum is the round-robin quantum in executed instructions.
const DefaultQuantum = 6

var (
	// ErrUnknownAlgorithm is returned for an unrecognized algorithm name.
	ErrUnknownAlgorithm = errors.New("unknown scheduling algorithm")
	// ErrInvalidQuantum is returned for a quantum below one.
	ErrInvalidQuantum = errors.New("quantum must be at least 1")
)

// DispatchError reports a process that could not be brought onto the CPU.
// The process is back on the ready queue when it is returned.
type DispatchError struct {
	PCB *process.PCB
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("failed to dispatch pid %d: %v", e.PCB.PID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// CPU is the part of the instruction engine the scheduler drives.
type CPU interface {
	Start(pcb *process.PCB)
	Stop()
	Executing() bool
	Current() *process.PCB
	SaveContext(pcb *process.PCB)
}

// Swapper brings processes into memory before they run.
type Swapper interface {
	RollIn(pcb *process.PCB) error
	Touch(pcb *process.PCB)
}

// Scheduler decides which process the CPU runs.
type Scheduler struct {
	cpu     CPU
	swapper Swapper
	logger  logrus.FieldLogger

	resident   []*process.PCB
	readyQueue []*process.PCB

	algorithm Algorithm
	quantum   int

	cyclesSinceSwitch int
	switchPending     bool
	switches          uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithAlgorithm sets the initial algorithm.
func WithAlgorithm(a Algorithm) Option {
	return func(s *Scheduler) {
		s.algorithm = a
	}
}

// WithQuantum sets the initial round-robin quantum.
func WithQuantum(q int) Option {
	return func(s *Scheduler) {
		if q >= 1 {
			s.quantum = q
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates a round-robin scheduler driving cpu.
func NewScheduler(cpu CPU, swapper Swapper, opts ...Option) *Scheduler {
	s := &Scheduler{
		cpu:       cpu,
		swapper:   swapper,
		logger:    logrus.StandardLogger(),
		algorithm: RoundRobin,
		quantum:   DefaultQuantum,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Algorithm returns the current algorithm.
func (s *Scheduler) Algorithm() Algorithm {
	return s.algorithm
}

// Quantum returns the round-robin quantum.
func (s *Scheduler) Quantum() int {
	return s.quantum
}

// CyclesSinceSwitch returns the instructions executed since the last switch.
func (s *Scheduler) CyclesSinceSwitch() int {
	return s.cyclesSinceSwitch
}

// Switches returns the number of completed dispatches.
func (s *Scheduler) Switches() uint64 {
	return s.switches
}

// SwitchPending reports whether a context switch has been requested but not
// yet performed.
func (s *Scheduler) SwitchPending() bool {
	return s.switchPending
}

// SetAlgorithm changes the algorithm. Switching to Priority sorts the
// resident list.
func (s *Scheduler) SetAlgorithm(a Algorithm) {
	s.algorithm = a
	if a == Priority {
		s.sortResident()
	}
	s.logger.WithField("algorithm", a).Info("scheduling algorithm changed")
}

// SetQuantum changes the round-robin quantum.
func (s *Scheduler) SetQuantum(q int) error {
	if q < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantum, q)
	}
	s.quantum = q
	s.logger.WithField("quantum", q).Info("quantum changed")
	return nil
}

// Admit adds a loaded process to the resident list.
func (s *Scheduler) Admit(pcb *process.PCB) {
	s.resident = append(s.resident, pcb)
	if s.algorithm == Priority {
		s.sortResident()
	}
}

// Remove drops pcb from the resident list and the ready queue.
func (s *Scheduler) Remove(pcb *process.PCB) {
	s.resident = without(s.resident, pcb)
	s.readyQueue = without(s.readyQueue, pcb)
}

// Resident returns the resident list in scheduling order.
func (s *Scheduler) Resident() []*process.PCB {
	out := make([]*process.PCB, len(s.resident))
	copy(out, s.resident)
	return out
}

// Lookup finds a resident process by pid.
func (s *Scheduler) Lookup(pid uint32) *process.PCB {
	for _, pcb := range s.resident {
		if pcb.PID == pid {
			return pcb
		}
	}
	return nil
}

// ReadyQueue returns the ready queue, front first.
func (s *Scheduler) ReadyQueue() []*process.PCB {
	out := make([]*process.PCB, len(s.readyQueue))
	copy(out, s.readyQueue)
	return out
}

// HasReady reports whether any process is waiting to run.
func (s *Scheduler) HasReady() bool {
	return len(s.readyQueue) > 0
}

// IsQueued reports whether pcb is in the ready queue.
func (s *Scheduler) IsQueued(pcb *process.PCB) bool {
	for _, queued := range s.readyQueue {
		if queued == pcb {
			return true
		}
	}
	return false
}

// Enqueue appends pcb to the back of the ready queue once.
func (s *Scheduler) Enqueue(pcb *process.PCB) {
	if s.IsQueued(pcb) {
		return
	}
	s.readyQueue = append(s.readyQueue, pcb)
}

// ScheduleTick accounts for one executed instruction and reports whether a
// context switch should now be raised.
func (s *Scheduler) ScheduleTick() bool {
	s.cyclesSinceSwitch++

	if s.algorithm != RoundRobin || len(s.readyQueue) == 0 {
		return false
	}
	if s.cyclesSinceSwitch < s.quantum {
		return false
	}
	return s.RequestSwitch()
}

// RequestSwitch marks a context switch as pending. It returns false when one
// is already pending, so callers raise at most one switch interrupt.
func (s *Scheduler) RequestSwitch() bool {
	if s.switchPending {
		return false
	}
	s.switchPending = true
	return true
}

// SwitchContext saves the outgoing process, requeues it unless it has
// terminated, and dispatches the next process. With nothing to run the CPU
// is left idle.
func (s *Scheduler) SwitchContext() error {
	s.switchPending = false

	outgoing := s.cpu.Current()
	if outgoing != nil {
		s.cpu.SaveContext(outgoing)
		if outgoing.State != process.StateTerminated {
			outgoing.State = process.StateReady
			s.Enqueue(outgoing)
		}
	}

	next := s.next()
	if next == nil {
		s.cpu.Stop()
		s.cyclesSinceSwitch = 0
		s.logger.Debug("no process ready, cpu idle")
		return nil
	}

	if next == outgoing {
		next.State = process.StateRunning
		s.cyclesSinceSwitch = 0
		return nil
	}

	return s.bind(next)
}

// Dispatch binds pcb to an idle CPU directly.
func (s *Scheduler) Dispatch(pcb *process.PCB) error {
	s.readyQueue = without(s.readyQueue, pcb)
	return s.bind(pcb)
}

func (s *Scheduler) bind(pcb *process.PCB) error {
	if pcb.State == process.StateInBackingStore || !pcb.InMemory() {
		if err := s.swapper.RollIn(pcb); err != nil {
			s.Enqueue(pcb)
			s.cpu.Stop()
			s.cyclesSinceSwitch = 0
			return &DispatchError{PCB: pcb, Err: err}
		}
	} else {
		s.swapper.Touch(pcb)
	}

	pcb.State = process.StateRunning
	s.cpu.Start(pcb)
	s.cyclesSinceSwitch = 0
	s.switches++

	s.logger.WithField("pid", pcb.PID).Debug("process dispatched")
	return nil
}

// next removes and returns the process to run next.
func (s *Scheduler) next() *process.PCB {
	if s.algorithm == Priority {
		for _, pcb := range s.resident {
			if s.IsQueued(pcb) && pcb.State != process.StateTerminated {
				s.readyQueue = without(s.readyQueue, pcb)
				return pcb
			}
		}
	}

	for len(s.readyQueue) > 0 {
		pcb := s.readyQueue[0]
		s.readyQueue = s.readyQueue[1:]
		if pcb.State != process.StateTerminated {
			return pcb
		}
	}
	return nil
}

func (s *Scheduler) sortResident() {
	sort.SliceStable(s.resident, func(i, j int) bool {
		return s.resident[i].Priority < s.resident[j].Priority
	})
}

func without(list []*process.PCB, pcb *process.PCB) []*process.PCB {
	out := list[:0]
	for _, p := range list {
		if p != pcb {
			out = append(out, p)
		}
	}
	return out
}

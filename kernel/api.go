package kernel

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/jambos/partition"
	"github.com/sarchlab/jambos/process"
	"github.com/sarchlab/jambos/sched"
)

// Load places program in memory as a new process. The pid is consumed only
// when the load succeeds.
func (k *Kernel) Load(program []byte, priority int) (*process.PCB, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.halted {
		return nil, ErrHalted
	}

	pcb := process.New(k.pids.Peek(), priority, len(program))
	if err := k.mm.Load(pcb, program); err != nil {
		return nil, fmt.Errorf("failed to load program: %w", err)
	}
	k.pids.Next()
	k.scheduler.Admit(pcb)

	k.logger.WithFields(logrus.Fields{
		"pid":       pcb.PID,
		"partition": pcb.Partition,
		"state":     pcb.State.String(),
		"priority":  priority,
	}).Info("process loaded")

	return pcb, nil
}

// Execute marks a loaded process ready and raises its initiation interrupt.
func (k *Kernel) Execute(pid uint32) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.halted {
		return ErrHalted
	}

	pcb := k.scheduler.Lookup(pid)
	if pcb == nil {
		return fmt.Errorf("%w: %d", ErrNoSuchProcess, pid)
	}

	return k.execute(pcb)
}

func (k *Kernel) execute(pcb *process.PCB) error {
	if k.scheduled(pcb) {
		return fmt.Errorf("%w: %d", ErrAlreadyScheduled, pcb.PID)
	}

	if pcb.State != process.StateInBackingStore {
		pcb.State = process.StateReady
	}
	k.raise(Interrupt{IRQ: IRQProcessInitiation, PCB: pcb})
	return nil
}

// scheduled reports whether pcb is running, queued, or about to be started.
func (k *Kernel) scheduled(pcb *process.PCB) bool {
	if k.cpu.Current() == pcb || k.scheduler.IsQueued(pcb) {
		return true
	}
	for _, irq := range k.interrupts {
		if irq.IRQ == IRQProcessInitiation && irq.PCB == pcb {
			return true
		}
	}
	return false
}

// RunAll executes every resident process that is not yet scheduled and
// returns how many were started.
func (k *Kernel) RunAll() (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.halted {
		return 0, ErrHalted
	}

	started := 0
	for _, pcb := range k.scheduler.Resident() {
		if k.scheduled(pcb) {
			continue
		}
		if err := k.execute(pcb); err != nil {
			return started, err
		}
		started++
	}
	return started, nil
}

// Kill terminates a resident process immediately.
func (k *Kernel) Kill(pid uint32) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.halted {
		return ErrHalted
	}

	pcb := k.scheduler.Lookup(pid)
	if pcb == nil {
		return fmt.Errorf("%w: %d", ErrNoSuchProcess, pid)
	}

	k.terminationISR(pcb)
	return nil
}

// Unload removes a process that is not on the CPU.
func (k *Kernel) Unload(pid uint32) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.halted {
		return ErrHalted
	}

	pcb := k.scheduler.Lookup(pid)
	if pcb == nil {
		return fmt.Errorf("%w: %d", ErrNoSuchProcess, pid)
	}
	if k.cpu.Current() == pcb {
		return fmt.Errorf("%w: %d", ErrProcessRunning, pid)
	}

	k.terminate(pcb)
	return nil
}

// ClearMemory unloads every resident process and returns how many were
// removed. It is refused while a process is running.
func (k *Kernel) ClearMemory() (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.halted {
		return 0, ErrHalted
	}
	if k.cpu.Executing() {
		return 0, fmt.Errorf("%w: pid %d", ErrProcessRunning, k.cpu.Current().PID)
	}

	resident := k.scheduler.Resident()
	for _, pcb := range resident {
		k.terminate(pcb)
	}
	k.logger.WithField("count", len(resident)).Info("memory cleared")
	return len(resident), nil
}

// ListResident returns snapshots of every resident process in scheduling
// order.
func (k *Kernel) ListResident() []process.PCB {
	k.mu.Lock()
	defer k.mu.Unlock()

	resident := k.scheduler.Resident()
	out := make([]process.PCB, len(resident))
	for i, pcb := range resident {
		out[i] = pcb.Snapshot()
	}
	return out
}

// Lookup returns a snapshot of a resident process.
func (k *Kernel) Lookup(pid uint32) (process.PCB, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	pcb := k.scheduler.Lookup(pid)
	if pcb == nil {
		return process.PCB{}, false
	}
	return pcb.Snapshot(), true
}

// SetAlgorithm changes the scheduling algorithm.
func (k *Kernel) SetAlgorithm(a sched.Algorithm) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.scheduler.SetAlgorithm(a)
}

// Algorithm returns the scheduling algorithm.
func (k *Kernel) Algorithm() sched.Algorithm {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.scheduler.Algorithm()
}

// SetQuantum changes the round-robin quantum.
func (k *Kernel) SetQuantum(q int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.scheduler.SetQuantum(q)
}

// Quantum returns the round-robin quantum.
func (k *Kernel) Quantum() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.scheduler.Quantum()
}

// Status returns the CPU registers.
func (k *Kernel) Status() CPUStatus {
	k.mu.Lock()
	defer k.mu.Unlock()

	regs := k.cpu.RegFile()
	status := CPUStatus{
		PC:        regs.PC,
		ACC:       regs.ACC,
		X:         regs.X,
		Y:         regs.Y,
		Z:         regs.Z,
		Executing: k.cpu.Executing(),
	}
	if current := k.cpu.Current(); current != nil {
		status.PID = current.PID
	}
	return status
}

// ReadMemory copies length bytes of physical memory starting at addr.
func (k *Kernel) ReadMemory(addr, length uint64) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.memory.Read(addr, length)
}

// Partitions returns the partition table.
func (k *Kernel) Partitions() []partition.Partition {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.mm.Partitions()
}

// Swapped returns the keys of every image in the backing store.
func (k *Kernel) Swapped() ([]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.store == nil {
		return nil, nil
	}
	return k.store.List()
}

// RaiseInterrupt queues an interrupt from a device or the host.
func (k *Kernel) RaiseInterrupt(irq Interrupt) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.halted || !k.interruptsEnabled {
		return ErrHalted
	}
	k.raise(irq)
	return nil
}

// PendingInterrupts returns the interrupt queue, oldest first.
func (k *Kernel) PendingInterrupts() []Interrupt {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := make([]Interrupt, len(k.interrupts))
	copy(out, k.interrupts)
	return out
}

// Stats returns the work counters.
func (k *Kernel) Stats() Stats {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.stats
}

// Halted reports whether the kernel has halted.
func (k *Kernel) Halted() bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.halted
}

// Shutdown stops the CPU, disables interrupts, halts the kernel, and
// discards every swapped-out image.
func (k *Kernel) Shutdown() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.halted {
		return
	}
	k.cpu.Stop()
	k.interruptsEnabled = false
	k.halted = true

	if k.store != nil {
		if err := k.store.Format(); err != nil {
			k.logger.WithError(err).Warn("failed to discard swap images")
		}
	}
	k.logger.Info("kernel shut down")
}

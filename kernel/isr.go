package kernel

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/jambos/process"
	"github.com/sarchlab/jambos/sched"
)

// dispatch routes one interrupt to its service routine.
func (k *Kernel) dispatch(irq Interrupt) {
	entry := k.logger.WithFields(logrus.Fields{
		"irq":  irq.IRQ.String(),
		"tick": k.stats.Ticks,
	})
	if irq.PCB != nil {
		entry = entry.WithField("pid", irq.PCB.PID)
	}
	entry.Debug("interrupt")

	switch irq.IRQ {
	case IRQTimer:
		// Quantum expiry is accounted per instruction by the scheduler.
	case IRQKeyboard:
		k.keyboardISR(irq.Params)
	case IRQProcessInitiation:
		if irq.PCB == nil {
			k.trap("process initiation without a process", true)
			return
		}
		k.initiationISR(irq.PCB)
	case IRQProcessTermination:
		if irq.PCB == nil {
			k.trap("process termination without a process", true)
			return
		}
		k.terminationISR(irq.PCB)
	case IRQContextSwitch:
		k.contextSwitchISR()
	default:
		k.trap(fmt.Sprintf("unknown interrupt %s", irq.IRQ), true)
	}
}

func (k *Kernel) keyboardISR(params []int) {
	if k.keyboard == nil {
		k.logger.Warn("keyboard interrupt with no driver")
		return
	}
	if err := k.keyboard.HandleKeyboard(params); err != nil {
		k.trap(fmt.Sprintf("keyboard: %v", err), false)
	}
}

func (k *Kernel) initiationISR(pcb *process.PCB) {
	if !k.isResident(pcb) || pcb.State == process.StateTerminated {
		k.logger.WithField("pid", pcb.PID).Debug("stale initiation ignored")
		return
	}
	if k.cpu.Current() == pcb || k.scheduler.IsQueued(pcb) {
		return
	}

	if k.cpu.Executing() {
		k.scheduler.Enqueue(pcb)
		return
	}

	if err := k.scheduler.Dispatch(pcb); err != nil {
		k.dispatchFailed(err)
		return
	}
	k.logger.WithField("pid", pcb.PID).Info("process started")
}

func (k *Kernel) terminationISR(pcb *process.PCB) {
	if !k.isResident(pcb) {
		return
	}
	k.terminate(pcb)
	k.switchIfIdle()
}

// switchIfIdle raises a context switch when the CPU is idle but a process
// is waiting.
func (k *Kernel) switchIfIdle() {
	if !k.cpu.Executing() && k.scheduler.HasReady() && k.scheduler.RequestSwitch() {
		k.raise(Interrupt{IRQ: IRQContextSwitch})
	}
}

// terminate stops pcb if it is bound, frees its memory, and drops it from
// the scheduler.
func (k *Kernel) terminate(pcb *process.PCB) {
	if k.cpu.Current() == pcb {
		k.cpu.SaveContext(pcb)
		k.cpu.Stop()
	}
	pcb.State = process.StateTerminated

	if err := k.mm.Deallocate(pcb); err != nil {
		k.trap(fmt.Sprintf("pid %d: %v", pcb.PID, err), false)
	}
	k.scheduler.Remove(pcb)

	k.logger.WithField("pid", pcb.PID).Info("process terminated")
}

func (k *Kernel) contextSwitchISR() {
	switches := k.scheduler.Switches()
	if err := k.scheduler.SwitchContext(); err != nil {
		k.dispatchFailed(err)
		return
	}
	if k.scheduler.Switches() > switches {
		k.stats.ContextSwitches++
	}
}

// dispatchFailed reports a failed dispatch. A process that could not be
// rolled in is terminated, and the next ready process gets the CPU.
func (k *Kernel) dispatchFailed(err error) {
	k.trap(err.Error(), false)

	var dispatchErr *sched.DispatchError
	if errors.As(err, &dispatchErr) && k.isResident(dispatchErr.PCB) {
		k.terminate(dispatchErr.PCB)
	}
	k.switchIfIdle()
}

func (k *Kernel) isResident(pcb *process.PCB) bool {
	return k.scheduler.Lookup(pcb.PID) == pcb
}

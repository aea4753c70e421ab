package kernel

import (
	"fmt"

	"github.com/sarchlab/jambos/process"
)

// IRQ identifies the kind of an interrupt.
type IRQ uint8

// Interrupt kinds.
const (
	IRQTimer IRQ = iota
	IRQKeyboard
	IRQProcessInitiation
	IRQProcessTermination
	IRQContextSwitch
)

func (q IRQ) String() string {
	switch q {
	case IRQTimer:
		return "timer"
	case IRQKeyboard:
		return "keyboard"
	case IRQProcessInitiation:
		return "process-initiation"
	case IRQProcessTermination:
		return "process-termination"
	case IRQContextSwitch:
		return "context-switch"
	default:
		return fmt.Sprintf("IRQ(%d)", uint8(q))
	}
}

// Interrupt is one entry of the kernel's interrupt queue. Process interrupts
// carry a PCB; device interrupts carry raw parameters.
type Interrupt struct {
	IRQ    IRQ
	PCB    *process.PCB
	Params []int
}

// KeyboardDriver receives the parameters of keyboard interrupts.
type KeyboardDriver interface {
	HandleKeyboard(params []int) error
}

// KeyboardDriverFunc adapts a function to KeyboardDriver.
type KeyboardDriverFunc func(params []int) error

// HandleKeyboard calls f(params).
func (f KeyboardDriverFunc) HandleKeyboard(params []int) error {
	return f(params)
}

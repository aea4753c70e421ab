// Package emu provides functional jambOS CPU emulation.
package emu

import (
	"fmt"
	"io"

	"github.com/sarchlab/jambos/process"
)

// System call selectors held in the X register.
const (
	SyscallPrintInt uint16 = 1 // print Y as a decimal integer
	// Any other X value prints the NUL-terminated string at address Y.
)

// SyscallResult represents the result of a syscall execution.
type SyscallResult struct {
	// Err is set when the syscall touched memory outside the partition.
	Err error
}

// SyscallHandler is the interface for handling the SYS instruction.
type SyscallHandler interface {
	// Handle executes the syscall selected by the register file on behalf
	// of the given process.
	Handle(pcb *process.PCB) SyscallResult
}

// DefaultSyscallHandler prints to a console writer.
type DefaultSyscallHandler struct {
	regFile   *RegFile
	memory    *Memory
	validator AddressValidator
	stdout    io.Writer
}

// NewDefaultSyscallHandler creates a default syscall handler.
func NewDefaultSyscallHandler(regFile *RegFile, memory *Memory, validator AddressValidator, stdout io.Writer) *DefaultSyscallHandler {
	return &DefaultSyscallHandler{
		regFile:   regFile,
		memory:    memory,
		validator: validator,
		stdout:    stdout,
	}
}

// Handle executes the syscall indicated by the register file state.
func (h *DefaultSyscallHandler) Handle(pcb *process.PCB) SyscallResult {
	if h.regFile.X == SyscallPrintInt {
		_, _ = fmt.Fprintf(h.stdout, "%d\n", h.regFile.Y)
		return SyscallResult{}
	}
	return h.printString(pcb)
}

// printString writes the NUL-terminated string at Y. Every byte is validated
// against the calling process's partition; nothing is printed on a fault.
func (h *DefaultSyscallHandler) printString(pcb *process.PCB) SyscallResult {
	addr := pcb.Base + uint64(h.regFile.Y)

	var buf []byte
	for {
		if !h.validator.ValidateAddress(addr, pcb) {
			return SyscallResult{
				Err: fmt.Errorf("%w: string at 0x%04X runs past partition of pid %d",
					ErrInvalidAddress, h.regFile.Y, pcb.PID),
			}
		}

		b, err := h.memory.Read8(addr)
		if err != nil {
			return SyscallResult{Err: err}
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
		addr++
	}

	buf = append(buf, '\n')
	_, _ = h.stdout.Write(buf)
	return SyscallResult{}
}

// Package emu provides functional jambOS CPU emulation.
package emu

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/jambos/insts"
	"github.com/sarchlab/jambos/process"
)

var (
	// ErrInvalidOpcode is returned when the fetched byte is not an opcode.
	ErrInvalidOpcode = errors.New("invalid operation")
	// ErrInvalidAddress is returned when an operand address falls outside
	// the partition of the process that issued the access.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrPCOutOfRange is returned when a fetch runs past the partition.
	ErrPCOutOfRange = errors.New("program counter out of range")
	// ErrNotExecuting is returned by Step when no process is bound.
	ErrNotExecuting = errors.New("cpu is not executing")
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Inst is the decoded instruction, nil if the fetch itself failed.
	Inst *insts.Instruction

	// Exited is true if the bound process executed BRK.
	Exited bool

	// Err is set if the instruction could not be executed.
	Err error
}

// AddressValidator decides whether a physical address belongs to a process.
type AddressValidator interface {
	ValidateAddress(addr uint64, pcb *process.PCB) bool
}

// boundsValidator checks addresses against the PCB's own base and limit.
type boundsValidator struct{}

func (boundsValidator) ValidateAddress(addr uint64, pcb *process.PCB) bool {
	return pcb.InMemory() && addr >= pcb.Base && addr <= pcb.Limit
}

// Emulator is the jambOS instruction engine. It executes one instruction per
// Step against Memory, offsetting every address by the base of the process
// currently bound to it.
type Emulator struct {
	regFile        *RegFile
	memory         *Memory
	decoder        *insts.Decoder
	validator      AddressValidator
	syscallHandler SyscallHandler

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	// I/O
	stdout io.Writer

	// Execution state
	current          *process.PCB
	executing        bool
	instructionCount uint64
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithStdout sets the console writer used by SYS.
func WithStdout(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stdout = w
	}
}

// WithAddressValidator sets the validator consulted before every memory
// operand access.
func WithAddressValidator(v AddressValidator) EmulatorOption {
	return func(e *Emulator) {
		e.validator = v
	}
}

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler SyscallHandler) EmulatorOption {
	return func(e *Emulator) {
		e.syscallHandler = handler
	}
}

// NewEmulator creates a new instruction engine over the given memory.
func NewEmulator(memory *Memory, opts ...EmulatorOption) *Emulator {
	regFile := &RegFile{}

	e := &Emulator{
		regFile:   regFile,
		memory:    memory,
		decoder:   insts.NewDecoder(),
		validator: boundsValidator{},
		stdout:    os.Stdout,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.alu = NewALU(regFile)
	e.lsu = NewLoadStoreUnit(regFile, memory, e.alu)
	e.branchUnit = NewBranchUnit(regFile)

	if e.syscallHandler == nil {
		e.syscallHandler = NewDefaultSyscallHandler(regFile, memory, e.validator, e.stdout)
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Executing reports whether a process is bound and running.
func (e *Emulator) Executing() bool {
	return e.executing
}

// Current returns the bound process, or nil when idle.
func (e *Emulator) Current() *process.PCB {
	return e.current
}

// Start binds a process and loads its saved registers.
func (e *Emulator) Start(pcb *process.PCB) {
	e.current = pcb
	e.regFile.LoadFrom(pcb)
	e.executing = true
}

// Stop clears every register and unbinds the current process.
func (e *Emulator) Stop() {
	e.regFile.Reset()
	e.current = nil
	e.executing = false
}

// SaveContext copies the live registers into pcb.
func (e *Emulator) SaveContext(pcb *process.PCB) {
	e.regFile.SaveTo(pcb)
}

// Reset stops the emulator and clears its statistics.
func (e *Emulator) Reset() {
	e.Stop()
	e.instructionCount = 0
}

// Step executes a single instruction of the bound process.
// After every instruction that was fetched, the registers are written back
// into the bound PCB and the PCB is marked running.
func (e *Emulator) Step() StepResult {
	if !e.executing || e.current == nil {
		return StepResult{Err: ErrNotExecuting}
	}

	// 1. Fetch
	code, err := e.fetch()
	if err != nil {
		e.executing = false
		return StepResult{Err: err}
	}

	// 2. Decode
	inst := e.decoder.Decode(code)

	// 3. Execute
	result := e.execute(inst)
	if errors.Is(result.Err, ErrPCOutOfRange) {
		e.executing = false
		return result
	}

	if result.Err == nil {
		e.instructionCount++
	}

	e.regFile.SaveTo(e.current)
	e.current.State = process.StateRunning

	return result
}

// fetch reads the byte at PC and advances PC.
func (e *Emulator) fetch() (byte, error) {
	size := e.current.Size()
	if uint64(e.regFile.PC) >= size {
		return 0, fmt.Errorf("%w: pc=0x%04X, partition size %d (pid %d)",
			ErrPCOutOfRange, e.regFile.PC, size, e.current.PID)
	}

	addr := e.current.Base + uint64(e.regFile.PC)
	e.regFile.PC++
	return e.memory.Read8(addr)
}

// fetchAddress reads a two-byte little-endian operand, offsets it by the
// partition base, and validates it against the bound process.
func (e *Emulator) fetchAddress() (uint64, error) {
	lo, err := e.fetch()
	if err != nil {
		return 0, err
	}
	hi, err := e.fetch()
	if err != nil {
		return 0, err
	}

	logical := uint64(hi)<<8 | uint64(lo)
	addr := e.current.Base + logical
	if !e.validator.ValidateAddress(addr, e.current) {
		return 0, fmt.Errorf("%w: 0x%04X outside partition of pid %d",
			ErrInvalidAddress, logical, e.current.PID)
	}
	return addr, nil
}

// execute dispatches and executes a decoded instruction.
func (e *Emulator) execute(inst *insts.Instruction) StepResult {
	result := StepResult{Inst: inst}

	switch inst.Op {
	case insts.OpLDAImm, insts.OpLDXImm, insts.OpLDYImm:
		result.Err = e.executeImmediate(inst)
	case insts.OpLDAMem, insts.OpLDXMem, insts.OpLDYMem,
		insts.OpSTA, insts.OpADC, insts.OpCPX, insts.OpINC:
		result.Err = e.executeAbsolute(inst)
	case insts.OpBNE:
		offset, err := e.fetch()
		if err != nil {
			result.Err = err
			break
		}
		e.branchUnit.BNE(offset, e.current.Size())
	case insts.OpNOP:
		// PC already advanced past the opcode
	case insts.OpBRK:
		result.Exited = true
	case insts.OpSYS:
		result.Err = e.syscallHandler.Handle(e.current).Err
	default:
		result.Err = fmt.Errorf("%w: 0x%02X at pc=0x%04X (pid %d)",
			ErrInvalidOpcode, inst.Code, e.regFile.PC-1, e.current.PID)
	}

	return result
}

// executeImmediate executes the load-constant instructions.
func (e *Emulator) executeImmediate(inst *insts.Instruction) error {
	value, err := e.fetch()
	if err != nil {
		return err
	}

	switch inst.Op {
	case insts.OpLDAImm:
		e.regFile.ACC = uint16(value)
	case insts.OpLDXImm:
		e.regFile.X = uint16(value)
	case insts.OpLDYImm:
		e.regFile.Y = uint16(value)
	}
	return nil
}

// executeAbsolute executes the instructions with a memory operand.
// Memory is not touched when the address fails validation.
func (e *Emulator) executeAbsolute(inst *insts.Instruction) error {
	addr, err := e.fetchAddress()
	if err != nil {
		return err
	}

	switch inst.Op {
	case insts.OpLDAMem:
		return e.lsu.LDA(addr)
	case insts.OpLDXMem:
		return e.lsu.LDX(addr)
	case insts.OpLDYMem:
		return e.lsu.LDY(addr)
	case insts.OpSTA:
		return e.lsu.STA(addr)
	case insts.OpADC:
		value, err := e.lsu.Load(addr)
		if err != nil {
			return err
		}
		e.alu.ADC(value)
	case insts.OpCPX:
		value, err := e.lsu.Load(addr)
		if err != nil {
			return err
		}
		e.alu.CPX(value)
	case insts.OpINC:
		return e.lsu.INC(addr)
	}
	return nil
}

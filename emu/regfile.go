// Package emu provides functional jambOS CPU emulation.
package emu

import "github.com/sarchlab/jambos/process"

// RegFile represents the jambOS register file.
type RegFile struct {
	// PC is the program counter, relative to the bound partition's base.
	PC uint16

	// ACC is the accumulator.
	ACC uint16

	// X and Y are the index registers.
	X uint16
	Y uint16

	// Z is the zero flag, set by CPX when the compared values are equal.
	Z bool
}

// Reset clears every register.
func (r *RegFile) Reset() {
	*r = RegFile{}
}

// LoadFrom copies the saved registers of a PCB into the register file.
func (r *RegFile) LoadFrom(pcb *process.PCB) {
	r.PC = pcb.PC
	r.ACC = pcb.ACC
	r.X = pcb.X
	r.Y = pcb.Y
	r.Z = pcb.Z
}

// SaveTo copies the live registers into a PCB.
func (r *RegFile) SaveTo(pcb *process.PCB) {
	pcb.PC = r.PC
	pcb.ACC = r.ACC
	pcb.X = r.X
	pcb.Y = r.Y
	pcb.Z = r.Z
}

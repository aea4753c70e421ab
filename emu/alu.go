// Package emu provides functional jambOS CPU emulation.
package emu

// ALU implements the arithmetic and compare operations.
// Arithmetic is 8-bit: results wrap modulo 256.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// ADC adds a memory byte to the accumulator: ACC = (ACC + value) mod 256
func (a *ALU) ADC(value byte) {
	a.regFile.ACC = (a.regFile.ACC + uint16(value)) & 0xFF
}

// CPX sets Z when the memory byte equals the X register.
func (a *ALU) CPX(value byte) {
	a.regFile.Z = uint16(value) == a.regFile.X
}

// Increment returns value + 1 mod 256.
func (a *ALU) Increment(value byte) byte {
	return value + 1
}

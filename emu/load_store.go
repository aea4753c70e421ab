// Package emu provides functional jambOS CPU emulation.
package emu

// LoadStoreUnit implements the memory load and store operations.
// Addresses are physical and have already been validated.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory
	alu     *ALU
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory, alu *ALU) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
		alu:     alu,
	}
}

// Load reads the byte at addr.
func (lsu *LoadStoreUnit) Load(addr uint64) (byte, error) {
	return lsu.memory.Read8(addr)
}

// LDA loads the accumulator: ACC = mem[addr]
func (lsu *LoadStoreUnit) LDA(addr uint64) error {
	value, err := lsu.memory.Read8(addr)
	if err != nil {
		return err
	}
	lsu.regFile.ACC = uint16(value)
	return nil
}

// LDX loads the X register: X = mem[addr]
func (lsu *LoadStoreUnit) LDX(addr uint64) error {
	value, err := lsu.memory.Read8(addr)
	if err != nil {
		return err
	}
	lsu.regFile.X = uint16(value)
	return nil
}

// LDY loads the Y register: Y = mem[addr]
func (lsu *LoadStoreUnit) LDY(addr uint64) error {
	value, err := lsu.memory.Read8(addr)
	if err != nil {
		return err
	}
	lsu.regFile.Y = uint16(value)
	return nil
}

// STA stores the low byte of the accumulator: mem[addr] = ACC[7:0]
func (lsu *LoadStoreUnit) STA(addr uint64) error {
	return lsu.memory.Write8(addr, byte(lsu.regFile.ACC))
}

// INC increments a byte in place: mem[addr] = mem[addr] + 1
func (lsu *LoadStoreUnit) INC(addr uint64) error {
	value, err := lsu.memory.Read8(addr)
	if err != nil {
		return err
	}
	return lsu.memory.Write8(addr, lsu.alu.Increment(value))
}

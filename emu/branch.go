// Package emu provides functional jambOS CPU emulation.
package emu

// BranchUnit implements the conditional branch.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// BNE branches forward by offset bytes when Z is clear. The new PC wraps
// modulo the partition size, so offsets near 256 act as backward branches
// in a 256-byte partition.
func (b *BranchUnit) BNE(offset byte, partitionSize uint64) {
	if b.regFile.Z || partitionSize == 0 {
		return
	}
	b.regFile.PC = uint16((uint64(b.regFile.PC) + uint64(offset)) % partitionSize)
}

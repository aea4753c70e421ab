// Package insts provides the jambOS instruction definitions and decoding.
package insts

import "fmt"

// Op represents a jambOS opcode.
type Op uint8

// jambOS opcodes.
const (
	OpUnknown Op = iota
	OpLDAImm
	OpLDAMem
	OpSTA
	OpADC
	OpLDXImm
	OpLDXMem
	OpLDYImm
	OpLDYMem
	OpNOP
	OpBRK
	OpCPX
	OpBNE
	OpINC
	OpSYS
)

var opNames = [...]string{
	OpUnknown: "???",
	OpLDAImm:  "LDA",
	OpLDAMem:  "LDA",
	OpSTA:     "STA",
	OpADC:     "ADC",
	OpLDXImm:  "LDX",
	OpLDXMem:  "LDX",
	OpLDYImm:  "LDY",
	OpLDYMem:  "LDY",
	OpNOP:     "NOP",
	OpBRK:     "BRK",
	OpCPX:     "CPX",
	OpBNE:     "BNE",
	OpINC:     "INC",
	OpSYS:     "SYS",
}

// String returns the mnemonic of the opcode.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Format represents an instruction addressing format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown   Format = iota
	FormatImplied          // No operand
	FormatImmediate        // One-byte constant
	FormatAbsolute         // Two-byte address, low byte first
	FormatRelative         // One-byte branch offset
)

// Opcode bytes as they appear in program text.
const (
	CodeLDAImm byte = 0xA9
	CodeLDAMem byte = 0xAD
	CodeSTA    byte = 0x8D
	CodeADC    byte = 0x6D
	CodeLDXImm byte = 0xA2
	CodeLDXMem byte = 0xAE
	CodeLDYImm byte = 0xA0
	CodeLDYMem byte = 0xAC
	CodeNOP    byte = 0xEA
	CodeBRK    byte = 0x00
	CodeCPX    byte = 0xEC
	CodeBNE    byte = 0xD0
	CodeINC    byte = 0xEE
	CodeSYS    byte = 0xFF
)

// Instruction represents a decoded jambOS instruction.
type Instruction struct {
	Op     Op     // Operation code
	Format Format // Addressing format
	Code   byte   // Raw opcode byte
}

// OperandBytes returns the number of operand bytes following the opcode.
func (i *Instruction) OperandBytes() int {
	switch i.Format {
	case FormatImmediate, FormatRelative:
		return 1
	case FormatAbsolute:
		return 2
	default:
		return 0
	}
}

// String renders the instruction in assembler-like notation.
func (i *Instruction) String() string {
	switch i.Format {
	case FormatImmediate:
		return fmt.Sprintf("%s #const", i.Op)
	case FormatAbsolute:
		return fmt.Sprintf("%s addr", i.Op)
	case FormatRelative:
		return fmt.Sprintf("%s offset", i.Op)
	case FormatImplied:
		return i.Op.String()
	default:
		return fmt.Sprintf("??? (0x%02X)", i.Code)
	}
}

// Decoder decodes jambOS opcode bytes into instructions.
// The table is built once; decoding is a single array index.
type Decoder struct {
	table [256]Instruction
}

// NewDecoder creates a new jambOS instruction decoder.
func NewDecoder() *Decoder {
	d := &Decoder{}
	for i := range d.table {
		d.table[i] = Instruction{Op: OpUnknown, Format: FormatUnknown, Code: byte(i)}
	}

	d.register(CodeLDAImm, OpLDAImm, FormatImmediate)
	d.register(CodeLDAMem, OpLDAMem, FormatAbsolute)
	d.register(CodeSTA, OpSTA, FormatAbsolute)
	d.register(CodeADC, OpADC, FormatAbsolute)
	d.register(CodeLDXImm, OpLDXImm, FormatImmediate)
	d.register(CodeLDXMem, OpLDXMem, FormatAbsolute)
	d.register(CodeLDYImm, OpLDYImm, FormatImmediate)
	d.register(CodeLDYMem, OpLDYMem, FormatAbsolute)
	d.register(CodeNOP, OpNOP, FormatImplied)
	d.register(CodeBRK, OpBRK, FormatImplied)
	d.register(CodeCPX, OpCPX, FormatAbsolute)
	d.register(CodeBNE, OpBNE, FormatRelative)
	d.register(CodeINC, OpINC, FormatAbsolute)
	d.register(CodeSYS, OpSYS, FormatImplied)

	return d
}

func (d *Decoder) register(code byte, op Op, format Format) {
	d.table[code] = Instruction{Op: op, Format: format, Code: code}
}

// Decode decodes a single opcode byte. Unrecognized bytes decode to an
// instruction with Op == OpUnknown.
func (d *Decoder) Decode(code byte) *Instruction {
	inst := d.table[code]
	return &inst
}

// Package insts provides the jambOS instruction definitions and decoding.
//
// The instruction set is a 14-entry subset of the 6502: every instruction is
// a one-byte opcode followed by zero, one, or two operand bytes. Two-byte
// operands are addresses stored low byte first.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0xA9) // LDA #const
//	fmt.Printf("Op: %v, operand bytes: %d\n", inst.Op, inst.OperandBytes())
package insts

// Package emu provides functional jambOS CPU emulation.
package emu

import (
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"
)

// Memory is the flat, byte-addressable main memory of the simulated machine.
// It carries no semantics beyond storage; partitioning and address safety are
// enforced by the memory manager.
type Memory struct {
	storage *mem.Storage
	size    uint64
}

// NewMemory creates a zero-filled memory of the given size in bytes.
func NewMemory(size uint64) *Memory {
	return &Memory{
		storage: mem.NewStorage(size),
		size:    size,
	}
}

// Size returns the memory size in bytes.
func (m *Memory) Size() uint64 {
	return m.size
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint64) (byte, error) {
	if addr >= m.size {
		return 0, fmt.Errorf("read at 0x%04X exceeds memory size %d", addr, m.size)
	}

	data, err := m.storage.Read(addr, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to read memory at 0x%04X: %w", addr, err)
	}
	return data[0], nil
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint64, value byte) error {
	if addr >= m.size {
		return fmt.Errorf("write at 0x%04X exceeds memory size %d", addr, m.size)
	}

	if err := m.storage.Write(addr, []byte{value}); err != nil {
		return fmt.Errorf("failed to write memory at 0x%04X: %w", addr, err)
	}
	return nil
}

// Read copies length bytes starting at addr.
func (m *Memory) Read(addr, length uint64) ([]byte, error) {
	if addr+length > m.size {
		return nil, fmt.Errorf("read of %d bytes at 0x%04X exceeds memory size %d", length, addr, m.size)
	}
	if length == 0 {
		return []byte{}, nil
	}

	data, err := m.storage.Read(addr, length)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory at 0x%04X: %w", addr, err)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write stores data starting at addr.
func (m *Memory) Write(addr uint64, data []byte) error {
	if addr+uint64(len(data)) > m.size {
		return fmt.Errorf("write of %d bytes at 0x%04X exceeds memory size %d", len(data), addr, m.size)
	}
	if len(data) == 0 {
		return nil
	}

	if err := m.storage.Write(addr, data); err != nil {
		return fmt.Errorf("failed to write memory at 0x%04X: %w", addr, err)
	}
	return nil
}

// Zero fills the inclusive range [base, limit] with zeros.
func (m *Memory) Zero(base, limit uint64) error {
	if limit < base {
		return fmt.Errorf("invalid range [0x%04X, 0x%04X]", base, limit)
	}
	return m.Write(base, make([]byte, limit-base+1))
}

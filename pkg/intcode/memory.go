// Package intcode implements the Intcode virtual machine.
//
// Intcode is a stored-program machine: a flat, growable array of signed
// 64-bit integers is both code and data. The machine has an instruction
// pointer, a relative base register, and three parameter addressing modes
// (positional, immediate, relative). Execution suspends cooperatively at
// every output instruction and whenever input is requested but not
// available, so a caller can interleave several machines without threads.
package intcode

import (
	"errors"
	"fmt"

	"github.com/ednl/intcode/internal/types"
)

// Errors.
var (
	ErrNegativeRead  = errors.New("negative read address")
	ErrNegativeWrite = errors.New("negative write address")
	ErrPCOutOfRange  = errors.New("instruction pointer out of range")
	ErrImmediateWrite = errors.New("immediate mode invalid for write target")
	ErrUnknownMode   = errors.New("unknown addressing mode")
)

// Memory is one machine's address space: a growable buffer of Words.
// Unallocated cells read as zero, so any access at or beyond the current
// size grows the buffer on demand. Growth is monotonic; the buffer never
// shrinks, not even on Reset.
type Memory struct {
	cells []types.Word
}

// NewMemory creates a memory initialized to a copy of the program image.
func NewMemory(image []types.Word) *Memory {
	return &Memory{cells: types.CloneWords(image)}
}

// Read returns the cell at addr, growing the buffer if addr is beyond the
// current size. Negative addresses are a fault.
func (m *Memory) Read(addr types.Word) (types.Word, error) {
	if addr < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeRead, addr)
	}
	if err := m.grow(addr); err != nil {
		return 0, err
	}
	return m.cells[addr], nil
}

// Write stores v at addr with the same negative-address fault and
// auto-grow behavior as Read.
func (m *Memory) Write(addr, v types.Word) error {
	if addr < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeWrite, addr)
	}
	if err := m.grow(addr); err != nil {
		return err
	}
	m.cells[addr] = v
	return nil
}

// grow extends the buffer so that addr is a valid index.
func (m *Memory) grow(addr types.Word) error {
	if addr < types.Word(len(m.cells)) {
		return nil
	}
	// Grow to at least double to amortize repeated high-address touches.
	size := types.Word(len(m.cells)) * 2
	if size <= addr {
		size = addr + 1
	}
	next := make([]types.Word, size)
	copy(next, m.cells)
	m.cells = next
	return nil
}

// Size returns the current number of allocated cells.
func (m *Memory) Size() types.Word {
	return types.Word(len(m.cells))
}

// Reset restores the buffer to exactly the program image, zero-extending
// if the buffer has grown beyond the image length.
func (m *Memory) Reset(image []types.Word) {
	if len(m.cells) < len(image) {
		m.cells = make([]types.Word, len(image))
	}
	n := copy(m.cells, image)
	for i := n; i < len(m.cells); i++ {
		m.cells[i] = 0
	}
}

// Cells returns a copy of the allocated cells. Used by snapshots and tests;
// the machine's own buffer is never exposed.
func (m *Memory) Cells() []types.Word {
	return types.CloneWords(m.cells)
}

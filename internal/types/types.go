// Package types defines the core scalar types shared across the Intcode
// toolkit.
//
// A Word is one memory cell of the virtual machine. A ProgramID is the
// content address of a program image: the BLAKE3-256 digest of its cells,
// rendered base58 for display and used as the key in the run store and
// evaluation cache.
package types

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// Size constants for core types.
const (
	ProgramIDSize = 32
)

var (
	// ErrInvalidProgramID is returned when a program ID has invalid length.
	ErrInvalidProgramID = errors.New("invalid program id: must be 32 bytes")
)

// Word is a single Intcode memory cell. Programs, addresses, I/O values and
// phase settings are all Words; arithmetic never truncates below 64 bits.
type Word = int64

// ProgramID is the 32-byte BLAKE3 digest identifying a program image.
type ProgramID [ProgramIDSize]byte

// ProgramIDFromBase58 parses a base58-encoded program ID.
func ProgramIDFromBase58(s string) (ProgramID, error) {
	var id ProgramID
	decoded, err := base58.Decode(s)
	if err != nil {
		return id, fmt.Errorf("decode program id: %w", err)
	}
	if len(decoded) != ProgramIDSize {
		return id, ErrInvalidProgramID
	}
	copy(id[:], decoded)
	return id, nil
}

// String returns the base58 representation.
func (id ProgramID) String() string {
	return base58.Encode(id[:])
}

// Bytes returns the ID as a byte slice.
func (id ProgramID) Bytes() []byte {
	return id[:]
}

// IsZero returns true if the ID is all zeros.
func (id ProgramID) IsZero() bool {
	return id == ProgramID{}
}

// CloneWords returns an independent copy of a cell slice. Machine resets and
// store records must never alias a caller's buffer.
func CloneWords(w []Word) []Word {
	out := make([]Word, len(w))
	copy(out, w)
	return out
}

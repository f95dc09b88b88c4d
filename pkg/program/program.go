// Package program loads Intcode program images.
//
// The on-disk format is plain text: signed decimal integers separated by
// commas, optionally surrounded by whitespace. The loader validates that
// the number of integers matches the number of commas plus one, so a file
// with stray separators or truncated numbers is rejected rather than
// silently misloaded.
//
// Every loaded image is content-addressed: its ProgramID is the BLAKE3-256
// digest of the cells in little-endian order. The ID keys the run store,
// the evaluation cache and snapshot files.
package program

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/ednl/intcode/internal/types"
)

// Errors.
var (
	// ErrNotFound is returned when the program file cannot be opened.
	ErrNotFound = errors.New("program file not found")

	// ErrEmpty is returned for a file with no cells at all.
	ErrEmpty = errors.New("program is empty")

	// ErrBadInteger is returned when a field is not a decimal integer.
	ErrBadInteger = errors.New("program contains a non-integer field")

	// ErrCountMismatch is returned when the integer count does not match
	// the comma count plus one.
	ErrCountMismatch = errors.New("integer count does not match separator count")
)

// Program is an immutable loaded program image.
type Program struct {
	// ID is the BLAKE3 content address of the cells.
	ID types.ProgramID

	cells []types.Word
}

// Load reads and parses a program file.
func Load(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a comma-separated integer stream into a program image.
func Parse(r io.Reader) (*Program, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, ErrEmpty
	}

	// n commas = n+1 numbers; a field that is empty or non-numeric after
	// splitting shows up as a count mismatch or a bad integer.
	commas := strings.Count(text, ",")
	fields := strings.Split(text, ",")

	cells := make([]types.Word, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadInteger, field)
		}
		cells = append(cells, n)
	}

	if len(cells) != commas+1 {
		return nil, fmt.Errorf("%w: %d integers, %d commas", ErrCountMismatch, len(cells), commas)
	}

	return FromWords(cells), nil
}

// ParseString parses a program from an in-memory string.
func ParseString(s string) (*Program, error) {
	return Parse(strings.NewReader(s))
}

// FromWords builds a program from an already-parsed cell slice.
func FromWords(cells []types.Word) *Program {
	return &Program{
		ID:    Fingerprint(cells),
		cells: types.CloneWords(cells),
	}
}

// Cells returns a copy of the image. The program itself is never mutated.
func (p *Program) Cells() []types.Word {
	return types.CloneWords(p.cells)
}

// Len returns the number of cells in the image.
func (p *Program) Len() int {
	return len(p.cells)
}

// Fingerprint computes the content address of a cell slice: BLAKE3-256
// over the little-endian 8-byte encoding of each cell in order.
func Fingerprint(cells []types.Word) types.ProgramID {
	h := blake3.New()
	var buf [8]byte
	for _, c := range cells {
		binary.LittleEndian.PutUint64(buf[:], uint64(c))
		h.Write(buf[:])
	}

	var id types.ProgramID
	copy(id[:], h.Sum(nil))
	return id
}

package program

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ednl/intcode/internal/types"
)

// TestParse tests parsing of well-formed program text.
func TestParse(t *testing.T) {
	tests := []struct {
		text string
		want []types.Word
	}{
		{"1,0,0,0,99", []types.Word{1, 0, 0, 0, 99}},
		{"3,9,8,9,10,9,4,9,99,-1,8", []types.Word{3, 9, 8, 9, 10, 9, 4, 9, 99, -1, 8}},
		{"1102,34915192,34915192,7,4,7,99,0\n", []types.Word{1102, 34915192, 34915192, 7, 4, 7, 99, 0}},
		{" 104, 1125899906842624, 99 ", []types.Word{104, 1125899906842624, 99}},
		{"99", []types.Word{99}},
	}

	for _, tt := range tests {
		p, err := ParseString(tt.text)
		if err != nil {
			t.Fatalf("ParseString(%q) failed: %v", tt.text, err)
		}
		got := p.Cells()
		if len(got) != len(tt.want) {
			t.Fatalf("ParseString(%q) = %v, want %v", tt.text, got, tt.want)
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("ParseString(%q)[%d] = %d, want %d", tt.text, i, got[i], tt.want[i])
			}
		}
	}
}

// TestParseErrors tests the distinct load-time error classes.
func TestParseErrors(t *testing.T) {
	tests := []struct {
		text string
		want error
	}{
		{"", ErrEmpty},
		{"   \n", ErrEmpty},
		{"1,two,3", ErrBadInteger},
		{"1,2,", ErrCountMismatch},
		{"1,,2", ErrCountMismatch},
		{"1,2,3.5", ErrBadInteger},
	}

	for _, tt := range tests {
		_, err := ParseString(tt.text)
		if !errors.Is(err, tt.want) {
			t.Errorf("ParseString(%q) = %v, want %v", tt.text, err, tt.want)
		}
	}
}

// TestLoad tests loading from a file and the not-found error class.
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.txt")
	if err := os.WriteFile(path, []byte("1,0,0,0,99\n"), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if p.Len() != 5 {
		t.Errorf("Len() = %d, want 5", p.Len())
	}

	if _, err := Load(filepath.Join(dir, "missing.txt")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) = %v, want ErrNotFound", err)
	}
}

// TestFingerprint tests that program identity is stable and
// content-sensitive.
func TestFingerprint(t *testing.T) {
	a := Fingerprint([]types.Word{1, 0, 0, 0, 99})
	b := Fingerprint([]types.Word{1, 0, 0, 0, 99})
	c := Fingerprint([]types.Word{2, 0, 0, 0, 99})

	if a != b {
		t.Error("identical programs have different fingerprints")
	}
	if a == c {
		t.Error("different programs have the same fingerprint")
	}
	if a.IsZero() {
		t.Error("fingerprint is zero")
	}

	// Base58 round trip.
	parsed, err := types.ProgramIDFromBase58(a.String())
	if err != nil {
		t.Fatalf("ProgramIDFromBase58 failed: %v", err)
	}
	if parsed != a {
		t.Error("base58 round trip changed the ID")
	}
}

// TestCellsCopy tests that the image cannot be mutated through Cells.
func TestCellsCopy(t *testing.T) {
	p, err := ParseString("1,2,3")
	if err != nil {
		t.Fatal(err)
	}
	cells := p.Cells()
	cells[0] = 42
	if p.Cells()[0] != 1 {
		t.Error("Cells() exposes internal buffer")
	}
}

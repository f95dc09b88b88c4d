package intcode

import (
	"errors"
	"testing"

	"github.com/ednl/intcode/internal/types"
)

// TestMemoryLoad tests that a new memory matches the program image.
func TestMemoryLoad(t *testing.T) {
	image := []types.Word{1, 0, 0, 0, 99}
	mem := NewMemory(image)

	if mem.Size() != 5 {
		t.Errorf("Size() = %d, want 5", mem.Size())
	}

	for i, want := range image {
		got, err := mem.Read(types.Word(i))
		if err != nil {
			t.Fatalf("Read(%d) failed: %v", i, err)
		}
		if got != want {
			t.Errorf("Read(%d) = %d, want %d", i, got, want)
		}
	}

	// The memory must not alias the caller's image.
	image[0] = 42
	if got, _ := mem.Read(0); got != 1 {
		t.Errorf("memory aliases program image: Read(0) = %d, want 1", got)
	}
}

// TestMemoryAutoGrow tests the auto-grow invariant: reading beyond the
// current size returns 0 and does not fault.
func TestMemoryAutoGrow(t *testing.T) {
	mem := NewMemory([]types.Word{1, 2, 3})

	got, err := mem.Read(1000)
	if err != nil {
		t.Fatalf("Read(1000) failed: %v", err)
	}
	if got != 0 {
		t.Errorf("Read(1000) = %d, want 0", got)
	}
	if mem.Size() < 1001 {
		t.Errorf("Size() = %d after Read(1000), want >= 1001", mem.Size())
	}

	if err := mem.Write(5000, 7); err != nil {
		t.Fatalf("Write(5000) failed: %v", err)
	}
	if got, _ := mem.Read(5000); got != 7 {
		t.Errorf("Read(5000) = %d, want 7", got)
	}
}

// TestMemoryNegativeAddress tests that negative addresses fault.
func TestMemoryNegativeAddress(t *testing.T) {
	mem := NewMemory([]types.Word{1, 2, 3})

	if _, err := mem.Read(-1); !errors.Is(err, ErrNegativeRead) {
		t.Errorf("Read(-1) = %v, want ErrNegativeRead", err)
	}
	if err := mem.Write(-1, 0); !errors.Is(err, ErrNegativeWrite) {
		t.Errorf("Write(-1) = %v, want ErrNegativeWrite", err)
	}
}

// TestMemoryReset tests that reset restores the image and zero-fills the
// grown region without shrinking.
func TestMemoryReset(t *testing.T) {
	image := []types.Word{1, 2, 3}
	mem := NewMemory(image)

	if err := mem.Write(10, 9); err != nil {
		t.Fatalf("Write(10) failed: %v", err)
	}
	if err := mem.Write(0, 8); err != nil {
		t.Fatalf("Write(0) failed: %v", err)
	}
	grown := mem.Size()

	mem.Reset(image)

	if mem.Size() != grown {
		t.Errorf("Size() = %d after reset, want %d (never shrinks)", mem.Size(), grown)
	}
	if got, _ := mem.Read(0); got != 1 {
		t.Errorf("Read(0) = %d after reset, want 1", got)
	}
	if got, _ := mem.Read(10); got != 0 {
		t.Errorf("Read(10) = %d after reset, want 0", got)
	}
}

package intcode

import (
	"testing"

	"github.com/ednl/intcode/internal/types"
)

// TestChannelFIFO tests push/pop ordering.
func TestChannelFIFO(t *testing.T) {
	c := NewChannel()
	for _, v := range []types.Word{1, 2, 3} {
		c.Push(v)
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
	for _, want := range []types.Word{1, 2, 3} {
		v, ok := c.Pop()
		if !ok || v != want {
			t.Errorf("Pop() = (%d, %v), want (%d, true)", v, ok, want)
		}
	}
	if _, ok := c.Pop(); ok {
		t.Error("Pop() on empty channel = ok, want false")
	}
}

// TestChannelDrainOnFull tests the bounded overflow policy: a full channel
// drains to its sink instead of blocking.
func TestChannelDrainOnFull(t *testing.T) {
	var drained []types.Word
	c := NewBoundedChannel(2, func(v types.Word) { drained = append(drained, v) })

	c.Push(1)
	c.Push(2)
	c.Push(3) // overflows
	c.Push(4) // overflows

	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	if len(drained) != 2 || drained[0] != 3 || drained[1] != 4 {
		t.Errorf("drained = %v, want [3 4]", drained)
	}
}

// TestChannelSource tests the empty-pop boundary fallback.
func TestChannelSource(t *testing.T) {
	c := NewChannel()
	c.SetSource(func() types.Word { return 99 })

	c.Push(1)
	if v, ok := c.Pop(); !ok || v != 1 {
		t.Errorf("Pop() = (%d, %v), want (1, true)", v, ok)
	}
	// Queued values win; the source only feeds an empty queue.
	if v, ok := c.Pop(); !ok || v != 99 {
		t.Errorf("Pop() on empty = (%d, %v), want (99, true)", v, ok)
	}
}

// TestChannelDrain tests draining all queued values.
func TestChannelDrain(t *testing.T) {
	c := NewChannel()
	c.Push(5)
	c.Push(6)

	out := c.Drain()
	if len(out) != 2 || out[0] != 5 || out[1] != 6 {
		t.Errorf("Drain() = %v, want [5 6]", out)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after drain, want 0", c.Len())
	}
}

package evalcache

import (
	"testing"

	"github.com/ednl/intcode/internal/types"
	"github.com/ednl/intcode/pkg/pipeline"
	"github.com/ednl/intcode/pkg/program"
	"github.com/ednl/intcode/pkg/search"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestGetPut tests basic memoization.
func TestGetPut(t *testing.T) {
	c := openTestCache(t)
	id := program.Fingerprint([]types.Word{99})
	phases := []types.Word{4, 3, 2, 1, 0}

	if _, ok := c.Get(id, phases); ok {
		t.Error("Get on empty cache = hit, want miss")
	}

	if err := c.Put(id, phases, 43210); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	out, ok := c.Get(id, phases)
	if !ok || out != 43210 {
		t.Errorf("Get = (%d, %v), want (43210, true)", out, ok)
	}

	// A different assignment of the same program is a distinct entry.
	if _, ok := c.Get(id, []types.Word{0, 1, 2, 3, 4}); ok {
		t.Error("Get with different phases = hit, want miss")
	}

	// Negative outputs survive the round trip.
	if err := c.Put(id, []types.Word{0, 1, 2, 3, 4}, -5); err != nil {
		t.Fatal(err)
	}
	if out, ok := c.Get(id, []types.Word{0, 1, 2, 3, 4}); !ok || out != -5 {
		t.Errorf("Get negative = (%d, %v), want (-5, true)", out, ok)
	}
}

// TestCount tests per-program and global entry counts.
func TestCount(t *testing.T) {
	c := openTestCache(t)
	idA := program.Fingerprint([]types.Word{99})
	idB := program.Fingerprint([]types.Word{104, 0, 99})

	for i := types.Word(0); i < 3; i++ {
		if err := c.Put(idA, []types.Word{i}, i); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Put(idB, []types.Word{0}, 0); err != nil {
		t.Fatal(err)
	}

	if n, err := c.Count(idA); err != nil || n != 3 {
		t.Errorf("Count(idA) = (%d, %v), want (3, nil)", n, err)
	}
	if n, err := c.Count(types.ProgramID{}); err != nil || n != 4 {
		t.Errorf("Count(all) = (%d, %v), want (4, nil)", n, err)
	}
}

// TestSearchIntegration tests that the cache serves a warm search.
func TestSearchIntegration(t *testing.T) {
	c := openTestCache(t)

	image := []types.Word{3, 15, 3, 16, 1002, 16, 10, 16, 1, 16, 15, 15, 4, 15, 99, 0, 0}
	id := program.Fingerprint(image)
	opts := &search.Options{Cache: c, Key: id}

	o := pipeline.New(image, 5)
	eval := func(phases []types.Word) (types.Word, error) {
		return o.Chain(phases)
	}

	cold, err := search.Maximize(search.PhaseRange(0, 5), eval, opts)
	if err != nil {
		t.Fatalf("cold Maximize failed: %v", err)
	}
	if cold.Max != 43210 {
		t.Errorf("cold Max = %d, want 43210", cold.Max)
	}
	if n, _ := c.Count(id); n != 120 {
		t.Errorf("Count after cold search = %d, want 120", n)
	}

	// Warm search: same maximum, fully served from the cache.
	warm, err := search.Maximize(search.PhaseRange(0, 5), func(phases []types.Word) (types.Word, error) {
		t.Error("evaluator called on warm search")
		return 0, nil
	}, opts)
	if err != nil {
		t.Fatalf("warm Maximize failed: %v", err)
	}
	if warm.Max != cold.Max {
		t.Errorf("warm Max = %d, want %d", warm.Max, cold.Max)
	}
}

package runstore

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ednl/intcode/internal/types"
	"github.com/ednl/intcode/pkg/program"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DefaultConfig(filepath.Join(t.TempDir(), "runs.db")))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestRecordAndBest tests that best tracks the maximum output per program.
func TestRecordAndBest(t *testing.T) {
	s := openTestStore(t)
	id := program.Fingerprint([]types.Word{99})

	outputs := []types.Word{43210, 10, 65210, 54321}
	for _, out := range outputs {
		err := s.RecordRun(&RunRecord{
			Program: id,
			Mode:    ModeChain,
			Phases:  []types.Word{0, 1, 2, 3, 4},
			Output:  out,
			Rounds:  1,
		})
		if err != nil {
			t.Fatalf("RecordRun(%d) failed: %v", out, err)
		}
	}

	best, err := s.Best(id)
	if err != nil {
		t.Fatalf("Best failed: %v", err)
	}
	if best.Output != 65210 {
		t.Errorf("Best.Output = %d, want 65210", best.Output)
	}
	if s.RunCount() != 4 {
		t.Errorf("RunCount() = %d, want 4", s.RunCount())
	}
}

// TestBestNotFound tests the missing-program error.
func TestBestNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Best(program.Fingerprint([]types.Word{1, 2})); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Best(unknown) = %v, want ErrRunNotFound", err)
	}
}

// TestHistory tests per-program history, newest first, with limits.
func TestHistory(t *testing.T) {
	s := openTestStore(t)
	idA := program.Fingerprint([]types.Word{99})
	idB := program.Fingerprint([]types.Word{104, 0, 99})

	for i := types.Word(1); i <= 3; i++ {
		if err := s.RecordRun(&RunRecord{Program: idA, Mode: ModeFeedback, Output: i, Rounds: int(i)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RecordRun(&RunRecord{Program: idB, Mode: ModeRun, Output: 7, Rounds: 1}); err != nil {
		t.Fatal(err)
	}

	hist, err := s.History(idA, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("History(idA) = %d records, want 3", len(hist))
	}
	for i, want := range []types.Word{3, 2, 1} {
		if hist[i].Output != want {
			t.Errorf("History[%d].Output = %d, want %d (newest first)", i, hist[i].Output, want)
		}
	}

	limited, err := s.History(idA, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 || limited[0].Output != 3 {
		t.Errorf("History(idA, 2) = %v, want newest 2 records", limited)
	}

	histB, err := s.History(idB, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(histB) != 1 || histB[0].Output != 7 {
		t.Errorf("History(idB) = %v, want single record with output 7", histB)
	}
}

// TestPrune tests removal of old runs while best records survive.
func TestPrune(t *testing.T) {
	s := openTestStore(t)
	id := program.Fingerprint([]types.Word{99})

	old := time.Now().Add(-48 * time.Hour)
	if err := s.RecordRun(&RunRecord{Program: id, Mode: ModeChain, Output: 100, When: old}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordRun(&RunRecord{Program: id, Mode: ModeChain, Output: 5}); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Prune(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Prune removed %d runs, want 1", removed)
	}

	hist, err := s.History(id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].Output != 5 {
		t.Errorf("History after prune = %v, want only the recent run", hist)
	}

	// The pruned run was the best; its best record must survive.
	best, err := s.Best(id)
	if err != nil {
		t.Fatalf("Best after prune failed: %v", err)
	}
	if best.Output != 100 {
		t.Errorf("Best.Output after prune = %d, want 100", best.Output)
	}
}

// TestReopen tests that counters and records persist across open/close.
func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	id := program.Fingerprint([]types.Word{99})

	s, err := Open(DefaultConfig(path))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RecordRun(&RunRecord{Program: id, Mode: ModeRun, Output: 9}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(DefaultConfig(path))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if s.RunCount() != 1 {
		t.Errorf("RunCount() after reopen = %d, want 1", s.RunCount())
	}
	best, err := s.Best(id)
	if err != nil {
		t.Fatal(err)
	}
	if best.Output != 9 {
		t.Errorf("Best.Output after reopen = %d, want 9", best.Output)
	}
}

// TestClosed tests the closed-store error.
func TestClosed(t *testing.T) {
	s := openTestStore(t)
	s.Close()

	if err := s.RecordRun(&RunRecord{}); !errors.Is(err, ErrClosed) {
		t.Errorf("RecordRun on closed = %v, want ErrClosed", err)
	}
	if _, err := s.Best(types.ProgramID{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Best on closed = %v, want ErrClosed", err)
	}
}

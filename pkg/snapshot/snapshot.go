// Package snapshot persists suspended machine state to disk.
//
// A snapshot freezes one machine mid-execution: the full (possibly grown)
// memory image, the instruction pointer, the relative base and the halted
// flag. Restoring it yields a machine that resumes exactly where the saved
// one suspended, so long-running pipeline searches can be checkpointed and
// interactive runs frozen.
//
// On disk a snapshot is a zstd stream over a small binary envelope:
//
//	magic "INTS" | version u16 | program id 32B | ip i64 | relbase i64 |
//	halted u8 | cell count u64 | cells (little-endian i64 each)
//
// Filenames follow intsnap-ID-NANOS.bin.zst, where ID is the base58
// program ID and NANOS the creation time, so directory listings sort and
// filter without opening files.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/ednl/intcode/internal/types"
	"github.com/ednl/intcode/pkg/intcode"
)

// Format constants.
const (
	formatVersion = 1
	maxCells      = 1 << 30 // refuse absurd headers before allocating
)

var magic = []byte("INTS")

// Errors.
var (
	// ErrBadMagic indicates the file is not a snapshot.
	ErrBadMagic = errors.New("not a snapshot file")

	// ErrBadVersion indicates an unsupported snapshot version.
	ErrBadVersion = errors.New("unsupported snapshot version")

	// ErrCorrupt indicates a truncated or inconsistent snapshot.
	ErrCorrupt = errors.New("corrupt snapshot")
)

// snapshotPattern matches intsnap-ID-NANOS.bin.zst.
var snapshotPattern = regexp.MustCompile(`^intsnap-([1-9A-HJ-NP-Za-km-z]+)-(\d+)\.bin\.zst$`)

// saveSeq disambiguates snapshot filenames created in the same nanosecond.
var saveSeq atomic.Int64

// State is the saved machine state together with its program identity.
type State struct {
	ID      types.ProgramID
	Machine intcode.MachineState
}

// Info describes one snapshot file found on disk.
type Info struct {
	Path      string
	ID        types.ProgramID
	CreatedAt time.Time
	Size      int64
}

// Save writes a snapshot of st into dir and returns the file path.
func Save(dir string, st *State) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot directory: %w", err)
	}

	// The sequence counter keeps names unique and ordered even when two
	// saves land on the same clock tick.
	name := fmt.Sprintf("intsnap-%s-%d.bin.zst", st.ID, time.Now().UnixNano()+saveSeq.Add(1))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}

	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return "", fmt.Errorf("zstd writer: %w", err)
	}

	if err := writeState(enc, st); err != nil {
		enc.Close()
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("flush snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	return path, nil
}

// Load reads a snapshot file back into a State.
func Load(path string) (*State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	return readState(dec)
}

// Find lists snapshots in dir, optionally filtered to one program ID
// (pass the zero ID for all), newest first.
func Find(dir string, id types.ProgramID) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot directory: %w", err)
	}

	var snaps []Info
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := snapshotPattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		snapID, err := types.ProgramIDFromBase58(matches[1])
		if err != nil {
			continue
		}
		if !id.IsZero() && snapID != id {
			continue
		}
		nanos, err := strconv.ParseInt(matches[2], 10, 64)
		if err != nil {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		snaps = append(snaps, Info{
			Path:      filepath.Join(dir, entry.Name()),
			ID:        snapID,
			CreatedAt: time.Unix(0, nanos),
			Size:      fi.Size(),
		})
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})
	return snaps, nil
}

// writeState serializes the snapshot envelope.
func writeState(w io.Writer, st *State) error {
	if _, err := w.Write(magic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}

	var halted uint8
	if st.Machine.Halted {
		halted = 1
	}

	header := make([]byte, 2+32+8+8+1+8)
	binary.LittleEndian.PutUint16(header[0:], formatVersion)
	copy(header[2:], st.ID[:])
	binary.LittleEndian.PutUint64(header[34:], uint64(st.Machine.PC))
	binary.LittleEndian.PutUint64(header[42:], uint64(st.Machine.RelBase))
	header[50] = halted
	binary.LittleEndian.PutUint64(header[51:], uint64(len(st.Machine.Cells)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	buf := make([]byte, 8)
	for _, c := range st.Machine.Cells {
		binary.LittleEndian.PutUint64(buf, uint64(c))
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write cells: %w", err)
		}
	}
	return nil
}

// readState deserializes the snapshot envelope.
func readState(r io.Reader) (*State, error) {
	got := make([]byte, len(magic))
	if _, err := io.ReadFull(r, got); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	for i := range magic {
		if got[i] != magic[i] {
			return nil, ErrBadMagic
		}
	}

	header := make([]byte, 2+32+8+8+1+8)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrCorrupt, err)
	}
	if v := binary.LittleEndian.Uint16(header[0:]); v != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}

	st := &State{}
	copy(st.ID[:], header[2:34])
	st.Machine.PC = int64(binary.LittleEndian.Uint64(header[34:]))
	st.Machine.RelBase = int64(binary.LittleEndian.Uint64(header[42:]))
	st.Machine.Halted = header[50] == 1

	count := binary.LittleEndian.Uint64(header[51:])
	if count > maxCells {
		return nil, fmt.Errorf("%w: %d cells", ErrCorrupt, count)
	}

	st.Machine.Cells = make([]types.Word, count)
	buf := make([]byte, 8)
	for i := range st.Machine.Cells {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%w: short cells: %v", ErrCorrupt, err)
		}
		st.Machine.Cells[i] = int64(binary.LittleEndian.Uint64(buf))
	}
	return st, nil
}

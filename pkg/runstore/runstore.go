// Package runstore provides persistent storage for completed Intcode runs.
//
// Every pipeline evaluation the toolkit reports — a standalone run, a
// chain pass, a feedback search — can be recorded here, keyed by the
// program's content address. The store keeps a full append-only history
// per program plus the best result seen, so repeated searches over the
// same program can show their provenance.
package runstore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ednl/intcode/internal/types"
)

var (
	// ErrRunNotFound is returned when no run matches the query.
	ErrRunNotFound = errors.New("run not found")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("run store closed")

	// ErrReadOnly is returned for writes on a read-only store.
	ErrReadOnly = errors.New("run store is read-only")
)

// Bucket names for BoltDB.
var (
	// bucketRuns stores run records keyed by program ID + sequence.
	bucketRuns = []byte("runs")

	// bucketBest stores the best record per program ID.
	bucketBest = []byte("best")

	// bucketMetadata stores store-wide counters.
	bucketMetadata = []byte("metadata")
)

// Metadata keys.
var (
	keyRunCount = []byte("run_count")
)

// Mode labels how a run was orchestrated.
type Mode string

const (
	ModeRun      Mode = "run"
	ModeChain    Mode = "chain"
	ModeFeedback Mode = "feedback"
)

// RunRecord is one recorded pipeline evaluation.
type RunRecord struct {
	// Program is the content address of the executed image.
	Program types.ProgramID

	// Mode says how the machines were wired.
	Mode Mode

	// Phases is the phase configuration, nil for standalone runs.
	Phases []types.Word

	// Output is the scalar result (the last output value).
	Output types.Word

	// Rounds is the number of feedback rounds, 1 for chain and standalone.
	Rounds int

	// When is the completion time.
	When time.Time

	// Seq is the store-wide sequence number, assigned on record.
	Seq uint64
}

// Config holds run store configuration options.
type Config struct {
	// Path is the database file path.
	Path string

	// NoSync disables fsync after each write (faster but less durable).
	NoSync bool

	// ReadOnly opens the database in read-only mode.
	ReadOnly bool
}

// DefaultConfig returns the default run store configuration.
func DefaultConfig(path string) Config {
	return Config{Path: path}
}

// Store is a bbolt-backed run history.
type Store struct {
	db     *bolt.DB
	config Config

	mu       sync.RWMutex
	runCount uint64
	closed   bool
}

// Open creates or opens a run store at the configured path.
func Open(config Config) (*Store, error) {
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	opts := &bolt.Options{
		Timeout:  5 * time.Second,
		NoSync:   config.NoSync,
		ReadOnly: config.ReadOnly,
	}
	db, err := bolt.Open(config.Path, 0600, opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, config: config}

	if !config.ReadOnly {
		if err := s.initBuckets(); err != nil {
			db.Close()
			return nil, fmt.Errorf("init buckets: %w", err)
		}
	}
	if err := s.loadCounters(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load counters: %w", err)
	}
	return s, nil
}

// initBuckets creates all required buckets.
func (s *Store) initBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketRuns, bucketBest, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// loadCounters loads the cached run counter.
func (s *Store) loadCounters() error {
	return s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMetadata)
		if meta == nil {
			return nil // empty read-only database
		}
		if v := meta.Get(keyRunCount); len(v) == 8 {
			s.runCount = binary.BigEndian.Uint64(v)
		}
		return nil
	})
}

// runKey builds the runs-bucket key: program ID then big-endian sequence,
// so one program's history is a contiguous, ordered key range.
func runKey(id types.ProgramID, seq uint64) []byte {
	key := make([]byte, types.ProgramIDSize+8)
	copy(key, id[:])
	binary.BigEndian.PutUint64(key[types.ProgramIDSize:], seq)
	return key
}

func encodeSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

// RecordRun appends a run to the history and updates the program's best
// record when the output improves on it. The record's Seq and When fields
// are assigned here.
func (s *Store) RecordRun(rec *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.config.ReadOnly {
		return ErrReadOnly
	}

	rec.Seq = s.runCount + 1
	if rec.When.IsZero() {
		rec.When = time.Now()
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("encode run: %w", err)
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket(bucketRuns)
		if err := runs.Put(runKey(rec.Program, rec.Seq), buf.Bytes()); err != nil {
			return err
		}

		best := tx.Bucket(bucketBest)
		if better, err := improvesBest(best, rec); err != nil {
			return err
		} else if better {
			if err := best.Put(rec.Program[:], buf.Bytes()); err != nil {
				return err
			}
		}

		meta := tx.Bucket(bucketMetadata)
		return meta.Put(keyRunCount, encodeSeq(rec.Seq))
	})
	if err != nil {
		return err
	}

	s.runCount = rec.Seq
	return nil
}

// improvesBest reports whether rec beats the stored best for its program.
func improvesBest(best *bolt.Bucket, rec *RunRecord) (bool, error) {
	data := best.Get(rec.Program[:])
	if data == nil {
		return true, nil
	}
	var cur RunRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&cur); err != nil {
		return false, fmt.Errorf("decode best: %w", err)
	}
	return rec.Output > cur.Output, nil
}

// Best returns the highest-output run recorded for a program.
func (s *Store) Best(id types.ProgramID) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var rec RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		best := tx.Bucket(bucketBest)
		if best == nil {
			return ErrRunNotFound
		}
		data := best.Get(id[:])
		if data == nil {
			return ErrRunNotFound
		}
		return gob.NewDecoder(bytes.NewReader(data)).Decode(&rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// History returns a program's runs, newest first, up to limit (0 = all).
func (s *Store) History(id types.ProgramID, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var recs []RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		runs := tx.Bucket(bucketRuns)
		if runs == nil {
			return nil
		}

		// Walk the program's key range backwards from its upper bound.
		c := runs.Cursor()
		upper := runKey(id, ^uint64(0))
		k, v := c.Seek(upper)
		if k == nil {
			k, v = c.Last()
		} else if !bytes.Equal(k, upper) {
			k, v = c.Prev()
		}
		for ; k != nil && bytes.HasPrefix(k, id[:]); k, v = c.Prev() {
			var rec RunRecord
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&rec); err != nil {
				return fmt.Errorf("decode run: %w", err)
			}
			recs = append(recs, rec)
			if limit > 0 && len(recs) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// RunCount returns the total number of recorded runs.
func (s *Store) RunCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runCount
}

// Prune removes runs completed before the cutoff, returning the number
// removed. Best records are kept regardless of age.
func (s *Store) Prune(before time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.config.ReadOnly {
		return 0, ErrReadOnly
	}

	var removed uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket(bucketRuns)
		c := runs.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec RunRecord
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&rec); err != nil {
				return fmt.Errorf("decode run: %w", err)
			}
			if rec.When.Before(before) {
				if err := c.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Sync flushes the database to disk.
func (s *Store) Sync() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.Sync()
}

// Close closes the store. Further operations return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

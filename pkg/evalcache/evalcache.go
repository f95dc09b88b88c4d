// Package evalcache provides the BadgerDB-backed evaluation cache.
//
// A permutation search evaluates the same (program, phase assignment)
// pairs every time it reruns, and a pipeline evaluation is pure: same
// image, same phases, same output. The cache memoizes those evaluations
// across search invocations. It satisfies search.Cache.
//
// Key design decisions:
//   - Keys are prefix + program ID + the phase words, so one program's
//     entries form a contiguous prefix range
//   - Values are the single 8-byte output word
//   - Reads that fail for any reason degrade to a cache miss; the search
//     just re-evaluates
package evalcache

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/ednl/intcode/internal/types"
)

// Key prefixes for BadgerDB storage.
var (
	// prefixEval is the prefix for evaluation entries.
	// Key format: prefixEval + program ID (32 bytes) + phases (8 bytes each)
	prefixEval = []byte{0x01}
)

// Config contains configuration for the cache database.
type Config struct {
	// Path is the directory path for the database.
	Path string

	// InMemory runs the database in memory (for testing).
	InMemory bool

	// SyncWrites ensures writes are synced to disk.
	SyncWrites bool

	// Logger is an optional logger. Nil disables BadgerDB logging.
	Logger badger.Logger
}

// DefaultConfig returns default configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: false, // async: losing a cache entry only costs a re-run
		Logger:     nil,
	}
}

// Cache is a BadgerDB-backed evaluation cache.
type Cache struct {
	db     *badger.DB
	closed atomic.Bool
}

// Open creates or opens an evaluation cache.
func Open(cfg Config) (*Cache, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(cfg.Logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Cache{db: db}, nil
}

// evalKey builds the cache key for one evaluation.
func evalKey(id types.ProgramID, phases []types.Word) []byte {
	key := make([]byte, 0, len(prefixEval)+types.ProgramIDSize+8*len(phases))
	key = append(key, prefixEval...)
	key = append(key, id[:]...)
	var buf [8]byte
	for _, p := range phases {
		binary.LittleEndian.PutUint64(buf[:], uint64(p))
		key = append(key, buf[:]...)
	}
	return key
}

// Get returns the memoized output for an evaluation, if present.
// Implements search.Cache.
func (c *Cache) Get(id types.ProgramID, phases []types.Word) (types.Word, bool) {
	if c.closed.Load() {
		return 0, false
	}

	var out types.Word
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(evalKey(id, phases))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return badger.ErrKeyNotFound
			}
			out = int64(binary.LittleEndian.Uint64(val))
			return nil
		})
	})
	if err != nil {
		return 0, false
	}
	return out, true
}

// Put memoizes one evaluation. Implements search.Cache.
func (c *Cache) Put(id types.ProgramID, phases []types.Word, out types.Word) error {
	if c.closed.Load() {
		return badger.ErrDBClosed
	}

	var val [8]byte
	binary.LittleEndian.PutUint64(val[:], uint64(out))
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(evalKey(id, phases), val[:])
	})
}

// Count returns the number of cached evaluations for a program, or for
// all programs when given the zero ID.
func (c *Cache) Count(id types.ProgramID) (int, error) {
	if c.closed.Load() {
		return 0, badger.ErrDBClosed
	}

	prefix := prefixEval
	if !id.IsZero() {
		prefix = append(append([]byte{}, prefixEval...), id[:]...)
	}

	count := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.db.Close()
}

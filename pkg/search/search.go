// Package search enumerates phase configurations and maximizes a pipeline.
//
// Permutations are generated in lexicographic order with the classic
// next-permutation step: find the longest non-increasing suffix, pivot on
// the element before it, swap in the smallest larger suffix element, then
// reverse the suffix. Enumeration is exhaustive — N is small, so all N!
// assignments are tried — and the reported maximum is independent of
// enumeration order.
package search

import (
	"errors"
	"sort"

	"github.com/ednl/intcode/internal/types"
)

var (
	// ErrNoValues is returned for an empty phase value set.
	ErrNoValues = errors.New("no phase values to permute")
)

// Evaluator scores one phase assignment. The slice is reused between
// calls; implementations must not retain it.
type Evaluator func(phases []types.Word) (types.Word, error)

// Cache memoizes evaluations across search invocations, keyed by the
// program identity and the exact phase assignment.
type Cache interface {
	Get(id types.ProgramID, phases []types.Word) (types.Word, bool)
	Put(id types.ProgramID, phases []types.Word, out types.Word) error
}

// Options configures a search.
type Options struct {
	// Cache, when set together with a non-zero Key, short-circuits
	// evaluations already seen.
	Cache Cache

	// Key identifies the program being searched, for cache addressing.
	Key types.ProgramID
}

// Result is the outcome of an exhaustive search.
type Result struct {
	// Max is the best pipeline output over all assignments.
	Max types.Word

	// Phases is a copy of the assignment that produced Max.
	Phases []types.Word

	// Trials is the number of permutations evaluated, cache hits included.
	Trials int
}

// Maximize evaluates every permutation of values and returns the maximum.
// The input slice is not modified.
func Maximize(values []types.Word, eval Evaluator, opts *Options) (Result, error) {
	if len(values) == 0 {
		return Result{}, ErrNoValues
	}

	// Lexicographic enumeration starts from the sorted sequence.
	phases := types.CloneWords(values)
	sort.Slice(phases, func(i, j int) bool { return phases[i] < phases[j] })

	var (
		res   Result
		first = true
	)
	for {
		res.Trials++

		out, ok := cacheGet(opts, phases)
		if !ok {
			var err error
			out, err = eval(phases)
			if err != nil {
				return Result{}, err
			}
			cachePut(opts, phases, out)
		}

		if first || out > res.Max {
			res.Max = out
			res.Phases = types.CloneWords(phases)
			first = false
		}

		if !NextPermutation(phases) {
			return res, nil
		}
	}
}

func cacheGet(opts *Options, phases []types.Word) (types.Word, bool) {
	if opts == nil || opts.Cache == nil || opts.Key.IsZero() {
		return 0, false
	}
	return opts.Cache.Get(opts.Key, phases)
}

func cachePut(opts *Options, phases []types.Word, out types.Word) {
	if opts == nil || opts.Cache == nil || opts.Key.IsZero() {
		return
	}
	// A failed cache write only costs a future re-evaluation.
	_ = opts.Cache.Put(opts.Key, phases, out)
}

// NextPermutation rearranges a into its lexicographic successor, returning
// false when a is the final (non-increasing) permutation.
func NextPermutation(a []types.Word) bool {
	// Largest k with a[k-1] < a[k]; none means we are done.
	k := len(a) - 1
	for k > 0 && a[k-1] >= a[k] {
		k--
	}
	if k == 0 {
		return false
	}
	k--

	// Largest l with a[k] < a[l]; l >= k+1 exists by construction.
	l := len(a) - 1
	for a[l] <= a[k] {
		l--
	}
	a[k], a[l] = a[l], a[k]

	// Reverse the suffix.
	for i, j := k+1, len(a)-1; i < j; i, j = i+1, j-1 {
		a[i], a[j] = a[j], a[i]
	}
	return true
}

// PhaseRange returns the contiguous block of n phase values starting at
// base: the chain search uses base 0, the feedback search base 5.
func PhaseRange(base types.Word, n int) []types.Word {
	values := make([]types.Word, n)
	for i := range values {
		values[i] = base + types.Word(i)
	}
	return values
}

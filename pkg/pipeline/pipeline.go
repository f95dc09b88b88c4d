// Package pipeline wires Intcode machines into chains and feedback loops.
//
// The orchestrator is the sole scheduler: machines run one at a time, in
// fixed index order, each until it suspends on an output, starves for
// input, or halts. There is no true parallelism anywhere; "concurrency" is
// this cooperative interleaving, so for a given program and phase
// configuration every run is fully deterministic.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/ednl/intcode/internal/types"
	"github.com/ednl/intcode/pkg/intcode"
)

// Errors.
var (
	// ErrPhaseCount is returned when the phase configuration does not
	// match the number of machines.
	ErrPhaseCount = errors.New("phase count does not match machine count")

	// ErrNoOutput is returned when the terminal machine halts without
	// ever producing a value.
	ErrNoOutput = errors.New("pipeline halted without output")

	// ErrStalled is returned when a full round passes with every machine
	// starved and none halted. Only a malformed program gets here.
	ErrStalled = errors.New("pipeline stalled: all machines starved for input")
)

// Orchestrator drives N machine instances over a shared program image.
// Machines and channels are created once and reset between trials, so a
// permutation search does not reallocate per trial.
type Orchestrator struct {
	machines []*intcode.Machine
	edges    []*intcode.Channel
}

// New creates an orchestrator of n machines seeded from the image.
// Edge i is machine i's input; machine i's output feeds edge (i+1) mod n,
// closing the cycle used by feedback mode.
func New(image []types.Word, n int) *Orchestrator {
	o := &Orchestrator{
		machines: make([]*intcode.Machine, n),
		edges:    make([]*intcode.Channel, n),
	}
	for i := 0; i < n; i++ {
		o.edges[i] = intcode.NewChannel()
	}
	for i := 0; i < n; i++ {
		m := intcode.New(image)
		m.SetInput(o.edges[i])
		m.SetOutput(o.edges[(i+1)%n])
		o.machines[i] = m
	}
	return o
}

// Size returns the number of machines.
func (o *Orchestrator) Size() int {
	return len(o.machines)
}

// reset restores every machine to the program image and empties every
// edge, then seeds the phase settings and the initial 0 input.
func (o *Orchestrator) reset(phases []types.Word) error {
	if len(phases) != len(o.machines) {
		return fmt.Errorf("%w: %d phases, %d machines", ErrPhaseCount, len(phases), len(o.machines))
	}
	for i, m := range o.machines {
		m.Reset()
		o.edges[i].Drain()
		o.edges[i].Push(phases[i])
	}
	o.edges[0].Push(0)
	return nil
}

// Chain runs a single pass: each machine runs exactly once, in order, and
// its first output becomes the next machine's input. The result is the
// last machine's output.
func (o *Orchestrator) Chain(phases []types.Word) (types.Word, error) {
	if err := o.reset(phases); err != nil {
		return 0, err
	}

	var out types.Word
	for i, m := range o.machines {
		res, err := m.Run()
		if err != nil {
			return 0, err
		}
		switch res.State {
		case intcode.StateProduced:
			out = res.Value // forwarded to the next edge by the machine
		case intcode.StateHalted:
			return 0, fmt.Errorf("%w: machine %d", ErrNoOutput, i)
		case intcode.StateNeedInput:
			return 0, fmt.Errorf("%w: machine %d", ErrStalled, i)
		}
	}
	return out, nil
}

// Feedback runs rounds over the machine cycle until the last machine
// halts. Each round gives every machine one turn: it runs until it emits
// an output, starves, or halts. The result is the last value the final
// machine produced before halting, along with the number of rounds run.
func (o *Orchestrator) Feedback(phases []types.Word) (types.Word, int, error) {
	if err := o.reset(phases); err != nil {
		return 0, 0, err
	}

	last := len(o.machines) - 1
	var (
		out    types.Word
		seen   bool
		rounds int
	)
	for !o.machines[last].Halted() {
		rounds++
		progress := false
		for i, m := range o.machines {
			if m.Halted() {
				continue
			}
			res, err := m.Run()
			if err != nil {
				return 0, rounds, err
			}
			switch res.State {
			case intcode.StateProduced:
				progress = true
				if i == last {
					out = res.Value
					seen = true
				}
			case intcode.StateHalted:
				progress = true
			case intcode.StateNeedInput:
				// Starved this turn; its input arrives later in the cycle.
			}
		}
		if !progress {
			return 0, rounds, ErrStalled
		}
	}

	if !seen {
		return 0, rounds, ErrNoOutput
	}
	return out, rounds, nil
}

// RunOne executes a single standalone machine over the image. Queued
// inputs are consumed first; when they run out, source (if non-nil) feeds
// further input requests. Every produced value goes to sink (if non-nil)
// and into the returned slice. Used for interactive and piped runs.
func RunOne(image []types.Word, inputs []types.Word, source intcode.SourceFunc, sink intcode.SinkFunc) ([]types.Word, error) {
	m := intcode.New(image)
	for _, v := range inputs {
		m.Input().Push(v)
	}
	if source != nil {
		m.Input().SetSource(source)
	}

	var out []types.Word
	for {
		res, err := m.Run()
		if err != nil {
			return out, err
		}
		switch res.State {
		case intcode.StateProduced:
			if sink != nil {
				sink(res.Value)
			}
			out = append(out, res.Value)
		case intcode.StateHalted:
			return out, nil
		case intcode.StateNeedInput:
			return out, fmt.Errorf("%w: standalone machine", ErrStalled)
		}
	}
}

package intcode

import (
	"fmt"

	"github.com/ednl/intcode/internal/types"
)

// State is the result of advancing a machine.
type State int

const (
	// StateRunning means the instruction completed and execution can
	// continue. Only Step returns it; Run keeps going.
	StateRunning State = iota

	// StateProduced means an output instruction executed. The value is
	// carried in the result and has been pushed to the output channel.
	// The instruction pointer is ready to resume at the next instruction.
	StateProduced

	// StateNeedInput means an input instruction found the channel empty
	// and no boundary source is installed. The instruction pointer is
	// rewound so the input instruction re-executes on the next run.
	StateNeedInput

	// StateHalted means the halt instruction executed. The machine never
	// resumes until Reset.
	StateHalted
)

// StepResult is the tagged outcome of Step or Run.
type StepResult struct {
	State State
	Value types.Word // output value, valid only for StateProduced
}

// Machine is one Intcode machine instance. It exclusively owns its memory;
// the only shared resources are the I/O channels, and access to those is
// sequenced by the caller, so a Machine needs no locking.
type Machine struct {
	image []types.Word
	mem   *Memory

	pc      types.Word
	relBase types.Word
	halted  bool

	in  *Channel
	out *Channel
}

// New creates a machine seeded from a copy of the program image, with an
// unbounded input channel and no output channel. Values produced with no
// output channel are only reported through the StepResult.
func New(image []types.Word) *Machine {
	return &Machine{
		image: types.CloneWords(image),
		mem:   NewMemory(image),
		in:    NewChannel(),
	}
}

// Reset restores memory to the program image (zero-extended to the grown
// size) and clears the instruction pointer, relative base and halted flag.
// Channels are left alone; the orchestrator owns their lifecycle.
func (m *Machine) Reset() {
	m.mem.Reset(m.image)
	m.pc = 0
	m.relBase = 0
	m.halted = false
}

// Input returns the machine's input channel.
func (m *Machine) Input() *Channel { return m.in }

// SetInput replaces the input channel.
func (m *Machine) SetInput(c *Channel) { m.in = c }

// SetOutput wires the output channel. Every produced value is pushed there
// in addition to being returned in the StepResult.
func (m *Machine) SetOutput(c *Channel) { m.out = c }

// Halted reports whether the machine has executed halt.
func (m *Machine) Halted() bool { return m.halted }

// Memory exposes the machine's memory store, for tests and snapshots.
func (m *Machine) Memory() *Memory { return m.mem }

// RelBase returns the current relative base register.
func (m *Machine) RelBase() types.Word { return m.relBase }

// PC returns the current instruction pointer.
func (m *Machine) PC() types.Word { return m.pc }

// Step executes exactly one instruction. Faults are returned as errors and
// are unrecoverable: the machine's state is undefined afterwards except for
// the halted flag.
func (m *Machine) Step() (StepResult, error) {
	if m.halted {
		return StepResult{State: StateHalted}, nil
	}

	start := m.pc
	if m.pc < 0 || m.pc >= m.mem.Size() {
		return StepResult{}, fmt.Errorf("%w: %d (size %d)", ErrPCOutOfRange, m.pc, m.mem.Size())
	}

	cell, err := m.mem.Read(m.pc)
	if err != nil {
		return StepResult{}, err
	}
	in := Decode(cell)
	if start+in.Width() > m.mem.Size() {
		return StepResult{}, fmt.Errorf("%w: instruction at %d needs %d cells (size %d)",
			ErrPCOutOfRange, start, in.Width(), m.mem.Size())
	}
	m.pc++

	// Resolve read operands.
	reads, writes := in.Arity()
	var par [3]types.Word
	for i := 0; i < reads; i++ {
		raw, err := m.mem.Read(m.pc)
		if err != nil {
			return StepResult{}, err
		}
		m.pc++
		par[i], err = m.resolve(in.Modes[i], raw)
		if err != nil {
			return StepResult{}, err
		}
	}

	// Resolve the write target's address, never its value.
	if writes > 0 {
		raw, err := m.mem.Read(m.pc)
		if err != nil {
			return StepResult{}, err
		}
		m.pc++
		switch in.Modes[reads] {
		case ModePosition:
			par[reads] = raw
		case ModeRelative:
			par[reads] = m.relBase + raw
		case ModeImmediate:
			return StepResult{}, fmt.Errorf("%w: instruction at %d", ErrImmediateWrite, start)
		default:
			return StepResult{}, fmt.Errorf("%w: mode %d at %d", ErrUnknownMode, in.Modes[reads], start)
		}
	}

	switch in.Op {
	case OpAdd:
		if err := m.mem.Write(par[2], par[0]+par[1]); err != nil {
			return StepResult{}, err
		}
	case OpMul:
		if err := m.mem.Write(par[2], par[0]*par[1]); err != nil {
			return StepResult{}, err
		}
	case OpInput:
		v, ok := m.in.Pop()
		if !ok {
			m.pc = start // re-execute when input arrives
			return StepResult{State: StateNeedInput}, nil
		}
		if err := m.mem.Write(par[0], v); err != nil {
			return StepResult{}, err
		}
	case OpOutput:
		if m.out != nil {
			m.out.Push(par[0])
		}
		return StepResult{State: StateProduced, Value: par[0]}, nil
	case OpJumpNZ:
		if par[0] != 0 {
			m.pc = par[1]
		}
	case OpJumpZ:
		if par[0] == 0 {
			m.pc = par[1]
		}
	case OpLess:
		var v types.Word
		if par[0] < par[1] {
			v = 1
		}
		if err := m.mem.Write(par[2], v); err != nil {
			return StepResult{}, err
		}
	case OpEqual:
		var v types.Word
		if par[0] == par[1] {
			v = 1
		}
		if err := m.mem.Write(par[2], v); err != nil {
			return StepResult{}, err
		}
	case OpRelBase:
		m.relBase += par[0]
	case OpHalt:
		m.halted = true
		return StepResult{State: StateHalted}, nil
	default:
		// Unknown opcodes, OpNop included, consume only their own cell.
	}

	return StepResult{State: StateRunning}, nil
}

// resolve turns a raw read-operand cell into its effective value.
func (m *Machine) resolve(mode Mode, raw types.Word) (types.Word, error) {
	switch mode {
	case ModePosition:
		return m.mem.Read(raw)
	case ModeImmediate:
		return raw, nil
	case ModeRelative:
		return m.mem.Read(m.relBase + raw)
	default:
		return 0, fmt.Errorf("%w: mode %d", ErrUnknownMode, mode)
	}
}

// Run executes until the machine produces an output, needs input, or halts.
func (m *Machine) Run() (StepResult, error) {
	for {
		res, err := m.Step()
		if err != nil {
			return StepResult{}, err
		}
		if res.State != StateRunning {
			return res, nil
		}
	}
}

// MachineState is a machine's complete resumable state, as captured for
// snapshots.
type MachineState struct {
	Cells   []types.Word
	PC      types.Word
	RelBase types.Word
	Halted  bool
}

// State captures the machine's full state. The cell slice is a copy.
func (m *Machine) State() MachineState {
	return MachineState{
		Cells:   m.mem.Cells(),
		PC:      m.pc,
		RelBase: m.relBase,
		Halted:  m.halted,
	}
}

// RestoreState overwrites the machine's state from a captured snapshot.
// The machine's reset image is unchanged: Reset still restores the
// original program.
func (m *Machine) RestoreState(st MachineState) {
	m.mem = NewMemory(st.Cells)
	m.pc = st.PC
	m.relBase = st.RelBase
	m.halted = st.Halted
}

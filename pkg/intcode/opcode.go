// Package intcode instruction encoding.
//
// An instruction cell encodes the opcode in its two low decimal digits and
// one addressing-mode digit per parameter above them, least significant
// digit first: cell 1002 is opcode 02 with modes (0, 1) for its first two
// parameters.
package intcode

import "github.com/ednl/intcode/internal/types"

// Mode is a parameter addressing mode.
type Mode uint8

const (
	// ModePosition reads/writes memory at the parameter's value.
	ModePosition Mode = 0

	// ModeImmediate uses the parameter's value directly. Read-only: never
	// valid for a write target.
	ModeImmediate Mode = 1

	// ModeRelative is positional offset by the machine's relative base.
	ModeRelative Mode = 2
)

// Opcode is the operation selector, the low two decimal digits of a cell.
type Opcode types.Word

const (
	OpNop     Opcode = 0
	OpAdd     Opcode = 1
	OpMul     Opcode = 2
	OpInput   Opcode = 3
	OpOutput  Opcode = 4
	OpJumpNZ  Opcode = 5
	OpJumpZ   Opcode = 6
	OpLess    Opcode = 7
	OpEqual   Opcode = 8
	OpRelBase Opcode = 9
	OpHalt    Opcode = 99
)

// arity declares how many operand values an opcode reads and whether a
// trailing write-target operand follows them.
type arity struct {
	reads    int
	hasWrite bool
}

// arities is the instruction table for the low opcodes. Opcodes outside the
// table (other than OpHalt) decode as no-ops with zero operands; the
// tolerance is deliberate, matching the minimal instruction set.
var arities = [...]arity{
	OpNop:     {reads: 0, hasWrite: false},
	OpAdd:     {reads: 2, hasWrite: true},
	OpMul:     {reads: 2, hasWrite: true},
	OpInput:   {reads: 0, hasWrite: true},
	OpOutput:  {reads: 1, hasWrite: false},
	OpJumpNZ:  {reads: 2, hasWrite: false},
	OpJumpZ:   {reads: 2, hasWrite: false},
	OpLess:    {reads: 2, hasWrite: true},
	OpEqual:   {reads: 2, hasWrite: true},
	OpRelBase: {reads: 1, hasWrite: false},
}

// Instruction is one decoded cell.
type Instruction struct {
	Op    Opcode
	Modes [3]Mode // one per parameter slot, in parameter order
}

// Arity returns the operand counts for an instruction: values read and
// values written (0 or 1).
func (in Instruction) Arity() (reads, writes int) {
	def := lookup(in.Op)
	if def.hasWrite {
		return def.reads, 1
	}
	return def.reads, 0
}

// Width returns the total cell width of the instruction including itself.
func (in Instruction) Width() types.Word {
	r, w := in.Arity()
	return types.Word(1 + r + w)
}

// lookup returns the arity entry for op, defaulting to no-op.
func lookup(op Opcode) arity {
	if op >= 0 && int(op) < len(arities) {
		return arities[op]
	}
	return arities[OpNop]
}

// Decode extracts the opcode and addressing-mode digits from a raw cell.
// Mode digits are consumed one at a time from cell/100, least significant
// digit belonging to the first parameter.
func Decode(cell types.Word) Instruction {
	in := Instruction{Op: Opcode(cell % 100)}
	rest := cell / 100
	for i := range in.Modes {
		in.Modes[i] = Mode(rest % 10)
		rest /= 10
	}
	return in
}

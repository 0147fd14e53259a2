package wave

import (
	"github.com/Chiassonastraypatrick/velox/internal/aggregate"
	"github.com/Chiassonastraypatrick/velox/internal/util"
)

// Program is an ordered sequence of compiled instructions representing one
// expression/aggregation pipeline. Every program is terminated by exactly one
// OpReturn; the interpreter and the stepping driver both rely on finding that
// terminator by linear scan and never read past it. Multiple thread blocks
// may share one program; it is read-only during execution.
type Program struct {
	Instructions []Instruction
}

// NewProgram returns an empty program.
func NewProgram() *Program {
	return &Program{Instructions: make([]Instruction, 0, 8)}
}

// NumInstructions returns the instruction count, including filter payload
// slots and the terminator.
func (p *Program) NumInstructions() int { return len(p.Instructions) }

// EmitBinary appends a typed binary operator and returns its index.
func (p *Program) EmitBinary(op OpCode, left, right, result Operand) int {
	util.Assert(op.IsBinary(), "EmitBinary called with %v", op)
	idx := len(p.Instructions)
	p.Instructions = append(p.Instructions, Instruction{
		Op:     op,
		Binary: &BinaryInstr{Left: left, Right: right, Result: result},
	})
	return idx
}

// EmitFilter appends a filter and its payload slot, returning the filter's
// index. The payload slot occupies the following program position and shares
// the filter's descriptor.
func (p *Program) EmitFilter(value Operand, cmp CompareOp, literal int64) int {
	idx := len(p.Instructions)
	fi := &FilterInstr{Value: value, Cmp: cmp, Literal: literal}
	p.Instructions = append(p.Instructions,
		Instruction{Op: OpFilter, Filter: fi},
		Instruction{Op: OpFilterAux, Filter: fi},
	)
	return idx
}

// EmitWrap appends a wrap (selection/indirection) instruction.
func (p *Program) EmitWrap(indices Operand) int {
	idx := len(p.Instructions)
	p.Instructions = append(p.Instructions, Instruction{
		Op:   OpWrap,
		Wrap: &WrapInstr{Indices: indices},
	})
	return idx
}

// EmitAggregate appends a grouped (or, with key == NoOperand, global)
// aggregation fold into the given device-resident state.
func (p *Program) EmitAggregate(key, arg Operand, fn aggregate.Op, table *aggregate.HashTable, state *aggregate.DeviceAggregation) int {
	idx := len(p.Instructions)
	p.Instructions = append(p.Instructions, Instruction{
		Op:        OpAggregate,
		Aggregate: &AggregateInstr{Key: key, Arg: arg, Fn: fn, KeyResult: NoOperand, Result: NoOperand, Table: table, State: state},
	})
	return idx
}

// EmitReadAggregate appends an instruction emitting previously accumulated
// aggregate results as regular row data.
func (p *Program) EmitReadAggregate(key Operand, fn aggregate.Op, keyResult, result Operand, table *aggregate.HashTable, state *aggregate.DeviceAggregation) int {
	idx := len(p.Instructions)
	p.Instructions = append(p.Instructions, Instruction{
		Op:        OpReadAggregate,
		Aggregate: &AggregateInstr{Key: key, Arg: NoOperand, Fn: fn, KeyResult: keyResult, Result: result, Table: table, State: state},
	})
	return idx
}

// EmitReturn appends the program terminator.
func (p *Program) EmitReturn() int {
	idx := len(p.Instructions)
	p.Instructions = append(p.Instructions, Instruction{Op: OpReturn})
	return idx
}

// OpcodeSeq reconstructs the program's opcode sequence by scanning the
// instruction array from index 0 until the OpReturn terminator, which is
// included. A program without a terminator is malformed.
func (p *Program) OpcodeSeq() []OpCode {
	seq := make([]OpCode, 0, len(p.Instructions))
	for i := range p.Instructions {
		op := p.Instructions[i].Op
		seq = append(seq, op)
		if op == OpReturn {
			return seq
		}
	}
	util.Assert(false, "program of %d instructions has no Return terminator", len(p.Instructions))
	return nil
}

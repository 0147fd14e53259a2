package wave

import "github.com/Chiassonastraypatrick/velox/internal/aggregate"

// Operand indexes a column buffer in the launch's per-program operand table.
type Operand int32

// NoOperand marks an unused operand slot (e.g. a global aggregate with no
// grouping key).
const NoOperand Operand = -1

// CompareOp selects the predicate a filter applies to its input column.
type CompareOp int32

const (
	CmpGT CompareOp = iota
	CmpGE
	CmpLT
	CmpLE
	CmpEQ
	CmpNE
)

// BinaryInstr is the operand descriptor for the typed binary operators:
// out[row] = op(left[row], right[row]) for every active row.
type BinaryInstr struct {
	Left   Operand
	Right  Operand
	Result Operand
}

// FilterInstr is the predicate descriptor shared by an OpFilter slot and the
// OpFilterAux slot that follows it in the program.
type FilterInstr struct {
	Value   Operand
	Cmp     CompareOp
	Literal int64
}

// WrapInstr applies a selection/indirection vector: each active row index is
// replaced by the row the vector points it at, so downstream opcodes see the
// reordered or subset data.
type WrapInstr struct {
	Indices Operand // Bigint vector of row numbers
}

// AggregateInstr folds rows into the device-resident aggregation state, or
// (for OpReadAggregate) emits the accumulated results back as row data.
type AggregateInstr struct {
	Key Operand // grouping key column; NoOperand for a global aggregate
	Arg Operand
	Fn  aggregate.Op

	// ReadAggregate destinations.
	KeyResult Operand
	Result    Operand

	Table *aggregate.HashTable
	State *aggregate.DeviceAggregation
}

// Instruction is a tagged union keyed by Op; exactly the payload field for
// the opcode's family is set. Instructions are immutable once compiled and
// owned by the program they belong to.
type Instruction struct {
	Op        OpCode
	Binary    *BinaryInstr
	Filter    *FilterInstr
	Wrap      *WrapInstr
	Aggregate *AggregateInstr
}

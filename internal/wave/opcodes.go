package wave

// OpCode identifies one executable instruction kind. The set is closed: the
// expression compiler and the interpreter agree on it at build time, and an
// opcode outside it is a contract violation, not a runtime error.
type OpCode int32

const (
	// Control
	OpReturn OpCode = iota

	// Row selection
	OpFilter
	// OpFilterAux is the payload slot that follows every OpFilter. It carries
	// the filter's predicate metadata and is never dispatched on its own.
	OpFilterAux
	OpWrap

	// Aggregation
	OpAggregate
	OpReadAggregate

	// Typed binary operators, one opcode per (operator, element type) pair.
	OpPlusBigint
	OpMinusBigint
	OpTimesBigint
	OpDivBigint
	OpLTBigint
	OpLEBigint
	OpGTBigint
	OpEQBigint
	OpPlusDouble
	OpTimesDouble
	OpLTDouble

	// NumOpCodes must be last.
	NumOpCodes
)

var opNames = map[OpCode]string{
	OpReturn:        "Return",
	OpFilter:        "Filter",
	OpFilterAux:     "FilterAux",
	OpWrap:          "Wrap",
	OpAggregate:     "Aggregate",
	OpReadAggregate: "ReadAggregate",
	OpPlusBigint:    "Plus_BIGINT",
	OpMinusBigint:   "Minus_BIGINT",
	OpTimesBigint:   "Times_BIGINT",
	OpDivBigint:     "Div_BIGINT",
	OpLTBigint:      "LT_BIGINT",
	OpLEBigint:      "LE_BIGINT",
	OpGTBigint:      "GT_BIGINT",
	OpEQBigint:      "EQ_BIGINT",
	OpPlusDouble:    "Plus_DOUBLE",
	OpTimesDouble:   "Times_DOUBLE",
	OpLTDouble:      "LT_DOUBLE",
}

func (op OpCode) String() string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return "OpCode?"
}

// IsBinary returns true for the typed element-wise binary operators.
func (op OpCode) IsBinary() bool {
	return op >= OpPlusBigint && op < NumOpCodes
}

// IsComparison returns true for binary operators producing 0/1 verdicts.
func (op OpCode) IsComparison() bool {
	switch op {
	case OpLTBigint, OpLEBigint, OpGTBigint, OpEQBigint, OpLTDouble:
		return true
	}
	return false
}

// elemType returns the element type a binary opcode operates on.
func (op OpCode) elemType() ElemType {
	switch op {
	case OpPlusDouble, OpTimesDouble, OpLTDouble:
		return Double
	}
	return Bigint
}

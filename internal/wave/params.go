package wave

import (
	"github.com/Chiassonastraypatrick/velox/internal/util"
)

// ElemType is the fixed numeric type parameterization of operand vectors.
type ElemType int32

const (
	Bigint ElemType = iota
	Double
)

// Vector is a device-resident column of values shared by every block of a
// launch. Exactly one backing slice is populated, per Type.
type Vector struct {
	Type ElemType
	i64  []int64
	f64  []float64
}

// NewBigintVector allocates an n-row BIGINT column.
func NewBigintVector(n int) *Vector {
	return &Vector{Type: Bigint, i64: make([]int64, n)}
}

// NewDoubleVector allocates an n-row DOUBLE column.
func NewDoubleVector(n int) *Vector {
	return &Vector{Type: Double, f64: make([]float64, n)}
}

// Len returns the row count.
func (v *Vector) Len() int {
	if v.Type == Double {
		return len(v.f64)
	}
	return len(v.i64)
}

// Ints returns the underlying int64 slice.
func (v *Vector) Ints() []int64 { return v.i64 }

// Floats returns the underlying float64 slice.
func (v *Vector) Floats() []float64 { return v.f64 }

// LaneStatus is the per-lane execution status opcodes read and update.
type LaneStatus uint8

const (
	LaneActive LaneStatus = iota
	LaneFiltered
	LaneError
)

// BlockStatus records a block's surviving row count; it is the part of block
// state that persists in device memory across single-instruction launches.
type BlockStatus struct {
	NumRows int32
}

// NoContinuation is the reserved resume-point value marking a program with no
// remaining work: the dispatcher must skip it entirely and leave all its
// buffers untouched.
const NoContinuation int32 = -1

// KernelParams is the per-launch parameter block handed to the expression
// kernel: the block-to-program mapping, the program objects, the operand
// bindings, and the optional per-program resume points.
//
// Every program buffer must be non-null with a reachable Return terminator;
// violating that is undefined behavior, not a reported error.
type KernelParams struct {
	// ProgramIdx maps block index to program index.
	ProgramIdx []int32
	Programs   []*Program

	// Operands is the per-program operand table; an Operand indexes into it.
	Operands [][]*Vector

	// NumRows is the input row count per program.
	NumRows []int

	// RowsPerBlock is the batch size one block owns; it equals the launch's
	// block dimension (one lane per row).
	RowsPerBlock int

	// StartPC holds per-program resume points. nil means every program starts
	// at instruction 0; NoContinuation skips the program entirely.
	StartPC []int32

	// Device-resident mutable state, per program: active row index lists and
	// per-lane status.
	Indices [][]int32
	Status  [][]LaneStatus

	// BlockStatus is indexed by global block.
	BlockStatus []BlockStatus
}

// NewKernelParams builds the parameter block for launching each program over
// blocksPerProgram consecutive blocks with rowsPerBlock rows per block.
// Operand tables start empty; callers bind them with BindOperand.
func NewKernelParams(programs []*Program, numRows []int, blocksPerProgram, rowsPerBlock int) *KernelParams {
	util.Assert(len(programs) > 0, "launch with no programs")
	util.Assert(len(numRows) == len(programs), "numRows for %d programs, want %d", len(numRows), len(programs))
	util.Assert(rowsPerBlock > 0 && rowsPerBlock%32 == 0, "rows per block %d not a positive multiple of the warp size", rowsPerBlock)
	util.Assert(blocksPerProgram > 0, "blocks per program %d", blocksPerProgram)

	numBlocks := len(programs) * blocksPerProgram
	p := &KernelParams{
		ProgramIdx:   make([]int32, numBlocks),
		Programs:     programs,
		Operands:     make([][]*Vector, len(programs)),
		NumRows:      numRows,
		RowsPerBlock: rowsPerBlock,
		Indices:      make([][]int32, len(programs)),
		Status:       make([][]LaneStatus, len(programs)),
		BlockStatus:  make([]BlockStatus, numBlocks),
	}
	for i, prog := range programs {
		util.AssertNotNil(prog, "program")
		util.Assert(numRows[i] <= blocksPerProgram*rowsPerBlock,
			"program %d: %d rows exceed %d blocks of %d", i, numRows[i], blocksPerProgram, rowsPerBlock)
		for b := 0; b < blocksPerProgram; b++ {
			p.ProgramIdx[i*blocksPerProgram+b] = int32(i)
		}
		p.Indices[i] = make([]int32, blocksPerProgram*rowsPerBlock)
		p.Status[i] = make([]LaneStatus, blocksPerProgram*rowsPerBlock)
	}
	return p
}

// BindOperand appends a column to program progIdx's operand table and returns
// its operand index.
func (p *KernelParams) BindOperand(progIdx int, v *Vector) Operand {
	util.AssertNotNil(v, "operand vector")
	p.Operands[progIdx] = append(p.Operands[progIdx], v)
	return Operand(len(p.Operands[progIdx]) - 1)
}

// NumBlocks returns the launch grid size the parameter block describes.
func (p *KernelParams) NumBlocks() int { return len(p.ProgramIdx) }

// Survivors returns program progIdx's surviving row indices in block order,
// as left behind by the last executed launch.
func (p *KernelParams) Survivors(progIdx int) []int32 {
	blocksPerProgram := len(p.Indices[progIdx]) / p.RowsPerBlock
	var out []int32
	for b := 0; b < blocksPerProgram; b++ {
		first := p.firstBlockOf(progIdx)
		n := int(p.BlockStatus[first+b].NumRows)
		base := b * p.RowsPerBlock
		out = append(out, p.Indices[progIdx][base:base+n]...)
	}
	return out
}

func (p *KernelParams) firstBlockOf(progIdx int) int {
	for b, pi := range p.ProgramIdx {
		if int(pi) == progIdx {
			return b
		}
	}
	util.Assert(false, "program %d not mapped to any block", progIdx)
	return -1
}

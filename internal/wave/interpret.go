package wave

import (
	"github.com/Chiassonastraypatrick/velox/internal/device"
	"github.com/Chiassonastraypatrick/velox/internal/kernels"
	"github.com/Chiassonastraypatrick/velox/internal/util"
)

// blockRun is the per-block view a kernel derives in its preamble: the
// program this block executes, the block's ordinal position within the
// program's contiguous block range, and the shared-memory header.
type blockRun struct {
	params  *KernelParams
	prog    *Program
	progIdx int32
	global  int // global block index within the launch grid
	sh      *WaveShared
	dim     int
}

// preamble resolves the block's program and batch offset and carves the
// shared header out of the arena. Returns false when shared memory cannot
// hold the header; the launch reports the failure.
func preamble(b *device.BlockContext, params *KernelParams, global int) (blockRun, bool) {
	progIdx := params.ProgramIdx[global]
	prog := params.Programs[progIdx]

	// ordinal within the program's contiguous block range
	ordinal := 0
	for j := global - 1; j >= 0 && params.ProgramIdx[j] == progIdx; j-- {
		ordinal++
	}

	sh := sharedState(b.Shared)
	if sh == nil {
		return blockRun{}, false
	}
	sh.BlockBase = int32(ordinal * params.RowsPerBlock)
	return blockRun{
		params:  params,
		prog:    prog,
		progIdx: progIdx,
		global:  global,
		sh:      sh,
		dim:     b.BlockDim,
	}, true
}

// initOrRestore establishes the block's batch state. At instruction 0 the
// batch is fresh: identity row indices and active status. At any later
// resume point the surviving row count persisted by the previous launch is
// restored; the index list and statuses already live in device memory.
func (r *blockRun) initOrRestore(pc int) {
	if pc != 0 {
		r.sh.NumRows = r.params.BlockStatus[r.global].NumRows
		return
	}
	n := r.params.NumRows[r.progIdx] - int(r.sh.BlockBase)
	if n < 0 {
		n = 0
	}
	if n > r.dim {
		n = r.dim
	}
	idx := r.indices()
	st := r.params.Status[r.progIdx]
	for lane := 0; lane < n; lane++ {
		row := r.sh.BlockBase + int32(lane)
		idx[lane] = row
		st[row] = LaneActive
	}
	r.sh.NumRows = int32(n)
}

// indices returns this block's slice of the program's active-row index list.
func (r *blockRun) indices() []int32 {
	return r.params.Indices[r.progIdx][r.sh.BlockBase : int(r.sh.BlockBase)+r.dim]
}

func (r *blockRun) operands() []*Vector { return r.params.Operands[r.progIdx] }

func (r *blockRun) status() []LaneStatus { return r.params.Status[r.progIdx] }

func (r *blockRun) active(row int32) bool {
	return r.params.Status[r.progIdx][row] == LaneActive
}

// flush is the epilogue: persist the surviving row count to device memory.
// Row indices and lane statuses are written through as opcodes execute.
func (r *blockRun) flush() {
	r.params.BlockStatus[r.global].NumRows = r.sh.NumRows
}

// step executes the instruction at pc for this block and returns the next
// program counter, or -1 after the Return terminator. Dispatch is an inline
// switch over the closed opcode set; an unrecognized opcode means the
// compiler and this interpreter disagree, which is fatal.
func (r *blockRun) step(b *device.BlockContext, pc int) int {
	instr := &r.prog.Instructions[pc]
	switch instr.Op {
	case OpReturn:
		r.flush()
		return -1
	case OpFilter:
		r.applyFilter(b, instr.Filter)
		return pc + 2 // skip the payload slot
	case OpWrap:
		r.applyWrap(instr.Wrap)
		return pc + 1
	case OpAggregate:
		r.applyAggregate(instr.Aggregate)
		return pc + 1
	case OpReadAggregate:
		r.applyReadAggregate(instr.Aggregate)
		return pc + 1
	case OpFilterAux:
		util.Assert(false, "filter payload slot reached at pc %d", pc)
	default:
		util.Assert(instr.Op.IsBinary(), "unknown opcode %v at pc %d", instr.Op, pc)
		r.applyBinary(instr)
		return pc + 1
	}
	return -1
}

// applyBinary dispatches a typed binary operator to the matching generic
// kernel instantiation. Identical (opcode, element type) pairs behave
// identically between the fused and stepped paths because both reach this
// single implementation.
func (r *blockRun) applyBinary(instr *Instruction) {
	bi := instr.Binary
	ops := r.operands()
	rows := r.indices()[:r.sh.NumRows]
	switch instr.Op {
	case OpPlusBigint:
		kernels.BinaryOp(ops[bi.Left].i64, ops[bi.Right].i64, ops[bi.Result].i64, rows, r.active, kernels.Add[int64])
	case OpMinusBigint:
		kernels.BinaryOp(ops[bi.Left].i64, ops[bi.Right].i64, ops[bi.Result].i64, rows, r.active, kernels.Sub[int64])
	case OpTimesBigint:
		kernels.BinaryOp(ops[bi.Left].i64, ops[bi.Right].i64, ops[bi.Result].i64, rows, r.active, kernels.Mul[int64])
	case OpDivBigint:
		r.applyDivBigint(bi)
	case OpLTBigint:
		kernels.BinaryOp(ops[bi.Left].i64, ops[bi.Right].i64, ops[bi.Result].i64, rows, r.active, kernels.Less[int64])
	case OpLEBigint:
		kernels.BinaryOp(ops[bi.Left].i64, ops[bi.Right].i64, ops[bi.Result].i64, rows, r.active, kernels.LessEq[int64])
	case OpGTBigint:
		kernels.BinaryOp(ops[bi.Left].i64, ops[bi.Right].i64, ops[bi.Result].i64, rows, r.active, kernels.Greater[int64])
	case OpEQBigint:
		kernels.BinaryOp(ops[bi.Left].i64, ops[bi.Right].i64, ops[bi.Result].i64, rows, r.active, kernels.Equal[int64])
	case OpPlusDouble:
		kernels.BinaryOp(ops[bi.Left].f64, ops[bi.Right].f64, ops[bi.Result].f64, rows, r.active, kernels.Add[float64])
	case OpTimesDouble:
		kernels.BinaryOp(ops[bi.Left].f64, ops[bi.Right].f64, ops[bi.Result].f64, rows, r.active, kernels.Mul[float64])
	case OpLTDouble:
		kernels.BinaryOp(ops[bi.Left].f64, ops[bi.Right].f64, ops[bi.Result].f64, rows, r.active, kernels.Less[float64])
	default:
		util.Assert(false, "no kernel for binary opcode %v", instr.Op)
	}
}

// applyDivBigint marks a lane dividing by zero with LaneError instead of a
// result; errored lanes stay in the index list with their status update
// visible to everything downstream.
func (r *blockRun) applyDivBigint(bi *BinaryInstr) {
	ops := r.operands()
	left, right, out := ops[bi.Left].i64, ops[bi.Right].i64, ops[bi.Result].i64
	st := r.status()
	for _, row := range r.indices()[:r.sh.NumRows] {
		if st[row] != LaneActive {
			continue
		}
		if right[row] == 0 {
			st[row] = LaneError
			continue
		}
		out[row] = left[row] / right[row]
	}
}

// applyFilter evaluates the predicate per row and compacts surviving row
// indices in place using a per-warp exclusive prefix sum over the block's
// shared-memory scratch, updating per-lane status for rows filtered out.
func (r *blockRun) applyFilter(b *device.BlockContext, fi *FilterInstr) {
	scratch := b.Shared.AllocInt32(filterScratchInts + b.BlockDim/device.WarpSize)
	if scratch == nil {
		return // arena exhaustion surfaces as a launch error
	}
	warps := scratch[filterScratchInts:]

	idx := r.indices()
	n := int(r.sh.NumRows)
	st := r.status()
	pass := r.filterPredicate(fi)

	// survivors per warp
	rows := idx[:n]
	for lane, row := range rows {
		if st[row] == LaneActive && pass(row) {
			warps[lane/device.WarpSize]++
		}
	}

	// exclusive prefix sum across warps
	var total int32
	for w := range warps {
		c := warps[w]
		warps[w] = total
		total += c
	}
	scratch[0] = int32(n)
	scratch[1] = total

	// Stable compaction: each surviving lane lands at its warp's base plus
	// its in-warp rank. Destinations never exceed the source lane, so the
	// in-place rewrite is safe.
	for lane := 0; lane < n; lane++ {
		row := idx[lane]
		if st[row] != LaneActive {
			continue // errored lanes drop out without a status change
		}
		if pass(row) {
			w := lane / device.WarpSize
			idx[warps[w]] = row
			warps[w]++
		} else {
			st[row] = LaneFiltered
		}
	}
	r.sh.NumRows = total
}

// filterPredicate builds the row predicate for the filter's typed
// comparison against its literal.
func (r *blockRun) filterPredicate(fi *FilterInstr) func(int32) bool {
	v := r.operands()[fi.Value]
	if v.Type == Double {
		lit := float64(fi.Literal)
		vals := v.f64
		return func(row int32) bool { return cmpFloat(vals[row], lit, fi.Cmp) }
	}
	vals := v.i64
	return func(row int32) bool { return cmpInt(vals[row], fi.Literal, fi.Cmp) }
}

func cmpInt(a, b int64, c CompareOp) bool {
	switch c {
	case CmpGT:
		return a > b
	case CmpGE:
		return a >= b
	case CmpLT:
		return a < b
	case CmpLE:
		return a <= b
	case CmpEQ:
		return a == b
	case CmpNE:
		return a != b
	}
	util.Assert(false, "unknown compare op %d", c)
	return false
}

func cmpFloat(a, b float64, c CompareOp) bool {
	switch c {
	case CmpGT:
		return a > b
	case CmpGE:
		return a >= b
	case CmpLT:
		return a < b
	case CmpLE:
		return a <= b
	case CmpEQ:
		return a == b
	case CmpNE:
		return a != b
	}
	util.Assert(false, "unknown compare op %d", c)
	return false
}

// applyWrap redirects each active row through the selection vector, so
// downstream opcodes see the reordered or subset data.
func (r *blockRun) applyWrap(wi *WrapInstr) {
	wrap := r.operands()[wi.Indices].i64
	idx := r.indices()
	for lane := 0; lane < int(r.sh.NumRows); lane++ {
		idx[lane] = int32(wrap[idx[lane]])
	}
}

// applyAggregate folds each active row into the device-resident aggregation
// state under its grouping key. Concurrent blocks may target the same table;
// the table's own per-bucket locking resolves contention.
func (r *blockRun) applyAggregate(ai *AggregateInstr) {
	args := r.operands()[ai.Arg].i64
	st := r.status()
	rows := r.indices()[:r.sh.NumRows]
	if ai.Key == NoOperand {
		for _, row := range rows {
			if st[row] == LaneActive {
				ai.State.FoldGlobal(ai.Fn, args[row])
			}
		}
		return
	}
	keys := r.operands()[ai.Key].i64
	for _, row := range rows {
		if st[row] == LaneActive {
			ai.Table.Fold(keys[row], ai.Fn, args[row])
		}
	}
}

// applyReadAggregate emits previously accumulated aggregate results as
// regular row data. Only the program's first block emits; the rest finish
// with an empty batch. Accumulation must have completed in a prior launch;
// blocks make no ordering guarantee within one launch.
func (r *blockRun) applyReadAggregate(ai *AggregateInstr) {
	if r.sh.BlockBase != 0 {
		r.sh.NumRows = 0
		return
	}
	idx := r.indices()
	st := r.status()
	ops := r.operands()

	if ai.Key == NoOperand {
		ops[ai.Result].i64[0] = ai.State.ReadGlobal(ai.Fn)
		idx[0] = 0
		st[0] = LaneActive
		r.sh.NumRows = 1
		return
	}

	groups := ai.Table.Groups()
	n := len(groups)
	if n > r.dim {
		n = r.dim
	}
	keysOut := ops[ai.KeyResult].i64
	valsOut := ops[ai.Result].i64
	for i := 0; i < n; i++ {
		keysOut[i] = groups[i].Key
		valsOut[i] = groups[i].Value(ai.Fn)
		idx[i] = int32(i)
		st[i] = LaneActive
	}
	r.sh.NumRows = int32(n)
}

// exprKernel is the fused interpreter: one launch, every block running its
// program's fetch-dispatch loop to the Return terminator without returning
// control to the host between instructions.
func exprKernel(b *device.BlockContext, args interface{}) {
	params := args.(*KernelParams)
	run, ok := preamble(b, params, b.Block)
	if !ok {
		return
	}
	pc := 0
	if params.StartPC != nil {
		start := params.StartPC[run.progIdx]
		if start == NoContinuation {
			return
		}
		pc = int(start)
	}
	run.initOrRestore(pc)

	mark := b.Shared.Mark()
	for pc >= 0 {
		b.Shared.Truncate(mark) // reuse per-instruction scratch
		pc = run.step(b, pc)
		if b.Shared.Failed() {
			return
		}
	}
}

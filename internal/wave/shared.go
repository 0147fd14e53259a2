package wave

import (
	"unsafe"

	"github.com/Chiassonastraypatrick/velox/internal/device"
)

// WaveShared is the block-local header state kept in shared memory for the
// duration of one kernel launch. Per-lane data (row indices, status) lives in
// device memory so it survives across single-instruction launches; only the
// header and per-instruction scratch occupy the on-chip region.
type WaveShared struct {
	BlockBase int32 // first row of this block's batch within its program
	NumRows   int32 // rows currently active in the batch
}

// WaveSharedBytes is the base shared-memory footprint every opcode needs.
const WaveSharedBytes = int(unsafe.Sizeof(WaveShared{}))

// filterScratchInts is the fixed part of the filter's prefix-sum scratch:
// two counters ahead of the per-warp slots.
const filterScratchInts = 2

// InstructionSharedSize returns the exact shared-memory bytes instr requires
// in a block of blockDim lanes. Filter needs the base block state plus two
// integers plus one integer per warp for its exclusive prefix sum over
// surviving lanes; every other opcode needs exactly the base state. The
// result must be exact: an undersized launch fails, an oversized one wastes
// occupancy.
func InstructionSharedSize(instr *Instruction, blockDim int) int {
	if instr.Op == OpFilter {
		return WaveSharedBytes + (filterScratchInts+blockDim/device.WarpSize)*4
	}
	return WaveSharedBytes
}

// ProgramSharedSize returns the shared-memory bytes a fused launch of the
// program requires: the maximum over its instructions.
func ProgramSharedSize(p *Program, blockDim int) int {
	max := WaveSharedBytes
	for i := range p.Instructions {
		if s := InstructionSharedSize(&p.Instructions[i], blockDim); s > max {
			max = s
		}
	}
	return max
}

// MaxSharedSize returns the shared-memory bytes covering every program in the
// launch; callers size the fused launch with it.
func MaxSharedSize(params *KernelParams, blockDim int) int {
	max := WaveSharedBytes
	for _, p := range params.Programs {
		if s := ProgramSharedSize(p, blockDim); s > max {
			max = s
		}
	}
	return max
}

// sharedState carves the block header out of the shared-memory arena.
// Returns nil when the arena cannot hold it; the launch then reports the
// shared-memory failure.
func sharedState(a *device.SharedArena) *WaveShared {
	b := a.Alloc(WaveSharedBytes)
	if b == nil {
		return nil
	}
	sh := (*WaveShared)(unsafe.Pointer(&b[0]))
	sh.BlockBase = 0
	sh.NumRows = 0
	return sh
}

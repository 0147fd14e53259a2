package wave

import (
	"sync"

	"github.com/Chiassonastraypatrick/velox/internal/device"
	"github.com/Chiassonastraypatrick/velox/internal/util"
)

// stepArgs is the argument block for a single-instruction launch: which
// instruction to execute and where the program's block range starts in the
// original grid.
type stepArgs struct {
	Params     *KernelParams
	PC         int32
	FirstBlock int32
}

// runSingleOp is the shared body of every single-opcode kernel: the same
// preamble and epilogue as the fused interpreter, but exactly one instruction
// at a fixed program counter. Routing through the same step dispatch keeps
// the two execution paths behaviorally identical per opcode.
func runSingleOp(b *device.BlockContext, args interface{}, want OpCode) {
	sa := args.(*stepArgs)
	global := int(sa.FirstBlock) + b.Block
	run, ok := preamble(b, sa.Params, global)
	if !ok {
		return
	}
	pc := int(sa.PC)
	instr := &run.prog.Instructions[pc]
	util.Assert(instr.Op == want, "kernel for %v launched at pc %d holding %v", want, pc, instr.Op)
	run.initOrRestore(pc)
	run.step(b, pc)
	run.flush()
}

// singleOpKernel builds the kernel entry point executing exactly one
// instruction of the given opcode.
func singleOpKernel(op OpCode) device.Kernel {
	return func(b *device.BlockContext, args interface{}) {
		runSingleOp(b, args, op)
	}
}

var (
	stepKernelsOnce sync.Once
	stepKernels     [NumOpCodes]device.Kernel
)

func initStepKernels() {
	for op := OpCode(0); op < NumOpCodes; op++ {
		if op == OpFilterAux {
			continue // payload slot, never independently dispatched
		}
		stepKernels[op] = singleOpKernel(op)
	}
}

// stepKernel returns the single-opcode kernel for op. Selection is a lookup
// table keyed by opcode; it is off the hot path. An opcode without a kernel
// means the compiled program and this driver's opcode set disagree.
func stepKernel(op OpCode) device.Kernel {
	stepKernelsOnce.Do(initStepKernels)
	util.Assert(op >= 0 && op < NumOpCodes && stepKernels[op] != nil,
		"no single-opcode kernel for %v", op)
	return stepKernels[op]
}

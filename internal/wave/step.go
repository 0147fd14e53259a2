package wave

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Chiassonastraypatrick/velox/internal/device"
	"github.com/Chiassonastraypatrick/velox/internal/util"
)

// KernelName is the symbolic name the dispatcher registers under in the
// process-wide kernel registry.
const KernelName = "expr"

// Dispatch is the top-level entry point for executing compiled expression
// programs on the device. Under normal operation one call is one fused
// kernel launch; with stepping enabled it becomes a strictly ordered
// sequence of host-synchronous single-instruction launches.
type Dispatch struct {
	dev *device.Device
	cfg Config
	log *logrus.Entry
}

var registerOnce sync.Once

// NewDispatch creates the dispatcher. The first dispatcher created owns the
// process-wide registry entry for "expr".
func NewDispatch(dev *device.Device, cfg Config) *Dispatch {
	d := &Dispatch{
		dev: dev,
		cfg: cfg,
		log: logrus.WithField("kernel", KernelName),
	}
	registerOnce.Do(func() { device.Register(KernelName, d) })
	return d
}

// Call executes the programs described by args (a *KernelParams) across
// numBlocks blocks with sharedBytes of on-chip scratch per block. In fused
// mode the launch is asynchronous: the caller synchronizes on the stream
// before reading results. In stepping mode Call blocks until every
// instruction of every program has completed.
func (d *Dispatch) Call(s *device.Stream, numBlocks, sharedBytes int, args interface{}) error {
	params, ok := args.(*KernelParams)
	util.Assert(ok, "expr dispatch called with %T", args)
	util.Assert(numBlocks > 0 && numBlocks <= len(params.ProgramIdx),
		"%d blocks for a parameter block mapping %d", numBlocks, len(params.ProgramIdx))
	if s == nil {
		s = d.dev.DefaultStream()
	}
	if d.cfg.Stepping {
		return d.callStepping(s, numBlocks, params)
	}
	lp := device.LaunchParams{
		GridSize:    numBlocks,
		BlockDim:    params.RowsPerBlock,
		SharedBytes: sharedBytes,
	}
	return d.dev.Launch(s, exprKernel, lp, params)
}

// blocksPerProgram scans the block-to-program mapping from block 0 until the
// program index changes. Programs are assumed to occupy equal-sized
// contiguous block ranges; the divisibility assertion catches a grid that
// cannot satisfy that.
func blocksPerProgram(programIdx []int32, numBlocks int) int {
	bpp := 1
	for bpp < numBlocks && programIdx[bpp] == programIdx[0] {
		bpp++
	}
	util.Assert(numBlocks%bpp == 0,
		"grid of %d blocks does not divide into program ranges of %d", numBlocks, bpp)
	return bpp
}

// callStepping re-derives each program's instruction sequence and replays it
// one single-opcode launch at a time, blocking the host between launches.
// Ordering across all instructions of all programs is total and
// host-visible; that determinism is the entire point of this mode.
func (d *Dispatch) callStepping(s *device.Stream, numBlocks int, params *KernelParams) error {
	bpp := blocksPerProgram(params.ProgramIdx, numBlocks)
	for first := 0; first < numBlocks; first += bpp {
		progIdx := params.ProgramIdx[first]
		prog := params.Programs[progIdx]
		util.AssertNotNil(prog, "program")
		seq := prog.OpcodeSeq()

		// Resume point for this program, re-read from the caller's array so
		// one program's progress never bleeds into the next.
		pc := 0
		if params.StartPC != nil {
			start := params.StartPC[progIdx]
			if start == NoContinuation {
				d.log.WithField("program", progIdx).Debug("no continuation, skipping")
				continue
			}
			pc = int(start)
		}

		for pc < len(seq) {
			op := seq[pc]
			lp := device.LaunchParams{
				GridSize:    bpp,
				BlockDim:    params.RowsPerBlock,
				SharedBytes: InstructionSharedSize(&prog.Instructions[pc], params.RowsPerBlock),
			}
			d.log.WithFields(logrus.Fields{
				"program": progIdx,
				"pc":      pc,
				"op":      op.String(),
			}).Debug("stepping launch")
			sa := &stepArgs{Params: params, PC: int32(pc), FirstBlock: int32(first)}
			if err := d.dev.Launch(s, stepKernel(op), lp, sa); err != nil {
				return err
			}
			if err := s.Wait(); err != nil {
				return err
			}
			if op == OpReturn {
				break
			}
			if op == OpFilter {
				pc += 2 // the payload slot is not independently dispatched
			} else {
				pc++
			}
		}
	}
	return nil
}

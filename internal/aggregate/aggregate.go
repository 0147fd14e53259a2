// Package aggregate provides the device-resident aggregation state used by
// grouped aggregation: a parallel hash table, the pre-grouping accumulator
// used before any grouping key is seen, and the setup/rehash kernel that
// initializes or resizes that state on the device.
package aggregate

import (
	"sync"

	"github.com/Chiassonastraypatrick/velox/internal/device"
	"github.com/Chiassonastraypatrick/velox/internal/util"
)

// DeviceAggregation is the persistent device-resident aggregation state:
// the accumulator row size and a zeroed single-row accumulator used for
// aggregates seen before any grouping key (global aggregates with no
// grouping). It is constructed in place over caller-provided storage and
// lives until the caller frees that storage.
type DeviceAggregation struct {
	mu      sync.Mutex
	rowSize int32
	single  []int64
	count   int64
}

func newDeviceAggregation(storage []int64, rowSize int) *DeviceAggregation {
	util.Assert(rowSize > 0, "aggregation row size %d", rowSize)
	util.Assert(len(storage) >= rowSize, "aggregation storage of %d words too small for row size %d", len(storage), rowSize)
	single := storage[:rowSize]
	for i := range single {
		single[i] = 0
	}
	return &DeviceAggregation{rowSize: int32(rowSize), single: single}
}

// RowSize returns the accumulator row size recorded at initialization.
func (a *DeviceAggregation) RowSize() int { return int(a.rowSize) }

// SingleRow returns the pre-grouping accumulator row.
func (a *DeviceAggregation) SingleRow() []int64 { return a.single }

// FoldGlobal folds v into the pre-grouping accumulator under op.
func (a *DeviceAggregation) FoldGlobal(op Op, v int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch op {
	case OpSum:
		a.single[0] += v
	case OpCount:
		// count only
	case OpMin:
		if a.count == 0 || v < a.single[0] {
			a.single[0] = v
		}
	case OpMax:
		if a.count == 0 || v > a.single[0] {
			a.single[0] = v
		}
	}
	a.count++
}

// ReadGlobal returns the pre-grouping accumulator's result under op.
func (a *DeviceAggregation) ReadGlobal(op Op) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if op == OpCount {
		return a.count
	}
	return a.single[0]
}

// AggregateControl describes one setup launch. The two modes are mutually
// exclusive, selected by OldBuckets: nil means initialize a fresh
// DeviceAggregation over Storage; non-nil means rehash OldBuckets into the
// already resized Table.
type AggregateControl struct {
	// Initialize mode.
	RowSize int
	Storage []int64
	Result  *DeviceAggregation // set by the kernel

	// Rehash mode.
	Table      *HashTable
	OldBuckets []Bucket
	Policy     GroupPolicy
}

const (
	// maxRehashGrid caps the blocks one rehash launch may occupy. A clamped
	// grid still covers every old bucket via the grid-stride loop below.
	maxRehashGrid  = 640
	rehashBlockDim = 256
)

// SetupKernel is the device entry point for both setup modes: a single thread
// initializing fresh state, or one thread per old bucket rehashing into the
// destination table.
func SetupKernel(b *device.BlockContext, args interface{}) {
	ctl := args.(*AggregateControl)
	if ctl.OldBuckets == nil {
		if b.Block == 0 {
			ctl.Result = newDeviceAggregation(ctl.Storage, ctl.RowSize)
		}
		return
	}
	stride := b.Grid * b.BlockDim
	for lane := 0; lane < b.BlockDim; lane++ {
		for i := b.Block*b.BlockDim + lane; i < len(ctl.OldBuckets); i += stride {
			ctl.Table.RehashBucket(ctl.OldBuckets, i, ctl.Policy)
		}
	}
}

// SetupAggregation launches the setup kernel described by ctl and blocks
// until the device completes it; this operation is always synchronous from
// the caller's perspective. When obj is non-nil the launch goes through that
// precompiled kernel's generic launch interface instead of the statically
// linked SetupKernel.
func SetupAggregation(dev *device.Device, s *device.Stream, ctl *AggregateControl, obj device.KernelObject) error {
	util.AssertNotNil(ctl, "aggregate control")
	if s == nil {
		s = dev.DefaultStream()
	}
	lp := device.LaunchParams{GridSize: 1, BlockDim: 1}
	if ctl.OldBuckets != nil {
		util.AssertNotNil(ctl.Table, "rehash destination table")
		lp.BlockDim = rehashBlockDim
		lp.GridSize = (len(ctl.OldBuckets) + rehashBlockDim - 1) / rehashBlockDim
		if lp.GridSize > maxRehashGrid {
			lp.GridSize = maxRehashGrid
		}
		if lp.GridSize < 1 {
			lp.GridSize = 1
		}
	}
	var err error
	if obj != nil {
		err = obj.Launch(s, lp, ctl)
	} else {
		err = dev.Launch(s, SetupKernel, lp, ctl)
	}
	if err != nil {
		return err
	}
	return s.Wait()
}

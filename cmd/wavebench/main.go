// wavebench runs a synthetic expression pipeline through both execution
// modes of the wave dispatcher and reports timings: the fused persistent
// kernel, then the host-synchronized stepping replay.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/Chiassonastraypatrick/velox/internal/aggregate"
	"github.com/Chiassonastraypatrick/velox/internal/device"
	"github.com/Chiassonastraypatrick/velox/internal/wave"
)

var (
	rowsPerBlock = pflag.Int("rows-per-block", 256, "rows per thread block (multiple of 32)")
	blocks       = pflag.Int("blocks", 64, "thread blocks per program")
	threshold    = pflag.Int64("threshold", 1000, "filter threshold on the computed sum")
	groups       = pflag.Int64("groups", 16, "distinct grouping keys for the aggregation pass")
	seed         = pflag.Int64("seed", 1, "input generator seed")
	verbose      = pflag.BoolP("verbose", "v", false, "debug logging")
)

func main() {
	pflag.Parse()
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if err := run(); err != nil {
		logrus.WithError(err).Error("wavebench failed")
		os.Exit(1)
	}
}

func run() error {
	dev := device.New(device.DefaultConfig())
	defer dev.Close()

	numRows := *rowsPerBlock * *blocks

	// both modes must see identical inputs for the survivor cross-check
	build := func() (*wave.KernelParams, *wave.Vector) {
		rng := rand.New(rand.NewSource(*seed))
		prog := wave.NewProgram()
		params := wave.NewKernelParams([]*wave.Program{prog}, []int{numRows}, *blocks, *rowsPerBlock)
		left := wave.NewBigintVector(numRows)
		right := wave.NewBigintVector(numRows)
		sum := wave.NewBigintVector(numRows)
		for i := 0; i < numRows; i++ {
			left.Ints()[i] = rng.Int63n(1000)
			right.Ints()[i] = rng.Int63n(1000)
		}
		op1 := params.BindOperand(0, left)
		op2 := params.BindOperand(0, right)
		op3 := params.BindOperand(0, sum)
		prog.EmitBinary(wave.OpPlusBigint, op1, op2, op3)
		prog.EmitFilter(op3, wave.CmpGT, *threshold)
		prog.EmitReturn()
		return params, sum
	}

	runMode := func(name string, cfg wave.Config) (int, time.Duration, error) {
		params, _ := build()
		shared := wave.MaxSharedSize(params, *rowsPerBlock)
		d := wave.NewDispatch(dev, cfg)
		stream := dev.NewStream()
		defer stream.Close()
		start := time.Now()
		if err := d.Call(stream, params.NumBlocks(), shared, params); err != nil {
			return 0, 0, fmt.Errorf("%s call: %w", name, err)
		}
		if err := stream.Wait(); err != nil {
			return 0, 0, fmt.Errorf("%s wait: %w", name, err)
		}
		return len(params.Survivors(0)), time.Since(start), nil
	}

	fusedRows, fusedDur, err := runMode("fused", wave.Config{Stepping: false})
	if err != nil {
		return err
	}
	stepRows, stepDur, err := runMode("stepping", wave.Config{Stepping: true})
	if err != nil {
		return err
	}
	if fusedRows != stepRows {
		return fmt.Errorf("mode disagreement: fused %d rows, stepping %d rows", fusedRows, stepRows)
	}

	logrus.WithFields(logrus.Fields{
		"rows":      numRows,
		"survivors": fusedRows,
		"fused":     fusedDur,
		"stepping":  stepDur,
	}).Info("expression pipeline")

	return runAggregation(dev)
}

// runAggregation pushes the generated keys through a grouped sum and a
// rehash, exercising the aggregation setup path.
func runAggregation(dev *device.Device) error {
	numRows := *rowsPerBlock * *blocks
	rng := rand.New(rand.NewSource(*seed + 1))

	storage := make([]int64, 8)
	ctl := &aggregate.AggregateControl{RowSize: len(storage), Storage: storage}
	if err := aggregate.SetupAggregation(dev, nil, ctl, nil); err != nil {
		return err
	}

	table := aggregate.NewHashTable(64)
	prog := wave.NewProgram()
	params := wave.NewKernelParams([]*wave.Program{prog}, []int{numRows}, *blocks, *rowsPerBlock)
	keys := wave.NewBigintVector(numRows)
	vals := wave.NewBigintVector(numRows)
	for i := 0; i < numRows; i++ {
		keys.Ints()[i] = rng.Int63n(*groups)
		vals.Ints()[i] = 1
	}
	keyOp := params.BindOperand(0, keys)
	valOp := params.BindOperand(0, vals)
	prog.EmitAggregate(keyOp, valOp, aggregate.OpSum, table, ctl.Result)
	prog.EmitReturn()

	d := wave.NewDispatch(dev, wave.DefaultConfig())
	stream := dev.NewStream()
	defer stream.Close()
	start := time.Now()
	if err := d.Call(stream, params.NumBlocks(), wave.MaxSharedSize(params, *rowsPerBlock), params); err != nil {
		return err
	}
	if err := stream.Wait(); err != nil {
		return err
	}

	old := table.Resize(table.NumBuckets() * 2)
	rctl := &aggregate.AggregateControl{
		Table:      table,
		OldBuckets: old,
		Policy:     aggregate.FoldPolicy{Op: aggregate.OpSum},
	}
	if err := aggregate.SetupAggregation(dev, stream, rctl, nil); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"groups":   table.NumRows(),
		"buckets":  table.NumBuckets(),
		"elapsed":  time.Since(start),
		"launches": dev.LaunchCount(),
	}).Info("grouped aggregation")
	return nil
}

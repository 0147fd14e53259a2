// Package device models the massively parallel accelerator the wave VM
// executes on: kernel launches fan one entry point out over a grid of thread
// blocks, streams serialize launches into FIFO queues, and each block owns an
// arena-backed shared-memory scratch region for the launch's duration.
package device

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/mstoykov/envconfig"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// WarpSize is the number of lanes scheduled together within a block.
const WarpSize = 32

// Config holds the device resource limits.
type Config struct {
	// MaxSharedBytes is the largest shared-memory region one block may request.
	MaxSharedBytes int `envconfig:"MAX_SHARED_BYTES"`
	// MaxGridSize caps the number of blocks in a single launch.
	MaxGridSize int `envconfig:"MAX_GRID_SIZE"`
	// Workers bounds how many blocks execute concurrently.
	Workers int `envconfig:"WORKERS"`
}

// DefaultConfig returns the device defaults, with DEVICE_* environment
// overrides applied once at startup.
func DefaultConfig() Config {
	var c Config
	if err := envconfig.Process("device", &c, os.LookupEnv); err != nil {
		logrus.WithError(err).Warn("device: bad environment configuration, using defaults")
	}
	if c.MaxSharedBytes <= 0 {
		c.MaxSharedBytes = 48 * 1024
	}
	if c.MaxGridSize <= 0 {
		c.MaxGridSize = 1 << 16
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return c
}

// Kernel is a device entry point, executed once per block of a launch.
type Kernel func(b *BlockContext, args interface{})

// LaunchParams describes the geometry of one kernel launch.
type LaunchParams struct {
	GridSize    int // number of blocks
	BlockDim    int // lanes per block
	SharedBytes int // shared-memory scratch per block
}

// BlockContext is the per-block execution state handed to a Kernel.
type BlockContext struct {
	Block    int // block index within the grid
	BlockDim int // lanes in this block
	Grid     int // total blocks in the launch
	Shared   *SharedArena
}

// Device owns the launch machinery and resource limits.
type Device struct {
	cfg      Config
	log      *logrus.Entry
	launches atomic.Int64

	defOnce sync.Once
	def     *Stream
}

// New creates a Device with the given limits.
func New(cfg Config) *Device {
	if cfg.MaxSharedBytes <= 0 || cfg.MaxGridSize <= 0 || cfg.Workers <= 0 {
		cfg = DefaultConfig()
	}
	return &Device{
		cfg: cfg,
		log: logrus.WithField("component", "device"),
	}
}

// DefaultStream returns the device's lazily created default stream.
func (d *Device) DefaultStream() *Stream {
	d.defOnce.Do(func() { d.def = d.NewStream() })
	return d.def
}

// Close shuts down the default stream, if one was created. Streams created
// through NewStream are closed by their owners.
func (d *Device) Close() {
	if d.def != nil {
		d.def.Close()
	}
}

// LaunchCount returns the total number of launches enqueued so far.
func (d *Device) LaunchCount() int64 { return d.launches.Load() }

// Launch enqueues one execution of k over lp.GridSize blocks on s (the default
// stream when s is nil). The call returns as soon as the work is queued;
// configuration errors surface immediately, execution errors through
// Stream.Wait. This mirrors the fire-and-forget contract of a hardware kernel
// launch followed by a last-error check.
func (d *Device) Launch(s *Stream, k Kernel, lp LaunchParams, args interface{}) error {
	if err := d.validate(lp); err != nil {
		return err
	}
	if s == nil {
		s = d.DefaultStream()
	}
	d.launches.Add(1)
	d.log.WithFields(logrus.Fields{
		"grid":   lp.GridSize,
		"block":  lp.BlockDim,
		"shared": lp.SharedBytes,
	}).Trace("launch")
	s.enqueue(func() error { return d.runGrid(k, lp, args) })
	return nil
}

func (d *Device) validate(lp LaunchParams) error {
	switch {
	case lp.GridSize < 1 || lp.GridSize > d.cfg.MaxGridSize:
		return fmt.Errorf("device: invalid launch configuration: grid size %d (max %d)", lp.GridSize, d.cfg.MaxGridSize)
	case lp.BlockDim < 1:
		return fmt.Errorf("device: invalid launch configuration: block dim %d", lp.BlockDim)
	case lp.SharedBytes < 0 || lp.SharedBytes > d.cfg.MaxSharedBytes:
		return fmt.Errorf("device: invalid launch configuration: %d shared bytes (max %d)", lp.SharedBytes, d.cfg.MaxSharedBytes)
	}
	return nil
}

// runGrid executes one launch: every block runs k exactly once, with block
// concurrency bounded by the worker limit. Blocks make no ordering assumption
// about each other within a launch.
func (d *Device) runGrid(k Kernel, lp LaunchParams, args interface{}) error {
	g := new(errgroup.Group)
	g.SetLimit(d.cfg.Workers)
	for blk := 0; blk < lp.GridSize; blk++ {
		blk := blk
		g.Go(func() error {
			bc := &BlockContext{
				Block:    blk,
				BlockDim: lp.BlockDim,
				Grid:     lp.GridSize,
				Shared:   newSharedArena(lp.SharedBytes),
			}
			k(bc, args)
			if bc.Shared.Failed() {
				return fmt.Errorf("device: block %d out of shared memory (%d bytes)", blk, lp.SharedBytes)
			}
			return nil
		})
	}
	return g.Wait()
}

// KernelObject is a precompiled kernel exposing a generic launch interface,
// used by callers that receive a kernel rather than linking one statically.
type KernelObject interface {
	Launch(s *Stream, lp LaunchParams, args interface{}) error
}

type boundKernel struct {
	d  *Device
	fn Kernel
}

// Bind wraps a kernel entry point into a KernelObject on this device.
func (d *Device) Bind(fn Kernel) KernelObject { return boundKernel{d: d, fn: fn} }

func (b boundKernel) Launch(s *Stream, lp LaunchParams, args interface{}) error {
	return b.d.Launch(s, b.fn, lp, args)
}

package device

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{MaxSharedBytes: 1024, MaxGridSize: 128, Workers: 4}
}

func TestLaunchRunsEveryBlock(t *testing.T) {
	dev := New(testConfig())
	defer dev.Close()

	var ran [16]int32
	k := func(b *BlockContext, args interface{}) {
		atomic.AddInt32(&ran[b.Block], 1)
	}
	require.NoError(t, dev.Launch(nil, k, LaunchParams{GridSize: 16, BlockDim: 32}, nil))
	require.NoError(t, dev.DefaultStream().Wait())
	for blk, n := range ran {
		assert.Equal(t, int32(1), n, "block %d", blk)
	}
}

func TestLaunchValidation(t *testing.T) {
	dev := New(testConfig())
	defer dev.Close()
	k := func(b *BlockContext, args interface{}) {}

	cases := []struct {
		name string
		lp   LaunchParams
	}{
		{"zero grid", LaunchParams{GridSize: 0, BlockDim: 32}},
		{"grid over limit", LaunchParams{GridSize: 129, BlockDim: 32}},
		{"zero block dim", LaunchParams{GridSize: 1, BlockDim: 0}},
		{"negative shared", LaunchParams{GridSize: 1, BlockDim: 32, SharedBytes: -1}},
		{"shared over limit", LaunchParams{GridSize: 1, BlockDim: 32, SharedBytes: 2048}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := dev.Launch(nil, k, tc.lp, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid launch configuration")
		})
	}
	assert.Equal(t, int64(0), dev.LaunchCount(), "rejected launches must not count")
}

func TestSharedExhaustionSurfacesOnWait(t *testing.T) {
	dev := New(testConfig())
	defer dev.Close()

	k := func(b *BlockContext, args interface{}) {
		b.Shared.Alloc(64) // more than the launch requested
	}
	s := dev.NewStream()
	defer s.Close()
	require.NoError(t, dev.Launch(s, k, LaunchParams{GridSize: 2, BlockDim: 32, SharedBytes: 16}, nil))
	err := s.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of shared memory")
}

func TestStreamFIFOOrdering(t *testing.T) {
	dev := New(testConfig())
	defer dev.Close()

	var order []int
	s := dev.NewStream()
	defer s.Close()
	for i := 0; i < 8; i++ {
		i := i
		k := func(b *BlockContext, args interface{}) {
			order = append(order, i) // single-block launches on one stream never overlap
		}
		require.NoError(t, dev.Launch(s, k, LaunchParams{GridSize: 1, BlockDim: 1}, nil))
	}
	require.NoError(t, s.Wait())
	require.Len(t, order, 8)
	for i, got := range order {
		assert.Equal(t, i, got)
	}
}

func TestStreamErrorIsSticky(t *testing.T) {
	dev := New(testConfig())
	defer dev.Close()

	s := dev.NewStream()
	defer s.Close()
	bad := func(b *BlockContext, args interface{}) { b.Shared.Alloc(1) }
	good := func(b *BlockContext, args interface{}) {}
	require.NoError(t, dev.Launch(s, bad, LaunchParams{GridSize: 1, BlockDim: 1, SharedBytes: 0}, nil))
	require.NoError(t, dev.Launch(s, good, LaunchParams{GridSize: 1, BlockDim: 1}, nil))
	require.Error(t, s.Wait())
	assert.Error(t, s.Wait(), "error stays after later launches succeed")
}

func TestLaunchCount(t *testing.T) {
	dev := New(testConfig())
	defer dev.Close()

	k := func(b *BlockContext, args interface{}) {}
	for i := 0; i < 3; i++ {
		require.NoError(t, dev.Launch(nil, k, LaunchParams{GridSize: 4, BlockDim: 32}, nil))
	}
	require.NoError(t, dev.DefaultStream().Wait())
	assert.Equal(t, int64(3), dev.LaunchCount())
}

func TestBindLaunchesThroughKernelObject(t *testing.T) {
	dev := New(testConfig())
	defer dev.Close()

	var hits int32
	obj := dev.Bind(func(b *BlockContext, args interface{}) {
		atomic.AddInt32(&hits, int32(args.(int)))
	})
	s := dev.NewStream()
	defer s.Close()
	require.NoError(t, obj.Launch(s, LaunchParams{GridSize: 3, BlockDim: 32}, 2))
	require.NoError(t, s.Wait())
	assert.Equal(t, int32(6), hits)
	assert.Equal(t, int64(1), dev.LaunchCount())
}

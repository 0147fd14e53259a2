package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAllocAligned(t *testing.T) {
	a := newSharedArena(64)
	b1 := a.Alloc(3)
	require.NotNil(t, b1)
	b2 := a.Alloc(8)
	require.NotNil(t, b2)
	assert.Equal(t, 16, a.Used(), "3 bytes round up to the next 8-byte boundary")
	assert.Equal(t, 64, a.Capacity())
	assert.False(t, a.Failed())
}

func TestArenaExhaustionSticky(t *testing.T) {
	a := newSharedArena(16)
	require.NotNil(t, a.Alloc(16))
	assert.Nil(t, a.Alloc(1))
	assert.True(t, a.Failed())
	// failure persists even after the arena is rolled back
	a.Truncate(0)
	assert.True(t, a.Failed())
}

func TestArenaAllocInt32Zeroed(t *testing.T) {
	a := newSharedArena(64)
	s := a.AllocInt32(8)
	require.Len(t, s, 8)
	for _, v := range s {
		assert.Zero(t, v)
	}
	s[0] = 7

	// the next allocation at the same mark must come back zeroed
	a.Truncate(0)
	s2 := a.AllocInt32(8)
	require.Len(t, s2, 8)
	assert.Zero(t, s2[0])
}

func TestArenaMarkTruncate(t *testing.T) {
	a := newSharedArena(32)
	require.NotNil(t, a.Alloc(8))
	mark := a.Mark()
	require.NotNil(t, a.Alloc(16))
	assert.Equal(t, 24, a.Used())
	a.Truncate(mark)
	assert.Equal(t, 8, a.Used())
	// region released by Truncate is allocatable again
	require.NotNil(t, a.Alloc(24))
	assert.False(t, a.Failed())
}

func TestArenaZeroSizeAlloc(t *testing.T) {
	a := newSharedArena(8)
	assert.Nil(t, a.Alloc(0))
	assert.False(t, a.Failed(), "a zero-size request is not exhaustion")
}

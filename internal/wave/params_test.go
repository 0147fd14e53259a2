package wave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func terminated() *Program {
	p := NewProgram()
	p.EmitReturn()
	return p
}

func TestNewKernelParamsLayout(t *testing.T) {
	progs := []*Program{terminated(), terminated()}
	p := NewKernelParams(progs, []int{40, 64}, 2, 32)

	assert.Equal(t, 4, p.NumBlocks())
	assert.Equal(t, []int32{0, 0, 1, 1}, p.ProgramIdx)
	require.Len(t, p.Indices, 2)
	assert.Len(t, p.Indices[0], 64)
	assert.Len(t, p.Status[1], 64)
	assert.Len(t, p.BlockStatus, 4)
}

func TestNewKernelParamsContracts(t *testing.T) {
	progs := []*Program{terminated()}
	assert.Panics(t, func() { NewKernelParams(nil, nil, 1, 32) })
	assert.Panics(t, func() { NewKernelParams(progs, []int{32}, 1, 30) }, "rows per block off the warp size")
	assert.Panics(t, func() { NewKernelParams(progs, []int{65}, 2, 32) }, "rows exceed block capacity")
	assert.Panics(t, func() { NewKernelParams(progs, []int{32, 32}, 1, 32) }, "row counts out of step with programs")
}

func TestBindOperand(t *testing.T) {
	p := NewKernelParams([]*Program{terminated()}, []int{32}, 1, 32)
	a := p.BindOperand(0, NewBigintVector(32))
	b := p.BindOperand(0, NewDoubleVector(32))
	assert.Equal(t, Operand(0), a)
	assert.Equal(t, Operand(1), b)
	assert.Panics(t, func() { p.BindOperand(0, nil) })
}

func TestSurvivorsSpansBlocks(t *testing.T) {
	p := NewKernelParams([]*Program{terminated()}, []int{64}, 2, 32)
	copy(p.Indices[0], []int32{5, 6, 7})
	copy(p.Indices[0][32:], []int32{40, 41})
	p.BlockStatus[0].NumRows = 3
	p.BlockStatus[1].NumRows = 2
	assert.Equal(t, []int32{5, 6, 7, 40, 41}, p.Survivors(0))
}

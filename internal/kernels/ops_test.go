package kernels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinaryOpSkipsInactiveRows(t *testing.T) {
	left := []int64{1, 2, 3, 4}
	right := []int64{10, 20, 30, 40}
	out := make([]int64, 4)
	rows := []int32{0, 1, 3}
	active := func(r int32) bool { return r != 1 }

	BinaryOp(left, right, out, rows, active, Add[int64])
	assert.Equal(t, []int64{11, 0, 0, 44}, out, "row 1 inactive, row 2 not in the batch")
}

func TestBinaryOpNilActive(t *testing.T) {
	out := make([]float64, 2)
	BinaryOp([]float64{1.5, 2.5}, []float64{2, 4}, out, []int32{0, 1}, nil, Mul[float64])
	assert.Equal(t, []float64{3, 10}, out)
}

func TestComparisonsYieldZeroOne(t *testing.T) {
	assert.Equal(t, int64(1), Less[int64](1, 2))
	assert.Equal(t, int64(0), Less[int64](2, 2))
	assert.Equal(t, int64(1), LessEq[int64](2, 2))
	assert.Equal(t, int64(1), Greater[int64](3, 2))
	assert.Equal(t, int64(0), Greater[int64](2, 3))
	assert.Equal(t, int64(1), Equal[int64](5, 5))
	assert.Equal(t, float64(1), Less[float64](1.5, 2))
	assert.Equal(t, float64(0), Equal[float64](1.5, 2.5))
}

func TestPred(t *testing.T) {
	vals := []int64{5, 11, 7, 20}
	rows := []int32{1, 2, 3}
	var got []bool
	Pred(vals, rows, func(v int64) bool { return v > 10 }, func(lane int, pass bool) {
		assert.Equal(t, len(got), lane)
		got = append(got, pass)
	})
	assert.Equal(t, []bool{true, false, true}, got)
}

func TestGather(t *testing.T) {
	src := []int64{10, 20, 30, 40}
	dst := make([]int64, 3)
	Gather(src, []int32{3, 0, 2}, dst)
	assert.Equal(t, []int64{40, 10, 30}, dst)
}

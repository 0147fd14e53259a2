// Package kernels holds the element-wise numeric kernels the wave interpreter
// dispatches to. Each kernel is generic over the closed set of supported
// element types and operates lane-wise over an active-row index list, so the
// same instantiation serves both the fused interpreter and the single-opcode
// stepping kernels.
package kernels

// Elem is the closed set of element types the typed kernels instantiate over.
type Elem interface {
	~int64 | ~float64
}

// BinaryOp applies op lane-wise over the rows of two operand buffers,
// writing into out at the same row positions. Rows rejected by active are
// left untouched.
func BinaryOp[T Elem](left, right, out []T, rows []int32, active func(int32) bool, op func(T, T) T) {
	for _, r := range rows {
		if active != nil && !active(r) {
			continue
		}
		out[r] = op(left[r], right[r])
	}
}

// Pred evaluates pred over the given rows, reporting each lane's verdict in
// order through emit.
func Pred[T Elem](vals []T, rows []int32, pred func(T) bool, emit func(lane int, pass bool)) {
	for lane, r := range rows {
		emit(lane, pred(vals[r]))
	}
}

// Gather copies src values selected by indices into the front of dst.
func Gather[T Elem](src []T, indices []int32, dst []T) {
	for i, r := range indices {
		dst[i] = src[r]
	}
}

// Arithmetic combinators.

func Add[T Elem](a, b T) T { return a + b }

func Sub[T Elem](a, b T) T { return a - b }

func Mul[T Elem](a, b T) T { return a * b }

// Comparison combinators yield 1 or 0 in the element type, so a comparison
// opcode writes a plain numeric buffer like any other binary operator.

func Less[T Elem](a, b T) T {
	if a < b {
		return 1
	}
	return 0
}

func LessEq[T Elem](a, b T) T {
	if a <= b {
		return 1
	}
	return 0
}

func Greater[T Elem](a, b T) T {
	if a > b {
		return 1
	}
	return 0
}

func Equal[T Elem](a, b T) T {
	if a == b {
		return 1
	}
	return 0
}

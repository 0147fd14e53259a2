package aggregate

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Op identifies one group-by fold operation.
type Op int32

const (
	OpSum Op = iota
	OpCount
	OpMin
	OpMax
)

var opNames = [...]string{"Sum", "Count", "Min", "Max"}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "Op?"
}

// Row is one grouping row: key plus accumulator state.
type Row struct {
	Key   int64
	Acc   int64
	Count int64
}

func (r *Row) fold(op Op, v int64) {
	switch op {
	case OpSum:
		r.Acc += v
	case OpCount:
		// count only
	case OpMin:
		if r.Count == 0 || v < r.Acc {
			r.Acc = v
		}
	case OpMax:
		if r.Count == 0 || v > r.Acc {
			r.Acc = v
		}
	}
	r.Count++
}

// Value returns the accumulated result under op.
func (r *Row) Value(op Op) int64 {
	if op == OpCount {
		return r.Count
	}
	return r.Acc
}

// GroupPolicy parameterizes rehash with the group-by operation semantics:
// when two rows with the same key meet, Merge folds src into dst.
type GroupPolicy interface {
	Merge(dst, src *Row)
}

// FoldPolicy is the standard policy for a single fold operation.
type FoldPolicy struct{ Op Op }

func (p FoldPolicy) Merge(dst, src *Row) {
	switch p.Op {
	case OpSum:
		dst.Acc += src.Acc
	case OpMin:
		if src.Acc < dst.Acc {
			dst.Acc = src.Acc
		}
	case OpMax:
		if src.Acc > dst.Acc {
			dst.Acc = src.Acc
		}
	}
	dst.Count += src.Count
}

// Bucket holds the rows whose keys hash to one slot. Each bucket carries its
// own lock; concurrent blocks folding into the same table contend only when
// they hit the same bucket.
type Bucket struct {
	mu   sync.Mutex
	rows []*Row
}

// Rows returns a snapshot of the bucket's rows.
func (b *Bucket) Rows() []*Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Row, len(b.rows))
	copy(out, b.rows)
	return out
}

// HashTable is the parallel hash table backing grouped aggregation.
type HashTable struct {
	buckets []Bucket
	numRows atomic.Int64
}

// NewHashTable creates a table with at least numBuckets buckets, rounded up
// to a power of two.
func NewHashTable(numBuckets int) *HashTable {
	n := 1
	for n < numBuckets {
		n <<= 1
	}
	return &HashTable{buckets: make([]Bucket, n)}
}

// NumBuckets returns the current bucket count.
func (t *HashTable) NumBuckets() int { return len(t.buckets) }

// NumRows returns the number of distinct grouping rows.
func (t *HashTable) NumRows() int64 { return t.numRows.Load() }

func (t *HashTable) slot(key int64) *Bucket {
	// Fibonacci hashing over the power-of-two bucket count.
	h := uint64(key) * 0x9e3779b97f4a7c15
	return &t.buckets[h>>(64-trailingBits(len(t.buckets)))]
}

func trailingBits(n int) uint {
	var b uint
	for n > 1 {
		n >>= 1
		b++
	}
	return b
}

// Fold finds or inserts the row for key and folds v into it under op.
func (t *HashTable) Fold(key int64, op Op, v int64) {
	b := t.slot(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.rows {
		if r.Key == key {
			r.fold(op, v)
			return
		}
	}
	r := &Row{Key: key}
	r.fold(op, v)
	b.rows = append(b.rows, r)
	t.numRows.Add(1)
}

// Lookup probes for key and returns a copy of its row.
func (t *HashTable) Lookup(key int64) (Row, bool) {
	b := t.slot(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.rows {
		if r.Key == key {
			return *r, true
		}
	}
	return Row{}, false
}

// Groups returns a snapshot of all grouping rows in ascending key order.
// Deterministic ordering is what lets the fused and stepped execution paths
// emit identical read-aggregate output.
func (t *HashTable) Groups() []Row {
	out := make([]Row, 0, t.numRows.Load())
	for i := range t.buckets {
		b := &t.buckets[i]
		b.mu.Lock()
		for _, r := range b.rows {
			out = append(out, *r)
		}
		b.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Resize swaps in a fresh bucket array of at least newBuckets slots and
// returns the old buckets for rehashing. The caller must rehash every old
// bucket before the table is used again.
func (t *HashTable) Resize(newBuckets int) []Bucket {
	n := 1
	for n < newBuckets {
		n <<= 1
	}
	old := t.buckets
	t.buckets = make([]Bucket, n)
	return old
}

// RehashBucket re-inserts old bucket i's rows into the resized storage.
// Rows keep their identity; the policy merges only if two rows with the same
// key collide, which a correct resize never produces.
func (t *HashTable) RehashBucket(old []Bucket, i int, policy GroupPolicy) {
	src := &old[i]
	src.mu.Lock()
	rows := src.rows
	src.rows = nil
	src.mu.Unlock()

	for _, r := range rows {
		b := t.slot(r.Key)
		b.mu.Lock()
		merged := false
		if policy != nil {
			for _, dst := range b.rows {
				if dst.Key == r.Key {
					policy.Merge(dst, r)
					t.numRows.Add(-1)
					merged = true
					break
				}
			}
		}
		if !merged {
			b.rows = append(b.rows, r)
		}
		b.mu.Unlock()
	}
}

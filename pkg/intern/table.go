// Package intern maps repeated values to small sequential indices.
//
// A [Table] stores every distinct value once and hands out an int32 index
// for it. Indices are assigned in insertion order starting at 0 and are never
// reused, so callers can keep them in compact records instead of the values
// themselves.
//
// [IDTable] specializes the table for Message-IDs: it stores the 64-bit
// [MessageID] hash of a normalized identifier, not the identifier text.
package intern

import (
	"fmt"
	"sync"
)

// NoEntry is the index returned for values that are not stored, such as the
// zero value passed to [Table.Intern].
const NoEntry int32 = -1

// Table interns values of type T.
//
// The zero value of T is never stored; interning it returns [NoEntry].
// Table is safe for concurrent use.
type Table[T comparable] struct {
	mu     sync.Mutex
	index  map[T]int32
	values []T
}

// NewTable returns an empty table with room for capacity values.
func NewTable[T comparable](capacity int) *Table[T] {
	if capacity < 0 {
		capacity = 0
	}

	return &Table[T]{
		index:  make(map[T]int32, capacity),
		values: make([]T, 0, capacity),
	}
}

// Intern returns the index of v, appending it if it is not present yet.
func (t *Table[T]) Intern(v T) int32 {
	var zero T
	if v == zero {
		return NoEntry
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if i, ok := t.index[v]; ok {
		return i
	}

	return t.appendLocked(v)
}

// Lookup returns the index of v without inserting it.
func (t *Table[T]) Lookup(v T) (int32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[v]

	return i, ok
}

// Get returns the value stored at index i. It reports false for [NoEntry] and
// for indices that were never assigned.
func (t *Table[T]) Get(i int32) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i < 0 || int(i) >= len(t.values) {
		var zero T

		return zero, false
	}

	return t.values[i], true
}

// MustGet is like [Table.Get] but panics for an index outside the table.
// An out-of-range index means a record refers to a table it was not built
// against.
func (t *Table[T]) MustGet(i int32) T {
	v, ok := t.Get(i)
	if !ok {
		panic(fmt.Sprintf("intern: index %d out of range [0,%d)", i, t.Len()))
	}

	return v
}

// Len returns the number of stored values.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.values)
}

// Values returns a copy of the stored values in index order.
func (t *Table[T]) Values() []T {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]T, len(t.values))
	copy(out, t.values)

	return out
}

func (t *Table[T]) appendLocked(v T) int32 {
	if len(t.values) == cap(t.values) {
		grown := make([]T, len(t.values), growCap(cap(t.values)))
		copy(grown, t.values)
		t.values = grown
	}

	i := int32(len(t.values))
	t.values = append(t.values, v)
	t.index[v] = i

	return i
}

// growCap returns the next backing capacity: 30% more plus 10 slots, so
// small tables do not reallocate on every insert.
func growCap(c int) int {
	return c + c*3/10 + 10
}

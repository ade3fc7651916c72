// Package rangeset implements a compact set of non-negative integers, the
// structure newsrc-style clients use to remember which articles are read.
//
// The set is stored as a sorted sequence of chunks. A chunk is either a
// single literal number or a run covering start..start+length. Runs are
// encoded in two slots as (-length, start); literals take one slot. Dense
// read-state such as "1-70,72-99,105" therefore costs a handful of integers
// regardless of how many articles it covers.
package rangeset

import (
	"fmt"
	"iter"
	"math"
	"slices"
)

// MaxValue is the largest member a set can hold. Every chunk bound plus one
// stays representable, as does [Set.Len] of a full set.
const MaxValue = math.MaxInt64 - 1

// Set is a set of integers in [0, MaxValue]. The zero value is an empty set.
//
// Set is not safe for concurrent use; [Set.Contains] updates a scan cache.
type Set struct {
	data []int64

	// cacheIndex is the start of the first chunk whose upper bound was >=
	// cacheValue at the last lookup. Lookups for values >= cacheValue may
	// start there.
	cacheIndex int
	cacheValue int64
}

// New returns an empty set.
func New() *Set {
	return &Set{}
}

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set {
	return &Set{data: slices.Clone(s.data)}
}

// chunk decodes the chunk starting at data[i] and returns the index of the
// chunk after it.
func (s *Set) chunk(i int) (lo, hi int64, next int) {
	if v := s.data[i]; v < 0 {
		lo = s.data[i+1]

		return lo, lo - v, i + 2
	}

	return s.data[i], s.data[i], i + 1
}

// chunkEndingAt decodes the chunk whose last slot is data[j] and returns the
// last slot of the chunk before it. A negative slot only ever marks a run
// length, so a negative predecessor identifies a run start.
func (s *Set) chunkEndingAt(j int) (lo, hi int64, prev int) {
	lo = s.data[j]
	if j > 0 && s.data[j-1] < 0 {
		return lo, lo - s.data[j-1], j - 2
	}

	return lo, lo, j - 1
}

func appendChunk(dst []int64, lo, hi int64) []int64 {
	if lo == hi {
		return append(dst, lo)
	}

	return append(dst, lo-hi, lo)
}

func (s *Set) invalidate() {
	s.cacheIndex = 0
	s.cacheValue = 0
}

func checkValue(n int64) {
	if n < 0 || n > MaxValue {
		panic(fmt.Sprintf("rangeset: value %d out of range [0,%d]", n, MaxValue))
	}
}

// Contains reports whether n is in the set.
//
// Ascending lookups resume from the position of the previous lookup, so a
// sweep over increasing numbers costs about one chunk step per call.
func (s *Set) Contains(n int64) bool {
	if n < 0 {
		return false
	}

	i := 0
	if n >= s.cacheValue {
		i = s.cacheIndex
	}

	for i < len(s.data) {
		lo, hi, next := s.chunk(i)
		if n <= hi {
			s.cacheIndex, s.cacheValue = i, n

			return n >= lo
		}

		i = next
	}

	s.cacheIndex, s.cacheValue = i, n

	return false
}

// Add inserts n and reports whether the set changed.
func (s *Set) Add(n int64) bool {
	checkValue(n)

	i := 0
	for i < len(s.data) {
		lo, hi, next := s.chunk(i)

		switch {
		case n >= lo && n <= hi:
			return false
		case n == hi+1:
			s.data = slices.Replace(s.data, i, next, appendChunk(nil, lo, n)...)
			s.compact()

			return true
		case n == lo-1:
			s.data = slices.Replace(s.data, i, next, appendChunk(nil, n, hi)...)
			s.compact()

			return true
		case n < lo:
			s.data = slices.Insert(s.data, i, n)
			s.invalidate()

			return true
		}

		i = next
	}

	s.data = append(s.data, n)
	s.compact()

	return true
}

// Remove deletes n and reports whether the set changed. Removing from the
// middle of a run splits it in two.
func (s *Set) Remove(n int64) bool {
	if n < 0 {
		return false
	}

	i := 0
	for i < len(s.data) {
		lo, hi, next := s.chunk(i)
		if n < lo {
			return false
		}

		if n <= hi {
			var buf [4]int64

			repl := buf[:0]
			if lo < n {
				repl = appendChunk(repl, lo, n-1)
			}

			if n < hi {
				repl = appendChunk(repl, n+1, hi)
			}

			s.data = slices.Replace(s.data, i, next, repl...)
			s.invalidate()

			return true
		}

		i = next
	}

	return false
}

// AddRange inserts every n with start <= n < end. An end of
// [math.MaxInt64] covers up to [MaxValue].
func (s *Set) AddRange(start, end int64) {
	checkValue(start)

	if end <= start {
		return
	}

	s.addInclusive(start, end-1)
}

// addInclusive inserts every n with mlo <= n <= mhi.
func (s *Set) addInclusive(mlo, mhi int64) {
	placed := false
	out := make([]int64, 0, len(s.data)+2)

	for i := 0; i < len(s.data); {
		lo, hi, next := s.chunk(i)
		i = next

		switch {
		case hi+1 < mlo:
			out = appendChunk(out, lo, hi)
		case lo > mhi+1:
			if !placed {
				out = appendChunk(out, mlo, mhi)
				placed = true
			}

			out = appendChunk(out, lo, hi)
		default:
			mlo = min(mlo, lo)
			mhi = max(mhi, hi)
		}
	}

	if !placed {
		out = appendChunk(out, mlo, mhi)
	}

	s.data = out
	s.invalidate()
}

// RemoveRange deletes every n with start <= n < end.
func (s *Set) RemoveRange(start, end int64) {
	if end <= start {
		return
	}

	out := make([]int64, 0, len(s.data)+2)

	for i := 0; i < len(s.data); {
		lo, hi, next := s.chunk(i)
		i = next

		if hi < start || lo >= end {
			out = appendChunk(out, lo, hi)

			continue
		}

		if lo < start {
			out = appendChunk(out, lo, start-1)
		}

		if hi >= end {
			out = appendChunk(out, end, hi)
		}
	}

	s.data = out
	s.invalidate()
}

// compact merges chunks that touch into single runs.
func (s *Set) compact() {
	s.invalidate()

	if len(s.data) < 2 {
		return
	}

	out := make([]int64, 0, len(s.data))

	plo, phi, i := s.chunk(0)

	for i < len(s.data) {
		lo, hi, next := s.chunk(i)
		i = next

		if lo == phi+1 {
			phi = hi

			continue
		}

		out = appendChunk(out, plo, phi)
		plo, phi = lo, hi
	}

	s.data = appendChunk(out, plo, phi)
}

// Len returns the number of members.
func (s *Set) Len() int64 {
	var n int64

	for i := 0; i < len(s.data); {
		lo, hi, next := s.chunk(i)
		n += hi - lo + 1
		i = next
	}

	return n
}

// Empty reports whether the set has no members.
func (s *Set) Empty() bool {
	return len(s.data) == 0
}

// All yields the members in ascending order.
func (s *Set) All() iter.Seq[int64] {
	return func(yield func(int64) bool) {
		for i := 0; i < len(s.data); {
			lo, hi, next := s.chunk(i)
			for n := lo; n <= hi; n++ {
				if !yield(n) {
					return
				}
			}

			i = next
		}
	}
}

// FirstNonMember returns the smallest positive number not in the set.
func (s *Set) FirstNonMember() int64 {
	return s.firstGap(1)
}

// FirstNonMemberInRange returns the smallest n in [lo, hi] not in the set,
// or -1 if every number in the range is a member.
func (s *Set) FirstNonMemberInRange(lo, hi int64) int64 {
	if hi < lo {
		return -1
	}

	n := s.firstGap(max(lo, 0))
	if n > hi {
		return -1
	}

	return n
}

func (s *Set) firstGap(from int64) int64 {
	cand := from

	for i := 0; i < len(s.data); {
		lo, hi, next := s.chunk(i)
		if lo > cand {
			break
		}

		if hi >= cand {
			cand = hi + 1
		}

		i = next
	}

	return cand
}

// LastNonMemberInRange returns the largest n in [lo, hi] not in the set, or
// -1 if every number in the range is a member.
func (s *Set) LastNonMemberInRange(lo, hi int64) int64 {
	if hi < lo || hi < 0 {
		return -1
	}

	cand := hi

	for j := len(s.data) - 1; j >= 0; {
		clo, chi, prev := s.chunkEndingAt(j)
		j = prev

		if clo > cand {
			continue
		}

		if chi < cand {
			break
		}

		cand = clo - 1
	}

	if cand < max(lo, 0) {
		return -1
	}

	return cand
}

// NextMemberAfter returns the smallest member greater than n, or -1.
func (s *Set) NextMemberAfter(n int64) int64 {
	for i := 0; i < len(s.data); {
		lo, hi, next := s.chunk(i)
		i = next

		if hi <= n {
			continue
		}

		if lo > n {
			return lo
		}

		return n + 1
	}

	return -1
}

// PreviousMemberBefore returns the largest member less than n, or -1.
func (s *Set) PreviousMemberBefore(n int64) int64 {
	for j := len(s.data) - 1; j >= 0; {
		lo, hi, prev := s.chunkEndingAt(j)
		j = prev

		if lo >= n {
			continue
		}

		if hi < n {
			return hi
		}

		return n - 1
	}

	return -1
}

// CountMissingInRange returns how many numbers in [lo, hi] are not members.
func (s *Set) CountMissingInRange(lo, hi int64) int64 {
	if hi < lo {
		return 0
	}

	missing := hi - lo + 1

	for i := 0; i < len(s.data); {
		clo, chi, next := s.chunk(i)
		i = next

		if clo > hi {
			break
		}

		if overlap := min(chi, hi) - max(clo, lo) + 1; overlap > 0 {
			missing -= overlap
		}
	}

	return missing
}

package rangeset

import (
	"strconv"
	"strings"
)

// Parse decodes a newsrc-style list such as "1-70,72-99,105".
//
// Parsing is lenient: blanks are ignored, malformed elements are skipped,
// and elements may appear in any order or overlap. A range starting at 0 is
// read as starting at 1, and a bare "0" means 1; old clients wrote "0-n"
// for "everything up to n is read". Upper bounds above [MaxValue] are
// clamped to it; elements starting above it are skipped.
func Parse(text string) *Set {
	s := New()

	var tail int64 = -2 // upper bound of the last chunk appended in order

	for elem := range strings.SplitSeq(text, ",") {
		lo, hi, ok := parseElem(elem)
		if !ok {
			continue
		}

		if lo > tail+1 {
			s.data = appendChunk(s.data, lo, hi)
			tail = hi

			continue
		}

		s.addInclusive(lo, hi)
		tail = max(tail, hi)
	}

	s.invalidate()

	return s
}

func parseElem(elem string) (lo, hi int64, ok bool) {
	elem = strings.TrimSpace(elem)
	if elem == "" {
		return 0, 0, false
	}

	loText, hiText, isRange := strings.Cut(elem, "-")

	lo, err := strconv.ParseInt(strings.TrimSpace(loText), 10, 64)
	if err != nil || lo < 0 || lo > MaxValue {
		return 0, 0, false
	}

	hi = lo
	if isRange {
		hi, err = strconv.ParseInt(strings.TrimSpace(hiText), 10, 64)
		if err != nil {
			return 0, 0, false
		}
	}

	hi = min(hi, MaxValue)

	if lo == 0 {
		lo = 1
		hi = max(hi, 1)
	}

	if hi < lo {
		return 0, 0, false
	}

	return lo, hi, true
}

// String encodes the set in the form accepted by [Parse].
func (s *Set) String() string {
	var b strings.Builder

	for i := 0; i < len(s.data); {
		lo, hi, next := s.chunk(i)
		i = next

		if b.Len() > 0 {
			b.WriteByte(',')
		}

		b.WriteString(strconv.FormatInt(lo, 10))

		if hi > lo {
			b.WriteByte('-')
			b.WriteString(strconv.FormatInt(hi, 10))
		}
	}

	return b.String()
}

// Package packedint stores non-negative integers in variable-width 16-bit
// words.
//
// Each slot holds 1 to 4 words. A word carries 15 payload bits; its top bit
// is set when another word of the same slot follows. Payload groups are
// stored most significant first, so the largest storable value is [Max]
// (60 payload bits).
//
// Small values cost two bytes. Reading or writing slot i walks the words of
// all earlier slots.
package packedint

import "fmt"

const (
	payloadBits = 15
	payloadMask = 1<<payloadBits - 1
	moreBit     = 1 << payloadBits
	maxWords    = 4

	// Max is the largest value a slot can hold.
	Max uint64 = 1<<(payloadBits*maxWords) - 1
)

// Array is a fixed number of packed slots. The zero value has no slots.
//
// Array is not safe for concurrent use.
type Array struct {
	words []uint16
	slots int
}

// New returns an array with n slots, all 0.
func New(n int) *Array {
	if n < 0 {
		panic(fmt.Sprintf("packedint: negative length %d", n))
	}

	return &Array{words: make([]uint16, n), slots: n}
}

// Len returns the number of slots.
func (a *Array) Len() int {
	return a.slots
}

// Get returns the value of slot i.
func (a *Array) Get(i int) uint64 {
	a.check(i)
	start := a.offset(i)

	var v uint64

	for j := start; ; j++ {
		w := a.words[j]
		v = v<<payloadBits | uint64(w&payloadMask)

		if w&moreBit == 0 {
			return v
		}
	}
}

// Set stores v in slot i. Later slots are shifted when the encoded width of
// slot i changes; their values are unaffected.
func (a *Array) Set(i int, v uint64) {
	if v > Max {
		panic(fmt.Sprintf("packedint: value %#x exceeds max %#x", v, Max))
	}

	a.check(i)
	start := a.offset(i)
	end := a.slotEnd(start)

	var buf [maxWords]uint16

	enc := encode(buf[:0], v)

	switch {
	case len(enc) == end-start:
		copy(a.words[start:end], enc)
	case len(enc) > end-start:
		grow := len(enc) - (end - start)
		a.words = append(a.words, make([]uint16, grow)...)
		copy(a.words[end+grow:], a.words[end:len(a.words)-grow])
		copy(a.words[start:], enc)
	default:
		n := copy(a.words[start:], enc)
		a.words = append(a.words[:start+n], a.words[end:]...)
	}
}

// Resize changes the number of slots. New slots are 0; dropped slots are
// discarded.
func (a *Array) Resize(n int) {
	if n < 0 {
		panic(fmt.Sprintf("packedint: negative length %d", n))
	}

	if n >= a.slots {
		a.words = append(a.words, make([]uint16, n-a.slots)...)
		a.slots = n

		return
	}

	a.words = a.words[:a.offset(n)]
	a.slots = n
}

// Words returns the number of 16-bit words in use.
func (a *Array) Words() int {
	return len(a.words)
}

func (a *Array) check(i int) {
	if i < 0 || i >= a.slots {
		panic(fmt.Sprintf("packedint: index %d out of range [0,%d)", i, a.slots))
	}
}

// offset returns the index of the first word of slot i. i may equal Len,
// in which case it returns the end of the word slice.
func (a *Array) offset(i int) int {
	j := 0
	for range i {
		j = a.slotEnd(j)
	}

	return j
}

func (a *Array) slotEnd(start int) int {
	j := start
	for a.words[j]&moreBit != 0 {
		j++
	}

	return j + 1
}

func encode(dst []uint16, v uint64) []uint16 {
	n := 1
	for v>>(payloadBits*n) != 0 {
		n++
	}

	for k := n - 1; k >= 0; k-- {
		w := uint16(v >> (payloadBits * k) & payloadMask)
		if k > 0 {
			w |= moreBit
		}

		dst = append(dst, w)
	}

	return dst
}

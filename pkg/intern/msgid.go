package intern

import (
	"fmt"
	"strings"
)

// MessageID is the 64-bit hash of a normalized Message-ID.
//
// The hash is persisted in summary files, so [HashMessageID] must never
// change. Two identifiers that collide are indistinguishable.
type MessageID uint64

// messageIDGroup is the number of identifier bytes folded into one partial
// hash before it is mixed into the accumulator.
const messageIDGroup = 16

// HashMessageID returns the [MessageID] of s.
//
// Leading '<' and whitespace and trailing '>' and whitespace are stripped,
// so "<a@b>" and " a@b " hash alike. An empty identifier hashes to 0.
func HashMessageID(s string) MessageID {
	s = strings.TrimLeft(s, "< \t\r\n")
	s = strings.TrimRight(s, "> \t\r\n")

	var acc uint64

	for len(s) > 0 {
		n := min(messageIDGroup, len(s))

		var h uint64
		for i := range n {
			h = h*37 + uint64(s[i])
		}

		acc = (acc << 8) ^ h
		s = s[n:]
	}

	return MessageID(acc)
}

// MessageIDFromHalves joins the two 32-bit halves stored on disk.
func MessageIDFromHalves(hi, lo uint32) MessageID {
	return MessageID(uint64(hi)<<32 | uint64(lo))
}

// Halves splits id into its high and low 32 bits.
func (id MessageID) Halves() (hi, lo uint32) {
	return uint32(uint64(id) >> 32), uint32(uint64(id))
}

func (id MessageID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// IDTable interns Message-ID hashes.
//
// It is safe for concurrent use.
type IDTable struct {
	Table[MessageID]
}

// NewIDTable returns an empty table with room for capacity hashes.
func NewIDTable(capacity int) *IDTable {
	capacity = max(capacity, 0)

	return &IDTable{Table: Table[MessageID]{
		index:  make(map[MessageID]int32, capacity),
		values: make([]MessageID, 0, capacity),
	}}
}

// InternString hashes s and returns the index of the hash, appending it only
// when no equal hash is stored yet.
func (t *IDTable) InternString(s string) int32 {
	return t.Intern(HashMessageID(s))
}

// LookupString reports the index of the hash of s without inserting it.
func (t *IDTable) LookupString(s string) (int32, bool) {
	id := HashMessageID(s)
	if id == 0 {
		return NoEntry, false
	}

	return t.Lookup(id)
}

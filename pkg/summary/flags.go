package summary

import (
	"strconv"
	"strings"
)

// Flags is the in-memory message state.
//
// On disk, flags use the X-Mozilla-Status encoding; see [FlagsFromStatus]
// and [Flags.Status]. The two bit layouts differ and must not be mixed.
type Flags uint32

const (
	FlagRead Flags = 1 << iota
	FlagReplied
	FlagFlagged
	FlagDeleted
	FlagHasRe
	FlagElided
	FlagOffline
	FlagWatched
	FlagSenderAuthed
	FlagPartial
	FlagQueued
	FlagForwarded
)

const (
	priorityShift       = 16
	priorityMask  Flags = 7 << priorityShift
)

// X-Mozilla-Status bits.
const (
	statusRead          = 0x0001
	statusReplied       = 0x0002
	statusMarked        = 0x0004
	statusExpunged      = 0x0008
	statusHasRe         = 0x0010
	statusElided        = 0x0020
	statusOffline       = 0x0080
	statusWatched       = 0x0100
	statusSenderAuthed  = 0x0200
	statusPartial       = 0x0400
	statusQueued        = 0x0800
	statusForwarded     = 0x1000
	statusPriorityMask  = 0xE000
	statusPriorityShift = 13
)

var statusBits = [...]struct {
	flag   Flags
	status uint32
	name   string
}{
	{FlagRead, statusRead, "read"},
	{FlagReplied, statusReplied, "replied"},
	{FlagFlagged, statusMarked, "flagged"},
	{FlagDeleted, statusExpunged, "deleted"},
	{FlagHasRe, statusHasRe, "has-re"},
	{FlagElided, statusElided, "elided"},
	{FlagOffline, statusOffline, "offline"},
	{FlagWatched, statusWatched, "watched"},
	{FlagSenderAuthed, statusSenderAuthed, "sender-authed"},
	{FlagPartial, statusPartial, "partial"},
	{FlagQueued, statusQueued, "queued"},
	{FlagForwarded, statusForwarded, "forwarded"},
}

// FlagsFromStatus decodes an X-Mozilla-Status value. Unknown bits are
// dropped.
func FlagsFromStatus(status uint32) Flags {
	var f Flags

	for _, b := range statusBits {
		if status&b.status != 0 {
			f |= b.flag
		}
	}

	prio := (status & statusPriorityMask) >> statusPriorityShift

	return f | Flags(prio)<<priorityShift
}

// Status encodes f as an X-Mozilla-Status value.
func (f Flags) Status() uint32 {
	var s uint32

	for _, b := range statusBits {
		if f&b.flag != 0 {
			s |= b.status
		}
	}

	return s | uint32(f.Priority())<<statusPriorityShift
}

// Priority returns the 3-bit priority, 0 meaning none.
func (f Flags) Priority() uint8 {
	return uint8((f & priorityMask) >> priorityShift)
}

// WithPriority returns f with its priority replaced. p is masked to 3 bits.
func (f Flags) WithPriority(p uint8) Flags {
	return f&^priorityMask | Flags(p&7)<<priorityShift
}

// Has reports whether every bit of mask is set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

// String lists set flags, e.g. "read|replied|prio=3", or "-" for none.
func (f Flags) String() string {
	var parts []string

	for _, b := range statusBits {
		if f&b.flag != 0 {
			parts = append(parts, b.name)
		}
	}

	if p := f.Priority(); p != 0 {
		parts = append(parts, "prio="+strconv.Itoa(int(p)))
	}

	if len(parts) == 0 {
		return "-"
	}

	return strings.Join(parts, "|")
}

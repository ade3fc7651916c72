package summary

import (
	"fmt"
	"io"

	"github.com/calvinalkan/mailsummary/pkg/intern"
)

// Legacy reads version 4 summaries. It cannot write them.
//
// Version 4 has a single uint16-indexed string table. Message-IDs are
// stored as text in that table and hashed on read.
type Legacy struct{}

func (Legacy) Version() uint32 { return VersionLegacy }

func (Legacy) Read(rec *Record, r io.Reader, f Folder) int64 {
	return readSummary(rec, r, f, VersionLegacy, decodeLegacy)
}

func decodeLegacy(d *decoder, b *body) error {
	n := int(d.u16())
	if d.err != nil {
		return d.corrupt("string count")
	}

	b.strings = make([]string, 0, n)

	for i := range n {
		s := d.cstring()
		if d.err != nil {
			return d.corrupt(fmt.Sprintf("string %d", i))
		}

		b.strings = append(b.strings, s)
	}

	b.ids = make([]intern.MessageID, len(b.strings))
	for i, s := range b.strings {
		b.ids[i] = intern.HashMessageID(s)
	}

	return b.readRecords(d, decodeLegacyRecord)
}

func decodeLegacyRecord(d *decoder) rawRecord {
	rr := rawRecord{
		sender:       d.index(2),
		recipient:    d.index(2),
		subject:      d.index(2),
		date:         int32(d.u32()),
		status:       d.u32(),
		offset:       d.u32(),
		length:       d.u32(),
		statusOffset: d.u16(),
		lines:        uint32(d.u16()),
		id:           d.index(2),
	}

	refs := int(d.u16())
	for range refs {
		if d.err != nil {
			break
		}

		rr.refs = append(rr.refs, d.index(2))
	}

	return rr
}

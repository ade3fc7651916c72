package summary

import (
	"fmt"
	"io"

	"github.com/calvinalkan/mailsummary/pkg/intern"
)

// Current reads and writes version 6 summaries.
//
// After the header come a string table, a table of 64-bit Message-ID
// hashes, and one record per message. Record fields that index a table are
// 2 bytes wide when that table has at most 65535 entries and 4 bytes
// otherwise; the all-ones value of the width means absent.
type Current struct{}

func (Current) Version() uint32 { return VersionCurrent }

func (Current) Read(rec *Record, r io.Reader, f Folder) int64 {
	return readSummary(rec, r, f, VersionCurrent, decodeCurrent)
}

// preallocLimit caps allocations sized by untrusted table counts.
const preallocLimit = 1 << 16

func decodeCurrent(d *decoder, b *body) error {
	n := d.u32()
	if d.err != nil {
		return d.corrupt("string count")
	}

	b.strings = make([]string, 0, min(n, preallocLimit))

	for i := range n {
		s := d.cstring()
		if d.err != nil {
			return d.corrupt(fmt.Sprintf("string %d", i))
		}

		b.strings = append(b.strings, s)
	}

	n = d.u32()
	if d.err != nil {
		return d.corrupt("id count")
	}

	b.ids = make([]intern.MessageID, 0, min(n, preallocLimit))

	for i := range n {
		hi, lo := d.u32(), d.u32()
		if d.err != nil {
			return d.corrupt(fmt.Sprintf("id %d", i))
		}

		b.ids = append(b.ids, intern.MessageIDFromHalves(hi, lo))
	}

	sw, iw := indexWidth(len(b.strings)), indexWidth(len(b.ids))

	return b.readRecords(d, func(d *decoder) rawRecord {
		rr := rawRecord{
			sender:       d.index(sw),
			recipient:    d.index(sw),
			subject:      d.index(sw),
			date:         int32(d.u32()),
			status:       d.u32(),
			offset:       d.u32(),
			length:       d.u32(),
			statusOffset: d.u16(),
			lines:        d.u32(),
			id:           d.index(iw),
		}

		refs := int(d.u16())
		for range refs {
			if d.err != nil {
				break
			}

			rr.refs = append(rr.refs, d.index(iw))
		}

		return rr
	})
}

// encodeCurrent serializes msgs as a version 6 file. Table indices in msgs
// are resolved through t and re-interned into fresh tables, so entries no
// message uses are dropped.
func encodeCurrent(hdr Header, msgs []*Message, t *Tables) ([]byte, error) {
	strs := intern.NewTable[string](0)
	ids := intern.NewIDTable(0)

	str := func(i int32) uint32 {
		s, ok := t.Strings.Get(i)
		if !ok {
			return absent
		}

		return uint32(strs.Intern(s))
	}

	id := func(i int32) uint32 {
		v, ok := t.IDs.Get(i)
		if !ok {
			return absent
		}

		return uint32(ids.Intern(v))
	}

	raws := make([]rawRecord, len(msgs))

	for k, m := range msgs {
		if m.Offset < 0 || m.Offset > int64(absent) || m.Length < 0 || m.Length > int64(absent) {
			return nil, fmt.Errorf("%w: message %d at offset %d length %d exceeds 32 bits",
				ErrIncompatible, k, m.Offset, m.Length)
		}

		rr := rawRecord{
			sender:       str(m.Sender),
			recipient:    str(m.Recipient),
			subject:      str(m.Subject),
			date:         m.Date,
			status:       m.Flags.Status(),
			offset:       uint32(m.Offset),
			length:       uint32(m.Length),
			statusOffset: uint16(clamp(int64(m.StatusOffset), 0xFFFF)),
			lines:        uint32(clamp(m.Lines, int64(absent))),
			id:           id(m.ID),
		}

		for _, ref := range m.Refs[:min(len(m.Refs), 0xFFFF)] {
			if v := id(ref); v != absent {
				rr.refs = append(rr.refs, v)
			}
		}

		raws[k] = rr
	}

	for _, v := range [...]int64{hdr.FolderSize, hdr.FolderDate, hdr.ParsedThrough, hdr.Total, hdr.DeletedBytes} {
		if v < 0 || v > int64(absent) {
			return nil, fmt.Errorf("%w: header value %d exceeds 32 bits", ErrIncompatible, v)
		}
	}

	e := &encoder{buf: make([]byte, 0, headerSize+64*len(msgs))}
	e.buf = append(e.buf, Magic...)
	e.u32(VersionCurrent)
	e.u32(uint32(hdr.FolderSize))
	e.u32(uint32(hdr.FolderDate))
	e.u32(uint32(hdr.ParsedThrough))
	e.u32(uint32(hdr.Total))
	e.u32(uint32(hdr.Undeleted))
	e.u32(uint32(hdr.Unread))
	e.u32(uint32(hdr.DeletedBytes))

	strVals := strs.Values()
	e.u32(uint32(len(strVals)))

	for _, s := range strVals {
		e.cstring(s)
	}

	idVals := ids.Values()
	e.u32(uint32(len(idVals)))

	for _, v := range idVals {
		hi, lo := v.Halves()
		e.u32(hi)
		e.u32(lo)
	}

	sw, iw := indexWidth(len(strVals)), indexWidth(len(idVals))

	for _, rr := range raws {
		e.index(sw, rr.sender)
		e.index(sw, rr.recipient)
		e.index(sw, rr.subject)
		e.u32(uint32(rr.date))
		e.u32(rr.status)
		e.u32(rr.offset)
		e.u32(rr.length)
		e.u16(rr.statusOffset)
		e.u32(rr.lines)
		e.index(iw, rr.id)
		e.u16(uint16(len(rr.refs)))

		for _, ref := range rr.refs {
			e.index(iw, ref)
		}
	}

	return e.buf, nil
}

func clamp(v, hi int64) int64 {
	return max(0, min(v, hi))
}

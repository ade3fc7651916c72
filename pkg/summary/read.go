package summary

import (
	"fmt"
	"io"

	"github.com/calvinalkan/mailsummary/pkg/intern"
)

// rawRecord is a record as stored, indexing the file's own tables.
type rawRecord struct {
	sender, recipient, subject uint32

	date         int32
	status       uint32
	offset       uint32
	length       uint32
	statusOffset uint16
	lines        uint32

	id   uint32
	refs []uint32
}

// body holds everything after the header, decoded but not yet trusted.
type body struct {
	strings []string
	ids     []intern.MessageID
	records []rawRecord
}

func (b *body) check(rr *rawRecord) error {
	for _, i := range [...]uint32{rr.sender, rr.recipient, rr.subject} {
		if i != absent && int64(i) >= int64(len(b.strings)) {
			return fmt.Errorf("%w: record %d: string index %d of %d", ErrCorrupt, len(b.records), i, len(b.strings))
		}
	}

	if rr.id != absent && int64(rr.id) >= int64(len(b.ids)) {
		return fmt.Errorf("%w: record %d: id index %d of %d", ErrCorrupt, len(b.records), rr.id, len(b.ids))
	}

	for _, ref := range rr.refs {
		if ref != absent && int64(ref) >= int64(len(b.ids)) {
			return fmt.Errorf("%w: record %d: reference index %d of %d", ErrCorrupt, len(b.records), ref, len(b.ids))
		}
	}

	return nil
}

// readRecords decodes records until a clean EOF at a record boundary.
func (b *body) readRecords(d *decoder, decodeOne func(*decoder) rawRecord) error {
	for !d.atEOF() {
		if d.err != nil {
			break
		}

		rr := decodeOne(d)
		if d.err != nil {
			return d.corrupt(fmt.Sprintf("record %d", len(b.records)))
		}

		err := b.check(&rr)
		if err != nil {
			return err
		}

		b.records = append(b.records, rr)
	}

	if d.err != nil {
		return d.corrupt("records")
	}

	return nil
}

// uninterned marks a file table entry no delivered record has used yet.
const uninterned int32 = -2

// lazyIndex maps a file table into a folder table, interning each entry the
// first time a record references it. Unreferenced entries never reach the
// folder.
type lazyIndex[T comparable] struct {
	vals   []T
	idx    []int32
	add    func(T) int32
}

func newLazyIndex[T comparable](vals []T, add func(T) int32) *lazyIndex[T] {
	idx := make([]int32, len(vals))
	for i := range idx {
		idx[i] = uninterned
	}

	return &lazyIndex[T]{vals: vals, idx: idx, add: add}
}

func (l *lazyIndex[T]) resolve(i uint32) int32 {
	if i == absent {
		return intern.NoEntry
	}

	if l.idx[i] == uninterned {
		l.idx[i] = l.add(l.vals[i])
	}

	return l.idx[i]
}

// deliver hands every message to the folder in file order, interning the
// strings and Message-IDs the records reference.
func (b *body) deliver(f Folder) {
	t := f.Tables()
	strs := newLazyIndex(b.strings, t.Strings.Intern)
	ids := newLazyIndex(b.ids, t.IDs.Intern)

	for _, rr := range b.records {
		m := &Message{
			Sender:       strs.resolve(rr.sender),
			Recipient:    strs.resolve(rr.recipient),
			Subject:      strs.resolve(rr.subject),
			Date:         rr.date,
			Flags:        FlagsFromStatus(rr.status),
			Offset:       int64(rr.offset),
			Length:       int64(rr.length),
			StatusOffset: int32(rr.statusOffset),
			Lines:        int64(rr.lines),
			ID:           ids.resolve(rr.id),
		}

		for _, ref := range rr.refs {
			if idx := ids.resolve(ref); idx != intern.NoEntry {
				m.Refs = append(m.Refs, idx)
			}
		}

		f.AddMessage(m)
	}
}

// readSummary runs the two-phase read shared by all versions: decode the
// whole body locally, then either deliver it or fold it into the salvage
// map.
func readSummary(rec *Record, r io.Reader, f Folder, version uint32, decodeBody func(*decoder, *body) error) int64 {
	d := newDecoder(r)

	hdr, err := readHeader(d, version)
	if err != nil {
		rec.log.Debug().Err(err).Str("path", rec.path).Msg("summary header unreadable")

		return 0
	}

	live, liveErr := liveExpectation(f)
	optimistic := liveErr == nil && live.FolderSize == hdr.FolderSize && live.FolderDate == hdr.FolderDate

	b := &body{}

	err = decodeBody(d, b)
	if err == nil && !hdr.valid() {
		err = fmt.Errorf("%w: header counts total=%d undeleted=%d unread=%d",
			ErrCorrupt, hdr.Total, hdr.Undeleted, hdr.Unread)
	}

	if err != nil {
		n := rec.salvageBody(b)
		rec.InvalidateCounts()

		rec.log.Warn().Err(err).Str("path", rec.path).Int("salvaged", n).
			Msg("summary corrupt, salvaged flags")

		return 0
	}

	if !optimistic {
		n := rec.salvageBody(b)
		rec.InvalidateCounts()

		ev := rec.log.Info().Str("path", rec.path).Int("salvaged", n).
			Int64("cached_size", hdr.FolderSize).Int64("cached_date", hdr.FolderDate)
		if liveErr != nil {
			ev = ev.AnErr("stat_err", liveErr)
		} else {
			ev = ev.Int64("live_size", live.FolderSize).Int64("live_date", live.FolderDate)
		}

		ev.Msg("summary stale, salvaged flags")

		return 0
	}

	b.deliver(f)
	rec.trust(hdr)

	rec.log.Debug().Str("path", rec.path).Uint32("version", version).
		Int("messages", len(b.records)).Int64("parsed_through", hdr.ParsedThrough).
		Msg("summary loaded")

	return hdr.ParsedThrough
}

func liveExpectation(f Folder) (Header, error) {
	info, err := f.Stat()
	if err != nil {
		return Header{}, err
	}

	return Header{FolderSize: info.Size(), FolderDate: info.ModTime().Unix()}, nil
}

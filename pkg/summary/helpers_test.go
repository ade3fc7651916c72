package summary_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/calvinalkan/mailsummary/pkg/intern"
	"github.com/calvinalkan/mailsummary/pkg/summary"
)

// memFolder keeps messages in memory and stats a real mailbox file.
type memFolder struct {
	mbox    string
	tables  *summary.Tables
	msgs    []*summary.Message
	parsed  int64
	statErr error
}

func newMemFolder(mbox string) *memFolder {
	return &memFolder{mbox: mbox, tables: summary.NewTables()}
}

func (f *memFolder) Stat() (os.FileInfo, error) {
	if f.statErr != nil {
		return nil, f.statErr
	}

	return os.Stat(f.mbox)
}

func (f *memFolder) Tables() *summary.Tables       { return f.tables }
func (f *memFolder) AddMessage(m *summary.Message) { f.msgs = append(f.msgs, m) }
func (f *memFolder) Messages() []*summary.Message  { return f.msgs }
func (f *memFolder) ParsedThrough() int64          { return f.parsed }

// msgSpec is a message with its table references spelled out.
type msgSpec struct {
	Sender, Recipient, Subject string
	Date                       int32
	Flags                      summary.Flags
	Offset, Length             int64
	StatusOffset               int32
	Lines                      int64
	ID                         string
	Refs                       []string
}

func (f *memFolder) add(s msgSpec) {
	m := &summary.Message{
		Sender:       f.tables.Strings.Intern(s.Sender),
		Recipient:    f.tables.Strings.Intern(s.Recipient),
		Subject:      f.tables.Strings.Intern(s.Subject),
		Date:         s.Date,
		Flags:        s.Flags,
		Offset:       s.Offset,
		Length:       s.Length,
		StatusOffset: s.StatusOffset,
		Lines:        s.Lines,
		ID:           f.tables.IDs.InternString(s.ID),
	}

	for _, r := range s.Refs {
		m.Refs = append(m.Refs, f.tables.IDs.InternString(r))
	}

	f.AddMessage(m)
}

// view resolves indices so folders with different tables compare equal.
type view struct {
	Sender, Recipient, Subject string
	Date                       int32
	Flags                      summary.Flags
	Offset, Length             int64
	StatusOffset               int32
	Lines                      int64
	ID                         intern.MessageID
	Refs                       []intern.MessageID
}

func (f *memFolder) views() []view {
	out := make([]view, 0, len(f.msgs))

	str := func(i int32) string {
		s, _ := f.tables.Strings.Get(i)

		return s
	}

	for _, m := range f.msgs {
		id, _ := f.tables.IDs.Get(m.ID)

		v := view{
			Sender:       str(m.Sender),
			Recipient:    str(m.Recipient),
			Subject:      str(m.Subject),
			Date:         m.Date,
			Flags:        m.Flags,
			Offset:       m.Offset,
			Length:       m.Length,
			StatusOffset: m.StatusOffset,
			Lines:        m.Lines,
			ID:           id,
		}

		for _, r := range m.Refs {
			ref, _ := f.tables.IDs.Get(r)
			v.Refs = append(v.Refs, ref)
		}

		out = append(out, v)
	}

	return out
}

var fixedMtime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// writeMailbox writes content with a fixed mtime and returns the mailbox
// and summary paths.
func writeMailbox(t *testing.T, content string) (mbox, msf string) {
	t.Helper()

	dir := t.TempDir()
	mbox = filepath.Join(dir, "Inbox")

	if err := os.WriteFile(mbox, []byte(content), 0o644); err != nil {
		t.Fatalf("write mailbox: %v", err)
	}

	if err := os.Chtimes(mbox, fixedMtime, fixedMtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	return mbox, mbox + ".msf"
}

func appendMailbox(t *testing.T, mbox, content string) {
	t.Helper()

	f, err := os.OpenFile(mbox, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		t.Fatalf("open mailbox: %v", err)
	}

	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append mailbox: %v", err)
	}

	_ = f.Close()

	if err := os.Chtimes(mbox, fixedMtime.Add(time.Hour), fixedMtime.Add(time.Hour)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

// sampleFolder is three messages, one deleted, one read.
func sampleFolder(mbox string) *memFolder {
	f := newMemFolder(mbox)
	f.parsed = 300

	f.add(msgSpec{
		Sender: "alice@example.org", Recipient: "bob@example.org", Subject: "hello",
		Date: 1700000000, Flags: summary.FlagRead | summary.FlagReplied,
		Offset: 0, Length: 100, StatusOffset: 40, Lines: 3, ID: "<a1@example.org>",
	})
	f.add(msgSpec{
		Sender: "bob@example.org", Recipient: "alice@example.org", Subject: "Re: hello",
		Date: -5, Flags: summary.FlagHasRe.WithPriority(4),
		Offset: 100, Length: 120, Lines: 7, ID: "<b2@example.org>",
		Refs: []string{"<a1@example.org>"},
	})
	f.add(msgSpec{
		Sender: "carol@example.org", Subject: "",
		Date: 1700000100, Flags: summary.FlagDeleted | summary.FlagRead,
		Offset: 220, Length: 80, Lines: 1, ID: "<c3@example.org>",
		Refs: []string{"<a1@example.org>", "<b2@example.org>"},
	})

	return f
}

// legacyFile builds a version 4 file.
type legacyFile struct {
	header  [7]uint32
	strings []string
	records [][]byte
}

func (l *legacyFile) record(sender, recipient, subject uint16, date, status, offset, length uint32,
	statusOffset, lines, id uint16, refs ...uint16,
) {
	var b []byte

	for _, v := range []uint16{sender, recipient, subject} {
		b = binary.BigEndian.AppendUint16(b, v)
	}

	for _, v := range []uint32{date, status, offset, length} {
		b = binary.BigEndian.AppendUint32(b, v)
	}

	for _, v := range []uint16{statusOffset, lines, id, uint16(len(refs))} {
		b = binary.BigEndian.AppendUint16(b, v)
	}

	for _, r := range refs {
		b = binary.BigEndian.AppendUint16(b, r)
	}

	l.records = append(l.records, b)
}

func (l *legacyFile) bytes() []byte {
	b := []byte(summary.Magic)
	b = binary.BigEndian.AppendUint32(b, summary.VersionLegacy)

	for _, v := range l.header {
		b = binary.BigEndian.AppendUint32(b, v)
	}

	b = binary.BigEndian.AppendUint16(b, uint16(len(l.strings)))

	for _, s := range l.strings {
		b = append(b, s...)
		b = append(b, 0)
	}

	for _, r := range l.records {
		b = append(b, r...)
	}

	return b
}

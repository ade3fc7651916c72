// Package mbox keeps the messages of an mbox mailbox in memory and scans
// the mailbox file to build them. A [Folder] is the mailbox side of a
// [summary.Record].
package mbox

import (
	"os"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/calvinalkan/mailsummary/pkg/fs"
	"github.com/calvinalkan/mailsummary/pkg/intern"
	"github.com/calvinalkan/mailsummary/pkg/rangeset"
	"github.com/calvinalkan/mailsummary/pkg/summary"
)

// Options configures a [Folder].
type Options struct {
	// FS defaults to [fs.NewReal].
	FS fs.FS

	// Logger receives scan diagnostics. The zero value discards them.
	Logger zerolog.Logger
}

// Folder is an mbox mailbox and the messages known for it.
//
// It is safe for concurrent use, but a scan and a summary load into the
// same folder must not overlap.
type Folder struct {
	path string
	fs   fs.FS
	log  zerolog.Logger

	mu     sync.Mutex
	tables *summary.Tables
	msgs   []*summary.Message
	parsed int64
}

var _ summary.Folder = (*Folder)(nil)

// Open returns an empty folder for the mailbox at path. The file is not
// touched until [Folder.Scan] or [Folder.Stat].
func Open(path string, opts Options) *Folder {
	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	return &Folder{
		path:   path,
		fs:     fsys,
		log:    opts.Logger.With().Str("component", "mbox").Str("mailbox", path).Logger(),
		tables: summary.NewTables(),
	}
}

// Path returns the mailbox path.
func (f *Folder) Path() string { return f.path }

func (f *Folder) Stat() (os.FileInfo, error) {
	return f.fs.Stat(f.path)
}

func (f *Folder) Tables() *summary.Tables {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.tables
}

func (f *Folder) AddMessage(m *summary.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.msgs = append(f.msgs, m)
}

// Messages returns the messages in mailbox order. The slice is a copy; the
// messages are shared.
func (f *Folder) Messages() []*summary.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.msgs)
}

// Len returns the number of messages.
func (f *Folder) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.msgs)
}

func (f *Folder) ParsedThrough() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.parsed
}

// Reset drops all messages and tables.
func (f *Folder) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tables = summary.NewTables()
	f.msgs = nil
	f.parsed = 0
}

// String resolves a string table index, returning "" for [intern.NoEntry].
func (f *Folder) String(i int32) string {
	s, _ := f.Tables().Strings.Get(i)

	return s
}

// MessageID resolves a Message-ID table index, returning 0 for
// [intern.NoEntry].
func (f *Folder) MessageID(i int32) intern.MessageID {
	id, _ := f.Tables().IDs.Get(i)

	return id
}

// Find returns the 0-based position of the first message whose
// Message-ID hashes like id.
func (f *Folder) Find(id string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	slot, ok := f.tables.IDs.LookupString(id)
	if !ok {
		return 0, false
	}

	for i, m := range f.msgs {
		if m.ID == slot {
			return i, true
		}
	}

	return 0, false
}

// ApplySalvage replaces the flags of every message whose Message-ID is in
// salvage and returns how many were replaced.
func (f *Folder) ApplySalvage(salvage map[intern.MessageID]summary.Flags) int {
	if len(salvage) == 0 {
		return 0
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0

	for _, m := range f.msgs {
		id, ok := f.tables.IDs.Get(m.ID)
		if !ok {
			continue
		}

		if flags, ok := salvage[id]; ok {
			m.Flags = flags
			n++
		}
	}

	if n > 0 {
		f.log.Debug().Int("merged", n).Int("salvaged", len(salvage)).Msg("applied salvaged flags")
	}

	return n
}

// ReadSet returns the 1-based numbers of read messages.
func (f *Folder) ReadSet() *rangeset.Set {
	f.mu.Lock()
	defer f.mu.Unlock()

	set := rangeset.New()

	for i, m := range f.msgs {
		if m.Flags.Has(summary.FlagRead) {
			set.Add(int64(i) + 1)
		}
	}

	return set
}

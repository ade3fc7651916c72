package summary

import (
	"bufio"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/calvinalkan/mailsummary/pkg/fs"
	"github.com/calvinalkan/mailsummary/pkg/intern"
)

// Options configures a [Record].
type Options struct {
	// FS defaults to [fs.NewReal].
	FS fs.FS

	// Logger receives diagnostics. The zero value discards them.
	Logger zerolog.Logger
}

const uncomputed = -1

const (
	countTotal = iota
	countUndeleted
	countUnread
	countDeletedBytes
	numCounts
)

// Record is the summary state of one open folder. It exists before the
// summary file does and outlives any single read or write.
//
// Counts are computed lazily from the file header and are safe for
// concurrent use. A load that rejects the summary, stale or with a corrupt
// body, does not change where counts come from: getters still return the
// file's header counts until Write replaces the file. Only a header whose
// counts contradict each other yields no counts.
//
// Write and UpdateHeader are not serialized against each
// other; callers that share a file across processes take an [fs.Locker]
// lock around them.
type Record struct {
	path   string
	fs     fs.FS
	writer *fs.AtomicWriter
	log    zerolog.Logger

	counts  [numCounts]atomic.Int64
	countMu sync.Mutex

	mu            sync.Mutex
	folderSize    int64
	folderDate    int64
	parsedThrough int64
	version       uint32
	salvage       map[intern.MessageID]Flags
}

// NewRecord returns a record for the summary file at path. Nothing is read
// until a count is requested or [Record.Load] is called.
func NewRecord(path string, opts Options) *Record {
	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	r := &Record{
		path:    path,
		fs:      fsys,
		writer:  fs.NewAtomicWriter(fsys),
		log:     opts.Logger.With().Str("component", "summary").Logger(),
		salvage: make(map[intern.MessageID]Flags),
	}

	r.InvalidateCounts()

	return r
}

// Path returns the summary file path.
func (r *Record) Path() string { return r.path }

// Load reads the summary into f and returns the mailbox offset from which
// f must still be scanned. 0 means a full scan: the summary is missing,
// unrecognized, stale or corrupt. Flags from a stale or corrupt summary
// are kept in [Record.Salvage].
func (r *Record) Load(f Folder) int64 {
	file, err := r.fs.Open(r.path)
	if err != nil {
		r.log.Debug().Err(err).Str("path", r.path).Msg("no summary file")

		return 0
	}
	defer file.Close()

	br := bufio.NewReader(file)

	format, err := dispatch(br)
	if err != nil {
		r.log.Debug().Err(err).Str("path", r.path).Msg("no usable summary")

		return 0
	}

	return format.Read(r, br, f)
}

// ReadCounts reads only the file header and sets the four counts from it.
// On any failure the counts are left uncomputed and false is returned.
func (r *Record) ReadCounts() bool {
	r.countMu.Lock()
	defer r.countMu.Unlock()

	return r.readCountsLocked()
}

func (r *Record) readCountsLocked() bool {
	file, err := r.fs.Open(r.path)
	if err != nil {
		r.log.Debug().Err(err).Str("path", r.path).Msg("counts: no summary file")

		return false
	}
	defer file.Close()

	hdr, err := ReadHeader(file)
	if err != nil {
		r.log.Debug().Err(err).Str("path", r.path).Msg("counts: no usable summary")

		return false
	}

	if !hdr.valid() {
		r.log.Warn().Str("path", r.path).Msg("counts: inconsistent header")

		return false
	}

	r.storeCounts(hdr.Counts)

	return true
}

func (r *Record) count(which int) (int64, bool) {
	if v := r.counts[which].Load(); v != uncomputed {
		return v, true
	}

	r.countMu.Lock()
	defer r.countMu.Unlock()

	if v := r.counts[which].Load(); v != uncomputed {
		return v, true
	}

	if !r.readCountsLocked() {
		return 0, false
	}

	return r.counts[which].Load(), true
}

// TotalCount returns the number of messages, reading the header on first
// use. False means the count is unavailable.
func (r *Record) TotalCount() (int64, bool) { return r.count(countTotal) }

// UndeletedCount is like [Record.TotalCount] for messages not deleted.
func (r *Record) UndeletedCount() (int64, bool) { return r.count(countUndeleted) }

// UnreadCount is like [Record.TotalCount] for unread messages.
func (r *Record) UnreadCount() (int64, bool) { return r.count(countUnread) }

// DeletedBytes is like [Record.TotalCount] for the bytes held by deleted
// messages.
func (r *Record) DeletedBytes() (int64, bool) { return r.count(countDeletedBytes) }

// Counts returns all four counts, or false if any is unavailable.
func (r *Record) Counts() (Counts, bool) {
	var c Counts

	var ok [numCounts]bool

	c.Total, ok[0] = r.TotalCount()
	c.Undeleted, ok[1] = r.UndeletedCount()
	c.Unread, ok[2] = r.UnreadCount()
	c.DeletedBytes, ok[3] = r.DeletedBytes()

	return c, ok[0] && ok[1] && ok[2] && ok[3]
}

// SetCounts replaces the four counts. It panics on negative values and
// when undeleted or unread exceeds total. Unread may exceed undeleted.
func (r *Record) SetCounts(total, undeleted, unread, deletedBytes int64) {
	if total < 0 || undeleted < 0 || unread < 0 || deletedBytes < 0 {
		panic(fmt.Sprintf("summary: negative count total=%d undeleted=%d unread=%d deleted_bytes=%d",
			total, undeleted, unread, deletedBytes))
	}

	if undeleted > total || unread > total {
		panic(fmt.Sprintf("summary: count exceeds total=%d undeleted=%d unread=%d", total, undeleted, unread))
	}

	r.countMu.Lock()
	defer r.countMu.Unlock()

	r.storeCounts(Counts{Total: total, Undeleted: undeleted, Unread: unread, DeletedBytes: deletedBytes})
}

func (r *Record) storeCounts(c Counts) {
	r.counts[countTotal].Store(c.Total)
	r.counts[countUndeleted].Store(c.Undeleted)
	r.counts[countUnread].Store(c.Unread)
	r.counts[countDeletedBytes].Store(c.DeletedBytes)
}

// InvalidateCounts marks all counts uncomputed. The next getter reads the
// header again, even if that header belongs to a summary Load rejected.
func (r *Record) InvalidateCounts() {
	for i := range r.counts {
		r.counts[i].Store(uncomputed)
	}
}

// trust records hdr as the expectation of an accepted summary.
func (r *Record) trust(hdr Header) {
	r.mu.Lock()
	r.folderSize = hdr.FolderSize
	r.folderDate = hdr.FolderDate
	r.parsedThrough = hdr.ParsedThrough
	r.version = hdr.Version
	r.mu.Unlock()

	r.countMu.Lock()
	r.storeCounts(hdr.Counts)
	r.countMu.Unlock()
}

func (r *Record) salvageBody(b *body) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0

	for _, rr := range b.records {
		if rr.id == absent {
			continue
		}

		id := b.ids[rr.id]
		if id == 0 {
			continue
		}

		r.salvage[id] = FlagsFromStatus(rr.status)
		n++
	}

	return n
}

// Salvage returns a copy of the flags recovered from stale or corrupt
// summaries, keyed by Message-ID.
func (r *Record) Salvage() map[intern.MessageID]Flags {
	r.mu.Lock()
	defer r.mu.Unlock()

	return maps.Clone(r.salvage)
}

// ClearSalvage drops recovered flags once they have been merged.
func (r *Record) ClearSalvage() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.salvage)
}

// FolderSize is the mailbox size recorded when the summary was last
// trusted.
func (r *Record) FolderSize() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.folderSize
}

// FolderDate is the mailbox mtime in unix seconds recorded when the
// summary was last trusted.
func (r *Record) FolderDate() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.folderDate
}

// ParsedThrough is the resume offset of the last trusted summary.
func (r *Record) ParsedThrough() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.parsedThrough
}

// Version is the format version of the last trusted summary, or 0.
func (r *Record) Version() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.version
}

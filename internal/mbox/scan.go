package mbox

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/calvinalkan/mailsummary/pkg/intern"
	"github.com/calvinalkan/mailsummary/pkg/summary"
)

const (
	separator   = "From "
	statusField = "X-Mozilla-Status:"
)

// Scan parses the mailbox from byte offset from to its end and appends one
// message per "From " separator line. from must be 0 or the offset of a
// separator line, usually the resume offset returned by
// [summary.Record.Load]. Bytes before the first separator are skipped.
//
// It returns the number of messages added. On error, messages parsed
// before the failure stay in the folder and ParsedThrough is unchanged.
func (f *Folder) Scan(from int64) (int, error) {
	file, err := f.fs.Open(f.path)
	if err != nil {
		return 0, fmt.Errorf("scan %q: %w", f.path, err)
	}
	defer file.Close()

	if from > 0 {
		_, err = file.Seek(from, io.SeekStart)
		if err != nil {
			return 0, fmt.Errorf("scan %q: seek to %d: %w", f.path, from, err)
		}
	}

	s := &scanner{r: bufio.NewReaderSize(file, 64<<10), pos: from}
	added := 0

	for {
		raw, err := s.next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return added, fmt.Errorf("scan %q at offset %d: %w", f.path, s.pos, err)
		}

		f.AddMessage(f.build(raw))
		added++
	}

	f.mu.Lock()
	f.parsed = s.pos
	f.mu.Unlock()

	f.log.Debug().Int64("from", from).Int64("through", s.pos).Int("added", added).Msg("mailbox scanned")

	return added, nil
}

// rawMessage is one message as split from the mailbox, before header
// parsing. Offsets are absolute.
type rawMessage struct {
	offset int64
	length int64

	// header is the header block including its terminating blank line.
	header     []byte
	headerDone bool

	// statusOffset is relative to offset; 0 when there is no status line.
	statusOffset int64
	lines        int64
}

type scanner struct {
	r   *bufio.Reader
	pos int64

	// pending is a separator line already consumed while reading the
	// previous message.
	pending   bool
	pendingAt int64
}

// line returns the next line including its newline and the offset it
// starts at. A final line without newline is returned as is; io.EOF comes
// only once nothing is left.
func (s *scanner) line() ([]byte, int64, error) {
	at := s.pos

	line, err := s.r.ReadBytes('\n')
	s.pos += int64(len(line))

	if len(line) > 0 && (err == nil || errors.Is(err, io.EOF)) {
		return line, at, nil
	}

	return nil, at, err
}

func (s *scanner) next() (*rawMessage, error) {
	for !s.pending {
		line, at, err := s.line()
		if err != nil {
			return nil, err
		}

		if bytes.HasPrefix(line, []byte(separator)) {
			s.pending, s.pendingAt = true, at
		}
	}

	msg := &rawMessage{offset: s.pendingAt}
	s.pending = false

	for {
		line, at, err := s.line()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		if bytes.HasPrefix(line, []byte(separator)) {
			s.pending, s.pendingAt = true, at

			break
		}

		if msg.headerDone {
			msg.lines++

			continue
		}

		msg.header = append(msg.header, line...)

		if isBlank(line) {
			msg.headerDone = true
		} else if msg.statusOffset == 0 && hasField(line, statusField) {
			msg.statusOffset = at - msg.offset
		}
	}

	end := s.pos
	if s.pending {
		end = s.pendingAt
	}

	msg.length = end - msg.offset

	return msg, nil
}

func isBlank(line []byte) bool {
	return len(bytes.TrimRight(line, "\r\n")) == 0
}

func hasField(line []byte, name string) bool {
	return len(line) >= len(name) && strings.EqualFold(string(line[:len(name)]), name)
}

// build parses the header of raw into a message interned into the folder's
// tables. A header that does not parse still yields a message with its
// position so the mailbox stays addressable.
func (f *Folder) build(raw *rawMessage) *summary.Message {
	m := &summary.Message{
		Sender:       intern.NoEntry,
		Recipient:    intern.NoEntry,
		Subject:      intern.NoEntry,
		Offset:       raw.offset,
		Length:       raw.length,
		StatusOffset: int32(min(raw.statusOffset, math.MaxInt32)),
		Lines:        raw.lines,
		ID:           intern.NoEntry,
	}

	block := raw.header
	if !raw.headerDone {
		if !bytes.HasSuffix(block, []byte("\n")) {
			block = append(block, "\r\n"...)
		}

		block = append(block, "\r\n"...)
	}

	th, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(block)))
	if err != nil {
		f.log.Warn().Err(err).Int64("offset", raw.offset).Msg("unparsable message header")

		return m
	}

	h := mail.Header{Header: message.Header{Header: th}}
	t := f.Tables()

	m.Sender = t.Strings.Intern(text(h, "From"))
	m.Recipient = t.Strings.Intern(text(h, "To"))

	subject, hasRe := stripRe(text(h, "Subject"))
	m.Subject = t.Strings.Intern(subject)

	if date, err := h.Date(); err == nil && !date.IsZero() {
		m.Date = int32(max(math.MinInt32, min(date.Unix(), math.MaxInt32)))
	}

	if id, err := h.MessageID(); err == nil {
		m.ID = t.IDs.InternString(id)
	}

	m.Refs = refs(h, t.IDs)
	m.Flags = flags(h)

	if hasRe {
		m.Flags |= summary.FlagHasRe
	}

	return m
}

// text returns the decoded value of key, or the raw value when it does
// not decode.
func text(h mail.Header, key string) string {
	v, err := h.Text(key)
	if err != nil {
		return h.Get(key)
	}

	return v
}

// stripRe removes leading "Re:" prefixes.
func stripRe(subject string) (string, bool) {
	found := false

	for {
		s := strings.TrimLeft(subject, " \t")
		if len(s) < 3 || !strings.EqualFold(s[:3], "re:") {
			break
		}

		subject = s[3:]
		found = true
	}

	if found {
		subject = strings.TrimLeft(subject, " \t")
	}

	return subject, found
}

// refs collects References, then In-Reply-To when it is not already the
// last reference.
func refs(h mail.Header, ids *intern.IDTable) []int32 {
	list, _ := h.MsgIDList("References")

	if reply, err := h.MsgIDList("In-Reply-To"); err == nil && len(reply) > 0 {
		if len(list) == 0 || list[len(list)-1] != reply[0] {
			list = append(list, reply[0])
		}
	}

	var out []int32

	for _, id := range list {
		if i := ids.InternString(id); i != intern.NoEntry {
			out = append(out, i)
		}
	}

	return out
}

// flags reads X-Mozilla-Status when present and falls back to the mbox
// Status and X-Status letters.
func flags(h mail.Header) summary.Flags {
	if v := strings.TrimSpace(h.Get("X-Mozilla-Status")); v != "" {
		if status, err := strconv.ParseUint(v, 16, 32); err == nil {
			return summary.FlagsFromStatus(uint32(status))
		}
	}

	var fl summary.Flags

	if strings.ContainsRune(h.Get("Status"), 'R') {
		fl |= summary.FlagRead
	}

	for _, c := range h.Get("X-Status") {
		switch c {
		case 'A':
			fl |= summary.FlagReplied
		case 'F':
			fl |= summary.FlagFlagged
		case 'D':
			fl |= summary.FlagDeleted
		}
	}

	return fl.WithPriority(priority(h.Get("X-Priority")))
}

// priority maps X-Priority 1..5 to the stored scale, where 6 is highest
// and 2 lowest. 0 means unset.
func priority(v string) uint8 {
	v = strings.TrimSpace(v)
	if v == "" || v[0] < '1' || v[0] > '5' {
		return 0
	}

	return 7 - (v[0] - '0')
}

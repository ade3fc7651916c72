package summary

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// decoder reads big-endian fields. The first error sticks; later reads
// return zero values.
type decoder struct {
	r   *bufio.Reader
	buf [4]byte
	err error
}

func newDecoder(r io.Reader) *decoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	return &decoder{r: br}
}

func (d *decoder) read(n int) []byte {
	if d.err != nil {
		return nil
	}

	_, err := io.ReadFull(d.r, d.buf[:n])
	if err != nil {
		d.err = err

		return nil
	}

	return d.buf[:n]
}

func (d *decoder) u16() uint16 {
	b := d.read(2)
	if b == nil {
		return 0
	}

	return binary.BigEndian.Uint16(b)
}

func (d *decoder) u32() uint32 {
	b := d.read(4)
	if b == nil {
		return 0
	}

	return binary.BigEndian.Uint32(b)
}

// index reads a table reference of the given width (2 or 4 bytes) and
// normalizes the width's all-ones value to absent.
func (d *decoder) index(width int) uint32 {
	if width == 2 {
		v := d.u16()
		if v == 0xFFFF {
			return absent
		}

		return uint32(v)
	}

	return d.u32()
}

func (d *decoder) cstring() string {
	if d.err != nil {
		return ""
	}

	s, err := d.r.ReadString(0)
	if err != nil {
		d.err = err

		return ""
	}

	return s[:len(s)-1]
}

// atEOF reports whether the stream ended exactly here.
func (d *decoder) atEOF() bool {
	if d.err != nil {
		return false
	}

	_, err := d.r.Peek(1)
	if errors.Is(err, io.EOF) {
		return true
	}

	if err != nil {
		d.err = err
	}

	return false
}

// corrupt converts the sticky error into an [ErrCorrupt]. A clean EOF in
// the middle of a structure is a truncation.
func (d *decoder) corrupt(what string) error {
	err := d.err
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}

	return fmt.Errorf("%w: %s: %w", ErrCorrupt, what, err)
}

// encoder appends big-endian fields to a byte slice.
type encoder struct {
	buf []byte
}

func (e *encoder) u16(v uint16) { e.buf = binary.BigEndian.AppendUint16(e.buf, v) }
func (e *encoder) u32(v uint32) { e.buf = binary.BigEndian.AppendUint32(e.buf, v) }

func (e *encoder) index(width int, v uint32) {
	if width == 2 {
		if v == absent {
			e.u16(0xFFFF)
		} else {
			e.u16(uint16(v))
		}

		return
	}

	e.u32(v)
}

// cstring writes s NUL-terminated. Text after an embedded NUL is dropped.
func (e *encoder) cstring(s string) {
	s, _, _ = strings.Cut(s, "\x00")
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
}

func indexWidth(entries int) int {
	if entries <= wideTable {
		return 2
	}

	return 4
}

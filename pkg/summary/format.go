package summary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Magic is the text every recognized summary file starts with.
const Magic = "# Netscape folder cache\r\n"

// legacyBinaryMagic marks an old binary sub-format nothing here can read.
var legacyBinaryMagic = [4]byte{0x4E, 0x53, 0x4D, 0x00}

// Format versions, stored as a big-endian uint32 after [Magic].
const (
	VersionLegacy  uint32 = 4
	versionUnused  uint32 = 5
	VersionCurrent uint32 = 6
)

// Header field offsets from the start of the file. The header is the same
// shape in both readable versions.
const (
	offVersion       = len(Magic)
	offFolderSize    = offVersion + 4
	offFolderDate    = offFolderSize + 4
	offParsedThrough = offFolderDate + 4
	offTotal         = offParsedThrough + 4
	offUndeleted     = offTotal + 4
	offUnread        = offUndeleted + 4
	offDeletedBytes  = offUnread + 4
	headerSize       = offDeletedBytes + 4
)

// absent marks a missing table reference once widths are normalized.
const absent = ^uint32(0)

// wideTable is the entry count above which table indices take 4 bytes.
const wideTable = 0xFFFF

// Header is the fixed part of a summary file.
type Header struct {
	Version       uint32
	FolderSize    int64
	FolderDate    int64
	ParsedThrough int64
	Counts
}

func (h Header) valid() bool {
	return h.Undeleted <= h.Total && h.Unread <= h.Total
}

// Format reads one on-disk version.
type Format interface {
	Version() uint32

	// Read decodes the rest of a summary whose magic and version were
	// consumed by [Dispatch]. It returns the mailbox offset from which the
	// caller must scan, 0 meaning the whole mailbox.
	Read(rec *Record, r io.Reader, f Folder) int64
}

// Dispatch consumes the magic and version from r and returns the reader
// for that version. False means there is no usable cache; it is never an
// error.
func Dispatch(r io.Reader) (Format, bool) {
	format, err := dispatch(r)

	return format, err == nil
}

func dispatch(r io.Reader) (Format, error) {
	var buf [len(Magic)]byte

	_, err := io.ReadFull(r, buf[:4])
	if err != nil {
		return nil, fmt.Errorf("%w: read magic: %w", ErrNoCache, err)
	}

	if [4]byte(buf[:4]) == legacyBinaryMagic {
		return nil, fmt.Errorf("%w: binary summary format", ErrNoCache)
	}

	if !bytes.Equal(buf[:4], []byte(Magic[:4])) {
		return nil, fmt.Errorf("%w: bad magic", ErrNoCache)
	}

	_, err = io.ReadFull(r, buf[4:])
	if err != nil {
		return nil, fmt.Errorf("%w: read magic: %w", ErrNoCache, err)
	}

	if string(buf[:]) != Magic {
		return nil, fmt.Errorf("%w: bad magic", ErrNoCache)
	}

	// Read the version unbuffered; r may be handed on to a Format.
	_, err = io.ReadFull(r, buf[:4])
	if err != nil {
		return nil, fmt.Errorf("%w: read version: %w", ErrNoCache, err)
	}

	version := binary.BigEndian.Uint32(buf[:4])

	switch version {
	case VersionLegacy:
		return Legacy{}, nil
	case VersionCurrent:
		return Current{}, nil
	case versionUnused:
		return nil, fmt.Errorf("%w: unsupported version %d", ErrNoCache, version)
	default:
		return nil, fmt.Errorf("%w: unknown version %d", ErrNoCache, version)
	}
}

func readHeader(d *decoder, version uint32) (Header, error) {
	h := Header{
		Version:       version,
		FolderSize:    int64(d.u32()),
		FolderDate:    int64(d.u32()),
		ParsedThrough: int64(d.u32()),
	}

	h.Total = int64(d.u32())
	h.Undeleted = int64(d.u32())
	h.Unread = int64(d.u32())
	h.DeletedBytes = int64(d.u32())

	if d.err != nil {
		return Header{}, fmt.Errorf("%w: read header: %w", ErrNoCache, d.err)
	}

	return h, nil
}

// ReadHeader reads the magic, version and fixed header from r without
// touching tables or records.
func ReadHeader(r io.Reader) (Header, error) {
	format, err := dispatch(r)
	if err != nil {
		return Header{}, err
	}

	return readHeader(newDecoder(r), format.Version())
}

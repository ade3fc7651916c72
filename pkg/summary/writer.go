package summary

import (
	"encoding/binary"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"

	"github.com/calvinalkan/mailsummary/pkg/fs"
)

// Write replaces the summary file with a version 6 encoding of
// f.Messages(). Counts are recounted from the messages and the tables are
// rebuilt from live data.
//
// The file is replaced atomically. On error the previous file is intact and
// no temp file remains.
func (r *Record) Write(f Folder) error {
	live, err := liveExpectation(f)
	if err != nil {
		return fmt.Errorf("write summary %q: stat folder: %w", r.path, err)
	}

	msgs := f.Messages()

	hdr := live
	hdr.Version = VersionCurrent
	hdr.ParsedThrough = f.ParsedThrough()
	hdr.Counts = CountMessages(msgs)

	data, err := encodeCurrent(hdr, msgs, f.Tables())
	if err != nil {
		return fmt.Errorf("write summary %q: %w", r.path, err)
	}

	err = r.writer.WriteBytes(r.path, data, fs.DefaultAtomicWriteOptions())
	if err != nil {
		return fmt.Errorf("write summary %q: %w", r.path, err)
	}

	r.trust(hdr)

	r.log.Debug().Str("path", r.path).Int("messages", len(msgs)).Int("bytes", len(data)).
		Msg("summary written")

	return nil
}

// UpdateHeader rewrites the folder size, date and four counts of an
// existing version 6 summary in place. Records and the resume offset are
// left as they are, so it only fits when messages were appended to a
// folder whose summary was trusted.
//
// A file that is not version 6 is left untouched and nil is returned; the
// caller must fall back to [Record.Write]. A missing file or an I/O error
// is returned.
func (r *Record) UpdateHeader(f Folder) error {
	live, err := liveExpectation(f)
	if err != nil {
		return fmt.Errorf("update summary %q: stat folder: %w", r.path, err)
	}

	counts := CountMessages(f.Messages())

	for _, v := range [...]int64{live.FolderSize, live.FolderDate, counts.Total, counts.DeletedBytes} {
		if v > int64(absent) {
			return fmt.Errorf("update summary %q: %w: value %d exceeds 32 bits", r.path, ErrIncompatible, v)
		}
	}

	file, err := r.fs.OpenFile(r.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("update summary %q: %w", r.path, err)
	}

	updated, err := patchHeader(file, live, counts)

	closeErr := file.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("close: %w", closeErr)
	}

	if err != nil {
		return fmt.Errorf("update summary %q: %w", r.path, err)
	}

	if !updated {
		r.log.Debug().Str("path", r.path).Msg("summary header not updated: not a current-format file")

		return nil
	}

	r.mu.Lock()
	r.folderSize = live.FolderSize
	r.folderDate = live.FolderDate
	r.mu.Unlock()

	r.countMu.Lock()
	r.storeCounts(counts)
	r.countMu.Unlock()

	r.log.Debug().Str("path", r.path).Int64("total", counts.Total).Msg("summary header updated")

	return nil
}

func patchHeader(file fs.File, live Header, counts Counts) (bool, error) {
	format, err := dispatch(file)

	var pathErr *iofs.PathError
	if errors.As(err, &pathErr) {
		return false, err
	}

	if err != nil {
		return false, nil
	}

	if format.Version() != VersionCurrent {
		return false, nil
	}

	var expect [offParsedThrough - offFolderSize]byte

	binary.BigEndian.PutUint32(expect[0:], uint32(live.FolderSize))
	binary.BigEndian.PutUint32(expect[4:], uint32(live.FolderDate))

	_, err = file.WriteAt(expect[:], int64(offFolderSize))
	if err != nil {
		return false, fmt.Errorf("write expectation: %w", err)
	}

	var cnt [headerSize - offTotal]byte

	binary.BigEndian.PutUint32(cnt[0:], uint32(counts.Total))
	binary.BigEndian.PutUint32(cnt[4:], uint32(counts.Undeleted))
	binary.BigEndian.PutUint32(cnt[8:], uint32(counts.Unread))
	binary.BigEndian.PutUint32(cnt[12:], uint32(counts.DeletedBytes))

	_, err = file.WriteAt(cnt[:], int64(offTotal))
	if err != nil {
		return false, fmt.Errorf("write counts: %w", err)
	}

	err = file.Sync()
	if err != nil {
		return false, fmt.Errorf("sync: %w", err)
	}

	return true, nil
}

package fs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
)

// ErrDirSync means the replacement is in place but the parent directory
// could not be synced, so the rename may not survive a crash.
var ErrDirSync = errors.New("dir sync")

// AtomicWriter replaces files via temp file, fsync and rename. Readers see
// either the old content or the new content, never a mix.
type AtomicWriter struct {
	fs FS
}

// NewAtomicWriter panics if fsys is nil.
func NewAtomicWriter(fsys FS) *AtomicWriter {
	if fsys == nil {
		panic("fs: nil FS")
	}

	return &AtomicWriter{fs: fsys}
}

// AtomicWriteOptions configures [AtomicWriter.Write].
type AtomicWriteOptions struct {
	// SyncDir fsyncs the parent directory after the rename.
	SyncDir bool

	// Perm is applied with chmod, ignoring umask. Must be non-zero.
	Perm os.FileMode
}

// DefaultAtomicWriteOptions syncs the directory and writes mode 0644.
func DefaultAtomicWriteOptions() AtomicWriteOptions {
	return AtomicWriteOptions{SyncDir: true, Perm: 0o644}
}

// Write streams r into a temp file next to path, syncs it and renames it
// over path. On any failure before the rename the temp file is removed and
// path is untouched.
//
// A failed directory sync is reported with an error matching [ErrDirSync].
func (w *AtomicWriter) Write(path string, r io.Reader, opts AtomicWriteOptions) error {
	if opts.Perm == 0 {
		return errors.New("atomic write: zero perm")
	}

	dir, base := filepath.Split(path)
	if base == "" || base == "." {
		return fmt.Errorf("atomic write: invalid path %q", path)
	}

	if dir == "" {
		dir = "."
	}

	dir = filepath.Clean(dir)

	tmp, err := w.createTemp(dir, base, opts.Perm)
	if err != nil {
		return err
	}

	err = tmp.fill(r, opts.Perm)
	if err != nil {
		return errors.Join(err, tmp.discard(w.fs))
	}

	err = w.fs.Rename(tmp.path, path)
	if err != nil {
		return errors.Join(fmt.Errorf("rename %q: %w", tmp.path, err), tmp.discard(w.fs))
	}

	// The renamed file no longer lives at tmp.path; only the close matters.
	_ = tmp.file.Close()

	if opts.SyncDir {
		return syncDir(w.fs, dir)
	}

	return nil
}

// WriteBytes is [AtomicWriter.Write] for an in-memory payload.
func (w *AtomicWriter) WriteBytes(path string, data []byte, opts AtomicWriteOptions) error {
	return w.Write(path, bytes.NewReader(data), opts)
}

type tempFile struct {
	file File
	path string
}

var tempSeq atomic.Uint64

const maxTempAttempts = 1000

func (w *AtomicWriter) createTemp(dir, base string, perm os.FileMode) (*tempFile, error) {
	for range maxTempAttempts {
		path := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", base, tempSeq.Add(1)))

		file, err := w.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			return &tempFile{file: file, path: path}, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create temp file: %w", err)
		}
	}

	return nil, fmt.Errorf("create temp file: no free name in %q", dir)
}

func (t *tempFile) fill(r io.Reader, perm os.FileMode) error {
	err := t.file.Chmod(perm)
	if err != nil {
		return fmt.Errorf("chmod %q: %w", t.path, err)
	}

	_, err = io.Copy(t.file, r)
	if err != nil {
		return fmt.Errorf("write %q: %w", t.path, err)
	}

	err = t.file.Sync()
	if err != nil {
		return fmt.Errorf("sync %q: %w", t.path, err)
	}

	return nil
}

func (t *tempFile) discard(fsys FS) error {
	var closeErr, removeErr error

	if err := t.file.Close(); err != nil {
		closeErr = fmt.Errorf("close %q: %w", t.path, err)
	}

	if err := fsys.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		removeErr = fmt.Errorf("remove %q: %w", t.path, err)
	}

	return errors.Join(closeErr, removeErr)
}

func syncDir(fsys FS, dir string) error {
	d, err := fsys.Open(dir)
	if err != nil {
		return errors.Join(ErrDirSync, fmt.Errorf("open %q: %w", dir, err))
	}

	syncErr := d.Sync()
	closeErr := d.Close()

	if syncErr != nil {
		return errors.Join(ErrDirSync, fmt.Errorf("sync %q: %w", dir, syncErr), closeErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close %q: %w", dir, closeErr)
	}

	return nil
}

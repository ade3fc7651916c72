// Package fs is the filesystem seam used by the summary store and the CLI.
//
// Production code uses [Real]. Tests wrap it in [Chaos] to inject the
// failures a summary writer has to survive: failed opens, short writes,
// failed fsyncs and failed renames.
package fs

import (
	"io"
	"os"
)

// File is an open file. It is satisfied by [os.File].
//
// [File.Fd] must return a real descriptor; [Locker] passes it to flock(2).
type File interface {
	io.ReadWriteCloser
	io.Seeker
	io.WriterAt

	Fd() uintptr
	Stat() (os.FileInfo, error)
	Sync() error
	Chmod(mode os.FileMode) error
}

// FS is the subset of the os package the module needs. Paths use OS
// semantics, not io/fs slash paths.
//
// Implementations must be safe for concurrent use.
type FS interface {
	// Open opens a file for reading. See [os.Open].
	Open(path string) (File, error)

	// OpenFile opens a file with explicit flags. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads the whole file. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// ReadDir lists a directory sorted by name. See [os.ReadDir].
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll creates a directory and its parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether path exists. A missing path is (false, nil).
	Exists(path string) (bool, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// Rename replaces newpath with oldpath. See [os.Rename].
	Rename(oldpath, newpath string) error
}

var _ File = (*os.File)(nil)

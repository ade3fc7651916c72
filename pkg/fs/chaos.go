package fs

import (
	"errors"
	"io"
	iofs "io/fs"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig holds per-operation failure probabilities in [0, 1]. The zero
// value injects nothing.
type ChaosConfig struct {
	// OpenFailRate fails Open and OpenFile.
	OpenFailRate float64

	// ReadFailRate fails ReadFile and File.Read with EIO.
	ReadFailRate float64

	// ShortReadRate makes File.Read return fewer bytes than asked with a nil
	// error. Callers must loop.
	ShortReadRate float64

	// WriteFailRate fails File.Write and File.WriteAt before any byte lands.
	WriteFailRate float64

	// PartialWriteRate writes a prefix of the buffer and then fails.
	PartialWriteRate float64

	// SyncFailRate fails File.Sync.
	SyncFailRate float64

	// RenameFailRate fails Rename with an *os.LinkError.
	RenameFailRate float64

	// StatFailRate fails Stat, Exists and File.Stat.
	StatFailRate float64

	// RemoveFailRate fails Remove.
	RemoveFailRate float64
}

// ChaosMode switches injection on and off at runtime.
type ChaosMode uint32

const (
	// ChaosModeActive injects faults per [ChaosConfig]. It is the default.
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every call through.
	ChaosModeNoOp
)

// ChaosStats counts injected faults.
type ChaosStats struct {
	OpenFails     int64
	ReadFails     int64
	ShortReads    int64
	WriteFails    int64
	PartialWrites int64
	SyncFails     int64
	RenameFails   int64
	StatFails     int64
	RemoveFails   int64
}

// Total returns the sum of all counters.
func (s ChaosStats) Total() int64 {
	return s.OpenFails + s.ReadFails + s.ShortReads + s.WriteFails +
		s.PartialWrites + s.SyncFails + s.RenameFails + s.StatFails + s.RemoveFails
}

type chaosError struct {
	err error
}

func (e *chaosError) Error() string { return "chaos: " + e.err.Error() }
func (e *chaosError) Unwrap() error { return e.err }

// IsChaosErr reports whether err was injected by [Chaos].
func IsChaosErr(err error) bool {
	var injected *chaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS] and fails operations at random.
//
// Injected errors are *fs.PathError (or *os.LinkError for rename) carrying a
// real errno, so errors.Is and os.IsPermission behave as with real failures.
// ENOENT is never injected. Each call decides independently; there is no
// sticky per-path state.
type Chaos struct {
	fs     FS
	config ChaosConfig
	mode   atomic.Uint32

	rngMu sync.Mutex
	rng   *rand.Rand

	openFails     atomic.Int64
	readFails     atomic.Int64
	shortReads    atomic.Int64
	writeFails    atomic.Int64
	partialWrites atomic.Int64
	syncFails     atomic.Int64
	renameFails   atomic.Int64
	statFails     atomic.Int64
	removeFails   atomic.Int64
}

// NewChaos wraps underlying. The seed makes the failure sequence
// reproducible. Panics if underlying is nil.
func NewChaos(underlying FS, seed uint64, config ChaosConfig) *Chaos {
	if underlying == nil {
		panic("fs: nil underlying FS")
	}

	return &Chaos{
		fs:     underlying,
		config: config,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// SetMode is safe to call concurrently with filesystem operations.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// Stats returns a snapshot of the fault counters.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		OpenFails:     c.openFails.Load(),
		ReadFails:     c.readFails.Load(),
		ShortReads:    c.shortReads.Load(),
		WriteFails:    c.writeFails.Load(),
		PartialWrites: c.partialWrites.Load(),
		SyncFails:     c.syncFails.Load(),
		RenameFails:   c.renameFails.Load(),
		StatFails:     c.statFails.Load(),
		RemoveFails:   c.removeFails.Load(),
	}
}

func (c *Chaos) Open(path string) (File, error) {
	return c.OpenFile(path, os.O_RDONLY, 0)
}

func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if c.should(c.config.OpenFailRate) {
		c.openFails.Add(1)

		errnos := []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.EMFILE}
		if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE) != 0 {
			errnos = append(errnos, syscall.ENOSPC, syscall.EROFS)
		}

		return nil, pathError("open", path, c.pick(errnos))
	}

	file, err := c.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &chaosFile{f: file, chaos: c, path: path}, nil
}

func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if c.should(c.config.ReadFailRate) {
		c.readFails.Add(1)

		return nil, pathError("read", path, syscall.EIO)
	}

	return c.fs.ReadFile(path)
}

func (c *Chaos) ReadDir(path string) ([]os.DirEntry, error) {
	if c.should(c.config.ReadFailRate) {
		c.readFails.Add(1)

		return nil, pathError("readdirent", path, syscall.EIO)
	}

	return c.fs.ReadDir(path)
}

func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	return c.fs.MkdirAll(path, perm)
}

func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	if c.should(c.config.StatFailRate) {
		c.statFails.Add(1)

		return nil, pathError("stat", path, c.pick([]syscall.Errno{syscall.EACCES, syscall.EIO}))
	}

	return c.fs.Stat(path)
}

func (c *Chaos) Exists(path string) (bool, error) {
	if c.should(c.config.StatFailRate) {
		c.statFails.Add(1)

		return false, pathError("stat", path, syscall.EIO)
	}

	return c.fs.Exists(path)
}

func (c *Chaos) Remove(path string) error {
	if c.should(c.config.RemoveFailRate) {
		c.removeFails.Add(1)

		return pathError("remove", path, c.pick([]syscall.Errno{syscall.EACCES, syscall.EBUSY, syscall.EIO}))
	}

	return c.fs.Remove(path)
}

func (c *Chaos) Rename(oldpath, newpath string) error {
	if c.should(c.config.RenameFailRate) {
		c.renameFails.Add(1)

		errno := c.pick([]syscall.Errno{syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EXDEV})

		return &chaosError{err: &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: errno}}
	}

	return c.fs.Rename(oldpath, newpath)
}

func (c *Chaos) should(rate float64) bool {
	if rate <= 0 || ChaosMode(c.mode.Load()) != ChaosModeActive {
		return false
	}

	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.Float64() < rate
}

func (c *Chaos) intN(n int) int {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.IntN(n)
}

func (c *Chaos) pick(errnos []syscall.Errno) syscall.Errno {
	return errnos[c.intN(len(errnos))]
}

func pathError(op, path string, errno syscall.Errno) error {
	return &chaosError{err: &iofs.PathError{Op: op, Path: path, Err: errno}}
}

type chaosFile struct {
	f     File
	chaos *Chaos
	path  string
}

func (cf *chaosFile) Read(p []byte) (int, error) {
	c := cf.chaos

	if c.should(c.config.ReadFailRate) {
		c.readFails.Add(1)

		return 0, pathError("read", cf.path, syscall.EIO)
	}

	if len(p) > 1 && c.should(c.config.ShortReadRate) {
		c.shortReads.Add(1)

		return cf.f.Read(p[:c.intN(len(p)-1)+1])
	}

	return cf.f.Read(p)
}

func (cf *chaosFile) Write(p []byte) (int, error) {
	return cf.write(p, cf.f.Write)
}

func (cf *chaosFile) WriteAt(p []byte, off int64) (int, error) {
	return cf.write(p, func(b []byte) (int, error) { return cf.f.WriteAt(b, off) })
}

func (cf *chaosFile) write(p []byte, do func([]byte) (int, error)) (int, error) {
	c := cf.chaos
	errnos := []syscall.Errno{syscall.EIO, syscall.ENOSPC, syscall.EDQUOT}

	if c.should(c.config.WriteFailRate) {
		c.writeFails.Add(1)

		return 0, pathError("write", cf.path, c.pick(errnos))
	}

	if len(p) > 1 && c.should(c.config.PartialWriteRate) {
		c.partialWrites.Add(1)

		n, err := do(p[:c.intN(len(p)-1)+1])
		if err != nil {
			return n, err
		}

		if c.intN(10) == 0 {
			return n, &chaosError{err: io.ErrShortWrite}
		}

		return n, pathError("write", cf.path, c.pick(errnos))
	}

	return do(p)
}

func (cf *chaosFile) Seek(offset int64, whence int) (int64, error) {
	return cf.f.Seek(offset, whence)
}

func (cf *chaosFile) Sync() error {
	c := cf.chaos

	if c.should(c.config.SyncFailRate) {
		c.syncFails.Add(1)

		return pathError("sync", cf.path, c.pick([]syscall.Errno{syscall.EIO, syscall.ENOSPC}))
	}

	return cf.f.Sync()
}

func (cf *chaosFile) Stat() (os.FileInfo, error) {
	c := cf.chaos

	if c.should(c.config.StatFailRate) {
		c.statFails.Add(1)

		return nil, pathError("stat", cf.path, syscall.EIO)
	}

	return cf.f.Stat()
}

func (cf *chaosFile) Close() error { return cf.f.Close() }
func (cf *chaosFile) Fd() uintptr { return cf.f.Fd() }
func (cf *chaosFile) Chmod(m os.FileMode) error { return cf.f.Chmod(m) }

var (
	_ FS   = (*Chaos)(nil)
	_ File = (*chaosFile)(nil)
)

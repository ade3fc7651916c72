package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

var (
	// ErrWouldBlock is returned when the lock is held elsewhere and the
	// caller asked not to wait, or the wait timed out.
	ErrWouldBlock = errors.New("lock would block")

	// ErrInvalidTimeout is returned for a timeout <= 0.
	ErrInvalidTimeout = errors.New("invalid lock timeout")

	// errReplaced means the lock file changed inode between open and flock.
	errReplaced = errors.New("lock file replaced")
)

// Locker takes advisory flock(2) locks on dedicated lock files, such as
// "Inbox.msf.lock" next to a summary.
//
// flock applies to an inode, not a name. After each successful flock the
// Locker checks that the locked descriptor is still the file at path and
// retries otherwise. Never unlink or replace a lock file while it may be
// held.
//
// Unix only.
type Locker struct {
	fs    FS
	flock func(fd int, how int) error
}

// NewLocker returns a Locker that opens lock files through fsys.
func NewLocker(fsys FS) *Locker {
	return &Locker{fs: fsys, flock: unix.Flock}
}

// Lock is a held lock. Release it with [Lock.Close].
type Lock struct {
	mu    sync.Mutex
	file  File
	flock func(fd int, how int) error
}

// Close unlocks and closes the lock file. Calling it again returns nil.
func (lk *Lock) Close() error {
	lk.mu.Lock()
	defer lk.mu.Unlock()

	if lk.file == nil {
		return nil
	}

	unlockErr := flockNoEINTR(lk.flock, int(lk.file.Fd()), unix.LOCK_UN)
	closeErr := lk.file.Close()
	lk.file = nil

	if unlockErr != nil {
		unlockErr = fmt.Errorf("unlock: %w", unlockErr)
	}

	if closeErr != nil {
		closeErr = fmt.Errorf("close lock file: %w", closeErr)
	}

	return errors.Join(unlockErr, closeErr)
}

// LockWithTimeout takes an exclusive lock, polling with backoff up to
// timeout. Expiry returns an error matching [ErrWouldBlock].
func (l *Locker) LockWithTimeout(path string, timeout time.Duration) (*Lock, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimeout, timeout)
	}

	return l.poll(path, unix.LOCK_EX, timeout)
}

// RLockWithTimeout is [Locker.LockWithTimeout] for a shared lock. Shared
// locks coexist with each other and exclude exclusive ones.
func (l *Locker) RLockWithTimeout(path string, timeout time.Duration) (*Lock, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimeout, timeout)
	}

	return l.poll(path, unix.LOCK_SH, timeout)
}

// TryLock takes an exclusive lock or fails at once with [ErrWouldBlock].
func (l *Locker) TryLock(path string) (*Lock, error) {
	return l.poll(path, unix.LOCK_EX, 0)
}

const (
	minBackoff = time.Millisecond
	maxBackoff = 25 * time.Millisecond
)

// poll tries once when timeout is 0, otherwise until the deadline.
func (l *Locker) poll(path string, how int, timeout time.Duration) (*Lock, error) {
	deadline := time.Now().Add(timeout)
	backoff := minBackoff

	for {
		file, err := l.open(path, how)
		if err != nil {
			return nil, fmt.Errorf("open lock file: %w", err)
		}

		err = l.acquire(file, path, how|unix.LOCK_NB)
		if err == nil {
			return &Lock{file: file, flock: l.flock}, nil
		}

		_ = file.Close()

		if !errors.Is(err, ErrWouldBlock) && !errors.Is(err, errReplaced) {
			return nil, err
		}

		remaining := time.Until(deadline)
		if timeout == 0 || remaining <= 0 {
			if timeout == 0 {
				return nil, ErrWouldBlock
			}

			return nil, fmt.Errorf("%w: timed out after %s", ErrWouldBlock, timeout)
		}

		time.Sleep(min(backoff, remaining))
		backoff = min(backoff*2, maxBackoff)
	}
}

// acquire flocks file and verifies it is still the file at path. The
// caller closes file on error.
func (l *Locker) acquire(file File, path string, how int) error {
	fd := int(file.Fd())

	err := flockNoEINTR(l.flock, fd, how)
	if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
		return ErrWouldBlock
	}

	if err != nil {
		return fmt.Errorf("flock: %w", err)
	}

	same, err := sameInode(fd, path)
	if err != nil || !same {
		_ = flockNoEINTR(l.flock, fd, unix.LOCK_UN)

		if err != nil && !errors.Is(err, unix.ENOENT) {
			return fmt.Errorf("verify lock inode: %w", err)
		}

		return errReplaced
	}

	return nil
}

func (l *Locker) open(path string, how int) (File, error) {
	flag := os.O_RDWR
	if how&unix.LOCK_SH != 0 {
		flag = os.O_RDONLY
	}

	f, err := l.fs.OpenFile(path, flag|os.O_CREATE, 0o600)
	if !errors.Is(err, os.ErrNotExist) {
		return f, err
	}

	err = l.fs.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return nil, err
	}

	return l.fs.OpenFile(path, flag|os.O_CREATE, 0o600)
}

func sameInode(fd int, path string) (bool, error) {
	var open, named unix.Stat_t

	if err := unix.Fstat(fd, &open); err != nil {
		return false, err
	}

	if err := unix.Stat(path, &named); err != nil {
		return false, err
	}

	return open.Dev == named.Dev && open.Ino == named.Ino, nil
}

func flockNoEINTR(flock func(int, int) error, fd, how int) error {
	const maxRetries = 10000

	var err error
	for range maxRetries {
		err = flock(fd, how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}

	return err
}

package ticket

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// locksDirName is the subdirectory for lock files. Using a subdirectory
// avoids modifying the guarded directory's mtime on every acquire/release.
const locksDirName = ".locks"

// lockTimeout is the timeout for acquiring a file lock.
const lockTimeout = 2 * time.Second

var (
	errLockTimeout  = errors.New("lock timeout")
	errLockFileOpen = errors.New("failed to open lock file")
)

// withLock executes handler while holding an exclusive flock on a lock
// file derived from path. The lock serializes number allocation across
// processes; within the process it also serializes concurrent creates.
func withLock(path string, handler func() error) error {
	lock, lockErr := acquireLock(path, lockTimeout)
	if lockErr != nil {
		return fmt.Errorf("acquiring lock: %w", lockErr)
	}

	defer lock.release()

	return handler()
}

// fileLock represents a held lock.
type fileLock struct {
	path string
	file *os.File
}

// release removes the lock file while the lock is still held, then
// unlocks and closes. Order matters.
func (l *fileLock) release() {
	if l.file != nil {
		_ = os.Remove(l.path)
		_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
		_ = l.file.Close()
		l.file = nil
	}
}

// acquireLock takes an exclusive flock on a .lock file in a .locks
// subdirectory next to path. Handles the race between flock acquisition
// and lock file deletion by verifying the inode after acquiring.
func acquireLock(path string, timeout time.Duration) (*fileLock, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	locksDir := filepath.Join(dir, locksDirName)
	lockPath := filepath.Join(locksDir, base+".lock")

	deadline := time.Now().Add(timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: %s", errLockTimeout, path)
		}

		mkdirErr := os.MkdirAll(locksDir, dirPerms)
		if mkdirErr != nil {
			return nil, fmt.Errorf("creating locks dir: %w", mkdirErr)
		}

		file, openErr := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, filePerms)
		if openErr != nil {
			return nil, fmt.Errorf("%w: %w", errLockFileOpen, openErr)
		}

		var openStat syscall.Stat_t

		fstatErr := syscall.Fstat(int(file.Fd()), &openStat)
		if fstatErr != nil {
			_ = file.Close()

			return nil, fmt.Errorf("fstat lock file: %w", fstatErr)
		}

		fd := int(file.Fd())
		done := make(chan error, 1)

		go func() {
			done <- syscall.Flock(fd, syscall.LOCK_EX)
		}()

		select {
		case flockErr := <-done:
			if flockErr != nil {
				_ = file.Close()

				return nil, fmt.Errorf("flock: %w", flockErr)
			}

			// Verify the file at the path still has the same inode. If
			// not, someone deleted and recreated it while we waited.
			var pathStat syscall.Stat_t

			statErr := syscall.Stat(lockPath, &pathStat)
			if statErr != nil || pathStat.Ino != openStat.Ino {
				_ = syscall.Flock(fd, syscall.LOCK_UN)
				_ = file.Close()

				continue
			}

			return &fileLock{path: lockPath, file: file}, nil
		case <-time.After(remaining):
			_ = file.Close()

			return nil, fmt.Errorf("%w: %s", errLockTimeout, path)
		}
	}
}

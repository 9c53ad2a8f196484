package fs

import (
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ownerLockName is the advisory lock file guarding one user's notes across
// processes (the server and the quick-note TUI may both write).
const ownerLockName = ".hashnote.lock"

type FileLock struct {
	path string
	file *os.File
}

// LockOwner takes the cross-process write lock of one user's notes.
func LockOwner(repoPath, owner string, timeout time.Duration) (*FileLock, error) {
	root, err := OwnerNotesRoot(repoPath, owner)
	if err != nil {
		return nil, err
	}
	return AcquireFileLockWithTimeout(filepath.Join(filepath.Dir(root), ownerLockName), timeout)
}

func AcquireFileLock(path string) (*FileLock, error) {
	return AcquireFileLockWithTimeout(path, 0)
}

// AcquireFileLockWithTimeout blocks on flock(2). With a positive timeout it
// polls instead and gives up with os.ErrDeadlineExceeded.
func AcquireFileLockWithTimeout(path string, timeout time.Duration) (*FileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX); err != nil {
			_ = file.Close()
			return nil, err
		}
		return &FileLock{path: path, file: file}, nil
	}
	deadline := time.Now().Add(timeout)
	for {
		err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			break
		}
		if err != syscall.EWOULDBLOCK && err != syscall.EAGAIN {
			_ = file.Close()
			return nil, err
		}
		if time.Now().After(deadline) {
			_ = file.Close()
			return nil, os.ErrDeadlineExceeded
		}
		time.Sleep(25 * time.Millisecond)
	}
	return &FileLock{path: path, file: file}, nil
}

func (l *FileLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	defer func() { l.file = nil }()
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}

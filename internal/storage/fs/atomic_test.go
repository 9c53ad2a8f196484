package fs

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deep", "note.md")
	data := []byte("hello")
	if err := WriteFileAtomic(path, data, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("expected %q, got %q", data, got)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no temp files left, got %d entries", len(entries))
	}
}

func TestRemoveFilePrunesEmptyDirs(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a", "b", "note.md")
	if err := WriteFileAtomic(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	keep := filepath.Join(root, "a", "keep.md")
	if err := WriteFileAtomic(keep, []byte("y"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := RemoveFile(root, path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a", "b")); !os.IsNotExist(err) {
		t.Fatalf("expected empty dir removed, got %v", err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("sibling removed: %v", err)
	}
}

func TestLockerReleasesEntries(t *testing.T) {
	l := NewLocker()
	var wg sync.WaitGroup
	counter := 0
	for n := 0; n < 20; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("a.md")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	if counter != 20 {
		t.Fatalf("counter = %d", counter)
	}
	if l.size() != 0 {
		t.Fatalf("expected no idle entries, got %d", l.size())
	}
}

func TestFileLockTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repo.lock")
	first, err := AcquireFileLock(path)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer first.Release()
	if _, err := AcquireFileLockWithTimeout(path, 100*time.Millisecond); err == nil {
		t.Fatalf("expected timeout while lock is held")
	}
}

func TestLockOwner(t *testing.T) {
	repo := t.TempDir()
	lock, err := LockOwner(repo, "alice", time.Second)
	if err != nil {
		t.Fatalf("lock owner: %v", err)
	}
	if _, err := os.Stat(filepath.Join(repo, "alice", ownerLockName)); err != nil {
		t.Fatalf("lock file missing: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := LockOwner(repo, "../x", time.Second); err == nil {
		t.Fatalf("expected unsafe owner error")
	}
}

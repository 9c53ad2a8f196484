package web

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAPIKeys(t *testing.T) {
	dir := t.TempDir()
	content := "# keys\n\nalice:abc\nbob:def:2030-01-31\n"
	if err := os.WriteFile(filepath.Join(dir, apiKeysFile), []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	keys, err := loadAPIKeys(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	now := time.Date(2030, 1, 31, 23, 0, 0, 0, time.UTC)
	if e, ok := keys.lookup("abc", now); !ok || e.Owner != "alice" {
		t.Fatalf("abc = %+v %v", e, ok)
	}
	if e, ok := keys.lookup("def", now); !ok || e.Owner != "bob" {
		t.Fatalf("def on expiry day = %+v %v", e, ok)
	}
	if _, ok := keys.lookup("def", now.Add(2*time.Hour)); ok {
		t.Fatal("def should be expired the day after")
	}
	if _, ok := keys.lookup("", now); ok {
		t.Fatal("empty key must not match")
	}
}

func TestLoadAPIKeysMissingFile(t *testing.T) {
	keys, err := loadAPIKeys(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("keys = %v", keys)
	}
}

func TestLoadAPIKeysRejectsBadLines(t *testing.T) {
	for _, line := range []string{"alice", "alice:", "Bad Name:k", "alice:k:tomorrow", "a:k\nb:k"} {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, apiKeysFile), []byte(line+"\n"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := loadAPIKeys(dir); err == nil {
			t.Errorf("expected error for %q", line)
		}
	}
}

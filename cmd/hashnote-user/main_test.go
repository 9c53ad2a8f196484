package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hashnote/internal/auth"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out, errOut bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func setupDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	data := filepath.Join(dir, "data")
	t.Setenv("HASHNOTE_DATA_PATH", data)
	t.Setenv("HASHNOTE_AUTH_FILE", "")
	t.Setenv("HASHNOTE_CONFIG", "")
	return data
}

func TestAddListKeyRemove(t *testing.T) {
	data := setupDataDir(t)
	authPath := filepath.Join(data, authFileName)

	if _, err := runCLI(t, "correct-horse\n", "add", "alice", "--password-stdin"); err != nil {
		t.Fatalf("add alice: %v", err)
	}
	if _, err := runCLI(t, "battery-staple\n", "add", "bob", "--password-stdin"); err != nil {
		t.Fatalf("add bob: %v", err)
	}
	users, err := auth.LoadFile(authPath)
	if err != nil {
		t.Fatalf("load auth file: %v", err)
	}
	if len(users) != 2 || !users["alice"].Verify("correct-horse") {
		t.Fatalf("unexpected users %v", users)
	}

	if _, err := runCLI(t, "new-password-1\n", "add", "alice", "--password-stdin", "-y"); err != nil {
		t.Fatalf("reset alice: %v", err)
	}
	users, _ = auth.LoadFile(authPath)
	if len(users) != 2 || !users["alice"].Verify("new-password-1") {
		t.Fatalf("password not replaced")
	}

	key, err := runCLI(t, "", "key", "alice", "--expires", "2999-01-01")
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	key = strings.TrimSpace(key)
	raw, err := os.ReadFile(filepath.Join(data, apiKeysFileName))
	if err != nil {
		t.Fatalf("read keys: %v", err)
	}
	if want := "alice:" + key + ":2999-01-01\n"; string(raw) != want {
		t.Fatalf("keys file = %q, want %q", raw, want)
	}

	out, err := runCLI(t, "", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if out != "alice\t(api key)\nbob\n" {
		t.Fatalf("list = %q", out)
	}

	if _, err := runCLI(t, "", "remove", "alice", "-y"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	out, _ = runCLI(t, "", "list")
	if out != "bob\n" {
		t.Fatalf("list after remove = %q", out)
	}
	raw, _ = os.ReadFile(filepath.Join(data, apiKeysFileName))
	if len(raw) != 0 {
		t.Fatalf("api keys should be revoked, got %q", raw)
	}
}

func TestAddRejectsBadInput(t *testing.T) {
	setupDataDir(t)
	if _, err := runCLI(t, "correct-horse\n", "add", "../evil", "--password-stdin"); err == nil {
		t.Fatalf("expected invalid name error")
	}
	if _, err := runCLI(t, "short\n", "add", "carol", "--password-stdin"); err == nil {
		t.Fatalf("expected weak password error")
	}
	if _, err := runCLI(t, "", "remove", "nobody", "-y"); err == nil {
		t.Fatalf("expected not found error")
	}
}

func TestEditLineFileKeepsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.txt")
	content := "# users\nalice:one\n\nbob:two\nalice:dup\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := upsertLine(path, "alice", "alice:three"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "# users\nalice:three\n\nbob:two\n" {
		t.Fatalf("after upsert = %q", got)
	}
	if err := upsertLine(path, "carol", "carol:four"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	n, err := removeOwner(path, "bob")
	if err != nil || n != 1 {
		t.Fatalf("remove = %d, %v", n, err)
	}
	got, _ = os.ReadFile(path)
	if string(got) != "# users\nalice:three\n\ncarol:four\n" {
		t.Fatalf("after remove = %q", got)
	}
}

func TestEditLineFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.txt")
	if err := os.WriteFile(path, []byte("no separator here\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := upsertLine(path, "alice", "alice:x"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRemoveFromMissingFileCreatesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api-keys.txt")
	n, err := removeOwner(path, "alice")
	if err != nil || n != 0 {
		t.Fatalf("remove = %d, %v", n, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file should not exist, stat err = %v", err)
	}
}

func TestNewKeyLine(t *testing.T) {
	now := time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)
	line, key, err := newKeyLine("alice", "", now)
	if err != nil {
		t.Fatalf("new key: %v", err)
	}
	if !strings.HasPrefix(key, "hn_") || line != "alice:"+key {
		t.Fatalf("line = %q key = %q", line, key)
	}
	if _, _, err := newKeyLine("alice", "2026-04-30", now); err == nil {
		t.Fatalf("expected past expiry error")
	}
	if _, _, err := newKeyLine("alice", "tomorrow", now); err == nil {
		t.Fatalf("expected parse error")
	}
	line, _, err = newKeyLine("alice", "2026-05-01", now)
	if err != nil || !strings.HasSuffix(line, ":2026-05-01") {
		t.Fatalf("same-day expiry: %q %v", line, err)
	}
}

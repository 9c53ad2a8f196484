package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hashnote/internal/index"
)

func TestExecuteCleanRepo(t *testing.T) {
	repo := t.TempDir()
	writeNote(t, repo, "alice", "topic.md", "---\nid: topic\n---\n# Topic\n")
	writeNote(t, repo, "alice", "from.md", "---\nid: from\n---\n# From\n\nSee [[Topic]].\n")

	_, stats, findings, err := execute(context.Background(), runOptions{RepoRoot: repo})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if stats.NotesScanned != 2 {
		t.Fatalf("expected 2 notes scanned, got %d", stats.NotesScanned)
	}
	if len(findings) != 0 {
		t.Fatalf("expected no findings, got %+v", findings)
	}
}

func TestExecuteReportsProblems(t *testing.T) {
	repo := t.TempDir()
	writeNote(t, repo, "alice", "a.md", "# A\n")
	writeNote(t, repo, "alice", "b.md", "---\nid: dup\n---\n# B\n")
	writeNote(t, repo, "alice", "c.md", "---\nid: dup\n---\n# C\n")
	writeNote(t, repo, "alice", "d.md", "---\nid: d\n---\n# D\n\n[[Nowhere]]\n")
	writeNote(t, repo, "bob", "b.md", "---\nid: dup\n---\n# B\n")

	_, stats, findings, err := execute(context.Background(), runOptions{RepoRoot: repo})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if stats.NotesMissingID != 1 || stats.DuplicateIDs != 2 || stats.UnresolvedLinks != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(findings) != 4 {
		t.Fatalf("expected 4 findings, got %+v", findings)
	}
	if findings[0].Path != "a.md" || findings[0].Reason != reasonMissingID {
		t.Fatalf("unexpected first finding %+v", findings[0])
	}
	if findings[1].Path != "c.md" || !strings.HasPrefix(findings[1].Reason, reasonDuplicate) {
		t.Fatalf("unexpected duplicate finding %+v", findings[1])
	}
	if findings[2].Path != "d.md" || findings[2].LineNo != 3 || !strings.HasPrefix(findings[2].Reason, reasonLink) {
		t.Fatalf("unexpected link finding %+v", findings[2])
	}
	if findings[2].fixable {
		t.Fatalf("links must not be fixable")
	}
	// Ids are unique across owners too.
	if findings[3].Owner != "bob" || !strings.Contains(findings[3].Reason, "also alice/b.md") {
		t.Fatalf("unexpected cross-owner finding %+v", findings[3])
	}
}

func TestRunCLIReportExitCode(t *testing.T) {
	repo := t.TempDir()
	writeNote(t, repo, "alice", "a.md", "# A\n")

	var out, errOut bytes.Buffer
	code := runCLI([]string{"--repo", repo}, &out, &errOut)
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d, err=%s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "alice/a.md\tmissing-id") {
		t.Fatalf("expected finding in report, got: %s", out.String())
	}
	if !strings.Contains(out.String(), "scanned=1 missing_id=1") {
		t.Fatalf("expected summary in report, got: %s", out.String())
	}
}

func TestRunCLIFixStampsPathIDs(t *testing.T) {
	repo := t.TempDir()
	writeNote(t, repo, "alice", "a.md", "# A\n\nbody #work\n")
	writeNote(t, repo, "alice", "b.md", "---\nid: dup\ntitle: B\n---\n# B\n")
	writeNote(t, repo, "alice", "c.md", "---\nid: dup\n---\n# C\n")

	var out, errOut bytes.Buffer
	code := runCLI([]string{"--repo", repo, "--fix", "--yes"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d, out=%s err=%s", code, out.String(), errOut.String())
	}
	if !strings.Contains(out.String(), "fix candidates=2 fixed=2 fix_errors=0") {
		t.Fatalf("expected fix summary, got: %s", out.String())
	}

	for name, want := range map[string]string{
		"a.md": index.PathNoteID("alice", "a.md"),
		"b.md": "dup",
		"c.md": index.PathNoteID("alice", "c.md"),
	} {
		data, err := os.ReadFile(filepath.Join(repo, "alice", "notes", name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		fm, body := index.ParseFrontmatter(string(data))
		if fm.ID != want {
			t.Fatalf("%s id = %q, want %q", name, fm.ID, want)
		}
		if !strings.Contains(body, "# ") {
			t.Fatalf("%s lost its body: %q", name, data)
		}
	}

	out.Reset()
	if code := runCLI([]string{"--repo", repo}, &out, &errOut); code != 0 {
		t.Fatalf("expected clean repo after fix, got %d: %s", code, out.String())
	}
}

func TestRunCLIFlagErrors(t *testing.T) {
	repo := t.TempDir()
	cases := [][]string{
		{"--repo", repo, "--yes"},
		{"--repo", filepath.Join(repo, "missing")},
		{"--repo", repo, "extra"},
	}
	for _, args := range cases {
		var out, errOut bytes.Buffer
		if code := runCLI(args, &out, &errOut); code != 2 {
			t.Fatalf("%v: expected exit code 2, got %d", args, code)
		}
		if !strings.Contains(errOut.String(), "ERROR:") {
			t.Fatalf("%v: expected error output, got %q", args, errOut.String())
		}
	}
}

func writeNote(t *testing.T, repoRoot, owner, relName, content string) {
	t.Helper()
	notesDir := filepath.Join(repoRoot, owner, "notes")
	if err := os.MkdirAll(notesDir, 0o755); err != nil {
		t.Fatalf("mkdir notes: %v", err)
	}
	if err := os.WriteFile(filepath.Join(notesDir, relName), []byte(content), 0o644); err != nil {
		t.Fatalf("write note: %v", err)
	}
}

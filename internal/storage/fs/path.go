package fs

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
)

var ErrUnsafePath = errors.New("unsafe path")

// NotesDir is the per-user directory under the repository that holds notes.
const NotesDir = "notes"

func NormalizeNotePath(p string) (string, error) {
	if strings.ContainsRune(p, 0) {
		return "", ErrUnsafePath
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "/") {
		return "", ErrUnsafePath
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrUnsafePath
	}
	return clean, nil
}

// OwnerNotesRoot returns <repo>/<owner>/notes.
func OwnerNotesRoot(repoPath, owner string) (string, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" || strings.ContainsAny(owner, `/\`) || owner == "." || owner == ".." {
		return "", ErrUnsafePath
	}
	return filepath.Join(repoPath, owner, NotesDir), nil
}

// NoteFilePath maps a note path relative to the owner's notes directory to
// a file path, refusing anything that escapes it.
func NoteFilePath(repoPath, owner, notePath string) (string, error) {
	rel, err := NormalizeNotePath(notePath)
	if err != nil {
		return "", err
	}
	root, err := OwnerNotesRoot(repoPath, owner)
	if err != nil {
		return "", err
	}
	full := filepath.Join(root, filepath.FromSlash(rel))
	check, err := filepath.Rel(root, full)
	if err != nil || check == ".." || strings.HasPrefix(check, ".."+string(filepath.Separator)) {
		return "", ErrUnsafePath
	}
	return full, nil
}

func EnsureMDExt(p string) string {
	if strings.HasSuffix(strings.ToLower(p), ".md") {
		return p
	}
	return p + ".md"
}

package index

import (
	"fmt"
	"path"
	"strings"
)

// notesDir is the per-user directory holding markdown notes:
// <repo>/<owner>/notes/<rel>.
const notesDir = "notes"

// splitOwnerPath splits a repo-relative path "owner/notes/rel" into owner and
// the note path relative to the owner's notes directory.
func splitOwnerPath(repoRel string) (string, string, error) {
	repoRel = strings.TrimSpace(repoRel)
	if repoRel == "" {
		return "", "", fmt.Errorf("empty note path")
	}
	if strings.Contains(repoRel, `\`) {
		return "", "", fmt.Errorf("invalid note path")
	}
	clean := path.Clean(repoRel)
	if clean == "." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") || strings.Contains(clean, "/../") {
		return "", "", fmt.Errorf("invalid note path")
	}
	parts := strings.SplitN(clean, "/", 3)
	if len(parts) < 3 || parts[1] != notesDir {
		return "", "", fmt.Errorf("not a note path: %s", repoRel)
	}
	owner := strings.TrimSpace(parts[0])
	rel := strings.TrimSpace(parts[2])
	if owner == "" || rel == "" {
		return "", "", fmt.Errorf("invalid note path")
	}
	return owner, rel, nil
}

func joinOwnerPath(owner, rel string) string {
	owner = strings.TrimSpace(owner)
	rel = strings.TrimLeft(strings.TrimSpace(rel), "/")
	if owner == "" {
		return rel
	}
	if rel == "" {
		return owner
	}
	return owner + "/" + rel
}

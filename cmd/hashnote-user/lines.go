package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	storagefs "hashnote/internal/storage/fs"
)

const lineFileLockTimeout = 5 * time.Second

// lineEdit decides what happens to one "owner:..." line: return the line to
// keep (possibly rewritten) or drop it.
type lineEdit func(owner, line string) (string, bool)

// editLineFile rewrites an "owner:..." file under a lock. Comments and blank
// lines survive untouched. tail, when set, runs after every line was seen and
// returns lines to append. It reports how many existing lines the edit
// changed or dropped.
func editLineFile(path string, edit lineEdit, tail func() []string) (int, error) {
	lock, err := storagefs.AcquireFileLockWithTimeout(path+".lock", lineFileLockTimeout)
	if err != nil {
		return 0, fmt.Errorf("lock %s: %w", filepath.Base(path), err)
	}
	defer lock.Release()

	var lines []string
	touched := 0
	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return 0, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	default:
		scanner := bufio.NewScanner(f)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			raw := scanner.Text()
			trim := strings.TrimSpace(raw)
			if trim == "" || strings.HasPrefix(trim, "#") {
				lines = append(lines, raw)
				continue
			}
			owner, _, ok := strings.Cut(trim, ":")
			if !ok {
				f.Close()
				return 0, fmt.Errorf("%s line %d: expected owner:value", filepath.Base(path), lineNum)
			}
			next, keep := edit(owner, raw)
			if !keep || next != raw {
				touched++
			}
			if keep {
				lines = append(lines, next)
			}
		}
		err := scanner.Err()
		f.Close()
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
	}

	if tail != nil {
		lines = append(lines, tail()...)
	}
	if f == nil && len(lines) == 0 {
		return 0, nil
	}
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	if err := storagefs.WriteFileAtomic(path, []byte(content), 0o600); err != nil {
		return 0, fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return touched, nil
}

// upsertLine replaces the first line for owner with line and drops the
// others, or appends line when owner has none.
func upsertLine(path, owner, line string) error {
	found := false
	_, err := editLineFile(path, func(o, raw string) (string, bool) {
		if o != owner {
			return raw, true
		}
		if found {
			return "", false
		}
		found = true
		return line, true
	}, func() []string {
		if found {
			return nil
		}
		return []string{line}
	})
	return err
}

// removeOwner drops every line for owner and reports how many there were.
func removeOwner(path, owner string) (int, error) {
	return editLineFile(path, func(o, raw string) (string, bool) {
		return raw, o != owner
	}, nil)
}

func appendLine(path, line string) error {
	_, err := editLineFile(path, func(_, raw string) (string, bool) { return raw, true }, func() []string {
		return []string{line}
	})
	return err
}

// owners lists the owners of a line file in file order, once each. A missing
// file has none.
func owners(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	seen := map[string]bool{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		trim := strings.TrimSpace(scanner.Text())
		if trim == "" || strings.HasPrefix(trim, "#") {
			continue
		}
		o, _, _ := strings.Cut(trim, ":")
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	return out, scanner.Err()
}

// Command hashnote-check scans the notes repository for problems the web app
// works around silently: notes without a frontmatter id, ids shared by two
// notes, and links that point at no note.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"hashnote/internal/config"
	"hashnote/internal/index"
	storagefs "hashnote/internal/storage/fs"
)

type runOptions struct {
	RepoRoot string
	Verbose  bool
	Fix      bool
	Yes      bool
	Out      io.Writer
	ErrOut   io.Writer
}

type runStats struct {
	NotesScanned    int
	NotesMissingID  int
	DuplicateIDs    int
	UnresolvedLinks int
	UnreadableNotes int
}

type fixStats struct {
	Candidates int
	Fixed      int
	Errors     int
}

type noteRecord struct {
	Owner   string
	Path    string
	AbsPath string
	ID      string
}

type finding struct {
	Owner   string
	Path    string
	AbsPath string
	LineNo  int
	Reason  string

	// fixable findings are rewritten with the note's path id.
	fixable bool
}

const (
	reasonMissingID = "missing-id"
	reasonDuplicate = "duplicate-id"
	reasonLink      = "unresolved-link"

	maxUnresolved = 10000
	lockTimeout   = 10 * time.Second
)

func main() {
	os.Exit(runCLI(os.Args[1:], os.Stdout, os.Stderr))
}

func runCLI(args []string, out, errOut io.Writer) int {
	code := 0
	opts := runOptions{Out: out, ErrOut: errOut}
	cmd := &cobra.Command{
		Use:           "hashnote-check",
		Short:         "Report notes with missing ids, duplicate ids or broken links",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Yes && !opts.Fix {
				return errors.New("--yes requires --fix")
			}
			c, err := run(cmd.Context(), opts)
			code = c
			return err
		},
	}
	cmd.Flags().StringVar(&opts.RepoRoot, "repo", "", "notes repository (defaults to $HASHNOTE_REPO_PATH)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "print every scanned note")
	cmd.Flags().BoolVar(&opts.Fix, "fix", false, "stamp missing and duplicate ids into frontmatter")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "do not ask before fixing")
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(errOut, "ERROR:", err)
		return 2
	}
	return code
}

func run(ctx context.Context, opts runOptions) (int, error) {
	repo, stats, findings, err := execute(ctx, opts)
	if err != nil {
		return 2, err
	}
	printReport(opts.Out, repo, stats, findings)

	var fstats fixStats
	if opts.Fix {
		for _, f := range findings {
			if f.fixable {
				fstats.Candidates++
			}
		}
		if fstats.Candidates > 0 {
			if !opts.Yes {
				ok, err := confirm(opts.ErrOut, fmt.Sprintf("Rewrite ids in %d notes? [y/N] ", fstats.Candidates))
				if err != nil {
					return 2, err
				}
				if !ok {
					fmt.Fprintln(opts.Out, "aborted")
					return 1, nil
				}
			}
			fstats = applyFixes(repo, findings, opts.ErrOut)
		}
		fmt.Fprintf(opts.Out, "fix candidates=%d fixed=%d fix_errors=%d\n", fstats.Candidates, fstats.Fixed, fstats.Errors)
	}

	remaining := stats.UnresolvedLinks + stats.UnreadableNotes + fstats.Errors
	if !opts.Fix {
		remaining += stats.NotesMissingID + stats.DuplicateIDs
	}
	if remaining > 0 {
		return 1, nil
	}
	return 0, nil
}

func resolveRepo(raw string) (string, error) {
	repo := strings.TrimSpace(raw)
	if repo == "" {
		cfg, err := config.Load()
		if err != nil {
			return "", err
		}
		repo = cfg.RepoPath
	}
	if repo == "" {
		return "", errors.New("no repository: pass --repo or set HASHNOTE_REPO_PATH")
	}
	abs, err := filepath.Abs(repo)
	if err != nil {
		return "", fmt.Errorf("resolve repo root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("repo root not found: %s", abs)
		}
		return "", fmt.Errorf("stat repo root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("repo root is not a directory: %s", abs)
	}
	return abs, nil
}

func execute(ctx context.Context, opts runOptions) (string, runStats, []finding, error) {
	var stats runStats
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	errOut := opts.ErrOut
	if errOut == nil {
		errOut = io.Discard
	}
	repo, err := resolveRepo(opts.RepoRoot)
	if err != nil {
		return "", stats, nil, err
	}

	notes, unreadable := scanNotes(repo, errOut)
	stats.NotesScanned = len(notes)
	stats.UnreadableNotes = unreadable

	var findings []finding
	// Note ids are unique across the whole repository, not per owner.
	seen := map[string]string{}
	for _, n := range notes {
		if opts.Verbose {
			fmt.Fprintf(out, "scan %s/%s\n", n.Owner, n.Path)
		}
		if n.ID == "" {
			stats.NotesMissingID++
			findings = append(findings, finding{Owner: n.Owner, Path: n.Path, AbsPath: n.AbsPath, Reason: reasonMissingID, fixable: true})
			continue
		}
		if first, dup := seen[n.ID]; dup {
			stats.DuplicateIDs++
			findings = append(findings, finding{
				Owner:   n.Owner,
				Path:    n.Path,
				AbsPath: n.AbsPath,
				Reason:  fmt.Sprintf("%s(%s, also %s)", reasonDuplicate, n.ID, first),
				fixable: true,
			})
			continue
		}
		seen[n.ID] = n.Owner + "/" + n.Path
	}

	links, err := unresolvedLinks(ctx, repo)
	if err != nil {
		return repo, stats, nil, err
	}
	stats.UnresolvedLinks = len(links)
	findings = append(findings, links...)

	sort.SliceStable(findings, func(a, b int) bool {
		if findings[a].Owner != findings[b].Owner {
			return findings[a].Owner < findings[b].Owner
		}
		if findings[a].Path != findings[b].Path {
			return findings[a].Path < findings[b].Path
		}
		return findings[a].LineNo < findings[b].LineNo
	})
	return repo, stats, findings, nil
}

// scanNotes reads every note in walk order, so the first of two notes sharing
// an id is the one the index keeps it for.
func scanNotes(repo string, errOut io.Writer) ([]noteRecord, int) {
	var notes []noteRecord
	unreadable := 0
	err := index.WalkNotes(repo, func(owner, notePath, full string) error {
		data, err := os.ReadFile(full)
		if err != nil {
			unreadable++
			fmt.Fprintf(errOut, "WARN: read %s: %v\n", full, err)
			return nil
		}
		fm, _ := index.ParseFrontmatter(string(data))
		notes = append(notes, noteRecord{
			Owner:   owner,
			Path:    notePath,
			AbsPath: full,
			ID:      strings.TrimSpace(fm.ID),
		})
		return nil
	})
	if err != nil {
		unreadable++
		fmt.Fprintf(errOut, "WARN: walk %s: %v\n", repo, err)
	}
	return notes, unreadable
}

// unresolvedLinks builds a throwaway index so links resolve exactly as they
// do in the web app.
func unresolvedLinks(ctx context.Context, repo string) ([]finding, error) {
	dir, err := os.MkdirTemp("", "hashnote-check-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	idx, err := index.Open(filepath.Join(dir, "index.sqlite"))
	if err != nil {
		return nil, fmt.Errorf("open scratch index: %w", err)
	}
	defer idx.Close()
	if err := idx.Init(ctx, repo); err != nil {
		return nil, fmt.Errorf("index repo: %w", err)
	}
	users, err := idx.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	var out []finding
	for _, u := range users {
		links, err := idx.UnresolvedLinks(index.WithOwner(ctx, u.ID), maxUnresolved)
		if err != nil {
			return nil, fmt.Errorf("links of %s: %w", u.Name, err)
		}
		for _, l := range links {
			out = append(out, finding{
				Owner:  u.Name,
				Path:   l.FromPath,
				LineNo: l.LineNo,
				Reason: fmt.Sprintf("%s(%s %s)", reasonLink, l.Kind, l.Ref),
			})
		}
	}
	return out, nil
}

func printReport(out io.Writer, repo string, stats runStats, findings []finding) {
	if out == nil {
		return
	}
	fmt.Fprintf(out, "repo: %s\n", repo)
	for _, f := range findings {
		loc := f.Owner + "/" + f.Path
		if f.LineNo > 0 {
			loc = fmt.Sprintf("%s:%d", loc, f.LineNo)
		}
		fmt.Fprintf(out, "%s\t%s\n", loc, f.Reason)
	}
	fmt.Fprintf(out, "scanned=%d missing_id=%d duplicate_id=%d unresolved_links=%d unreadable=%d\n",
		stats.NotesScanned, stats.NotesMissingID, stats.DuplicateIDs, stats.UnresolvedLinks, stats.UnreadableNotes)
}

// applyFixes stamps the path id of each fixable note under the owner's write
// lock, so a running server never sees a half-written file.
func applyFixes(repo string, findings []finding, errOut io.Writer) fixStats {
	var stats fixStats
	byOwner := map[string][]finding{}
	var owners []string
	for _, f := range findings {
		if !f.fixable {
			continue
		}
		stats.Candidates++
		if _, ok := byOwner[f.Owner]; !ok {
			owners = append(owners, f.Owner)
		}
		byOwner[f.Owner] = append(byOwner[f.Owner], f)
	}
	sort.Strings(owners)
	for _, owner := range owners {
		lock, err := storagefs.LockOwner(repo, owner, lockTimeout)
		if err != nil {
			stats.Errors += len(byOwner[owner])
			fmt.Fprintf(errOut, "ERROR: lock %s: %v\n", owner, err)
			continue
		}
		for _, f := range byOwner[owner] {
			if err := stampID(f); err != nil {
				stats.Errors++
				fmt.Fprintf(errOut, "ERROR: fix %s/%s: %v\n", f.Owner, f.Path, err)
				continue
			}
			stats.Fixed++
		}
		_ = lock.Release()
	}
	return stats
}

func stampID(f finding) error {
	info, err := os.Stat(f.AbsPath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return err
	}
	content := index.SetFrontmatterValue(string(data), "id", index.PathNoteID(f.Owner, f.Path))
	return storagefs.WriteFileAtomic(f.AbsPath, []byte(content), info.Mode().Perm())
}

func confirm(errOut io.Writer, prompt string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errors.New("stdin is not a terminal (use --yes to auto-confirm)")
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	fmt.Fprint(errOut, prompt)
	var answer string
	if _, err := fmt.Fscanln(os.Stdin, &answer); err != nil {
		return false, nil
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

// Package notes is the write path for markdown notes: files under
// <repo>/<owner>/notes are written atomically, stamped with frontmatter and
// re-indexed in the same call.
package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"

	"hashnote/internal/hashtag"
	"hashnote/internal/index"
	storagefs "hashnote/internal/storage/fs"
)

var (
	ErrNotFound     = index.ErrNotFound
	ErrInvalidTitle = errors.New("invalid title")
)

const maxSlugRunes = 80

type Note struct {
	index.Note
	Content string `json:"content"`
}

type Service struct {
	repo        string
	idx         *index.Index
	locker      *storagefs.Locker
	lockTimeout time.Duration
	now         func() time.Time
}

type Option func(*Service)

// WithLockTimeout bounds the wait for the cross-process owner lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) { s.lockTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo string, idx *index.Index, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		idx:         idx,
		locker:      storagefs.NewLocker(),
		lockTimeout: 5 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// scope attaches the owner filter the index expects to ctx.
func (s *Service) scope(ctx context.Context, owner string) (context.Context, error) {
	if !index.ValidUserName(owner) {
		return nil, storagefs.ErrUnsafePath
	}
	id, err := s.idx.EnsureUser(ctx, owner)
	if err != nil {
		return nil, err
	}
	return index.WithOwner(ctx, id), nil
}

func (s *Service) Create(ctx context.Context, owner, title, body string) (Note, error) {
	title = strings.TrimSpace(title)
	if title == "" || strings.ContainsAny(title, "\n\r") {
		return Note{}, ErrInvalidTitle
	}
	ctx, err := s.scope(ctx, owner)
	if err != nil {
		return Note{}, err
	}
	root, err := storagefs.OwnerNotesRoot(s.repo, owner)
	if err != nil {
		return Note{}, err
	}

	release, err := s.lockOwner(owner)
	if err != nil {
		return Note{}, err
	}
	defer release()

	rel, err := s.freeName(root, Slugify(title))
	if err != nil {
		return Note{}, err
	}
	unlock := s.locker.Lock(owner + "/" + rel)
	defer unlock()

	content := index.SetFrontmatterValue(strings.TrimLeft(body, "\n"), "title", title)
	content, id := index.EnsureFrontmatter(content, s.now())
	// A body copied from another note brings its id along.
	taken, err := s.idx.NoteIDExists(ctx, id)
	if err != nil {
		return Note{}, err
	}
	if taken {
		id = index.PathNoteID(owner, rel)
		content = index.SetFrontmatterValue(content, "id", id)
	}
	if err := s.write(ctx, owner, rel, content); err != nil {
		return Note{}, err
	}
	meta, err := s.idx.GetNote(ctx, rel)
	if err != nil {
		return Note{}, err
	}
	slog.Info("note created", "owner", owner, "path", rel, "id", meta.ID)
	return s.Get(ctx, owner, meta.ID)
}

func (s *Service) Get(ctx context.Context, owner, id string) (Note, error) {
	ctx, err := s.scope(ctx, owner)
	if err != nil {
		return Note{}, err
	}
	meta, err := s.idx.NoteByID(ctx, id)
	if err != nil {
		return Note{}, err
	}
	full, err := storagefs.NoteFilePath(s.repo, owner, meta.Path)
	if err != nil {
		return Note{}, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		// The file vanished behind the index's back.
		_ = s.idx.RemoveNote(ctx, owner, meta.Path)
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, err
	}
	return Note{Note: meta, Content: string(data)}, nil
}

type Update struct {
	Title *string `json:"title,omitempty"`
	Body  *string `json:"body,omitempty"`
}

// Update rewrites the title and/or the body below the frontmatter. Unknown
// frontmatter keys survive.
func (s *Service) Update(ctx context.Context, owner, id string, up Update) (Note, error) {
	if up.Title != nil {
		t := strings.TrimSpace(*up.Title)
		if t == "" || strings.ContainsAny(t, "\n\r") {
			return Note{}, ErrInvalidTitle
		}
		up.Title = &t
	}
	ctx, err := s.scope(ctx, owner)
	if err != nil {
		return Note{}, err
	}
	meta, err := s.idx.NoteByID(ctx, id)
	if err != nil {
		return Note{}, err
	}

	release, err := s.lockOwner(owner)
	if err != nil {
		return Note{}, err
	}
	defer release()
	unlock := s.locker.Lock(owner + "/" + meta.Path)
	defer unlock()

	current, err := s.Get(ctx, owner, id)
	if err != nil {
		return Note{}, err
	}

	content := current.Content
	if up.Body != nil {
		content = replaceBody(content, *up.Body)
	}
	if up.Title != nil {
		content = index.SetFrontmatterValue(content, "title", *up.Title)
	}
	content, _ = index.EnsureFrontmatter(content, s.now())
	if err := s.write(ctx, owner, current.Path, content); err != nil {
		return Note{}, err
	}
	return s.Get(ctx, owner, id)
}

func (s *Service) Delete(ctx context.Context, owner, id string) error {
	ctx, err := s.scope(ctx, owner)
	if err != nil {
		return err
	}
	meta, err := s.idx.NoteByID(ctx, id)
	if err != nil {
		return err
	}
	release, err := s.lockOwner(owner)
	if err != nil {
		return err
	}
	defer release()
	unlock := s.locker.Lock(owner + "/" + meta.Path)
	defer unlock()

	full, err := storagefs.NoteFilePath(s.repo, owner, meta.Path)
	if err != nil {
		return err
	}
	root, _ := storagefs.OwnerNotesRoot(s.repo, owner)
	if err := storagefs.RemoveFile(root, full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	slog.Info("note deleted", "owner", owner, "path", meta.Path, "id", id)
	return s.idx.RemoveNote(ctx, owner, meta.Path)
}

// DeleteOwner removes every note file of owner and then the account with
// its index rows.
func (s *Service) DeleteOwner(ctx context.Context, owner string) error {
	if !index.ValidUserName(owner) {
		return storagefs.ErrUnsafePath
	}
	root, err := storagefs.OwnerNotesRoot(s.repo, owner)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("remove notes of %s: %w", owner, err)
	}
	if err := s.idx.DeleteUser(ctx, owner); err != nil {
		return err
	}
	slog.Info("owner deleted", "owner", owner)
	return nil
}

type ListOptions struct {
	Tags   []string
	Limit  int
	Offset int
}

// List returns the owner's notes, most recently updated first, optionally
// restricted to notes carrying every tag in opts.Tags.
func (s *Service) List(ctx context.Context, owner string, opts ListOptions) ([]index.NoteSummary, error) {
	ctx, err := s.scope(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(opts.Tags) > 0 {
		return s.idx.NotesByTags(ctx, opts.Tags, opts.Limit, opts.Offset)
	}
	return s.idx.RecentNotes(ctx, opts.Limit, opts.Offset)
}

func (s *Service) Search(ctx context.Context, owner, query string, limit int) ([]index.SearchResult, error) {
	ctx, err := s.scope(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.idx.Search(ctx, query, limit)
}

// TagStats is the owner's tag usage snapshot for autocomplete.
func (s *Service) TagStats(ctx context.Context, owner string) ([]hashtag.TagStat, error) {
	ctx, err := s.scope(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.idx.TagStats(ctx)
}

func (s *Service) write(ctx context.Context, owner, rel, content string) error {
	full, err := storagefs.NoteFilePath(s.repo, owner, rel)
	if err != nil {
		return err
	}
	if err := storagefs.WriteFileAtomic(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write note: %w", err)
	}
	info, err := os.Stat(full)
	if err != nil {
		return err
	}
	if err := s.idx.IndexNote(ctx, owner, rel, []byte(content), info.ModTime(), info.Size()); err != nil {
		return fmt.Errorf("index note: %w", err)
	}
	return nil
}

func (s *Service) lockOwner(owner string) (func(), error) {
	lock, err := storagefs.LockOwner(s.repo, owner, s.lockTimeout)
	if err != nil {
		return nil, fmt.Errorf("lock notes of %s: %w", owner, err)
	}
	return func() { _ = lock.Release() }, nil
}

// freeName picks slug.md, or slug-2.md, slug-3.md... when taken.
func (s *Service) freeName(root, slug string) (string, error) {
	for n := 1; n < 1000; n++ {
		name := slug
		if n > 1 {
			name += "-" + strconv.Itoa(n)
		}
		name = storagefs.EnsureMDExt(name)
		_, err := os.Stat(path.Join(root, name))
		if errors.Is(err, os.ErrNotExist) {
			return name, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free file name for %q", slug)
}

// Slugify turns a title into a file name stem: lower-case letters and digits
// joined by single dashes.
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	n := 0
	for _, r := range strings.ToLower(title) {
		if n >= maxSlugRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			n++
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
			n++
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "note"
	}
	return slug
}

func replaceBody(content, body string) string {
	body = strings.TrimLeft(body, "\n")
	if !strings.HasPrefix(content, "---") {
		return body
	}
	stripped := index.StripFrontmatter(content)
	if stripped == content {
		return body
	}
	head := content[:len(content)-len(stripped)]
	if body == "" {
		return head
	}
	return head + "\n" + body
}

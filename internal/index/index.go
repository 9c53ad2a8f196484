package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrUserExists = errors.New("user already exists")
	ErrNoOwner    = errors.New("no owner in context")
)

// noteNamespace derives stable ids for notes that carry no frontmatter id.
var noteNamespace = uuid.MustParse("9d3f6c1e-2b7a-4c55-8f0e-5a1d7b2c9e40")

type Index struct {
	db          *sql.DB
	lockTimeout time.Duration
}

type OpenOptions struct {
	BusyTimeout time.Duration
}

type NoteSummary struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	MTime     time.Time `json:"mtime"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Note struct {
	NoteSummary
	Owner string   `json:"owner"`
	Tags  []string `json:"tags"`
}

type SearchResult struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

type fileRecord struct {
	ID        string
	Hash      string
	MTimeUnix int64
	Size      int64
}

func Open(path string) (*Index, error) {
	return OpenWithOptions(path, OpenOptions{})
}

func OpenWithOptions(path string, opts OpenOptions) (*Index, error) {
	dsn := path
	if opts.BusyTimeout > 0 {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += fmt.Sprintf("%s_pragma=busy_timeout(%d)", sep, opts.BusyTimeout.Milliseconds())
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One writer keeps sqlite from returning SQLITE_BUSY between our own
	// connections.
	db.SetMaxOpenConns(1)
	return &Index{db: db}, nil
}

// SetLockTimeout bounds how long a statement keeps retrying on SQLITE_BUSY.
func (i *Index) SetLockTimeout(d time.Duration) {
	i.lockTimeout = d
}

func (i *Index) Close() error {
	if i.db == nil {
		return nil
	}
	return i.db.Close()
}

// Init creates the schema. A schema version change rebuilds the index from
// the repository, otherwise only changed files are re-read.
func (i *Index) Init(ctx context.Context, repoPath string) error {
	if _, err := i.exec(ctx, i.db, schemaSQL); err != nil {
		return err
	}
	version, err := i.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if version != schemaVersion {
		if err := i.setSchemaVersion(ctx, schemaVersion); err != nil {
			return err
		}
		return i.RebuildFromFS(ctx, repoPath)
	}
	_, err = i.RecheckFromFS(ctx, repoPath)
	return err
}

func (i *Index) schemaVersion(ctx context.Context) (int, error) {
	var v int
	err := i.queryRow(ctx, i.db, "SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (i *Index) setSchemaVersion(ctx context.Context, v int) error {
	if _, err := i.exec(ctx, i.db, "DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := i.exec(ctx, i.db, "INSERT INTO schema_version(version) VALUES(?)", v)
	return err
}

// walkNotes visits every markdown file under <repo>/<owner>/notes.
// PathNoteID is the id a note gets when its frontmatter has none, or when its
// id is already taken by another note.
func PathNoteID(owner, notePath string) string {
	notePath = path.Clean(strings.TrimPrefix(filepath.ToSlash(notePath), "/"))
	return uuid.NewSHA1(noteNamespace, []byte(joinOwnerPath(owner, notePath))).String()
}

// WalkNotes calls fn for every markdown file under <repo>/<owner>/notes.
// notePath is relative to the owner's notes directory.
func WalkNotes(repoPath string, fn func(owner, notePath, full string) error) error {
	return walkNotes(repoPath, func(owner, rel, full string, _ fs.DirEntry) error {
		return fn(owner, rel, full)
	})
}

func walkNotes(repoPath string, fn func(owner, rel, full string, d fs.DirEntry) error) error {
	if repoPath == "" {
		return nil
	}
	return filepath.WalkDir(repoPath, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			if full == repoPath && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && full != repoPath {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		rel, err := filepath.Rel(repoPath, full)
		if err != nil {
			return err
		}
		owner, noteRel, err := splitOwnerPath(filepath.ToSlash(rel))
		if err != nil {
			return nil
		}
		return fn(owner, noteRel, full, d)
	})
}

func (i *Index) RebuildFromFS(ctx context.Context, repoPath string) error {
	clear := []string{
		"DELETE FROM note_embeddings",
		"DELETE FROM note_links",
		"DELETE FROM note_tags",
		"DELETE FROM tags",
		"DELETE FROM notes",
		"DELETE FROM fts",
	}
	for _, stmt := range clear {
		if _, err := i.exec(ctx, i.db, stmt); err != nil {
			return err
		}
	}

	count := 0
	err := walkNotes(repoPath, func(owner, rel, full string, d fs.DirEntry) error {
		content, err := os.ReadFile(full)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		count++
		return i.IndexNote(ctx, owner, rel, content, info.ModTime(), info.Size())
	})
	slog.Info("index rebuilt", "repo", repoPath, "notes", count, "err", err)
	return err
}

// RecheckFromFS re-indexes files whose size, mtime and hash changed and drops
// rows for files that disappeared. It returns how many files were scanned.
func (i *Index) RecheckFromFS(ctx context.Context, repoPath string) (int, error) {
	records, err := i.loadFileRecords(ctx)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(records))
	scanned := 0
	err = walkNotes(repoPath, func(owner, rel, full string, d fs.DirEntry) error {
		key := joinOwnerPath(owner, rel)
		seen[key] = true
		scanned++

		info, err := d.Info()
		if err != nil {
			return err
		}
		rec, ok := records[key]
		if ok && rec.MTimeUnix == info.ModTime().Unix() && rec.Size == info.Size() {
			return nil
		}
		content, err := os.ReadFile(full)
		if err != nil {
			return err
		}
		if ok && ContentHash(content) == rec.Hash {
			_, err := i.exec(ctx, i.db, "UPDATE notes SET mtime_unix=?, size=? WHERE id=?", info.ModTime().Unix(), info.Size(), rec.ID)
			return err
		}
		return i.IndexNote(ctx, owner, rel, content, info.ModTime(), info.Size())
	})
	if err != nil {
		return scanned, err
	}
	return scanned, i.removeMissingRecords(ctx, records, seen)
}

// IndexNote writes one note and everything derived from it: tags, links and
// the full-text row. Links of the owner are re-resolved afterwards so that
// earlier dangling references to this note become backlinks.
func (i *Index) IndexNote(ctx context.Context, owner, notePath string, content []byte, mtime time.Time, size int64) error {
	notePath = path.Clean(strings.TrimPrefix(filepath.ToSlash(notePath), "/"))
	meta := ParseContent(string(content))
	checksum := ContentHash(content)
	title := meta.Title
	if title == "" {
		title = strings.TrimSuffix(path.Base(notePath), path.Ext(notePath))
	}

	userID, err := i.ensureUser(ctx, owner)
	if err != nil {
		return err
	}

	tx, start, err := i.beginTx(ctx, "index-note")
	if err != nil {
		return err
	}
	defer i.rollbackTx(tx, "index-note", start)

	now := time.Now().Unix()
	var noteID string
	var createdAt int64
	err = i.queryRow(ctx, tx, "SELECT id, created_at FROM notes WHERE owner_id=? AND path=?", userID, notePath).Scan(&noteID, &createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		pathID := PathNoteID(owner, notePath)
		noteID = meta.ID
		if noteID == "" {
			noteID = pathID
		} else if taken, err := i.idTaken(ctx, tx, noteID); err != nil {
			return err
		} else if taken {
			slog.Warn("duplicate note id, using path id", "id", noteID, "owner", owner, "path", notePath)
			noteID = pathID
		}
		_, err = i.exec(ctx, tx, `
			INSERT INTO notes(id, owner_id, path, title, hash, mtime_unix, size, created_at, updated_at)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			noteID, userID, notePath, title, checksum, mtime.Unix(), size, now, now)
		if err != nil {
			return err
		}
	case err == nil:
		_, err = i.exec(ctx, tx, `
			UPDATE notes SET title=?, hash=?, mtime_unix=?, size=?, updated_at=? WHERE id=?`,
			title, checksum, mtime.Unix(), size, now, noteID)
		if err != nil {
			return err
		}
	default:
		return err
	}

	if _, err := i.exec(ctx, tx, "DELETE FROM note_tags WHERE note_id=?", noteID); err != nil {
		return err
	}
	if _, err := i.exec(ctx, tx, "DELETE FROM note_links WHERE from_note_id=?", noteID); err != nil {
		return err
	}

	for _, tag := range meta.Tags {
		if _, err := i.exec(ctx, tx, "INSERT OR IGNORE INTO tags(name) VALUES(?)", tag); err != nil {
			return err
		}
		var tagID int
		if err := i.queryRow(ctx, tx, "SELECT id FROM tags WHERE name=?", tag).Scan(&tagID); err != nil {
			return err
		}
		if _, err := i.exec(ctx, tx, "INSERT OR IGNORE INTO note_tags(note_id, tag_id) VALUES(?, ?)", noteID, tagID); err != nil {
			return err
		}
	}

	for _, link := range meta.Links {
		if _, err := i.exec(ctx, tx,
			"INSERT INTO note_links(from_note_id, to_ref, to_note_id, kind, line_no, line) VALUES(?, ?, NULL, ?, ?, ?)",
			noteID, resolveLinkRef(notePath, link), link.Kind, link.LineNo, link.Line); err != nil {
			return err
		}
	}

	if _, err := i.exec(ctx, tx, "DELETE FROM fts WHERE note_id=?", noteID); err != nil {
		return err
	}
	if _, err := i.exec(ctx, tx, "INSERT INTO fts(note_id, title, body) VALUES(?, ?, ?)", noteID, title, StripFrontmatter(string(content))); err != nil {
		return err
	}
	if err := i.resolveLinks(ctx, tx, userID); err != nil {
		return err
	}
	return i.commitTx(tx, "index-note", start)
}

// NoteIDExists reports whether any note in the repository uses id. Ids are
// unique across owners.
func (i *Index) NoteIDExists(ctx context.Context, id string) (bool, error) {
	var existing string
	err := i.queryRow(ctx, i.db, "SELECT id FROM notes WHERE id=?", id).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// idTaken reports whether another row already uses id, which happens when a
// note file was copied or renamed outside the app.
func (i *Index) idTaken(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var existing string
	err := i.queryRow(ctx, tx, "SELECT id FROM notes WHERE id=?", id).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (i *Index) IndexNoteIfChanged(ctx context.Context, owner, notePath string, content []byte, mtime time.Time, size int64) error {
	userID, err := i.ensureUser(ctx, owner)
	if err != nil {
		return err
	}
	var rec fileRecord
	err = i.queryRow(ctx, i.db, "SELECT id, hash, mtime_unix, size FROM notes WHERE owner_id=? AND path=?", userID, notePath).
		Scan(&rec.ID, &rec.Hash, &rec.MTimeUnix, &rec.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return i.IndexNote(ctx, owner, notePath, content, mtime, size)
	}
	if err != nil {
		return err
	}
	if rec.MTimeUnix == mtime.Unix() && rec.Size == size {
		return nil
	}
	if ContentHash(content) == rec.Hash {
		_, err := i.exec(ctx, i.db, "UPDATE notes SET mtime_unix=?, size=? WHERE id=?", mtime.Unix(), size, rec.ID)
		return err
	}
	return i.IndexNote(ctx, owner, notePath, content, mtime, size)
}

// RemoveNote deletes a note and its derived rows. Links pointing at it become
// unresolved again.
func (i *Index) RemoveNote(ctx context.Context, owner, notePath string) error {
	userID, err := i.userIDByName(ctx, owner)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	tx, start, err := i.beginTx(ctx, "remove-note")
	if err != nil {
		return err
	}
	defer i.rollbackTx(tx, "remove-note", start)

	var noteID string
	err = i.queryRow(ctx, tx, "SELECT id FROM notes WHERE owner_id=? AND path=?", userID, notePath).Scan(&noteID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := i.deleteNoteRows(ctx, tx, noteID); err != nil {
		return err
	}
	return i.commitTx(tx, "remove-note", start)
}

func (i *Index) deleteNoteRows(ctx context.Context, tx *sql.Tx, noteID string) error {
	stmts := []string{
		"DELETE FROM note_tags WHERE note_id=?",
		"DELETE FROM note_links WHERE from_note_id=?",
		"UPDATE note_links SET to_note_id=NULL WHERE to_note_id=?",
		"DELETE FROM note_embeddings WHERE note_id=?",
		"DELETE FROM fts WHERE note_id=?",
		"DELETE FROM notes WHERE id=?",
	}
	for _, stmt := range stmts {
		if _, err := i.exec(ctx, tx, stmt, noteID); err != nil {
			return err
		}
	}
	return nil
}

func (i *Index) loadFileRecords(ctx context.Context) (map[string]fileRecord, error) {
	rows, err := i.query(ctx, i.db, `
		SELECT notes.id, users.name, notes.path, notes.hash, notes.mtime_unix, notes.size
		FROM notes
		JOIN users ON users.id = notes.owner_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := map[string]fileRecord{}
	for rows.Next() {
		var owner, notePath string
		var rec fileRecord
		if err := rows.Scan(&rec.ID, &owner, &notePath, &rec.Hash, &rec.MTimeUnix, &rec.Size); err != nil {
			return nil, err
		}
		records[joinOwnerPath(owner, notePath)] = rec
	}
	return records, rows.Err()
}

func (i *Index) removeMissingRecords(ctx context.Context, records map[string]fileRecord, seen map[string]bool) error {
	var missing []string
	for key, rec := range records {
		if !seen[key] {
			missing = append(missing, rec.ID)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	tx, start, err := i.beginTx(ctx, "remove-missing")
	if err != nil {
		return err
	}
	defer i.rollbackTx(tx, "remove-missing", start)
	for _, id := range missing {
		if err := i.deleteNoteRows(ctx, tx, id); err != nil {
			return err
		}
	}
	slog.Info("index removed missing notes", "count", len(missing))
	return i.commitTx(tx, "remove-missing", start)
}

func scanNoteSummaries(rows *sql.Rows) ([]NoteSummary, error) {
	defer rows.Close()
	var notes []NoteSummary
	for rows.Next() {
		var n NoteSummary
		var mtimeUnix, createdUnix, updatedUnix int64
		if err := rows.Scan(&n.ID, &n.Path, &n.Title, &mtimeUnix, &createdUnix, &updatedUnix); err != nil {
			return nil, err
		}
		n.MTime = time.Unix(mtimeUnix, 0).UTC()
		n.CreatedAt = time.Unix(createdUnix, 0).UTC()
		n.UpdatedAt = time.Unix(updatedUnix, 0).UTC()
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

const noteSummaryColumns = "notes.id, notes.path, notes.title, notes.mtime_unix, notes.created_at, notes.updated_at"

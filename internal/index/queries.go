package index

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"hashnote/internal/hashtag"
)

type TagSummary struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func (i *Index) RecentNotes(ctx context.Context, limit, offset int) ([]NoteSummary, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := i.query(ctx, i.db, `
		SELECT `+noteSummaryColumns+`
		FROM notes
		WHERE owner_id = ?
		ORDER BY updated_at DESC, path ASC
		LIMIT ? OFFSET ?`, owner, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanNoteSummaries(rows)
}

// GetNote looks a note up by its path under the owner's notes directory.
func (i *Index) GetNote(ctx context.Context, notePath string) (Note, error) {
	return i.noteWhere(ctx, "notes.path = ?", notePath)
}

func (i *Index) NoteByID(ctx context.Context, id string) (Note, error) {
	return i.noteWhere(ctx, "notes.id = ?", id)
}

func (i *Index) noteWhere(ctx context.Context, cond string, arg any) (Note, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return Note{}, err
	}
	var n Note
	var mtimeUnix, createdUnix, updatedUnix int64
	err = i.queryRow(ctx, i.db, `
		SELECT `+noteSummaryColumns+`, users.name
		FROM notes
		JOIN users ON users.id = notes.owner_id
		WHERE notes.owner_id = ? AND `+cond, owner, arg).
		Scan(&n.ID, &n.Path, &n.Title, &mtimeUnix, &createdUnix, &updatedUnix, &n.Owner)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, err
	}
	n.MTime = time.Unix(mtimeUnix, 0).UTC()
	n.CreatedAt = time.Unix(createdUnix, 0).UTC()
	n.UpdatedAt = time.Unix(updatedUnix, 0).UTC()

	rows, err := i.query(ctx, i.db, `
		SELECT tags.name
		FROM note_tags
		JOIN tags ON tags.id = note_tags.tag_id
		WHERE note_tags.note_id = ?
		ORDER BY tags.name`, n.ID)
	if err != nil {
		return Note{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return Note{}, err
		}
		n.Tags = append(n.Tags, tag)
	}
	return n, rows.Err()
}

// Search runs an fts5 query over titles and bodies. Plain words are quoted so
// user input never hits the fts5 query syntax.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := i.query(ctx, i.db, `
		SELECT notes.id, notes.path, notes.title, snippet(fts, 2, '', '', '...', 10)
		FROM fts
		JOIN notes ON notes.id = fts.note_id
		WHERE fts MATCH ? AND notes.owner_id = ?
		ORDER BY rank
		LIMIT ?`, match, owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Path, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func ftsQuery(query string) string {
	var terms []string
	for _, word := range strings.Fields(query) {
		word = strings.ReplaceAll(word, `"`, `""`)
		terms = append(terms, `"`+word+`"`)
	}
	return strings.Join(terms, " ")
}

// ListTags returns the owner's tags with usage counts, alphabetically. This
// is the order the autocomplete ranker relies on for its final tie break.
func (i *Index) ListTags(ctx context.Context, limit int) ([]TagSummary, error) {
	if limit <= 0 {
		limit = 1000
	}
	return i.listTags(ctx, limit)
}

// listTags runs the tag query; a negative limit returns every tag.
func (i *Index) listTags(ctx context.Context, limit int) ([]TagSummary, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := i.query(ctx, i.db, `
		SELECT tags.name, COUNT(note_tags.note_id)
		FROM tags
		JOIN note_tags ON tags.id = note_tags.tag_id
		JOIN notes ON notes.id = note_tags.note_id
		WHERE notes.owner_id = ?
		GROUP BY tags.id
		ORDER BY tags.name
		LIMIT ?`, owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []TagSummary
	for rows.Next() {
		var t TagSummary
		if err := rows.Scan(&t.Name, &t.Count); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// TagStats returns every tag of the owner shaped for the hashtag ranker.
func (i *Index) TagStats(ctx context.Context) ([]hashtag.TagStat, error) {
	tags, err := i.listTags(ctx, -1)
	if err != nil {
		return nil, err
	}
	out := make([]hashtag.TagStat, len(tags))
	for n, t := range tags {
		out[n] = hashtag.TagStat{Tag: t.Name, Count: t.Count}
	}
	return out, nil
}

// NotesByTags returns notes carrying every tag in tags.
func (i *Index) NotesByTags(ctx context.Context, tags []string, limit, offset int) ([]NoteSummary, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	tags = uniqueStrings(tags)
	if len(tags) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(tags)), ",")
	query := `
		SELECT ` + noteSummaryColumns + `
		FROM notes
		JOIN note_tags ON notes.id = note_tags.note_id
		JOIN tags ON tags.id = note_tags.tag_id
		WHERE notes.owner_id = ? AND tags.name IN (` + placeholders + `)
		GROUP BY notes.id
		HAVING COUNT(DISTINCT tags.name) = ?
		ORDER BY notes.updated_at DESC
		LIMIT ? OFFSET ?`

	args := make([]any, 0, len(tags)+4)
	args = append(args, owner)
	for _, tag := range tags {
		args = append(args, tag)
	}
	args = append(args, len(tags), limit, offset)

	rows, err := i.query(ctx, i.db, query, args...)
	if err != nil {
		return nil, err
	}
	return scanNoteSummaries(rows)
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		s = strings.TrimSpace(s)
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

package index

import (
	"context"
	"database/sql"
	"path"
	"strings"
)

type Backlink struct {
	FromID    string `json:"from_id"`
	FromPath  string `json:"from_path"`
	FromTitle string `json:"from_title"`
	Kind      string `json:"kind"`
	LineNo    int    `json:"line_no"`
	Line      string `json:"line"`
}

type OutgoingLink struct {
	Ref     string `json:"ref"`
	Kind    string `json:"kind"`
	LineNo  int    `json:"line_no"`
	Line    string `json:"line"`
	ToID    string `json:"to_id,omitempty"`
	ToPath  string `json:"to_path,omitempty"`
	ToTitle string `json:"to_title,omitempty"`
}

type UnresolvedLink struct {
	FromID    string `json:"from_id"`
	FromPath  string `json:"from_path"`
	FromTitle string `json:"from_title"`
	Ref       string `json:"ref"`
	Kind      string `json:"kind"`
	LineNo    int    `json:"line_no"`
}

type LinkCount struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	Title     string `json:"title"`
	Backlinks int    `json:"backlinks"`
}

type LinkStats struct {
	Notes      int         `json:"notes"`
	Links      int         `json:"links"`
	Resolved   int         `json:"resolved"`
	Unresolved int         `json:"unresolved"`
	Orphans    int         `json:"orphans"`
	MostLinked []LinkCount `json:"most_linked"`
}

type NetworkNode struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Path      string `json:"path"`
	InDegree  int    `json:"in_degree"`
	OutDegree int    `json:"out_degree"`
}

type NetworkEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Kind   string `json:"kind"`
	Weight int    `json:"weight"`
}

type LinkNetwork struct {
	Nodes []NetworkNode `json:"nodes"`
	Edges []NetworkEdge `json:"edges"`
}

// resolveLinkRef turns a markdown link into a path relative to the owner's
// notes directory. Wiki links are matched by title, path or id as written.
func resolveLinkRef(fromPath string, link Link) string {
	if link.Kind != LinkKindMarkdown {
		return link.Ref
	}
	ref := link.Ref
	if strings.HasPrefix(ref, "/") {
		return strings.TrimPrefix(path.Clean(ref), "/")
	}
	joined := path.Join(path.Dir(fromPath), ref)
	for strings.HasPrefix(joined, "../") {
		joined = strings.TrimPrefix(joined, "../")
	}
	return joined
}

// resolveLinks points every link of the owner at the note it names, preferring
// an id match, then a path match, then a case-insensitive title match. Ties
// go to the lowest path.
func (i *Index) resolveLinks(ctx context.Context, tx *sql.Tx, ownerID int) error {
	targets, err := i.linkTargets(ctx, tx, ownerID)
	if err != nil {
		return err
	}

	type pendingLink struct {
		id      int64
		ref     string
		current sql.NullString
	}
	rows, err := i.query(ctx, tx, `
		SELECT note_links.id, note_links.to_ref, note_links.to_note_id
		FROM note_links
		JOIN notes ON notes.id = note_links.from_note_id
		WHERE notes.owner_id = ?`, ownerID)
	if err != nil {
		return err
	}
	var links []pendingLink
	for rows.Next() {
		var l pendingLink
		if err := rows.Scan(&l.id, &l.ref, &l.current); err != nil {
			rows.Close()
			return err
		}
		links = append(links, l)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, l := range links {
		target := targets.resolve(l.ref)
		if target == l.current.String && l.current.Valid == (target != "") {
			continue
		}
		var val any
		if target != "" {
			val = target
		}
		if _, err := i.exec(ctx, tx, "UPDATE note_links SET to_note_id=? WHERE id=?", val, l.id); err != nil {
			return err
		}
	}
	return nil
}

type linkTargets struct {
	byID    map[string]string
	byPath  map[string]string
	byTitle map[string]string
}

// linkTargets loads the owner's notes in path order, so the first note seen
// for a title wins.
func (i *Index) linkTargets(ctx context.Context, tx *sql.Tx, ownerID int) (linkTargets, error) {
	t := linkTargets{
		byID:    map[string]string{},
		byPath:  map[string]string{},
		byTitle: map[string]string{},
	}
	rows, err := i.query(ctx, tx, "SELECT id, path, title FROM notes WHERE owner_id = ? ORDER BY path", ownerID)
	if err != nil {
		return t, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, notePath, title string
		if err := rows.Scan(&id, &notePath, &title); err != nil {
			return t, err
		}
		t.byID[id] = id
		t.byPath[notePath] = id
		if key := strings.ToLower(strings.TrimSpace(title)); key != "" {
			if _, ok := t.byTitle[key]; !ok {
				t.byTitle[key] = id
			}
		}
	}
	return t, rows.Err()
}

func (t linkTargets) resolve(ref string) string {
	if id, ok := t.byID[ref]; ok {
		return id
	}
	if id, ok := t.byPath[ref]; ok {
		return id
	}
	if id, ok := t.byPath[ref+".md"]; ok {
		return id
	}
	return t.byTitle[strings.ToLower(strings.TrimSpace(ref))]
}

func (i *Index) Backlinks(ctx context.Context, noteID string) ([]Backlink, error) {
	note, err := i.NoteByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	rows, err := i.query(ctx, i.db, `
		SELECT notes.id, notes.path, notes.title, note_links.kind, note_links.line_no, note_links.line
		FROM note_links
		JOIN notes ON notes.id = note_links.from_note_id
		WHERE note_links.to_note_id = ?
		ORDER BY notes.updated_at DESC, note_links.line_no`, note.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Backlink
	for rows.Next() {
		var b Backlink
		if err := rows.Scan(&b.FromID, &b.FromPath, &b.FromTitle, &b.Kind, &b.LineNo, &b.Line); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (i *Index) OutgoingLinks(ctx context.Context, noteID string) ([]OutgoingLink, error) {
	note, err := i.NoteByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	rows, err := i.query(ctx, i.db, `
		SELECT note_links.to_ref, note_links.kind, note_links.line_no, note_links.line,
			COALESCE(target.id, ''), COALESCE(target.path, ''), COALESCE(target.title, '')
		FROM note_links
		LEFT JOIN notes target ON target.id = note_links.to_note_id
		WHERE note_links.from_note_id = ?
		ORDER BY note_links.line_no, note_links.id`, note.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OutgoingLink
	for rows.Next() {
		var l OutgoingLink
		if err := rows.Scan(&l.Ref, &l.Kind, &l.LineNo, &l.Line, &l.ToID, &l.ToPath, &l.ToTitle); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (i *Index) UnresolvedLinks(ctx context.Context, limit int) ([]UnresolvedLink, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := i.query(ctx, i.db, `
		SELECT notes.id, notes.path, notes.title, note_links.to_ref, note_links.kind, note_links.line_no
		FROM note_links
		JOIN notes ON notes.id = note_links.from_note_id
		WHERE notes.owner_id = ? AND note_links.to_note_id IS NULL
		ORDER BY notes.path, note_links.line_no
		LIMIT ?`, owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UnresolvedLink
	for rows.Next() {
		var l UnresolvedLink
		if err := rows.Scan(&l.FromID, &l.FromPath, &l.FromTitle, &l.Ref, &l.Kind, &l.LineNo); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LinkStats summarizes the owner's link graph. mostLinked caps the ranking of
// notes by incoming links.
func (i *Index) LinkStats(ctx context.Context, mostLinked int) (LinkStats, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return LinkStats{}, err
	}
	if mostLinked <= 0 {
		mostLinked = 10
	}
	var st LinkStats
	err = i.queryRow(ctx, i.db, `
		SELECT
			(SELECT COUNT(*) FROM notes WHERE owner_id = ?1),
			COUNT(note_links.id),
			COALESCE(SUM(note_links.to_note_id IS NOT NULL), 0),
			COALESCE(SUM(note_links.to_note_id IS NULL), 0),
			(SELECT COUNT(*) FROM notes n
				WHERE n.owner_id = ?1
				AND NOT EXISTS (SELECT 1 FROM note_links l WHERE l.from_note_id = n.id)
				AND NOT EXISTS (SELECT 1 FROM note_links l WHERE l.to_note_id = n.id))
		FROM note_links
		JOIN notes ON notes.id = note_links.from_note_id
		WHERE notes.owner_id = ?1`, owner).
		Scan(&st.Notes, &st.Links, &st.Resolved, &st.Unresolved, &st.Orphans)
	if err != nil {
		return LinkStats{}, err
	}

	rows, err := i.query(ctx, i.db, `
		SELECT notes.id, notes.path, notes.title, COUNT(note_links.id) AS c
		FROM notes
		JOIN note_links ON note_links.to_note_id = notes.id
		WHERE notes.owner_id = ?
		GROUP BY notes.id
		ORDER BY c DESC, notes.path
		LIMIT ?`, owner, mostLinked)
	if err != nil {
		return LinkStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var c LinkCount
		if err := rows.Scan(&c.ID, &c.Path, &c.Title, &c.Backlinks); err != nil {
			return LinkStats{}, err
		}
		st.MostLinked = append(st.MostLinked, c)
	}
	return st, rows.Err()
}

// LinkNetwork returns the owner's notes as nodes and resolved links as edges,
// with parallel links of the same kind folded into one weighted edge.
func (i *Index) LinkNetwork(ctx context.Context) (LinkNetwork, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return LinkNetwork{}, err
	}
	rows, err := i.query(ctx, i.db, `
		SELECT note_links.from_note_id, note_links.to_note_id, note_links.kind, COUNT(*)
		FROM note_links
		JOIN notes ON notes.id = note_links.from_note_id
		WHERE notes.owner_id = ? AND note_links.to_note_id IS NOT NULL
		GROUP BY note_links.from_note_id, note_links.to_note_id, note_links.kind
		ORDER BY note_links.from_note_id, note_links.to_note_id, note_links.kind`, owner)
	if err != nil {
		return LinkNetwork{}, err
	}
	net := LinkNetwork{Nodes: []NetworkNode{}, Edges: []NetworkEdge{}}
	in := map[string]int{}
	out := map[string]int{}
	for rows.Next() {
		var e NetworkEdge
		if err := rows.Scan(&e.From, &e.To, &e.Kind, &e.Weight); err != nil {
			rows.Close()
			return LinkNetwork{}, err
		}
		out[e.From] += e.Weight
		in[e.To] += e.Weight
		net.Edges = append(net.Edges, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return LinkNetwork{}, err
	}

	rows, err = i.query(ctx, i.db, "SELECT id, title, path FROM notes WHERE owner_id = ? ORDER BY path", owner)
	if err != nil {
		return LinkNetwork{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var n NetworkNode
		if err := rows.Scan(&n.ID, &n.Title, &n.Path); err != nil {
			return LinkNetwork{}, err
		}
		n.InDegree = in[n.ID]
		n.OutDegree = out[n.ID]
		net.Nodes = append(net.Nodes, n)
	}
	return net, rows.Err()
}

package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

type SimilarNote struct {
	NoteSummary
	Score float64 `json:"score"`
}

// SaveEmbedding stores the vector of a note for one model, replacing any
// previous one.
func (i *Index) SaveEmbedding(ctx context.Context, noteID, model string, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("empty embedding")
	}
	note, err := i.NoteByID(ctx, noteID)
	if err != nil {
		return err
	}
	blob, err := msgpack.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	_, err = i.exec(ctx, i.db, `
		INSERT INTO note_embeddings(note_id, model, dims, vector, updated_at)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(note_id, model) DO UPDATE SET
			dims = excluded.dims,
			vector = excluded.vector,
			updated_at = excluded.updated_at`,
		note.ID, model, len(vector), blob, time.Now().Unix())
	return err
}

func (i *Index) Embedding(ctx context.Context, noteID, model string) ([]float32, error) {
	note, err := i.NoteByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	var blob []byte
	err = i.queryRow(ctx, i.db, "SELECT vector FROM note_embeddings WHERE note_id=? AND model=?", note.ID, model).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeVector(blob)
}

// SimilarNotes ranks the owner's other notes by cosine similarity to noteID
// using vectors of the same model and dimension.
func (i *Index) SimilarNotes(ctx context.Context, noteID, model string, limit int) ([]SimilarNote, error) {
	target, err := i.Embedding(ctx, noteID, model)
	if err != nil {
		return nil, err
	}
	owner, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := i.query(ctx, i.db, `
		SELECT `+noteSummaryColumns+`, note_embeddings.vector
		FROM note_embeddings
		JOIN notes ON notes.id = note_embeddings.note_id
		WHERE notes.owner_id = ? AND note_embeddings.model = ? AND note_embeddings.dims = ? AND notes.id != ?`,
		owner, model, len(target), noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SimilarNote
	for rows.Next() {
		var n SimilarNote
		var mtimeUnix, createdUnix, updatedUnix int64
		var blob []byte
		if err := rows.Scan(&n.ID, &n.Path, &n.Title, &mtimeUnix, &createdUnix, &updatedUnix, &blob); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		n.MTime = time.Unix(mtimeUnix, 0).UTC()
		n.CreatedAt = time.Unix(createdUnix, 0).UTC()
		n.UpdatedAt = time.Unix(updatedUnix, 0).UTC()
		n.Score = Cosine(target, vec)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func decodeVector(blob []byte) ([]float32, error) {
	var vec []float32
	if err := msgpack.Unmarshal(blob, &vec); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return vec, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero
// vector or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for k := range a {
		x, y := float64(a[k]), float64(b[k])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

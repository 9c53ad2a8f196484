package web

import (
	"fmt"
	"net/http"
	"strings"

	"hashnote/internal/index"
)

type aiRequest struct {
	Provider string `json:"provider"`
	Text     string `json:"text"`
	NoteID   string `json:"note_id"`
}

// aiInput returns the text to send upstream: the request text, or the body of
// note_id when no text was given.
func (s *Server) aiInput(r *http.Request, in aiRequest) (string, error) {
	if strings.TrimSpace(in.Text) != "" || in.NoteID == "" {
		return in.Text, nil
	}
	user, _ := CurrentUser(r.Context())
	n, err := s.notes.Get(r.Context(), user.Name, in.NoteID)
	if err != nil {
		return "", err
	}
	return index.StripFrontmatter(n.Content), nil
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var in aiRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := s.ai.Get(in.Provider)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	text, err := s.aiInput(r, in)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	vec, err := p.Embed(r.Context(), text)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	stored := false
	if in.NoteID != "" {
		if err := s.idx.SaveEmbedding(r.Context(), in.NoteID, p.EmbedModel(), vec); err != nil {
			writeErr(w, r, err)
			return
		}
		stored = true
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provider":  p.Name(),
		"model":     p.EmbedModel(),
		"dims":      len(vec),
		"embedding": vec,
		"stored":    stored,
	})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var in aiRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := s.ai.Get(in.Provider)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	text, err := s.aiInput(r, in)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	summary, err := p.Summarize(r.Context(), text)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider": p.Name(), "summary": summary})
}

// handleSimilar ranks notes by stored embeddings; model defaults to the
// provider's embedding model.
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id, ok := s.noteExists(w, r)
	if !ok {
		return
	}
	model := strings.TrimSpace(r.URL.Query().Get("model"))
	if model == "" {
		p, err := s.ai.Get(r.URL.Query().Get("provider"))
		if err != nil {
			writeErr(w, r, fmt.Errorf("%w: model required", errBadRequest))
			return
		}
		model = p.EmbedModel()
	}
	limit, err := intParam(r, "limit", 10)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	similar, err := s.idx.SimilarNotes(r.Context(), id, model, limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "model": model, "notes": emptyIfNil(similar)})
}

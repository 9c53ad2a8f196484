package web

import (
	"net/http"
	"strings"

	"hashnote/internal/notes"
)

type noteInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	limit, err := intParam(r, "limit", s.cfg.RecentLimit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var tags []string
	for _, raw := range r.URL.Query()["tag"] {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimPrefix(strings.TrimSpace(t), "#"); t != "" {
				tags = append(tags, t)
			}
		}
	}
	list, err := s.notes.List(r.Context(), user.Name, notes.ListOptions{Tags: tags, Limit: limit, Offset: offset})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": emptyIfNil(list)})
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	var in noteInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	n, err := s.notes.Create(r.Context(), user.Name, in.Title, in.Body)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.notifyNoteChanged(r.Context(), user, "created", n.ID)
	w.Header().Set("Location", "/api/notes/"+n.ID)
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	n, err := s.notes.Get(r.Context(), user.Name, r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	var in notes.Update
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	n, err := s.notes.Update(r.Context(), user.Name, r.PathValue("id"), in)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.notifyNoteChanged(r.Context(), user, "updated", n.ID)
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	id := r.PathValue("id")
	if err := s.notes.Delete(r.Context(), user.Name, id); err != nil {
		writeErr(w, r, err)
		return
	}
	s.notifyNoteChanged(r.Context(), user, "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	results, err := s.notes.Search(r.Context(), user.Name, q, limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "results": emptyIfNil(results)})
}

func emptyIfNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

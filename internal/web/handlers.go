package web

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"hashnote/internal/index"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	tag := strings.TrimSpace(r.URL.Query().Get("tag"))

	var (
		recent []index.NoteSummary
		err    error
	)
	if tag != "" {
		recent, err = s.idx.NotesByTags(r.Context(), []string{tag}, s.cfg.RecentLimit, 0)
	} else {
		recent, err = s.idx.RecentNotes(r.Context(), s.cfg.RecentLimit, 0)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	tags, err := s.idx.ListTags(r.Context(), 100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.views.RenderPage(w, ViewData{
		Title:           "Home",
		User:            user.Name,
		ContentTemplate: "home",
		Tag:             tag,
		RecentNotes:     recent,
		Tags:            tags,
	})
}

func (s *Server) handleViewNote(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	n, err := s.notes.Get(r.Context(), user.Name, r.PathValue("id"))
	if errors.Is(err, index.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resolved := map[string]string{}
	if out, err := s.idx.OutgoingLinks(r.Context(), n.ID); err == nil {
		for _, l := range out {
			if l.Kind == index.LinkKindWiki && l.ToID != "" {
				resolved[l.Ref] = l.ToID
			}
		}
	} else {
		slog.Warn("outgoing links", "id", n.ID, "err", err)
	}
	htmlStr, err := renderMarkdown([]byte(n.Content), func(ref string) string { return resolved[ref] })
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	backlinks, err := s.idx.Backlinks(r.Context(), n.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.views.RenderPage(w, ViewData{
		Title:           n.Title,
		User:            user.Name,
		ContentTemplate: "view",
		HighlightCSS:    highlightCSS(),
		Note:            n.Note,
		RenderedHTML:    template.HTML(htmlStr),
		Backlinks:       backlinks,
	})
}

// intParam reads a non-negative integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: invalid %s", errBadRequest, name)
	}
	return v, nil
}

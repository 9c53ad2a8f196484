package web

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"hashnote/internal/hashtag"
)

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if r.URL.Query().Get("order") == "count" {
		stats, err := s.idx.TagStats(r.Context())
		if err != nil {
			writeErr(w, r, err)
			return
		}
		// Most used first; equal counts stay alphabetical.
		sort.SliceStable(stats, func(a, b int) bool { return stats[a].Count > stats[b].Count })
		if limit > 0 && len(stats) > limit {
			stats = stats[:limit]
		}
		writeJSON(w, http.StatusOK, map[string]any{"tags": emptyIfNil(stats)})
		return
	}
	tags, err := s.idx.ListTags(r.Context(), limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": emptyIfNil(tags)})
}

func (s *Server) handleTagNotes(w http.ResponseWriter, r *http.Request) {
	tag := strings.TrimPrefix(strings.TrimSpace(r.PathValue("tag")), "#")
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
	list, err := s.idx.NotesByTags(r.Context(), []string{tag}, limit, offset)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tag": tag, "notes": emptyIfNil(list)})
}

func (s *Server) catalog(r *http.Request) (*hashtag.Catalog, error) {
	stats, err := s.idx.TagStats(r.Context())
	if err != nil {
		return nil, err
	}
	return hashtag.NewCatalog(stats), nil
}

type detectRequest struct {
	Text   string `json:"text"`
	Cursor int    `json:"cursor"`
}

type detectResponse struct {
	Match       *hashtag.Match `json:"match"`
	Query       string         `json:"query"`
	Suggestions []string       `json:"suggestions"`
}

// handleDetect runs detection and ranking in one round trip. Debouncing is
// the client's business; this endpoint answers immediately.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var in detectRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	m := hashtag.Detect(in.Text, in.Cursor)
	out := detectResponse{Match: m, Suggestions: []string{}}
	if m != nil {
		c, err := s.catalog(r)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		out.Query = m.Query()
		out.Suggestions = c.Rank(out.Query)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimPrefix(strings.TrimSpace(r.URL.Query().Get("q")), "#")
	c, err := s.catalog(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "suggestions": c.Rank(q)})
}

type extractRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var in extractRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tags":  emptyIfNil(hashtag.Extract(in.Text)),
		"names": emptyIfNil(hashtag.Names(in.Text)),
	})
}

type applyRequest struct {
	Text  string        `json:"text"`
	Match hashtag.Match `json:"match"`
	Tag   string        `json:"tag"`
}

// handleApply splices an accepted suggestion into the text.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var in applyRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	tag := strings.TrimPrefix(strings.TrimSpace(in.Tag), "#")
	n := len([]rune(in.Text))
	if tag == "" || in.Match.Start < 0 || in.Match.Start > in.Match.End || in.Match.End > n {
		writeErr(w, r, fmt.Errorf("%w: match outside text or empty tag", errBadRequest))
		return
	}
	text, cursor := hashtag.Apply(in.Text, in.Match, tag)
	writeJSON(w, http.StatusOK, map[string]any{"text": text, "cursor": cursor})
}

package web

import "net/http"

// noteExists turns a missing or foreign note id into a 404 before link
// queries, which would otherwise just return empty lists.
func (s *Server) noteExists(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, err := s.idx.NoteByID(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return "", false
	}
	return id, true
}

func (s *Server) handleBacklinks(w http.ResponseWriter, r *http.Request) {
	id, ok := s.noteExists(w, r)
	if !ok {
		return
	}
	links, err := s.idx.Backlinks(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "backlinks": emptyIfNil(links)})
}

func (s *Server) handleOutgoing(w http.ResponseWriter, r *http.Request) {
	id, ok := s.noteExists(w, r)
	if !ok {
		return
	}
	links, err := s.idx.OutgoingLinks(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "links": emptyIfNil(links)})
}

func (s *Server) handleLinkStats(w http.ResponseWriter, r *http.Request) {
	top, err := intParam(r, "top", 10)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	stats, err := s.idx.LinkStats(r.Context(), top)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	stats.MostLinked = emptyIfNil(stats.MostLinked)
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleLinkNetwork(w http.ResponseWriter, r *http.Request) {
	network, err := s.idx.LinkNetwork(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	network.Nodes = emptyIfNil(network.Nodes)
	network.Edges = emptyIfNil(network.Edges)
	writeJSON(w, http.StatusOK, network)
}

func (s *Server) handleUnresolved(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 100)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	links, err := s.idx.UnresolvedLinks(r.Context(), limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"links": emptyIfNil(links)})
}

package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type sseEvent struct {
	Name string
	Data []byte
}

// sseHub fans events out to the open /api/events streams of one owner.
// Slow clients drop events rather than block writers.
type sseHub struct {
	mu      sync.Mutex
	clients map[string]map[chan sseEvent]struct{}
}

func newSSEHub() *sseHub {
	return &sseHub{clients: make(map[string]map[chan sseEvent]struct{})}
}

func (h *sseHub) add(key string) chan sseEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan sseEvent, 8)
	if _, ok := h.clients[key]; !ok {
		h.clients[key] = make(map[chan sseEvent]struct{})
	}
	h.clients[key][ch] = struct{}{}
	return ch
}

func (h *sseHub) remove(key string, ch chan sseEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if chans, ok := h.clients[key]; ok {
		delete(chans, ch)
		if len(chans) == 0 {
			delete(h.clients, key)
		}
	}
	close(ch)
}

func (h *sseHub) listeners(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[key])
}

func (h *sseHub) broadcast(key string, ev sseEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients[key] {
		select {
		case ch <- ev:
		default:
		}
	}
}

type noteEvent struct {
	Op string `json:"op"`
	ID string `json:"id"`
}

// notifyNoteChanged pushes the change and the owner's fresh tag counts, so
// open editors can refresh their autocomplete snapshot.
func (s *Server) notifyNoteChanged(ctx context.Context, user User, op, id string) {
	if s.events.listeners(user.Name) == 0 {
		return
	}
	if data, err := json.Marshal(noteEvent{Op: op, ID: id}); err == nil {
		s.events.broadcast(user.Name, sseEvent{Name: "note", Data: data})
	}
	stats, err := s.idx.TagStats(ctx)
	if err != nil {
		slog.Warn("tag stats for event", "owner", user.Name, "err", err)
		return
	}
	if data, err := json.Marshal(stats); err == nil {
		s.events.broadcast(user.Name, sseEvent{Name: "tags", Data: data})
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch := s.events.add(user.Name)
	defer s.events.remove(user.Name, ch)

	fmt.Fprint(w, "event: ready\ndata: ok\n\n")
	flusher.Flush()

	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

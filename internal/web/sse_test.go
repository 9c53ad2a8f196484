package web

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSSEHubBroadcastsPerKey(t *testing.T) {
	h := newSSEHub()
	a := h.add("alice")
	b := h.add("bob")

	h.broadcast("alice", sseEvent{Name: "note", Data: []byte("1")})
	select {
	case ev := <-a:
		if ev.Name != "note" || string(ev.Data) != "1" {
			t.Fatalf("event = %+v", ev)
		}
	default:
		t.Fatal("alice got nothing")
	}
	select {
	case ev := <-b:
		t.Fatalf("bob got %+v", ev)
	default:
	}

	h.remove("alice", a)
	if h.listeners("alice") != 0 || h.listeners("bob") != 1 {
		t.Fatalf("listeners alice=%d bob=%d", h.listeners("alice"), h.listeners("bob"))
	}
	// Full buffers drop instead of blocking.
	for i := 0; i < 20; i++ {
		h.broadcast("bob", sseEvent{Name: "tags"})
	}
}

func TestEventsStreamTagUpdates(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "alice")
	srv := httptest.NewServer(ts.h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	waitFor := func(prefix string) string {
		t.Helper()
		for lines.Scan() {
			if strings.HasPrefix(lines.Text(), prefix) {
				return lines.Text()
			}
		}
		t.Fatalf("stream ended before %q: %v", prefix, lines.Err())
		return ""
	}
	waitFor("event: ready")

	ts.createNote(t, bearer(token), "Streamed", "#live\n")
	waitFor("event: note")
	waitFor("event: tags")
	data := waitFor("data: ")
	if !strings.Contains(data, `"tag":"live"`) {
		t.Fatalf("tags data = %q", data)
	}
}

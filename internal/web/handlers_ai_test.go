package web

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"hashnote/internal/ai"
)

type fakeProvider struct {
	name  string
	model string
	err   error
}

func (p *fakeProvider) Name() string       { return p.name }
func (p *fakeProvider) EmbedModel() string { return p.model }

// Embed maps text onto a tiny vector so similarity is predictable: the
// number of "a" and "b" runes.
func (p *fakeProvider) Embed(_ context.Context, text string) ([]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []float32{float32(strings.Count(text, "a")), float32(strings.Count(text, "b"))}, nil
}

func (p *fakeProvider) Summarize(_ context.Context, text string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "summary of " + strings.TrimSpace(text), nil
}

func TestEmbedStoresVectorAndFindsSimilar(t *testing.T) {
	ts := newTestServer(t)
	auth := bearer(ts.register(t, "alice"))
	a1 := ts.createNote(t, auth, "A one", "aaaa\n")
	a2 := ts.createNote(t, auth, "A two", "aaa b\n")
	b := ts.createNote(t, auth, "B", "bbbb\n")

	for _, id := range []string{a1.ID, a2.ID, b.ID} {
		rec := ts.do(t, http.MethodPost, "/api/ai/embed", aiRequest{NoteID: id}, auth)
		expectStatus(t, rec, http.StatusOK)
		if !strings.Contains(rec.Body.String(), `"stored":true`) {
			t.Fatalf("embed not stored: %s", rec.Body.String())
		}
	}

	rec := ts.do(t, http.MethodGet, "/api/notes/"+a1.ID+"/similar", nil, auth)
	expectStatus(t, rec, http.StatusOK)
	got := decode[struct {
		Model string `json:"model"`
		Notes []struct {
			ID string `json:"id"`
		} `json:"notes"`
	}](t, rec)
	if got.Model != "fake-embed" || len(got.Notes) != 2 || got.Notes[0].ID != a2.ID {
		t.Fatalf("similar = %+v", got)
	}
}

func TestSummarizeText(t *testing.T) {
	ts := newTestServer(t)
	auth := bearer(ts.register(t, "alice"))
	rec := ts.do(t, http.MethodPost, "/api/ai/summarize", aiRequest{Provider: "ollama", Text: " long text "}, auth)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "summary of long text") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestAIErrorsMapToStatus(t *testing.T) {
	ts := newTestServer(t)
	auth := bearer(ts.register(t, "alice"))

	rec := ts.do(t, http.MethodPost, "/api/ai/summarize", aiRequest{Provider: "openai", Text: "x"}, auth)
	expectStatus(t, rec, http.StatusServiceUnavailable)

	rec = ts.do(t, http.MethodPost, "/api/ai/summarize", aiRequest{Provider: "bard", Text: "x"}, auth)
	expectStatus(t, rec, http.StatusBadRequest)

	ts.srv.ai = ai.NewRegistry(&fakeProvider{
		name: ai.ProviderOpenAI,
		err:  &ai.HTTPError{Provider: ai.ProviderOpenAI, StatusCode: 429, Body: "slow down"},
	})
	rec = ts.do(t, http.MethodPost, "/api/ai/embed", aiRequest{Provider: "openai", Text: "x"}, auth)
	expectStatus(t, rec, http.StatusBadGateway)
	body := decode[apiError](t, rec)
	if body.Upstream != 429 || body.Body != "slow down" || body.Provider != "openai" {
		t.Fatalf("error body = %+v", body)
	}

	rec = ts.do(t, http.MethodPost, "/api/ai/embed", aiRequest{NoteID: "missing"}, auth)
	expectStatus(t, rec, http.StatusNotFound)
}

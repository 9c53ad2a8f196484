package ai

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hashnote/internal/config"
)

func newOpenAI(t *testing.T, h http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewOpenAI(config.OpenAI{
		BaseURL:    srv.URL + "/v1/",
		APIKey:     "sk-test",
		EmbedModel: "embed-small",
		ChatModel:  "chat-mini",
	}, time.Second)
	require.NoError(t, err)
	return c
}

func newOllama(t *testing.T, h http.HandlerFunc) *Ollama {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewOllama(config.Ollama{
		BaseURL:    srv.URL,
		EmbedModel: "nomic",
		ChatModel:  "llama",
	}, time.Second)
	require.NoError(t, err)
	return c
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestOpenAIEmbed(t *testing.T) {
	c := newOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body := decodeBody(t, r)
		assert.Equal(t, "embed-small", body["model"])
		assert.Equal(t, "hello #world", body["input"])
		_, _ = io.WriteString(w, `{"data":[{"embedding":[0.5,-1,2]}]}`)
	})

	vec, err := c.Embed(t.Context(), "hello #world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1, 2}, vec)
	assert.Equal(t, "embed-small", c.EmbedModel())
}

func TestOpenAISummarize(t *testing.T) {
	c := newOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "chat-mini", body["model"])
		msgs, ok := body["messages"].([]any)
		require.True(t, ok)
		require.Len(t, msgs, 2)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"  short  "}}]}`)
	})

	out, err := c.Summarize(t.Context(), "a long note")
	require.NoError(t, err)
	assert.Equal(t, "short", out)
}

func TestOpenAIPassesUpstreamError(t *testing.T) {
	c := newOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":"rate limited"}`)
	})

	_, err := c.Embed(t.Context(), "x")
	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, ProviderOpenAI, he.Provider)
	assert.Equal(t, http.StatusTooManyRequests, he.StatusCode)
	assert.Contains(t, he.Body, "rate limited")
}

func TestOpenAINoRetry(t *testing.T) {
	hits := 0
	c := newOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.Summarize(t.Context(), "x")
	require.Error(t, err)
	assert.Equal(t, 1, hits)
}

func TestOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAI(config.OpenAI{BaseURL: "http://x"}, 0)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestEmptyInputRejected(t *testing.T) {
	c := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream must not be called")
	})
	_, err := c.Embed(t.Context(), "  ")
	assert.ErrorIs(t, err, ErrEmptyInput)
	_, err = c.Summarize(t.Context(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestOllamaEmbed(t *testing.T) {
	c := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		body := decodeBody(t, r)
		assert.Equal(t, "nomic", body["model"])
		_, _ = io.WriteString(w, `{"embeddings":[[1,2,3]]}`)
	})

	vec, err := c.Embed(t.Context(), "note")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

func TestOllamaSummarize(t *testing.T) {
	c := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "llama", body["model"])
		assert.Equal(t, false, body["stream"])
		_, _ = io.WriteString(w, `{"response":"gist\n"}`)
	})

	out, err := c.Summarize(t.Context(), "note body")
	require.NoError(t, err)
	assert.Equal(t, "gist", out)
}

func TestOllamaEmptyEmbedding(t *testing.T) {
	c := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"embeddings":[]}`)
	})
	_, err := c.Embed(t.Context(), "note")
	require.Error(t, err)
	var he *HTTPError
	assert.False(t, errors.As(err, &he))
}

func TestRegistry(t *testing.T) {
	ollama, err := NewOllama(config.Ollama{BaseURL: "http://127.0.0.1:1"}, 0)
	require.NoError(t, err)
	r := NewRegistry(ollama, nil)

	p, err := r.Get("")
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, p.Name())

	p, err = r.Get(" Ollama ")
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, p.Name())

	_, err = r.Get("openai")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = r.Get("bard")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	assert.Equal(t, []string{"ollama"}, r.Names())
}

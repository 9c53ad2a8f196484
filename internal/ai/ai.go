// Package ai wraps the third-party embedding and summarization endpoints the
// app calls on a user's behalf. Each operation is exactly one upstream request:
// nothing is retried, batched or cached, and upstream failures come back as
// *HTTPError so callers can pass the status and body through.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

var (
	ErrUnknownProvider = errors.New("unknown ai provider")
	ErrNotConfigured   = errors.New("ai provider not configured")
	ErrEmptyInput      = errors.New("empty input")
)

const summarizePrompt = "Summarize the following note in a few sentences. Keep hashtags that matter."

// maxErrorBody caps how much of an upstream error body is kept.
const maxErrorBody = 4 << 10

type Provider interface {
	Name() string
	EmbedModel() string
	Embed(ctx context.Context, text string) ([]float32, error)
	Summarize(ctx context.Context, text string) (string, error)
}

type HTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s http %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Registry picks a provider by name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

func (r *Registry) Get(name string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = ProviderOpenAI
		if _, ok := r.providers[name]; !ok {
			name = ProviderOllama
		}
	}
	p, ok := r.providers[name]
	if !ok {
		if name == ProviderOpenAI || name == ProviderOllama {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, name)
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// postJSON sends one request and decodes a 2xx response into out.
func postJSON(ctx context.Context, hc *http.Client, provider, url string, header http.Header, body, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", provider, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s read response: %w", provider, err)
	}
	slog.Debug("ai request", "provider", provider, "url", url, "status", resp.StatusCode, "dur", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return &HTTPError{Provider: provider, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s decode response: %w", provider, err)
	}
	return nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

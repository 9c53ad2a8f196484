package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hashnote/internal/config"
)

type Ollama struct {
	baseURL    string
	embedModel string
	chatModel  string
	http       *http.Client
}

func NewOllama(cfg config.Ollama, timeout time.Duration) (*Ollama, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: missing Ollama base url", ErrNotConfigured)
	}
	return &Ollama{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		embedModel: cfg.EmbedModel,
		chatModel:  cfg.ChatModel,
		http:       newHTTPClient(timeout),
	}, nil
}

func (c *Ollama) Name() string       { return ProviderOllama }
func (c *Ollama) EmbedModel() string { return c.embedModel }

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func (c *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	var resp ollamaEmbedResponse
	req := ollamaEmbedRequest{Model: c.embedModel, Input: text}
	if err := postJSON(ctx, c.http, ProviderOllama, c.baseURL+"/api/embed", nil, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama: empty embedding")
	}
	return toFloat32(resp.Embeddings[0]), nil
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func (c *Ollama) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}
	req := ollamaGenerateRequest{Model: c.chatModel, System: summarizePrompt, Prompt: text}
	var resp ollamaGenerateResponse
	if err := postJSON(ctx, c.http, ProviderOllama, c.baseURL+"/api/generate", nil, req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Response), nil
}

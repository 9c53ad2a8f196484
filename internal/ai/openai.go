package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hashnote/internal/config"
)

type OpenAI struct {
	baseURL    string
	apiKey     string
	embedModel string
	chatModel  string
	http       *http.Client
}

func NewOpenAI(cfg config.OpenAI, timeout time.Duration) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: missing OpenAI api key", ErrNotConfigured)
	}
	return &OpenAI{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		embedModel: cfg.EmbedModel,
		chatModel:  cfg.ChatModel,
		http:       newHTTPClient(timeout),
	}, nil
}

func (c *OpenAI) Name() string       { return ProviderOpenAI }
func (c *OpenAI) EmbedModel() string { return c.embedModel }

func (c *OpenAI) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.apiKey)
	return h
}

type openAIEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (c *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	var resp openAIEmbedResponse
	req := openAIEmbedRequest{Model: c.embedModel, Input: text}
	if err := postJSON(ctx, c.http, ProviderOpenAI, c.baseURL+"/embeddings", c.header(), req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai: empty embedding")
	}
	return toFloat32(resp.Data[0].Embedding), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *OpenAI) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}
	req := openAIChatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: summarizePrompt},
			{Role: "user", Content: text},
		},
	}
	var resp openAIChatResponse
	if err := postJSON(ctx, c.http, ProviderOpenAI, c.baseURL+"/chat/completions", c.header(), req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

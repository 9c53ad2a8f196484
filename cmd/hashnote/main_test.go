package main

import (
	"errors"
	"testing"

	"hashnote/internal/ai"
	"hashnote/internal/config"
)

func TestBuildAISkipsUnconfiguredOpenAI(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAI.APIKey = ""
	reg := buildAI(cfg)

	if _, err := reg.Get(ai.ProviderOpenAI); !errors.Is(err, ai.ErrNotConfigured) {
		t.Fatalf("openai err = %v", err)
	}
	p, err := reg.Get("")
	if err != nil {
		t.Fatalf("default provider: %v", err)
	}
	if p.Name() != ai.ProviderOllama {
		t.Fatalf("default provider = %s", p.Name())
	}
}

func TestBuildAIWithKey(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAI.APIKey = "sk-test"
	reg := buildAI(cfg)
	names := reg.Names()
	if len(names) != 2 || names[0] != ai.ProviderOllama || names[1] != ai.ProviderOpenAI {
		t.Fatalf("names = %v", names)
	}
}

package config

import (
	"fmt"
	"time"
)

// fileConfig mirrors Config with string durations so the TOML file stays
// readable. Empty fields leave the current value alone.
type fileConfig struct {
	RepoPath      string `toml:"repo_path"`
	DataPath      string `toml:"data_path"`
	ListenAddr    string `toml:"listen_addr"`
	AuthUser      string `toml:"auth_user"`
	AuthPass      string `toml:"auth_pass"`
	AuthFile      string `toml:"auth_file"`
	JWTSecret     string `toml:"jwt_secret"`
	TokenTTL      string `toml:"token_ttl"`
	DBBusyTimeout string `toml:"db_busy_timeout"`
	DBLockTimeout string `toml:"db_lock_timeout"`
	Rescan        string `toml:"rescan_interval"`
	Debounce      string `toml:"debounce"`
	RecentLimit   int    `toml:"recent_limit"`
	LogLevel      string `toml:"log_level"`
	LogPretty     *bool  `toml:"log_pretty"`
	AITimeout     string `toml:"ai_timeout"`
	OpenAI        OpenAI `toml:"openai"`
	Ollama        Ollama `toml:"ollama"`
}

func (f fileConfig) apply(cfg *Config) error {
	setString(&cfg.RepoPath, f.RepoPath)
	setString(&cfg.DataPath, f.DataPath)
	setString(&cfg.ListenAddr, f.ListenAddr)
	setString(&cfg.AuthUser, f.AuthUser)
	setString(&cfg.AuthPass, f.AuthPass)
	setString(&cfg.AuthFile, f.AuthFile)
	setString(&cfg.JWTSecret, f.JWTSecret)
	setString(&cfg.LogLevel, f.LogLevel)
	if f.RecentLimit > 0 {
		cfg.RecentLimit = f.RecentLimit
	}
	if f.LogPretty != nil {
		cfg.LogPretty = *f.LogPretty
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"token_ttl", f.TokenTTL, &cfg.TokenTTL},
		{"db_busy_timeout", f.DBBusyTimeout, &cfg.DBBusyTimeout},
		{"db_lock_timeout", f.DBLockTimeout, &cfg.DBLockTimeout},
		{"rescan_interval", f.Rescan, &cfg.RescanInterval},
		{"debounce", f.Debounce, &cfg.Debounce},
		{"ai_timeout", f.AITimeout, &cfg.AITimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config %s: %w", d.name, err)
		}
		*d.dst = v
	}

	setString(&cfg.OpenAI.BaseURL, f.OpenAI.BaseURL)
	setString(&cfg.OpenAI.APIKey, f.OpenAI.APIKey)
	setString(&cfg.OpenAI.EmbedModel, f.OpenAI.EmbedModel)
	setString(&cfg.OpenAI.ChatModel, f.OpenAI.ChatModel)
	setString(&cfg.Ollama.BaseURL, f.Ollama.BaseURL)
	setString(&cfg.Ollama.EmbedModel, f.Ollama.EmbedModel)
	setString(&cfg.Ollama.ChatModel, f.Ollama.ChatModel)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RepoPath   string
	DataPath   string
	ListenAddr string

	AuthUser string
	AuthPass string
	AuthFile string

	JWTSecret string
	TokenTTL  time.Duration
	// EphemeralSecret is set when no secret was configured and one was
	// generated for this process only.
	EphemeralSecret bool

	DBBusyTimeout time.Duration
	DBLockTimeout time.Duration

	// RescanInterval re-reads the repository for notes edited outside the
	// app. Zero disables it.
	RescanInterval time.Duration

	Debounce    time.Duration
	RecentLimit int

	LogLevel  string
	LogPretty bool

	AITimeout time.Duration
	OpenAI    OpenAI
	Ollama    Ollama
}

type OpenAI struct {
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	EmbedModel string `toml:"embed_model"`
	ChatModel  string `toml:"chat_model"`
}

type Ollama struct {
	BaseURL    string `toml:"base_url"`
	EmbedModel string `toml:"embed_model"`
	ChatModel  string `toml:"chat_model"`
}

func Default() Config {
	return Config{
		ListenAddr:     "127.0.0.1:8080",
		TokenTTL:       24 * time.Hour,
		DBBusyTimeout:  10 * time.Second,
		DBLockTimeout:  5 * time.Second,
		RescanInterval: 5 * time.Minute,
		Debounce:       200 * time.Millisecond,
		RecentLimit:    50,
		LogLevel:       "info",
		AITimeout:      60 * time.Second,
		OpenAI: OpenAI{
			BaseURL:    "https://api.openai.com/v1",
			EmbedModel: "text-embedding-3-small",
			ChatModel:  "gpt-4o-mini",
		},
		Ollama: Ollama{
			BaseURL:    "http://127.0.0.1:11434",
			EmbedModel: "nomic-embed-text",
			ChatModel:  "llama3.2",
		},
	}
}

// Load builds the configuration from defaults, then the TOML file named by
// HASHNOTE_CONFIG, then HASHNOTE_* environment variables (a .env file in the
// working directory counts as environment).
func Load() (Config, error) {
	_ = loadEnvFile()

	cfg := Default()
	if path := os.Getenv("HASHNOTE_CONFIG"); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)

	if cfg.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return cfg, err
		}
		cfg.JWTSecret = secret
		cfg.EphemeralSecret = true
	}
	return cfg, nil
}

// LoadFile decodes a TOML file over cfg. Durations are written as strings
// ("30s", "24h").
func LoadFile(path string, cfg *Config) error {
	var raw fileConfig
	md, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return raw.apply(cfg)
}

// ResolveDataPath returns the absolute data directory: DataPath, or .hashnote
// inside the repository when it is unset.
func (c Config) ResolveDataPath() (string, error) {
	dataPath := strings.TrimSpace(c.DataPath)
	if dataPath == "" && c.RepoPath != "" {
		dataPath = filepath.Join(c.RepoPath, ".hashnote")
	}
	if dataPath == "" {
		return "", fmt.Errorf("data path is required")
	}
	return filepath.Abs(dataPath)
}

func applyEnv(cfg *Config) {
	cfg.RepoPath = envOr("HASHNOTE_REPO_PATH", cfg.RepoPath)
	cfg.DataPath = envOr("HASHNOTE_DATA_PATH", cfg.DataPath)
	cfg.ListenAddr = envOr("HASHNOTE_LISTEN_ADDR", cfg.ListenAddr)
	cfg.AuthUser = envOr("HASHNOTE_AUTH_USER", cfg.AuthUser)
	cfg.AuthPass = envOr("HASHNOTE_AUTH_PASS", cfg.AuthPass)
	cfg.AuthFile = envOr("HASHNOTE_AUTH_FILE", cfg.AuthFile)
	cfg.JWTSecret = envOr("HASHNOTE_JWT_SECRET", cfg.JWTSecret)
	cfg.TokenTTL = parseDurationOr("HASHNOTE_TOKEN_TTL", cfg.TokenTTL)
	cfg.DBBusyTimeout = parseDurationOr("HASHNOTE_DB_BUSY_TIMEOUT", cfg.DBBusyTimeout)
	cfg.DBLockTimeout = parseDurationOr("HASHNOTE_DB_LOCK_TIMEOUT", cfg.DBLockTimeout)
	cfg.RescanInterval = parseDurationOr("HASHNOTE_RESCAN_INTERVAL", cfg.RescanInterval)
	cfg.Debounce = parseDurationOr("HASHNOTE_DEBOUNCE", cfg.Debounce)
	cfg.RecentLimit = parseIntOr("HASHNOTE_RECENT_LIMIT", cfg.RecentLimit)
	cfg.LogLevel = envOr("HASHNOTE_LOG_LEVEL", cfg.LogLevel)
	cfg.LogPretty = parseBoolOr("HASHNOTE_LOG_PRETTY", cfg.LogPretty)
	cfg.AITimeout = parseDurationOr("HASHNOTE_AI_TIMEOUT", cfg.AITimeout)

	cfg.OpenAI.BaseURL = envOr("HASHNOTE_OPENAI_BASE_URL", cfg.OpenAI.BaseURL)
	cfg.OpenAI.APIKey = envOr("OPENAI_API_KEY", cfg.OpenAI.APIKey)
	cfg.OpenAI.APIKey = envOr("HASHNOTE_OPENAI_API_KEY", cfg.OpenAI.APIKey)
	cfg.OpenAI.EmbedModel = envOr("HASHNOTE_OPENAI_EMBED_MODEL", cfg.OpenAI.EmbedModel)
	cfg.OpenAI.ChatModel = envOr("HASHNOTE_OPENAI_CHAT_MODEL", cfg.OpenAI.ChatModel)
	cfg.Ollama.BaseURL = envOr("HASHNOTE_OLLAMA_BASE_URL", cfg.Ollama.BaseURL)
	cfg.Ollama.EmbedModel = envOr("HASHNOTE_OLLAMA_EMBED_MODEL", cfg.Ollama.EmbedModel)
	cfg.Ollama.ChatModel = envOr("HASHNOTE_OLLAMA_CHAT_MODEL", cfg.Ollama.ChatModel)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func parseIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}

func parseBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

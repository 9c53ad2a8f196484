package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"hashnote/internal/ai"
	"hashnote/internal/config"
	"hashnote/internal/index"
	"hashnote/internal/logging"
	"hashnote/internal/web"
)

// BuildVersion is set with -ldflags "-X main.BuildVersion=...".
var BuildVersion = ""

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	logging.Setup(os.Stdout, cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		return err
	}

	version := strings.TrimSpace(BuildVersion)
	if version == "" {
		version = "dev"
	}
	slog.Info("startup", "build_version", version)
	index.SetBuildVersion(BuildVersion)

	if cfg.RepoPath == "" {
		return errors.New("HASHNOTE_REPO_PATH is required")
	}
	if cfg.EphemeralSecret {
		slog.Warn("HASHNOTE_JWT_SECRET not set, tokens will not survive a restart")
	}
	dataPath, err := cfg.ResolveDataPath()
	if err != nil {
		return fmt.Errorf("resolve data path: %w", err)
	}
	cfg.DataPath = dataPath
	if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if cfg.AuthFile == "" {
		// hashnote-user writes here by default.
		if p := filepath.Join(cfg.DataPath, "auth.txt"); fileExists(p) {
			cfg.AuthFile = p
		}
	}

	idx, err := index.OpenWithOptions(filepath.Join(cfg.DataPath, "index.sqlite"), index.OpenOptions{
		BusyTimeout: cfg.DBBusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer idx.Close()
	idx.SetLockTimeout(cfg.DBLockTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = idx.Init(initCtx, cfg.RepoPath)
	cancel()
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}

	srv, err := web.NewServer(cfg, idx, web.WithAI(buildAI(cfg)))
	if err != nil {
		return fmt.Errorf("auth init: %w", err)
	}
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "addr", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		runRescan(gctx, cfg, idx)
		return nil
	})
	return g.Wait()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// buildAI registers every provider the configuration allows. A provider
// without credentials is left out and requests for it get 503.
func buildAI(cfg config.Config) *ai.Registry {
	var providers []ai.Provider
	if p, err := ai.NewOpenAI(cfg.OpenAI, cfg.AITimeout); err == nil {
		providers = append(providers, p)
	} else {
		slog.Info("ai provider disabled", "provider", ai.ProviderOpenAI, "reason", err)
	}
	if p, err := ai.NewOllama(cfg.Ollama, cfg.AITimeout); err == nil {
		providers = append(providers, p)
	} else {
		slog.Info("ai provider disabled", "provider", ai.ProviderOllama, "reason", err)
	}
	return ai.NewRegistry(providers...)
}

// runRescan picks up notes edited outside the app until ctx is done.
func runRescan(ctx context.Context, cfg config.Config, idx *index.Index) {
	if cfg.RescanInterval <= 0 {
		slog.Info("rescan disabled")
		return
	}
	ticker := time.NewTicker(cfg.RescanInterval)
	defer ticker.Stop()
	slog.Info("rescan enabled", "interval", cfg.RescanInterval.String())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := idx.RecheckFromFS(ctx, cfg.RepoPath)
			if err != nil {
				slog.Warn("rescan failed", "err", err)
				continue
			}
			if changed > 0 {
				slog.Info("rescan", "changed", changed)
			}
		}
	}
}

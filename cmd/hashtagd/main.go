// Command hashtagd serves hashtag autocomplete to an editor plugin over
// stdin/stdout using msgpack frames.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hashnote/internal/config"
	"hashnote/internal/hashtag"
	"hashnote/internal/index"
	"hashnote/internal/ipc"
	"hashnote/internal/logging"
	"hashnote/internal/notes"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		owner    string
		debounce time.Duration
		debug    bool
	)
	cmd := &cobra.Command{
		Use:   "hashtagd",
		Short: "Hashtag autocomplete over msgpack stdio",
		Long: "hashtagd reads msgpack request frames on stdin and writes responses on stdout.\n" +
			"With --owner the tag list is seeded from that user's notes; otherwise the\n" +
			"client sends it with a tags request.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if debug {
				level = "debug"
			}
			// stdout carries frames; logs go to stderr.
			logging.Setup(os.Stderr, level, cfg.LogPretty)

			if !cmd.Flags().Changed("debounce") {
				debounce = cfg.Debounce
			}
			opts := []ipc.Option{ipc.WithDebounce(debounce)}
			if owner != "" {
				tags, err := loadTags(cmd.Context(), cfg, owner)
				if err != nil {
					return err
				}
				slog.Debug("seeded tags", "owner", owner, "count", len(tags))
				opts = append(opts, ipc.WithTags(tags))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return ipc.NewServer(os.Stdin, os.Stdout, opts...).Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "seed tags from this user's notes")
	cmd.Flags().DurationVar(&debounce, "debounce", hashtag.DefaultDebounce, "query debounce interval")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "debug logging on stderr")
	return cmd
}

func loadTags(ctx context.Context, cfg config.Config, owner string) ([]hashtag.TagStat, error) {
	if cfg.RepoPath == "" {
		return nil, fmt.Errorf("--owner needs HASHNOTE_REPO_PATH")
	}
	dataPath, err := cfg.ResolveDataPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	idx, err := index.OpenWithOptions(filepath.Join(dataPath, "index.sqlite"), index.OpenOptions{
		BusyTimeout: cfg.DBBusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer idx.Close()
	idx.SetLockTimeout(cfg.DBLockTimeout)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := idx.Init(ctx, cfg.RepoPath); err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	return notes.NewService(cfg.RepoPath, idx).TagStats(ctx, owner)
}

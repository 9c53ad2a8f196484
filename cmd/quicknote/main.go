// Command quicknote captures a one-line note with hashtag suggestions and
// saves it into the notes repository.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"hashnote/internal/config"
	"hashnote/internal/hashtag"
	"hashnote/internal/index"
	"hashnote/internal/logging"
	"hashnote/internal/notes"
	storagefs "hashnote/internal/storage/fs"
	"hashnote/internal/tui"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var owner, logFile string
	cmd := &cobra.Command{
		Use:           "quicknote",
		Short:         "Capture a note from the terminal",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// The terminal belongs to the editor, so logs only go to a file.
			var logOut io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				logOut = f
			}
			logging.Setup(logOut, cfg.LogLevel, false)

			if owner == "" {
				owner = os.Getenv("USER")
			}
			if !index.ValidUserName(owner) {
				return fmt.Errorf("invalid owner %q, pass --owner", owner)
			}
			if cfg.RepoPath == "" {
				return fmt.Errorf("HASHNOTE_REPO_PATH is required")
			}
			dataPath, err := cfg.ResolveDataPath()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dataPath, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			idx, err := index.OpenWithOptions(filepath.Join(dataPath, "index.sqlite"), index.OpenOptions{
				BusyTimeout: cfg.DBBusyTimeout,
			})
			if err != nil {
				return fmt.Errorf("open index: %w", err)
			}
			defer idx.Close()
			idx.SetLockTimeout(cfg.DBLockTimeout)

			initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err = idx.Init(initCtx, cfg.RepoPath)
			cancel()
			if err != nil {
				return fmt.Errorf("init index: %w", err)
			}

			svc := notes.NewService(cfg.RepoPath, idx, notes.WithLockTimeout(cfg.DBLockTimeout))
			model := tui.NewModel(svc, owner, tui.WithSessionOptions(hashtag.WithDebounce(cfg.Debounce)))
			final, err := tea.NewProgram(model).Run()
			if err != nil {
				return err
			}
			root, err := storagefs.OwnerNotesRoot(cfg.RepoPath, owner)
			if err != nil {
				return err
			}
			if m, ok := final.(tui.Model); ok {
				for _, n := range m.Saved() {
					fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(root, n.Path))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&owner, "owner", "u", "", "note owner (default $USER)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "append logs to this file")
	return cmd
}

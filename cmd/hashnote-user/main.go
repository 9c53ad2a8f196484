package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"hashnote/internal/auth"
	"hashnote/internal/config"
	"hashnote/internal/index"
)

const (
	authFileName    = "auth.txt"
	apiKeysFileName = "api-keys.txt"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hashnote-user",
		Short:         "Manage hashnote accounts and API keys",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(listCmd(), addCmd(), removeCmd(), keyCmd(), initCmd())
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users in the auth file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dataDir, authPath, err := paths()
			if err != nil {
				return err
			}
			users, err := owners(authPath)
			if err != nil {
				return err
			}
			keyOwners, err := owners(filepath.Join(dataDir, apiKeysFileName))
			if err != nil {
				return err
			}
			hasKey := map[string]bool{}
			for _, o := range keyOwners {
				hasKey[o] = true
			}
			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "no users")
				return nil
			}
			for _, u := range users {
				if hasKey[u] {
					fmt.Fprintf(out, "%s\t(api key)\n", u)
				} else {
					fmt.Fprintln(out, u)
				}
			}
			return nil
		},
	}
}

func addCmd() *cobra.Command {
	var fromStdin, yes bool
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Add a user or reset their password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := checkName(args[0])
			if err != nil {
				return err
			}
			_, authPath, err := paths()
			if err != nil {
				return err
			}
			existing, err := owners(authPath)
			if err != nil {
				return err
			}
			if contains(existing, user) && !yes {
				ok, err := promptYesNo(fmt.Sprintf("User %q exists. Update password? [y/N]: ", user))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.ErrOrStderr(), "no changes made")
					return nil
				}
			}

			var password string
			if fromStdin {
				password, err = readLine(cmd.InOrStdin())
			} else {
				password, err = promptNewPassword()
			}
			if err != nil {
				return err
			}
			if err := auth.ValidatePassword(password); err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			if err := upsertLine(authPath, user, user+":"+hash); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "updated %s\n", authPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "password-stdin", false, "read the password from the first line of stdin")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "replace an existing password without asking")
	return cmd
}

func removeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "remove <username>",
		Short: "Remove a user and their API keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := checkName(args[0])
			if err != nil {
				return err
			}
			dataDir, authPath, err := paths()
			if err != nil {
				return err
			}
			existing, err := owners(authPath)
			if err != nil {
				return err
			}
			if !contains(existing, user) {
				return fmt.Errorf("user %q not found", user)
			}
			if !yes {
				ok, err := promptYesNo(fmt.Sprintf("Remove user %q? [y/N]: ", user))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.ErrOrStderr(), "no changes made")
					return nil
				}
			}
			if _, err := removeOwner(authPath, user); err != nil {
				return err
			}
			keys, err := removeOwner(filepath.Join(dataDir, apiKeysFileName), user)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "updated %s (%d api keys revoked)\n", authPath, keys)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func keyCmd() *cobra.Command {
	var expires string
	cmd := &cobra.Command{
		Use:   "key <username>",
		Short: "Issue an API key for editor integrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := checkName(args[0])
			if err != nil {
				return err
			}
			line, key, err := newKeyLine(user, expires, time.Now())
			if err != nil {
				return err
			}
			dataDir, _, err := paths()
			if err != nil {
				return err
			}
			path := filepath.Join(dataDir, apiKeysFileName)
			if err := appendLine(path, line); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			fmt.Fprintf(cmd.ErrOrStderr(), "updated %s; the key is not shown again\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&expires, "expires", "", "last valid day, YYYY-MM-DD")
	return cmd
}

func initCmd() *cobra.Command {
	var repo string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a .env with a repo path and a fresh JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			created, err := config.WriteEnvFile(".", repo)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintln(cmd.ErrOrStderr(), ".env exists, left alone")
				return nil
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "wrote .env")
			return nil
		},
	}
	cmd.Flags().StringVar(&repo, "repo", ".", "notes repository path")
	return cmd
}

// paths returns the data directory and the auth file, following the same
// defaults as the server.
func paths() (string, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", "", err
	}
	dataDir := strings.TrimSpace(cfg.DataPath)
	if dataDir == "" {
		repo := cfg.RepoPath
		if repo == "" {
			if repo, err = os.Getwd(); err != nil {
				return "", "", fmt.Errorf("get working directory: %w", err)
			}
		}
		dataDir = filepath.Join(repo, ".hashnote")
	}
	authPath := cfg.AuthFile
	if authPath == "" {
		authPath = filepath.Join(dataDir, authFileName)
	}
	return dataDir, authPath, nil
}

func checkName(raw string) (string, error) {
	user := strings.TrimSpace(raw)
	if !index.ValidUserName(user) {
		return "", fmt.Errorf("invalid username %q", raw)
	}
	return user, nil
}

// newKeyLine returns an api-keys.txt line and the key it holds.
func newKeyLine(user, expires string, now time.Time) (string, string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate key: %w", err)
	}
	key := "hn_" + base64.RawURLEncoding.EncodeToString(buf)
	line := user + ":" + key
	if expires = strings.TrimSpace(expires); expires != "" {
		day, err := time.Parse("2006-01-02", expires)
		if err != nil {
			return "", "", fmt.Errorf("expires: %w", err)
		}
		if day.Before(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)) {
			return "", "", errors.New("expires is in the past")
		}
		line += ":" + expires
	}
	return line, key, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func promptNewPassword() (string, error) {
	password, err := promptPassword("Password: ")
	if err != nil {
		return "", err
	}
	confirm, err := promptPassword("Confirm: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

func promptPassword(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("stdin is not a terminal, use --password-stdin")
	}
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(pass)), nil
}

func promptYesNo(prompt string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errors.New("stdin is not a terminal, use --yes")
	}
	fmt.Fprint(os.Stderr, prompt)
	answer, err := readLine(os.Stdin)
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

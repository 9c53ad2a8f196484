package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

const envFileName = ".env"

// WriteEnvFile creates a .env file in dir with a repo path and a fresh JWT
// secret. An existing file is left alone and reported as not created.
func WriteEnvFile(dir, repoPath string) (bool, error) {
	path := envFileName
	if dir != "" {
		path = dir + string(os.PathSeparator) + envFileName
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	secret, err := randomSecret()
	if err != nil {
		return false, err
	}
	if repoPath == "" {
		repoPath = "."
	}
	content := []string{
		"HASHNOTE_REPO_PATH=" + repoPath,
		"HASHNOTE_JWT_SECRET=" + secret,
		"",
	}
	if err := os.WriteFile(path, []byte(strings.Join(content, "\n")), 0o600); err != nil {
		return false, err
	}
	return true, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawStdEncoding.EncodeToString(buf), nil
}

func loadEnvFile() error {
	data, err := os.ReadFile(envFileName)
	if err != nil {
		return err
	}
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		val = strings.Trim(val, "\"")
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
	return nil
}

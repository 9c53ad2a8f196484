package web

import (
	"bufio"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hashnote/internal/index"
)

// apiKeysFile lives in the data directory. Each line is
// "owner:key[:YYYY-MM-DD]"; editor plugins send the key as X-API-Key.
const apiKeysFile = "api-keys.txt"

type apiKeyEntry struct {
	Owner  string
	Expiry time.Time
}

type apiKeys map[[sha256.Size]byte]apiKeyEntry

func loadAPIKeys(dataPath string) (apiKeys, error) {
	keys := apiKeys{}
	if strings.TrimSpace(dataPath) == "" {
		return keys, nil
	}
	file, err := os.Open(filepath.Join(dataPath, apiKeysFile))
	if err != nil {
		if os.IsNotExist(err) {
			return keys, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		parts := strings.Split(raw, ":")
		if len(parts) != 2 && len(parts) != 3 {
			return nil, fmt.Errorf("api keys: invalid format at line %d", lineNo)
		}
		owner := strings.TrimSpace(parts[0])
		key := strings.TrimSpace(parts[1])
		if !index.ValidUserName(owner) || key == "" {
			return nil, fmt.Errorf("api keys: invalid format at line %d", lineNo)
		}
		entry := apiKeyEntry{Owner: owner}
		if len(parts) == 3 {
			expiry, err := time.Parse("2006-01-02", strings.TrimSpace(parts[2]))
			if err != nil {
				return nil, fmt.Errorf("api keys: invalid expiry at line %d", lineNo)
			}
			entry.Expiry = expiry
		}
		sum := sha256.Sum256([]byte(key))
		if _, exists := keys[sum]; exists {
			return nil, fmt.Errorf("api keys: duplicate key at line %d", lineNo)
		}
		keys[sum] = entry
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// lookup finds the entry for key. Keys are compared by digest so the map
// never holds the secrets themselves.
func (k apiKeys) lookup(key string, now time.Time) (apiKeyEntry, bool) {
	if key == "" {
		return apiKeyEntry{}, false
	}
	sum := sha256.Sum256([]byte(key))
	for stored, entry := range k {
		if subtle.ConstantTimeCompare(stored[:], sum[:]) == 1 {
			if apiKeyExpired(entry, now) {
				return apiKeyEntry{}, false
			}
			return entry, true
		}
	}
	return apiKeyEntry{}, false
}

// apiKeyExpired compares calendar days: a key is valid through its expiry
// date.
func apiKeyExpired(entry apiKeyEntry, now time.Time) bool {
	if entry.Expiry.IsZero() {
		return false
	}
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	expiry := time.Date(entry.Expiry.Year(), entry.Expiry.Month(), entry.Expiry.Day(), 0, 0, 0, 0, loc)
	return expiry.Before(today)
}

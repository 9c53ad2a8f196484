package index

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

var buildVersion string

// SetBuildVersion mixes version into every content hash, so a new build
// re-indexes notes whose parsing may have changed.
func SetBuildVersion(version string) {
	buildVersion = strings.TrimSpace(version)
}

func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	if buildVersion == "" {
		return hash
	}
	return "v=" + buildVersion + ";" + hash
}

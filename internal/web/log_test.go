package web

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hashnote/internal/logging"
)

// Tests log at debug unless HASHNOTE_LOG_LEVEL says otherwise. LOG_FILE
// sends the output to a file instead of stdout.
func TestMain(m *testing.M) {
	level := "debug"
	if raw := strings.TrimSpace(os.Getenv("HASHNOTE_LOG_LEVEL")); raw != "" {
		level = raw
	}
	logging.Setup(testLogWriter(), level, false)
	slog.Debug("test logger active", "log_file", os.Getenv("LOG_FILE"))
	os.Exit(m.Run())
}

func testLogWriter() io.Writer {
	path := strings.TrimSpace(os.Getenv("LOG_FILE"))
	if path == "" {
		return os.Stdout
	}
	if dir := filepath.Dir(path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return os.Stdout
	}
	return file
}

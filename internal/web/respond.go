package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"hashnote/internal/ai"
	"hashnote/internal/auth"
	"hashnote/internal/index"
	"hashnote/internal/notes"
	storagefs "hashnote/internal/storage/fs"
)

const maxBodyBytes = 4 << 20

var errBadRequest = errors.New("bad request")

type apiError struct {
	Error    string `json:"error"`
	Provider string `json:"provider,omitempty"`
	Upstream int    `json:"upstream_status,omitempty"`
	Body     string `json:"upstream_body,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write json", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}

// writeErr maps domain errors onto status codes. Anything unknown is a 500
// and gets logged.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var he *ai.HTTPError
	switch {
	case errors.As(err, &he):
		writeJSON(w, http.StatusBadGateway, apiError{
			Error:    "upstream request failed",
			Provider: he.Provider,
			Upstream: he.StatusCode,
			Body:     he.Body,
		})
	case errors.Is(err, index.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, index.ErrUserExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, errBadRequest),
		errors.Is(err, notes.ErrInvalidTitle),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, storagefs.ErrUnsafePath),
		errors.Is(err, ai.ErrEmptyInput),
		errors.Is(err, ai.ErrUnknownProvider):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ai.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

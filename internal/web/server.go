package web

import (
	"log/slog"
	"net/http"
	"time"

	"hashnote/internal/ai"
	"hashnote/internal/auth"
	"hashnote/internal/config"
	"hashnote/internal/index"
	"hashnote/internal/notes"
)

type Server struct {
	cfg    config.Config
	idx    *index.Index
	notes  *notes.Service
	tokens *auth.Tokens
	ai     *ai.Registry
	mux    *http.ServeMux
	views  *Templates
	auth   *Auth
	events *sseHub
}

type Option func(*Server)

// WithAI enables the /api/ai endpoints with the given providers.
func WithAI(reg *ai.Registry) Option {
	return func(s *Server) { s.ai = reg }
}

func NewServer(cfg config.Config, idx *index.Index, opts ...Option) (*Server, error) {
	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	a, err := newAuth(cfg, idx, tokens)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:    cfg,
		idx:    idx,
		notes:  notes.NewService(cfg.RepoPath, idx, notes.WithLockTimeout(cfg.DBLockTimeout)),
		tokens: tokens,
		ai:     ai.NewRegistry(),
		mux:    http.NewServeMux(),
		views:  MustParseTemplates(),
		auth:   a,
		events: newSSEHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return logRequests(s.auth.Middleware(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/users", s.handleRegister)
	s.mux.HandleFunc("GET /api/users/me", s.handleMe)
	s.mux.HandleFunc("PUT /api/users/me/password", s.handleChangePassword)
	s.mux.HandleFunc("DELETE /api/users/me", s.handleDeleteAccount)

	s.mux.HandleFunc("GET /api/notes", s.handleListNotes)
	s.mux.HandleFunc("POST /api/notes", s.handleCreateNote)
	s.mux.HandleFunc("GET /api/notes/{id}", s.handleGetNote)
	s.mux.HandleFunc("PUT /api/notes/{id}", s.handleUpdateNote)
	s.mux.HandleFunc("DELETE /api/notes/{id}", s.handleDeleteNote)
	s.mux.HandleFunc("GET /api/notes/{id}/backlinks", s.handleBacklinks)
	s.mux.HandleFunc("GET /api/notes/{id}/outgoing", s.handleOutgoing)
	s.mux.HandleFunc("GET /api/notes/{id}/similar", s.handleSimilar)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)

	s.mux.HandleFunc("GET /api/tags", s.handleTags)
	s.mux.HandleFunc("GET /api/tags/{tag}/notes", s.handleTagNotes)
	s.mux.HandleFunc("POST /api/hashtags/detect", s.handleDetect)
	s.mux.HandleFunc("GET /api/hashtags/suggest", s.handleSuggest)
	s.mux.HandleFunc("POST /api/hashtags/extract", s.handleExtract)
	s.mux.HandleFunc("POST /api/hashtags/apply", s.handleApply)

	s.mux.HandleFunc("GET /api/links/stats", s.handleLinkStats)
	s.mux.HandleFunc("GET /api/links/network", s.handleLinkNetwork)
	s.mux.HandleFunc("GET /api/links/unresolved", s.handleUnresolved)

	s.mux.HandleFunc("POST /api/ai/embed", s.handleEmbed)
	s.mux.HandleFunc("POST /api/ai/summarize", s.handleSummarize)

	s.mux.HandleFunc("GET /api/events", s.handleEvents)

	s.mux.HandleFunc("GET /notes/{id}", s.handleViewNote)
	s.mux.HandleFunc("GET /{$}", s.handleHome)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http", "method", r.Method, "path", r.URL.Path, "status", rec.status, "dur", time.Since(start))
	})
}

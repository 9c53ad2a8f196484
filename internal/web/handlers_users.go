package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hashnote/internal/auth"
	"hashnote/internal/index"
)

type credentials struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

func (s *Server) issue(w http.ResponseWriter, r *http.Request, status int, user User) {
	token, exp, err := s.tokens.Issue(user.ID, user.Name)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, status, tokenResponse{Token: token, ExpiresAt: exp, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	user, err := s.auth.Verify(r.Context(), strings.TrimSpace(in.Name), in.Password)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.issue(w, r, http.StatusOK, user)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	name := strings.TrimSpace(in.Name)
	if !index.ValidUserName(name) {
		writeErr(w, r, fmt.Errorf("%w: user name must match [a-z0-9][a-z0-9_.-]*", errBadRequest))
		return
	}
	if s.auth.isStatic(name) {
		writeErr(w, r, index.ErrUserExists)
		return
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		writeErr(w, r, err)
		return
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	u, err := s.idx.CreateUser(r.Context(), name, hash)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.issue(w, r, http.StatusCreated, User{ID: u.ID, Name: u.Name})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	writeJSON(w, http.StatusOK, user)
}

type passwordChange struct {
	Current string `json:"current"`
	New     string `json:"new"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	if user.Static {
		writeErr(w, r, fmt.Errorf("%w: account is managed by the server configuration", errBadRequest))
		return
	}
	var in passwordChange
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	if _, err := s.auth.Verify(r.Context(), user.Name, in.Current); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := auth.ValidatePassword(in.New); err != nil {
		writeErr(w, r, err)
		return
	}
	hash, err := auth.HashPassword(in.New)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.idx.SetPassword(r.Context(), user.Name, hash); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	if user.Static {
		writeErr(w, r, fmt.Errorf("%w: account is managed by the server configuration", errBadRequest))
		return
	}
	if err := s.notes.DeleteOwner(r.Context(), user.Name); err != nil {
		if errors.Is(err, index.ErrNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

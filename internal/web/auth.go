package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"hashnote/internal/auth"
	"hashnote/internal/config"
	"hashnote/internal/index"
)

type authEntry struct {
	plain string
	hash  *auth.Argon2idHash
}

// Auth resolves the caller of a request from, in order, an X-API-Key header,
// a Bearer session token or HTTP Basic credentials. Basic credentials are
// checked against the auth file and HASHNOTE_AUTH_USER first, then against
// accounts registered through the API.
type Auth struct {
	idx    *index.Index
	tokens *auth.Tokens
	static map[string]authEntry
	keys   apiKeys
	now    func() time.Time
}

func newAuth(cfg config.Config, idx *index.Index, tokens *auth.Tokens) (*Auth, error) {
	static := make(map[string]authEntry)

	if cfg.AuthFile != "" {
		fileUsers, err := auth.LoadFile(cfg.AuthFile)
		if err != nil {
			return nil, err
		}
		for user, hash := range fileUsers {
			if !index.ValidUserName(user) {
				return nil, errors.New("auth file: invalid user name " + user)
			}
			static[user] = authEntry{hash: hash}
		}
	}

	if cfg.AuthUser != "" || cfg.AuthPass != "" {
		if cfg.AuthUser == "" || cfg.AuthPass == "" {
			return nil, errors.New("HASHNOTE_AUTH_USER and HASHNOTE_AUTH_PASS must be set together")
		}
		if !index.ValidUserName(cfg.AuthUser) {
			return nil, errors.New("HASHNOTE_AUTH_USER is not a valid user name")
		}
		static[cfg.AuthUser] = authEntry{plain: cfg.AuthPass}
	}

	keys, err := loadAPIKeys(cfg.DataPath)
	if err != nil {
		return nil, err
	}

	return &Auth{idx: idx, tokens: tokens, static: static, keys: keys, now: time.Now}, nil
}

func isPublic(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz":
		return true
	case "/api/login", "/api/users":
		return r.Method == http.MethodPost
	}
	return false
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, present, err := a.authenticate(r)
		if present && err != nil {
			a.unauthorized(w, r, err.Error())
			return
		}
		if !present {
			if isPublic(r) {
				next.ServeHTTP(w, r)
				return
			}
			a.unauthorized(w, r, "authentication required")
			return
		}
		ctx := WithUser(r.Context(), user)
		ctx = index.WithOwner(ctx, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusUnauthorized, msg)
		return
	}
	w.Header().Set("WWW-Authenticate", `Basic realm="hashnote"`)
	http.Error(w, "Unauthorized: login required", http.StatusUnauthorized)
}

// authenticate reports present=false when the request carries no
// credentials at all.
func (a *Auth) authenticate(r *http.Request) (User, bool, error) {
	ctx := r.Context()
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		entry, ok := a.keys.lookup(key, a.now())
		if !ok {
			return User{}, true, auth.ErrInvalidCredentials
		}
		id, err := a.idx.EnsureUser(ctx, entry.Owner)
		if err != nil {
			return User{}, true, err
		}
		_, static := a.static[entry.Owner]
		return User{ID: id, Name: entry.Owner, Static: static}, true, nil
	}

	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		claims, err := a.tokens.Verify(strings.TrimSpace(h[7:]))
		if err != nil {
			return User{}, true, err
		}
		user, err := a.lookup(ctx, claims.Subject)
		if err != nil || user.ID != claims.UserID {
			return User{}, true, auth.ErrInvalidToken
		}
		return user, true, nil
	}

	if name, pass, ok := r.BasicAuth(); ok {
		user, err := a.Verify(ctx, name, pass)
		return user, true, err
	}
	return User{}, false, nil
}

// lookup finds a still existing account without checking a password.
func (a *Auth) lookup(ctx context.Context, name string) (User, error) {
	if _, ok := a.static[name]; ok {
		id, err := a.idx.EnsureUser(ctx, name)
		if err != nil {
			return User{}, err
		}
		return User{ID: id, Name: name, Static: true}, nil
	}
	u, err := a.idx.UserByName(ctx, name)
	if err != nil {
		return User{}, err
	}
	if u.PasswordHash == "" {
		return User{}, index.ErrNotFound
	}
	return User{ID: u.ID, Name: u.Name}, nil
}

// Verify checks a name and password and returns the account.
func (a *Auth) Verify(ctx context.Context, name, pass string) (User, error) {
	if entry, ok := a.static[name]; ok {
		if !entry.verify(pass) {
			return User{}, auth.ErrInvalidCredentials
		}
		id, err := a.idx.EnsureUser(ctx, name)
		if err != nil {
			return User{}, err
		}
		return User{ID: id, Name: name, Static: true}, nil
	}
	u, err := a.idx.UserByName(ctx, name)
	if errors.Is(err, index.ErrNotFound) {
		// Hash anyway so unknown names cost the same as wrong passwords.
		_ = auth.CheckPassword(dummyHash(), pass)
		return User{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if !auth.CheckPassword(u.PasswordHash, pass) {
		return User{}, auth.ErrInvalidCredentials
	}
	return User{ID: u.ID, Name: u.Name}, nil
}

func (a *Auth) isStatic(name string) bool {
	_, ok := a.static[name]
	return ok
}

func (e authEntry) verify(pass string) bool {
	if e.hash != nil {
		return e.hash.Verify(pass)
	}
	return subtle.ConstantTimeCompare([]byte(e.plain), []byte(pass)) == 1
}

var dummyHash = sync.OnceValue(func() string {
	h, err := auth.HashPassword("not-a-real-password")
	if err != nil {
		return ""
	}
	return h
})

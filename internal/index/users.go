package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

type User struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// userNameRe keeps names usable as a directory under the repository.
var userNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)

func ValidUserName(name string) bool {
	return userNameRe.MatchString(name)
}

func (i *Index) ensureUser(ctx context.Context, name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("empty user name")
	}
	if _, err := i.exec(ctx, i.db, "INSERT OR IGNORE INTO users(name, created_at) VALUES(?, ?)", name, time.Now().Unix()); err != nil {
		return 0, err
	}
	return i.userIDByName(ctx, name)
}

// EnsureUser returns the id of name, creating a row without a password when
// the user only exists as a directory in the repository.
func (i *Index) EnsureUser(ctx context.Context, name string) (int, error) {
	return i.ensureUser(ctx, name)
}

func (i *Index) userIDByName(ctx context.Context, name string) (int, error) {
	var id int
	err := i.queryRow(ctx, i.db, "SELECT id FROM users WHERE name=?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

// CreateUser registers name with a password hash. A user known only from the
// repository (no password yet) is claimed instead of rejected.
func (i *Index) CreateUser(ctx context.Context, name, passwordHash string) (User, error) {
	name = strings.TrimSpace(name)
	if !ValidUserName(name) {
		return User{}, fmt.Errorf("invalid user name %q", name)
	}
	existing, err := i.UserByName(ctx, name)
	switch {
	case err == nil && existing.PasswordHash != "":
		return User{}, ErrUserExists
	case err == nil:
		if err := i.SetPassword(ctx, name, passwordHash); err != nil {
			return User{}, err
		}
		existing.PasswordHash = passwordHash
		return existing, nil
	case !errors.Is(err, ErrNotFound):
		return User{}, err
	}

	now := time.Now()
	res, err := i.exec(ctx, i.db, "INSERT INTO users(name, password_hash, created_at) VALUES(?, ?, ?)", name, passwordHash, now.Unix())
	if err != nil {
		return User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return User{ID: int(id), Name: name, PasswordHash: passwordHash, CreatedAt: now.UTC().Truncate(time.Second)}, nil
}

func (i *Index) UserByName(ctx context.Context, name string) (User, error) {
	var u User
	var createdUnix int64
	err := i.queryRow(ctx, i.db, "SELECT id, name, password_hash, created_at FROM users WHERE name=?", name).
		Scan(&u.ID, &u.Name, &u.PasswordHash, &createdUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = time.Unix(createdUnix, 0).UTC()
	return u, nil
}

func (i *Index) SetPassword(ctx context.Context, name, passwordHash string) error {
	res, err := i.exec(ctx, i.db, "UPDATE users SET password_hash=? WHERE name=?", passwordHash, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes the account and every indexed row of its notes. The
// markdown files are left to the caller.
func (i *Index) DeleteUser(ctx context.Context, name string) error {
	userID, err := i.userIDByName(ctx, name)
	if err != nil {
		return err
	}
	tx, start, err := i.beginTx(ctx, "delete-user")
	if err != nil {
		return err
	}
	defer i.rollbackTx(tx, "delete-user", start)

	rows, err := i.query(ctx, tx, "SELECT id FROM notes WHERE owner_id=?", userID)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, id := range ids {
		if err := i.deleteNoteRows(ctx, tx, id); err != nil {
			return err
		}
	}
	if _, err := i.exec(ctx, tx, "DELETE FROM users WHERE id=?", userID); err != nil {
		return err
	}
	return i.commitTx(tx, "delete-user", start)
}

func (i *Index) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := i.query(ctx, i.db, "SELECT id, name, password_hash, created_at FROM users ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var u User
		var createdUnix int64
		if err := rows.Scan(&u.ID, &u.Name, &u.PasswordHash, &createdUnix); err != nil {
			return nil, err
		}
		u.CreatedAt = time.Unix(createdUnix, 0).UTC()
		users = append(users, u)
	}
	return users, rows.Err()
}

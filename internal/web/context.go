package web

import "context"

type contextKey int

const userKey contextKey = iota

// User is the authenticated caller. ID is the index row id and Static marks
// accounts that come from the auth file or environment rather than the
// users table.
type User struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Static bool   `json:"static,omitempty"`
}

func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func CurrentUser(ctx context.Context) (User, bool) {
	value := ctx.Value(userKey)
	user, ok := value.(User)
	return user, ok
}

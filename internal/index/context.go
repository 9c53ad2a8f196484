package index

import "context"

type contextKey int

const ownerKey contextKey = iota

// WithOwner scopes every query made with ctx to the notes of one user.
func WithOwner(ctx context.Context, userID int) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ownerKey, userID)
}

// OwnerFromContext returns the user id set by WithOwner.
func OwnerFromContext(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(ownerKey).(int)
	return id, ok && id > 0
}

func ownerID(ctx context.Context) (int, error) {
	id, ok := OwnerFromContext(ctx)
	if !ok {
		return 0, ErrNoOwner
	}
	return id, nil
}

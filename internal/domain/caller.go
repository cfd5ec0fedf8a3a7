package domain

import "context"

// Caller is the authenticated identity supplied by the auth collaborator.
type Caller struct {
	UserID  int64
	Email   string
	IsStaff bool
}

// CanSee reports whether the caller may access data owned by userID.
func (c Caller) CanSee(userID int64) bool {
	return c.IsStaff || c.UserID == userID
}

type callerCtxKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerCtxKey{}, c)
}

func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerCtxKey{}).(Caller)
	return c, ok
}

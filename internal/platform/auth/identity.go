package auth

import (
	"context"
	"errors"
	"sync"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// ErrUserLoaderUnavailable indicates that the identity was created without a user loader.
var ErrUserLoaderUnavailable = errors.New("auth: user loader not configured")

// Identity is the signed-in collector extracted from a Firebase ID token.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	Locale      string

	token *firebaseauth.Token

	userLoader UserLoader
	once       sync.Once
	userRecord *firebaseauth.UserRecord
	userErr    error
}

// Token exposes the decoded Firebase ID token.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

// User resolves the Firebase user record on first access and memoizes the result.
func (i *Identity) User(ctx context.Context) (*firebaseauth.UserRecord, error) {
	if i == nil || i.userLoader == nil {
		return nil, ErrUserLoaderUnavailable
	}
	i.once.Do(func() {
		i.userRecord, i.userErr = i.userLoader(ctx, i.UID)
	})
	return i.userRecord, i.userErr
}

// UserLoader fetches the Firebase user record for uid.
type UserLoader func(ctx context.Context, uid string) (*firebaseauth.UserRecord, error)

type contextKey int

const (
	identityKey contextKey = iota
	observerKey
)

// WithIdentity stores identity on ctx.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity stored on ctx.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

// IdentityObserver is notified once the auth middleware resolves an identity.
type IdentityObserver func(*Identity)

// WithIdentityObserver registers fn on ctx. Middleware that runs before authentication uses it
// to learn who the caller turned out to be.
func WithIdentityObserver(ctx context.Context, fn IdentityObserver) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, observerKey, fn)
}

// ReportIdentity notifies the observer registered on ctx, if any.
func ReportIdentity(ctx context.Context, identity *Identity) {
	if identity == nil {
		return
	}
	if fn, ok := ctx.Value(observerKey).(IdentityObserver); ok && fn != nil {
		fn(identity)
	}
}

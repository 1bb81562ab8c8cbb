// Package rtdb wraps the Firebase Realtime Database client used by the legacy web client layout.
package rtdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
)

// Ref is the subset of *db.Ref the stores rely on.
type Ref interface {
	Get(ctx context.Context, v interface{}) error
	GetWithETag(ctx context.Context, v interface{}) (string, error)
	GetIfChanged(ctx context.Context, etag string, v interface{}) (bool, string, error)
	Set(ctx context.Context, v interface{}) error
}

// RefSource hands out references by path.
type RefSource interface {
	Ref(ctx context.Context, path string) (Ref, error)
}

// Provider creates the database client from the shared Firebase app on first use.
type Provider struct {
	app *firebase.App

	mu     sync.Mutex
	client *db.Client
}

// NewProvider wraps app. The app must carry a DatabaseURL.
func NewProvider(app *firebase.App) *Provider {
	return &Provider{app: app}
}

// Client returns the shared database client.
func (p *Provider) Client(ctx context.Context) (*db.Client, error) {
	if p == nil || p.app == nil {
		return nil, errors.New("rtdb: firebase app is nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	client, err := p.app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("rtdb: create client: %w", err)
	}
	p.client = client
	return client, nil
}

// Ref returns the reference at path.
func (p *Provider) Ref(ctx context.Context, path string) (Ref, error) {
	client, err := p.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.NewRef(path), nil
}

// Ping reads the shallow root to confirm the database answers.
func (p *Provider) Ping(ctx context.Context) error {
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	var ignored map[string]bool
	return WrapError("rtdb.ping", client.NewRef("/").GetShallow(ctx, &ignored))
}

// Path joins segments into a database path. Segments must not contain the characters the
// Realtime Database reserves.
func Path(segments ...string) (string, error) {
	for _, s := range segments {
		if s == "" || strings.ContainsAny(s, ".#$[]/") {
			return "", fmt.Errorf("rtdb: invalid path segment %q", s)
		}
	}
	return "/" + strings.Join(segments, "/"), nil
}

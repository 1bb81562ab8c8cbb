// Package firebaseapp builds the Firebase Admin app shared by token verification and the
// Realtime Database store.
package firebaseapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/pocket-tcg/api/internal/platform/config"
)

// ClientOptions returns the credential options implied by cfg. Inline JSON wins over a file path;
// with neither set, Application Default Credentials apply.
func ClientOptions(cfg config.FirebaseConfig) []option.ClientOption {
	if creds := strings.TrimSpace(cfg.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// New initialises the Firebase app. DatabaseURL is only required by the Realtime Database store.
func New(ctx context.Context, cfg config.FirebaseConfig, extra ...option.ClientOption) (*firebase.App, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("firebaseapp: project id is required")
	}
	fbCfg := &firebase.Config{
		ProjectID:   cfg.ProjectID,
		DatabaseURL: strings.TrimSpace(cfg.DatabaseURL),
	}
	opts := append(ClientOptions(cfg), extra...)
	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebaseapp: initialise app: %w", err)
	}
	return app, nil
}

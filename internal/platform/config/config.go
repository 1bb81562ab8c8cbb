// Package config loads runtime configuration from defaults, a .env file, the process
// environment, and Secret Manager references.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultShutdownTimeout     = 10 * time.Second
	defaultStoreBackend        = BackendFirestore
	defaultPollInterval        = 2 * time.Second
	defaultImageBaseURL        = "https://limitlesstcg.nyc3.cdn.digitaloceanspaces.com/pocket"
	defaultWritesPerMinute     = 60
	defaultWriteBurst          = 10
	defaultIdempotencyHeader   = "Idempotency-Key"
	defaultIdempotencyTTL      = 24 * time.Hour
	defaultIdempotencyInterval = time.Hour
	defaultIdempotencyBatch    = 200
	defaultStreamPingInterval  = 30 * time.Second
	defaultStreamPongWait      = 60 * time.Second
	defaultStreamWriteTimeout  = 10 * time.Second
)

// Store backends.
const (
	BackendFirestore = "firestore"
	BackendRTDB      = "rtdb"
	BackendMemory    = "memory"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Store       StoreConfig
	Catalog     CatalogConfig
	Events      EventsConfig
	Images      ImagesConfig
	RateLimits  RateLimitConfig
	Idempotency IdempotencyConfig
	Features    FeatureFlags
	Stream      StreamConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// FirebaseConfig stores Firebase project settings shared by auth and the Realtime Database.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	// CredentialsJSON holds an inline service account key, usually a secret:// reference.
	CredentialsJSON string
	DatabaseURL     string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StoreConfig selects where wishlists and the user directory live.
type StoreConfig struct {
	Backend      string
	PollInterval time.Duration
}

// CatalogConfig points at an optional catalog override.
type CatalogConfig struct {
	GCSURI string
}

// EventsConfig configures wishlist change publishing. An empty topic disables it.
type EventsConfig struct {
	ProjectID string
	Topic     string
}

// ImagesConfig configures card artwork URLs.
type ImagesConfig struct {
	BaseURL string
}

// RateLimitConfig throttles wishlist writes per signed-in user.
type RateLimitConfig struct {
	WritesPerMinute int
	WriteBurst      int
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// FeatureFlags toggle optional behaviour without redeploying.
type FeatureFlags struct {
	ExcludeSelfFromFriends bool
	// CheckRevokedTokens rejects ID tokens of signed-out or disabled users.
	CheckRevokedTokens bool
}

// StreamConfig tunes the live view websocket.
type StreamConfig struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteTimeout time.Duration
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the system environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the application configuration. Precedence is defaults < .env < OS env < WithEnvMap.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	lookup, err := newLookup(options)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "API_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "API_FIREBASE_CREDENTIALS_FILE", ""),
			CredentialsJSON: stringWithDefault(lookup, "API_FIREBASE_CREDENTIALS_JSON", ""),
			DatabaseURL:     stringWithDefault(lookup, "API_FIREBASE_DATABASE_URL", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Store: StoreConfig{
			Backend:      strings.ToLower(stringWithDefault(lookup, "API_STORE_BACKEND", defaultStoreBackend)),
			PollInterval: durationWithDefault(lookup, "API_STORE_POLL_INTERVAL", defaultPollInterval),
		},
		Catalog: CatalogConfig{
			GCSURI: stringWithDefault(lookup, "API_CATALOG_GCS_URI", ""),
		},
		Events: EventsConfig{
			ProjectID: stringWithDefault(lookup, "API_EVENTS_PROJECT_ID", ""),
			Topic:     stringWithDefault(lookup, "API_EVENTS_TOPIC", ""),
		},
		Images: ImagesConfig{
			BaseURL: strings.TrimRight(stringWithDefault(lookup, "API_IMAGES_BASE_URL", defaultImageBaseURL), "/"),
		},
		RateLimits: RateLimitConfig{
			WritesPerMinute: intWithDefault(lookup, "API_RATELIMIT_WRITES_PER_MIN", defaultWritesPerMinute),
			WriteBurst:      intWithDefault(lookup, "API_RATELIMIT_WRITE_BURST", defaultWriteBurst),
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  durationWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: intWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatch),
		},
		Features: FeatureFlags{
			ExcludeSelfFromFriends: boolWithDefault(lookup, "API_FEATURE_EXCLUDE_SELF_FROM_FRIENDS", false),
			CheckRevokedTokens:     boolWithDefault(lookup, "API_FEATURE_CHECK_REVOKED_TOKENS", false),
		},
		Stream: StreamConfig{
			PingInterval: durationWithDefault(lookup, "API_STREAM_PING_INTERVAL", defaultStreamPingInterval),
			PongWait:     durationWithDefault(lookup, "API_STREAM_PONG_WAIT", defaultStreamPongWait),
			WriteTimeout: durationWithDefault(lookup, "API_STREAM_WRITE_TIMEOUT", defaultStreamWriteTimeout),
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firebase.ProjectID
	}

	secretFields := []*string{
		&cfg.Firebase.CredentialsJSON,
		&cfg.Events.Topic,
	}
	for _, field := range secretFields {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EnvironmentValues returns the merged key/value environment Load would see. Callers use it to
// build dependencies, such as the secret resolver, before calling Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	values, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = make(map[string]string)
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if key = strings.TrimSpace(key); ok && key != "" {
				values[key] = value
			}
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firebase.ProjectID == "" {
		missing = append(missing, "Firebase.ProjectID")
	}

	switch cfg.Store.Backend {
	case BackendFirestore:
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
	case BackendRTDB:
		if cfg.Firebase.DatabaseURL == "" {
			missing = append(missing, "Firebase.DatabaseURL")
		}
		if cfg.Store.PollInterval <= 0 {
			missing = append(missing, "Store.PollInterval")
		}
	case BackendMemory:
	default:
		missing = append(missing, "Store.Backend")
	}

	if cfg.Catalog.GCSURI != "" && !strings.HasPrefix(cfg.Catalog.GCSURI, "gs://") {
		missing = append(missing, "Catalog.GCSURI")
	}
	if u, err := url.Parse(cfg.Images.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		missing = append(missing, "Images.BaseURL")
	}
	if cfg.RateLimits.WritesPerMinute <= 0 {
		missing = append(missing, "RateLimits.WritesPerMinute")
	}
	if cfg.RateLimits.WriteBurst <= 0 {
		missing = append(missing, "RateLimits.WriteBurst")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		missing = append(missing, "Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		missing = append(missing, "Idempotency.CleanupBatchSize")
	}
	if cfg.Stream.PingInterval <= 0 || cfg.Stream.PingInterval >= cfg.Stream.PongWait {
		missing = append(missing, "Stream.PingInterval")
	}
	if cfg.Stream.WriteTimeout <= 0 {
		missing = append(missing, "Stream.WriteTimeout")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/pocket-tcg/api/internal/handlers"
	"github.com/pocket-tcg/api/internal/images"
	"github.com/pocket-tcg/api/internal/platform/auth"
	"github.com/pocket-tcg/api/internal/platform/config"
	"github.com/pocket-tcg/api/internal/platform/firebaseapp"
	"github.com/pocket-tcg/api/internal/platform/idempotency"
	"github.com/pocket-tcg/api/internal/platform/jobs"
	"github.com/pocket-tcg/api/internal/platform/observability"
	"github.com/pocket-tcg/api/internal/platform/secrets"
	"github.com/pocket-tcg/api/internal/repositories"
	"github.com/pocket-tcg/api/internal/services"
)

// Set through -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	resolver, err := newSecretResolver(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret resolver", zap.Error(err))
	}
	defer func() {
		if err := resolver.Close(); err != nil {
			logger.Warn("secret resolver close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(resolver))
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, startedAt)
	logger.Info("configuration loaded",
		zap.String("store", cfg.Store.Backend),
		zap.String("version", buildInfo.Version),
		zap.String("environment", buildInfo.Environment),
	)

	firebaseApp, err := firebaseapp.New(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase app", zap.Error(err))
	}
	var verifierOpts []auth.FirebaseOption
	if cfg.Features.CheckRevokedTokens {
		verifierOpts = append(verifierOpts, auth.WithRevocationCheck())
	}
	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, firebaseApp, verifierOpts...)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier, auth.WithUserGetter(firebaseVerifier))

	stores, err := openStores(ctx, cfg, firebaseApp, logger)
	if err != nil {
		logger.Fatal("failed to initialise store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Warn("store close error", zap.Error(err))
		}
	}()

	cards, err := loadCatalog(ctx, cfg.Catalog, firebaseapp.ClientOptions(cfg.Firebase))
	if err != nil {
		logger.Fatal("failed to load card catalog", zap.String("uri", cfg.Catalog.GCSURI), zap.Error(err))
	}
	logger.Info("card catalog ready", zap.Int("cards", cards.Len()))

	checks := stores.checks
	var publisher services.WishlistEventPublisher
	if topicName := strings.TrimSpace(cfg.Events.Topic); topicName != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID, firebaseapp.ClientOptions(cfg.Firebase)...)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer pubsubClient.Close()
		topic := pubsubClient.Topic(topicName)
		defer topic.Stop()
		eventPublisher, err := jobs.NewWishlistEventPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise wishlist event publisher", zap.Error(err))
		}
		publisher = eventPublisher
		checks = append(checks, repositories.DependencyCheck{
			Name:     "pubsub",
			Timeout:  time.Second,
			Optional: true,
			Check: func(ctx context.Context) error {
				ok, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s not found", topicName)
				}
				return nil
			},
		})
	}

	wishlistService, err := services.NewWishlistService(services.WishlistServiceDeps{
		Repository: stores.wishlists,
		Catalog:    cards,
		Publisher:  publisher,
		Logger:     observability.EventLogger(logger.Named("wishlist")),
		Clock:      time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise wishlist service", zap.Error(err))
	}
	directoryService, err := services.NewDirectoryService(services.DirectoryServiceDeps{
		Repository:  stores.directory,
		ExcludeSelf: cfg.Features.ExcludeSelfFromFriends,
		Logger:      observability.EventLogger(logger.Named("directory")),
	})
	if err != nil {
		logger.Fatal("failed to initialise directory service", zap.Error(err))
	}
	browseService, err := services.NewBrowseService(services.BrowseServiceDeps{
		Catalog:                cards,
		Wishlists:              wishlistService,
		Directory:              directoryService,
		ExcludeSelfFromFriends: cfg.Features.ExcludeSelfFromFriends,
	})
	if err != nil {
		logger.Fatal("failed to initialise browse service", zap.Error(err))
	}

	healthRepo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		logger.Fatal("failed to initialise health checks", zap.Error(err))
	}
	systemService, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: healthRepo,
		Clock:            time.Now,
		Build:            buildInfo,
	})
	if err != nil {
		logger.Fatal("failed to initialise system service", zap.Error(err))
	}

	idempotencyStore := stores.idempotency
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	var background sync.WaitGroup
	background.Add(1)
	go func() {
		defer background.Done()
		idempotency.RunJanitor(ctx, idempotencyStore, cfg.Idempotency.CleanupInterval, cfg.Idempotency.CleanupBatchSize,
			observability.NewPrintfAdapter(logger.Named("idempotency")))
	}()

	imageURLs := images.NewResolver(cfg.Images.BaseURL)
	writeLimiter := handlers.NewWriteLimiter(cfg.RateLimits.WritesPerMinute, cfg.RateLimits.WriteBurst, time.Now)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(systemService),
	)
	publicHandlers := handlers.NewPublicHandlers(cards, imageURLs)
	sessionHandlers := handlers.NewSessionHandlers(authenticator, directoryService)
	browseHandlers := handlers.NewBrowseHandlers(browseService, imageURLs,
		handlers.WithBrowseWriteLimiter(writeLimiter),
		handlers.WithBrowseIdempotency(idempotencyMiddleware),
	)
	wishlistHandlers := handlers.NewWishlistHandlers(wishlistService, directoryService, writeLimiter)
	streamHandlers := handlers.NewStreamHandlers(browseService, imageURLs,
		handlers.WithStreamTimeouts(cfg.Stream.PingInterval, cfg.Stream.PongWait, cfg.Stream.WriteTimeout),
	)

	projectID := traceProjectID(cfg)
	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPublicRoutes(publicHandlers.Routes),
		handlers.WithSessionRoutes(sessionHandlers.Routes),
		handlers.WithMeRoutes(handlers.Authenticated(authenticator,
			sessionHandlers.MeRoutes,
			browseHandlers.Routes,
			wishlistHandlers.Routes,
			streamHandlers.Routes,
		)),
		handlers.WithUserRoutes(handlers.Authenticated(authenticator, wishlistHandlers.UserRoutes)),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	serveErr := make(chan error, 1)
	go func() {
		serverLogger.Info("pocket wishlist api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			serverLogger.Error("http server error", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received; draining requests")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	background.Wait()
}

func newSecretResolver(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Resolver, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	project := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIREBASE_PROJECT_ID")
	}
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(project),
	}
	if path, ok := env["API_SECRET_FALLBACK_FILE"]; ok {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewResolver(ctx, opts...)
}

func buildInfoFromEnv(env map[string]string, started time.Time) services.BuildInfo {
	info := services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: strings.TrimSpace(env["API_ENVIRONMENT"]),
		StartedAt:   started,
	}
	if v := strings.TrimSpace(env["API_BUILD_VERSION"]); v != "" {
		info.Version = v
	}
	if c := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"]); c != "" {
		info.CommitSHA = c
	}
	if info.Environment == "" {
		info.Environment = "local"
	}
	return info
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

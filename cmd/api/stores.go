package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/pocket-tcg/api/internal/catalog"
	"github.com/pocket-tcg/api/internal/platform/config"
	"github.com/pocket-tcg/api/internal/platform/firebaseapp"
	pfirestore "github.com/pocket-tcg/api/internal/platform/firestore"
	"github.com/pocket-tcg/api/internal/platform/idempotency"
	prtdb "github.com/pocket-tcg/api/internal/platform/rtdb"
	platformstorage "github.com/pocket-tcg/api/internal/platform/storage"
	"github.com/pocket-tcg/api/internal/repositories"
	firestorerepo "github.com/pocket-tcg/api/internal/repositories/firestore"
	"github.com/pocket-tcg/api/internal/repositories/memory"
	rtdbrepo "github.com/pocket-tcg/api/internal/repositories/rtdb"
)

// storeSet is the persistence selected by API_STORE_BACKEND.
type storeSet struct {
	wishlists   repositories.WishlistRepository
	directory   repositories.DirectoryRepository
	idempotency idempotency.Store
	checks      []repositories.DependencyCheck
	closers     []func() error
}

func (s storeSet) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openStores(ctx context.Context, cfg config.Config, app *firebase.App, logger *zap.Logger) (storeSet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	repoOpts := []repositories.Option{repositories.WithLogger(logger.Named("store"))}
	switch cfg.Store.Backend {
	case config.BackendFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore,
			pfirestore.WithClientOptions(firebaseapp.ClientOptions(cfg.Firebase)...))
		if _, err := provider.Client(ctx); err != nil {
			return storeSet{}, err
		}
		wishlists, err := firestorerepo.NewWishlistRepository(provider, repoOpts...)
		if err != nil {
			return storeSet{}, err
		}
		directory, err := firestorerepo.NewDirectoryRepository(provider, repoOpts...)
		if err != nil {
			return storeSet{}, err
		}
		return storeSet{
			wishlists:   wishlists,
			directory:   directory,
			idempotency: idempotency.NewFirestoreStore(provider),
			checks: []repositories.DependencyCheck{
				{Name: "firestore", Check: provider.Ping},
			},
			closers: []func() error{provider.Close},
		}, nil

	case config.BackendRTDB:
		provider := prtdb.NewProvider(app)
		if _, err := provider.Client(ctx); err != nil {
			return storeSet{}, err
		}
		wishlists, err := rtdbrepo.NewWishlistRepository(provider, cfg.Store.PollInterval, repoOpts...)
		if err != nil {
			return storeSet{}, err
		}
		directory, err := rtdbrepo.NewDirectoryRepository(provider, cfg.Store.PollInterval, repoOpts...)
		if err != nil {
			return storeSet{}, err
		}
		return storeSet{
			wishlists:   wishlists,
			directory:   directory,
			idempotency: idempotency.NewMemoryStore(),
			checks: []repositories.DependencyCheck{
				{Name: "rtdb", Check: provider.Ping},
			},
		}, nil

	case config.BackendMemory:
		return storeSet{
			wishlists:   memory.NewWishlistRepository(),
			directory:   memory.NewDirectoryRepository(),
			idempotency: idempotency.NewMemoryStore(),
		}, nil

	default:
		return storeSet{}, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// loadCatalog returns the embedded catalog unless a gs:// override is configured.
func loadCatalog(ctx context.Context, cfg config.CatalogConfig, opts []option.ClientOption) (*catalog.Catalog, error) {
	uri := strings.TrimSpace(cfg.GCSURI)
	if uri == "" {
		return catalog.Default(), nil
	}
	reader, err := platformstorage.NewReader(ctx, opts...)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := reader.ReadAll(ctx, uri)
	if err != nil {
		return nil, err
	}
	return catalog.Load(bytes.NewReader(data))
}

package main

import (
	"context"
	"testing"
	"time"

	"github.com/pocket-tcg/api/internal/platform/config"
)

func TestBuildInfoFromEnv(t *testing.T) {
	started := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	info := buildInfoFromEnv(map[string]string{}, started)
	if info.Version != version || info.CommitSHA != commit || info.Environment != "local" {
		t.Fatalf("unexpected defaults %+v", info)
	}

	info = buildInfoFromEnv(map[string]string{
		"API_BUILD_VERSION":    "1.2.3",
		"API_BUILD_COMMIT_SHA": "abc123",
		"API_ENVIRONMENT":      "prod",
	}, started)
	if info.Version != "1.2.3" || info.CommitSHA != "abc123" || info.Environment != "prod" || !info.StartedAt.Equal(started) {
		t.Fatalf("unexpected overrides %+v", info)
	}
}

func TestOpenStoresMemory(t *testing.T) {
	stores, err := openStores(context.Background(), config.Config{Store: config.StoreConfig{Backend: config.BackendMemory}}, nil, nil)
	if err != nil {
		t.Fatalf("open memory stores: %v", err)
	}
	defer stores.Close()
	if stores.wishlists == nil || stores.directory == nil || stores.idempotency == nil {
		t.Fatalf("expected memory stores to be populated")
	}
	if len(stores.checks) != 0 {
		t.Fatalf("memory backend has no dependencies to probe")
	}
}

func TestOpenStoresRejectsUnknownBackend(t *testing.T) {
	if _, err := openStores(context.Background(), config.Config{Store: config.StoreConfig{Backend: "mysql"}}, nil, nil); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestLoadCatalogDefaultsToEmbedded(t *testing.T) {
	cards, err := loadCatalog(context.Background(), config.CatalogConfig{}, nil)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if cards.Len() == 0 {
		t.Fatalf("expected embedded cards")
	}
}

func TestTraceProjectIDFallsBackToFirestore(t *testing.T) {
	cfg := config.Config{Firestore: config.FirestoreConfig{ProjectID: "fs-project"}}
	if got := traceProjectID(cfg); got != "fs-project" {
		t.Fatalf("expected firestore project, got %q", got)
	}
}

// Package repositories declares the storage contracts for wishlists, the user directory, and
// dependency health, plus helpers shared by the memory, Firestore, and Realtime Database
// implementations.
package repositories

import (
	"context"

	domain "github.com/pocket-tcg/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// WishlistRepository stores one ordered entry sequence per user. Writes always replace the
// whole sequence.
type WishlistRepository interface {
	// Get returns the stored wishlist. An absent wishlist is returned as an empty snapshot.
	Get(ctx context.Context, uid string) (domain.WishlistSnapshot, error)
	Replace(ctx context.Context, uid string, entries []domain.CardRef) (domain.WishlistSnapshot, error)
	// Watch delivers the current wishlist followed by every change. A consumer that falls behind
	// only sees the newest snapshot. The channel closes when ctx ends or the backend stream fails.
	Watch(ctx context.Context, uid string) (<-chan domain.WishlistSnapshot, error)
}

// DirectoryRepository stores the signed-in user directory.
type DirectoryRepository interface {
	Upsert(ctx context.Context, user domain.UserSummary) error
	List(ctx context.Context) (domain.DirectorySnapshot, error)
	Watch(ctx context.Context) (<-chan domain.DirectorySnapshot, error)
}

// HealthRepository probes backing services.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

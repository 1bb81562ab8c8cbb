// Package firestore stores wishlists and the user directory in Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/pocket-tcg/api/internal/domain"
	pfirestore "github.com/pocket-tcg/api/internal/platform/firestore"
	"github.com/pocket-tcg/api/internal/repositories"
)

const wishlistCollection = "wishlists"

type wishlistDocument struct {
	Entries   []domain.CardRef `firestore:"entries"`
	UpdatedAt time.Time        `firestore:"updatedAt"`
}

// WishlistRepository maps wishlists/{uid} documents to wishlist snapshots.
type WishlistRepository struct {
	base   *pfirestore.BaseRepository[wishlistDocument]
	now    func() time.Time
	logger *zap.Logger
}

var _ repositories.WishlistRepository = (*WishlistRepository)(nil)

// NewWishlistRepository binds the repository to provider.
func NewWishlistRepository(provider *pfirestore.Provider, opts ...repositories.Option) (*WishlistRepository, error) {
	if provider == nil {
		return nil, errors.New("wishlist repository requires firestore provider")
	}
	options := repositories.ApplyOptions(opts...)
	return &WishlistRepository{
		base:   pfirestore.NewBaseRepository[wishlistDocument](provider, wishlistCollection, nil, nil),
		now:    time.Now,
		logger: options.Logger,
	}, nil
}

// Get loads the wishlist. A missing document reads as an empty wishlist.
func (r *WishlistRepository) Get(ctx context.Context, uid string) (domain.WishlistSnapshot, error) {
	if strings.TrimSpace(uid) == "" {
		return domain.WishlistSnapshot{}, errors.New("uid is required")
	}
	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		if repositories.IsNotFound(err) {
			return emptyWishlist(uid), nil
		}
		return domain.WishlistSnapshot{}, err
	}
	return toWishlistSnapshot(uid, doc), nil
}

// Replace overwrites the whole document.
func (r *WishlistRepository) Replace(ctx context.Context, uid string, entries []domain.CardRef) (domain.WishlistSnapshot, error) {
	if strings.TrimSpace(uid) == "" {
		return domain.WishlistSnapshot{}, errors.New("uid is required")
	}
	doc := wishlistDocument{
		Entries:   append([]domain.CardRef{}, entries...),
		UpdatedAt: r.now().UTC(),
	}
	if _, err := r.base.Set(ctx, uid, doc); err != nil {
		return domain.WishlistSnapshot{}, err
	}
	return domain.WishlistSnapshot{UserID: uid, Entries: doc.Entries, UpdatedAt: doc.UpdatedAt}, nil
}

// Watch streams document snapshots. The channel closes when ctx ends or the listener fails; a
// failure is logged before the close.
func (r *WishlistRepository) Watch(ctx context.Context, uid string) (<-chan domain.WishlistSnapshot, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, errors.New("uid is required")
	}
	if _, err := r.base.DocumentRef(ctx, uid); err != nil {
		return nil, err
	}
	mailbox := repositories.NewLatest[domain.WishlistSnapshot]()
	go func() {
		defer mailbox.Close()
		err := r.base.WatchDocument(ctx, uid, func(doc pfirestore.Document[wishlistDocument]) error {
			mailbox.Offer(toWishlistSnapshot(uid, doc))
			return nil
		})
		repositories.LogWatchEnd(r.logger.With(zap.String("uid", uid)), "wishlists.watch", err)
	}()
	return mailbox.C(), nil
}

func toWishlistSnapshot(uid string, doc pfirestore.Document[wishlistDocument]) domain.WishlistSnapshot {
	if !doc.Exists {
		return emptyWishlist(uid)
	}
	snap := domain.WishlistSnapshot{
		UserID:    uid,
		Entries:   doc.Data.Entries,
		UpdatedAt: doc.Data.UpdatedAt,
	}
	if snap.Entries == nil {
		snap.Entries = []domain.CardRef{}
	}
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = doc.UpdateTime
	}
	return snap
}

func emptyWishlist(uid string) domain.WishlistSnapshot {
	return domain.WishlistSnapshot{UserID: uid, Entries: []domain.CardRef{}}
}

// Package rtdb stores wishlists and the user directory in the Firebase Realtime Database using
// the layout the web client reads: /wishlists/{uid} holds an array of {set, number} and /users/{uid} holds
// {uid, displayName}.
package rtdb

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	domain "github.com/pocket-tcg/api/internal/domain"
	prtdb "github.com/pocket-tcg/api/internal/platform/rtdb"
	"github.com/pocket-tcg/api/internal/repositories"
)

const (
	wishlistsRoot = "wishlists"
	usersRoot     = "users"
)

// WishlistRepository reads and writes /wishlists/{uid}. The database has no push listener in
// the Admin SDK, so Watch polls with ETags.
type WishlistRepository struct {
	refs     prtdb.RefSource
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

var _ repositories.WishlistRepository = (*WishlistRepository)(nil)

// NewWishlistRepository polls every interval when watching.
func NewWishlistRepository(refs prtdb.RefSource, interval time.Duration, opts ...repositories.Option) (*WishlistRepository, error) {
	if refs == nil {
		return nil, errors.New("wishlist repository requires a realtime database source")
	}
	if interval <= 0 {
		return nil, errors.New("wishlist repository requires a positive poll interval")
	}
	options := repositories.ApplyOptions(opts...)
	return &WishlistRepository{refs: refs, interval: interval, now: time.Now, logger: options.Logger}, nil
}

func (r *WishlistRepository) ref(ctx context.Context, uid string) (prtdb.Ref, error) {
	path, err := prtdb.Path(wishlistsRoot, uid)
	if err != nil {
		return nil, err
	}
	return r.refs.Ref(ctx, path)
}

// Get implements repositories.WishlistRepository. A null value reads as an empty wishlist.
func (r *WishlistRepository) Get(ctx context.Context, uid string) (domain.WishlistSnapshot, error) {
	ref, err := r.ref(ctx, uid)
	if err != nil {
		return domain.WishlistSnapshot{}, err
	}
	var entries []domain.CardRef
	if err := ref.Get(ctx, &entries); err != nil {
		return domain.WishlistSnapshot{}, prtdb.WrapError("wishlists.get", err)
	}
	return r.snapshot(uid, entries), nil
}

// Replace implements repositories.WishlistRepository.
func (r *WishlistRepository) Replace(ctx context.Context, uid string, entries []domain.CardRef) (domain.WishlistSnapshot, error) {
	ref, err := r.ref(ctx, uid)
	if err != nil {
		return domain.WishlistSnapshot{}, err
	}
	entries = append([]domain.CardRef{}, entries...)
	if err := ref.Set(ctx, entries); err != nil {
		return domain.WishlistSnapshot{}, prtdb.WrapError("wishlists.set", err)
	}
	return r.snapshot(uid, entries), nil
}

// Watch implements repositories.WishlistRepository.
func (r *WishlistRepository) Watch(ctx context.Context, uid string) (<-chan domain.WishlistSnapshot, error) {
	ref, err := r.ref(ctx, uid)
	if err != nil {
		return nil, err
	}
	mailbox := repositories.NewLatest[domain.WishlistSnapshot]()
	go func() {
		defer mailbox.Close()
		err := prtdb.Poll(ctx, ref, r.interval, func(entries []domain.CardRef) error {
			mailbox.Offer(r.snapshot(uid, entries))
			return nil
		})
		repositories.LogWatchEnd(r.logger.With(zap.String("uid", uid)), "wishlists.watch", err)
	}()
	return mailbox.C(), nil
}

func (r *WishlistRepository) snapshot(uid string, entries []domain.CardRef) domain.WishlistSnapshot {
	if entries == nil {
		entries = []domain.CardRef{}
	}
	return domain.WishlistSnapshot{UserID: uid, Entries: entries, UpdatedAt: r.now().UTC()}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	domain "github.com/pocket-tcg/api/internal/domain"
	"github.com/pocket-tcg/api/internal/repositories"
	"github.com/pocket-tcg/api/internal/view"
)

const (
	wishlistEventUpdated       = "wishlist.updated"
	wishlistEventPublishFailed = "wishlist.publish_failed"
	wishlistLockStripes        = 64
)

var (
	errWishlistUserRequired = errors.New("wishlist: user id is required")
	errWishlistUnknownCard  = errors.New("wishlist: card is not in the catalog")
)

var (
	// ErrWishlistUserRequired indicates the caller did not supply a user id.
	ErrWishlistUserRequired = errWishlistUserRequired
	// ErrWishlistUnknownCard indicates the card reference does not exist in the catalog.
	ErrWishlistUnknownCard = errWishlistUnknownCard
)

// WishlistServiceDeps bundles collaborators for NewWishlistService.
type WishlistServiceDeps struct {
	Repository repositories.WishlistRepository
	Catalog    CatalogSource
	// Publisher is optional; without it no change events are emitted.
	Publisher WishlistEventPublisher
	Logger    EventLogger
	Clock     func() time.Time
}

type wishlistService struct {
	repo      repositories.WishlistRepository
	catalog   CatalogSource
	publisher WishlistEventPublisher
	logger    EventLogger
	clock     func() time.Time
	locks     [wishlistLockStripes]sync.Mutex
}

var _ WishlistService = (*wishlistService)(nil)

// NewWishlistService builds the wishlist service.
func NewWishlistService(deps WishlistServiceDeps) (WishlistService, error) {
	if deps.Repository == nil {
		return nil, errors.New("wishlist service: repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("wishlist service: catalog is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &wishlistService{
		repo:      deps.Repository,
		catalog:   deps.Catalog,
		publisher: deps.Publisher,
		logger:    logger,
		clock:     clock,
	}, nil
}

func (s *wishlistService) Get(ctx context.Context, uid string) (WishlistSnapshot, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return WishlistSnapshot{}, errWishlistUserRequired
	}
	return s.repo.Get(ctx, uid)
}

func (s *wishlistService) Add(ctx context.Context, uid string, ref CardRef) (WishlistChange, error) {
	return s.mutate(ctx, uid, ref, func(entries []CardRef) ([]CardRef, string) {
		next, changed := view.Add(entries, ref)
		if !changed {
			return nil, ""
		}
		return next, domain.WishlistActionAdded
	})
}

func (s *wishlistService) Remove(ctx context.Context, uid string, ref CardRef) (WishlistChange, error) {
	return s.mutate(ctx, uid, ref, func(entries []CardRef) ([]CardRef, string) {
		next, changed := view.Remove(entries, ref)
		if !changed {
			return nil, ""
		}
		return next, domain.WishlistActionRemoved
	})
}

func (s *wishlistService) Toggle(ctx context.Context, uid string, ref CardRef) (WishlistChange, error) {
	return s.mutate(ctx, uid, ref, func(entries []CardRef) ([]CardRef, string) {
		if view.NewMembership(entries).Has(ref) {
			next, _ := view.Remove(entries, ref)
			return next, domain.WishlistActionRemoved
		}
		next, _ := view.Add(entries, ref)
		return next, domain.WishlistActionAdded
	})
}

func (s *wishlistService) Watch(ctx context.Context, uid string) (<-chan WishlistSnapshot, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, errWishlistUserRequired
	}
	return s.repo.Watch(ctx, uid)
}

// mutate reads the current sequence, lets apply compute the next one, and writes it back in full.
// apply returns a nil sequence when nothing should be written.
func (s *wishlistService) mutate(ctx context.Context, uid string, ref CardRef, apply func([]CardRef) ([]CardRef, string)) (WishlistChange, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return WishlistChange{}, errWishlistUserRequired
	}
	if !s.catalog.Contains(ref) {
		return WishlistChange{}, fmt.Errorf("%w: %s", errWishlistUnknownCard, ref.Key())
	}

	lock := s.lockFor(uid)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.repo.Get(ctx, uid)
	if err != nil {
		return WishlistChange{}, err
	}
	next, action := apply(current.Entries)
	if next == nil {
		return WishlistChange{Snapshot: current}, nil
	}

	saved, err := s.repo.Replace(ctx, uid, next)
	if err != nil {
		return WishlistChange{}, err
	}
	s.logger(ctx, wishlistEventUpdated, map[string]any{
		"userId":  uid,
		"action":  action,
		"card":    ref.Key(),
		"entries": len(saved.Entries),
	})
	s.publish(ctx, uid, action, ref, len(saved.Entries))
	return WishlistChange{Snapshot: saved, Action: action, Changed: true}, nil
}

func (s *wishlistService) publish(ctx context.Context, uid, action string, ref CardRef, count int) {
	if s.publisher == nil {
		return
	}
	_, err := s.publisher.PublishWishlistEvent(ctx, domain.WishlistEvent{
		UserID:     uid,
		Action:     action,
		Card:       ref,
		EntryCount: count,
		OccurredAt: s.clock().UTC(),
	})
	if err != nil {
		s.logger(ctx, wishlistEventPublishFailed, map[string]any{
			"userId": uid,
			"card":   ref.Key(),
			"error":  err,
		})
	}
}

func (s *wishlistService) lockFor(uid string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(uid))
	return &s.locks[h.Sum32()%wishlistLockStripes]
}

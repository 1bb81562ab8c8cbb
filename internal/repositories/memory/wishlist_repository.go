// Package memory keeps wishlists and the user directory in process memory. It backs the
// "memory" store backend and service tests.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	domain "github.com/pocket-tcg/api/internal/domain"
	"github.com/pocket-tcg/api/internal/repositories"
)

// WishlistRepository is a mutex-guarded map of wishlists with per-user fan-out watchers.
type WishlistRepository struct {
	mu       sync.Mutex
	now      func() time.Time
	lists    map[string]domain.WishlistSnapshot
	watchers map[string]map[*repositories.Latest[domain.WishlistSnapshot]]struct{}
}

var _ repositories.WishlistRepository = (*WishlistRepository)(nil)

// NewWishlistRepository returns an empty repository.
func NewWishlistRepository() *WishlistRepository {
	return &WishlistRepository{
		now:      time.Now,
		lists:    make(map[string]domain.WishlistSnapshot),
		watchers: make(map[string]map[*repositories.Latest[domain.WishlistSnapshot]]struct{}),
	}
}

// Get implements repositories.WishlistRepository.
func (r *WishlistRepository) Get(_ context.Context, uid string) (domain.WishlistSnapshot, error) {
	if strings.TrimSpace(uid) == "" {
		return domain.WishlistSnapshot{}, errors.New("memory: uid is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(uid), nil
}

// Replace implements repositories.WishlistRepository.
func (r *WishlistRepository) Replace(_ context.Context, uid string, entries []domain.CardRef) (domain.WishlistSnapshot, error) {
	if strings.TrimSpace(uid) == "" {
		return domain.WishlistSnapshot{}, errors.New("memory: uid is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := domain.WishlistSnapshot{
		UserID:    uid,
		Entries:   append([]domain.CardRef{}, entries...),
		UpdatedAt: r.now().UTC(),
	}
	r.lists[uid] = snap
	for w := range r.watchers[uid] {
		w.Offer(copyWishlist(snap))
	}
	return copyWishlist(snap), nil
}

// Watch implements repositories.WishlistRepository.
func (r *WishlistRepository) Watch(ctx context.Context, uid string) (<-chan domain.WishlistSnapshot, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, errors.New("memory: uid is required")
	}
	mailbox := repositories.NewLatest[domain.WishlistSnapshot]()

	r.mu.Lock()
	if r.watchers[uid] == nil {
		r.watchers[uid] = make(map[*repositories.Latest[domain.WishlistSnapshot]]struct{})
	}
	r.watchers[uid][mailbox] = struct{}{}
	mailbox.Offer(r.snapshotLocked(uid))
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.watchers[uid], mailbox)
		if len(r.watchers[uid]) == 0 {
			delete(r.watchers, uid)
		}
		mailbox.Close()
		r.mu.Unlock()
	}()
	return mailbox.C(), nil
}

// Watchers reports how many live watchers uid has.
func (r *WishlistRepository) Watchers(uid string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watchers[uid])
}

func (r *WishlistRepository) snapshotLocked(uid string) domain.WishlistSnapshot {
	snap, ok := r.lists[uid]
	if !ok {
		return domain.WishlistSnapshot{UserID: uid, Entries: []domain.CardRef{}}
	}
	return copyWishlist(snap)
}

func copyWishlist(snap domain.WishlistSnapshot) domain.WishlistSnapshot {
	snap.Entries = append([]domain.CardRef{}, snap.Entries...)
	return snap
}

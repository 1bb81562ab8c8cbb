package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/pocket-tcg/api/internal/domain"
	"github.com/pocket-tcg/api/internal/repositories"
)

// DirectoryRepository holds the user directory keyed by uid.
type DirectoryRepository struct {
	mu        sync.Mutex
	now       func() time.Time
	users     map[string]domain.UserSummary
	updatedAt time.Time
	watchers  map[*repositories.Latest[domain.DirectorySnapshot]]struct{}
}

var _ repositories.DirectoryRepository = (*DirectoryRepository)(nil)

// NewDirectoryRepository returns an empty directory.
func NewDirectoryRepository() *DirectoryRepository {
	return &DirectoryRepository{
		now:      time.Now,
		users:    make(map[string]domain.UserSummary),
		watchers: make(map[*repositories.Latest[domain.DirectorySnapshot]]struct{}),
	}
}

// Upsert implements repositories.DirectoryRepository.
func (r *DirectoryRepository) Upsert(_ context.Context, user domain.UserSummary) error {
	if strings.TrimSpace(user.UID) == "" {
		return errors.New("memory: uid is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.UID] = user
	r.updatedAt = r.now().UTC()
	snap := r.snapshotLocked()
	for w := range r.watchers {
		w.Offer(snap)
	}
	return nil
}

// List implements repositories.DirectoryRepository. Users come back in uid order; callers
// apply their own display ordering.
func (r *DirectoryRepository) List(context.Context) (domain.DirectorySnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(), nil
}

// Watch implements repositories.DirectoryRepository.
func (r *DirectoryRepository) Watch(ctx context.Context) (<-chan domain.DirectorySnapshot, error) {
	mailbox := repositories.NewLatest[domain.DirectorySnapshot]()
	r.mu.Lock()
	r.watchers[mailbox] = struct{}{}
	mailbox.Offer(r.snapshotLocked())
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.watchers, mailbox)
		mailbox.Close()
		r.mu.Unlock()
	}()
	return mailbox.C(), nil
}

func (r *DirectoryRepository) snapshotLocked() domain.DirectorySnapshot {
	users := make([]domain.UserSummary, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UID < users[j].UID })
	return domain.DirectorySnapshot{Users: users, UpdatedAt: r.updatedAt}
}

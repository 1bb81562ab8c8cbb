package rtdb

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/pocket-tcg/api/internal/domain"
	prtdb "github.com/pocket-tcg/api/internal/platform/rtdb"
	"github.com/pocket-tcg/api/internal/repositories"
)

// DirectoryRepository reads and writes /users.
type DirectoryRepository struct {
	refs     prtdb.RefSource
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

var _ repositories.DirectoryRepository = (*DirectoryRepository)(nil)

// NewDirectoryRepository polls every interval when watching.
func NewDirectoryRepository(refs prtdb.RefSource, interval time.Duration, opts ...repositories.Option) (*DirectoryRepository, error) {
	if refs == nil {
		return nil, errors.New("directory repository requires a realtime database source")
	}
	if interval <= 0 {
		return nil, errors.New("directory repository requires a positive poll interval")
	}
	options := repositories.ApplyOptions(opts...)
	return &DirectoryRepository{refs: refs, interval: interval, now: time.Now, logger: options.Logger}, nil
}

// Upsert writes {uid, displayName} at /users/{uid}.
func (r *DirectoryRepository) Upsert(ctx context.Context, user domain.UserSummary) error {
	if strings.TrimSpace(user.UID) == "" {
		return errors.New("uid is required")
	}
	path, err := prtdb.Path(usersRoot, user.UID)
	if err != nil {
		return err
	}
	ref, err := r.refs.Ref(ctx, path)
	if err != nil {
		return err
	}
	return prtdb.WrapError("users.set", ref.Set(ctx, user))
}

// List implements repositories.DirectoryRepository.
func (r *DirectoryRepository) List(ctx context.Context) (domain.DirectorySnapshot, error) {
	ref, err := r.root(ctx)
	if err != nil {
		return domain.DirectorySnapshot{}, err
	}
	var users map[string]domain.UserSummary
	if err := ref.Get(ctx, &users); err != nil {
		return domain.DirectorySnapshot{}, prtdb.WrapError("users.get", err)
	}
	return r.snapshot(users), nil
}

// Watch implements repositories.DirectoryRepository.
func (r *DirectoryRepository) Watch(ctx context.Context) (<-chan domain.DirectorySnapshot, error) {
	ref, err := r.root(ctx)
	if err != nil {
		return nil, err
	}
	mailbox := repositories.NewLatest[domain.DirectorySnapshot]()
	go func() {
		defer mailbox.Close()
		err := prtdb.Poll(ctx, ref, r.interval, func(users map[string]domain.UserSummary) error {
			mailbox.Offer(r.snapshot(users))
			return nil
		})
		repositories.LogWatchEnd(r.logger, "users.watch", err)
	}()
	return mailbox.C(), nil
}

func (r *DirectoryRepository) root(ctx context.Context) (prtdb.Ref, error) {
	path, err := prtdb.Path(usersRoot)
	if err != nil {
		return nil, err
	}
	return r.refs.Ref(ctx, path)
}

func (r *DirectoryRepository) snapshot(users map[string]domain.UserSummary) domain.DirectorySnapshot {
	snap := domain.DirectorySnapshot{Users: make([]domain.UserSummary, 0, len(users)), UpdatedAt: r.now().UTC()}
	for key, user := range users {
		if user.UID == "" {
			user.UID = key
		}
		snap.Users = append(snap.Users, user)
	}
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].UID < snap.Users[j].UID })
	return snap
}

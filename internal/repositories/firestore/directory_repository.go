package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"

	domain "github.com/pocket-tcg/api/internal/domain"
	pfirestore "github.com/pocket-tcg/api/internal/platform/firestore"
	"github.com/pocket-tcg/api/internal/repositories"
)

const userCollection = "users"

type userDocument struct {
	UID         string    `firestore:"uid"`
	DisplayName string    `firestore:"displayName"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// DirectoryRepository maps users/{uid} documents to directory entries.
type DirectoryRepository struct {
	base   *pfirestore.BaseRepository[userDocument]
	now    func() time.Time
	logger *zap.Logger
}

var _ repositories.DirectoryRepository = (*DirectoryRepository)(nil)

// NewDirectoryRepository binds the repository to provider.
func NewDirectoryRepository(provider *pfirestore.Provider, opts ...repositories.Option) (*DirectoryRepository, error) {
	if provider == nil {
		return nil, errors.New("directory repository requires firestore provider")
	}
	options := repositories.ApplyOptions(opts...)
	return &DirectoryRepository{
		base:   pfirestore.NewBaseRepository[userDocument](provider, userCollection, nil, nil),
		now:    time.Now,
		logger: options.Logger,
	}, nil
}

// Upsert writes {uid, displayName} under the user's id.
func (r *DirectoryRepository) Upsert(ctx context.Context, user domain.UserSummary) error {
	if strings.TrimSpace(user.UID) == "" {
		return errors.New("uid is required")
	}
	_, err := r.base.Set(ctx, user.UID, userDocument{
		UID:         user.UID,
		DisplayName: user.DisplayName,
		UpdatedAt:   r.now().UTC(),
	})
	return err
}

// List reads the whole collection ordered by document id.
func (r *DirectoryRepository) List(ctx context.Context) (domain.DirectorySnapshot, error) {
	docs, err := r.base.Query(ctx, byDocumentID)
	if err != nil {
		return domain.DirectorySnapshot{}, err
	}
	return toDirectorySnapshot(docs), nil
}

// Watch streams the collection. The channel closes when ctx ends or the listener fails.
func (r *DirectoryRepository) Watch(ctx context.Context) (<-chan domain.DirectorySnapshot, error) {
	mailbox := repositories.NewLatest[domain.DirectorySnapshot]()
	go func() {
		defer mailbox.Close()
		err := r.base.WatchQuery(ctx, byDocumentID, func(docs []pfirestore.Document[userDocument]) error {
			mailbox.Offer(toDirectorySnapshot(docs))
			return nil
		})
		repositories.LogWatchEnd(r.logger, "users.watch", err)
	}()
	return mailbox.C(), nil
}

func byDocumentID(q firestore.Query) firestore.Query {
	return q.OrderBy(firestore.DocumentID, firestore.Asc)
}

func toDirectorySnapshot(docs []pfirestore.Document[userDocument]) domain.DirectorySnapshot {
	snap := domain.DirectorySnapshot{Users: make([]domain.UserSummary, 0, len(docs))}
	for _, doc := range docs {
		uid := doc.Data.UID
		if uid == "" {
			uid = doc.ID
		}
		snap.Users = append(snap.Users, domain.UserSummary{UID: uid, DisplayName: doc.Data.DisplayName})
		if doc.UpdateTime.After(snap.UpdatedAt) {
			snap.UpdatedAt = doc.UpdateTime
		}
	}
	return snap
}

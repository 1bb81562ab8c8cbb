package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/pocket-tcg/api/internal/domain"
)

func newWishlistFixture(t *testing.T) (WishlistService, *recordingWishlistRepo, *stubPublisher, *eventRecorder) {
	t.Helper()
	repo := newRecordingWishlistRepo()
	pub := &stubPublisher{}
	rec := &eventRecorder{}
	svc, err := NewWishlistService(WishlistServiceDeps{
		Repository: repo,
		Catalog:    tenCardCatalog(t),
		Publisher:  pub,
		Logger:     rec.log,
	})
	require.NoError(t, err)
	return svc, repo, pub, rec
}

func TestWishlistAddWritesFullSequence(t *testing.T) {
	svc, repo, pub, rec := newWishlistFixture(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, "uid-1", ref("A1", 2))
	require.NoError(t, err)
	change, err := svc.Add(ctx, "uid-1", ref("A2", 3))
	require.NoError(t, err)

	assert.True(t, change.Changed)
	assert.Equal(t, domain.WishlistActionAdded, change.Action)
	assert.Equal(t, []domain.CardRef{ref("A1", 2), ref("A2", 3)}, change.Snapshot.Entries)
	assert.Equal(t, [][]domain.CardRef{
		{ref("A1", 2)},
		{ref("A1", 2), ref("A2", 3)},
	}, repo.writes())

	require.Len(t, pub.events, 2)
	assert.Equal(t, "uid-1", pub.events[1].UserID)
	assert.Equal(t, 2, pub.events[1].EntryCount)
	assert.Equal(t, []string{wishlistEventUpdated, wishlistEventUpdated}, rec.names())
}

func TestWishlistAddIsIdempotent(t *testing.T) {
	svc, repo, pub, _ := newWishlistFixture(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, "uid-1", ref("A1", 1))
	require.NoError(t, err)
	change, err := svc.Add(ctx, "uid-1", ref("A1", 1))
	require.NoError(t, err)

	assert.False(t, change.Changed)
	assert.Empty(t, change.Action)
	assert.Equal(t, []domain.CardRef{ref("A1", 1)}, change.Snapshot.Entries)
	assert.Len(t, repo.writes(), 1)
	assert.Len(t, pub.events, 1)
}

func TestWishlistRemoveAbsentWritesNothing(t *testing.T) {
	svc, repo, _, _ := newWishlistFixture(t)

	change, err := svc.Remove(context.Background(), "uid-1", ref("A1", 4))
	require.NoError(t, err)
	assert.False(t, change.Changed)
	assert.Empty(t, repo.writes())
}

func TestWishlistToggle(t *testing.T) {
	svc, _, _, _ := newWishlistFixture(t)
	ctx := context.Background()

	change, err := svc.Toggle(ctx, "uid-1", ref("A2", 1))
	require.NoError(t, err)
	assert.Equal(t, domain.WishlistActionAdded, change.Action)

	change, err = svc.Toggle(ctx, "uid-1", ref("A2", 1))
	require.NoError(t, err)
	assert.Equal(t, domain.WishlistActionRemoved, change.Action)
	assert.Empty(t, change.Snapshot.Entries)
}

func TestWishlistRejectsUnknownCardAndMissingUser(t *testing.T) {
	svc, repo, _, _ := newWishlistFixture(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, "uid-1", ref("B9", 1))
	assert.ErrorIs(t, err, ErrWishlistUnknownCard)

	_, err = svc.Add(ctx, "  ", ref("A1", 1))
	assert.ErrorIs(t, err, ErrWishlistUserRequired)

	_, err = svc.Get(ctx, "")
	assert.ErrorIs(t, err, ErrWishlistUserRequired)

	assert.Empty(t, repo.writes())
}

func TestWishlistPublishFailureIsLoggedNotReturned(t *testing.T) {
	svc, _, pub, rec := newWishlistFixture(t)
	pub.err = errors.New("pubsub down")

	change, err := svc.Add(context.Background(), "uid-1", ref("A1", 1))
	require.NoError(t, err)
	assert.True(t, change.Changed)
	assert.Equal(t, []string{wishlistEventUpdated, wishlistEventPublishFailed}, rec.names())
}

func TestWishlistReadErrorAbortsMutation(t *testing.T) {
	svc, repo, _, _ := newWishlistFixture(t)
	repo.getErr = errors.New("store unavailable")

	_, err := svc.Add(context.Background(), "uid-1", ref("A1", 1))
	assert.Error(t, err)
	assert.Empty(t, repo.writes())
}

func TestWishlistConcurrentAddsKeepEveryEntry(t *testing.T) {
	svc, _, _, _ := newWishlistFixture(t)
	ctx := context.Background()

	refs := []domain.CardRef{ref("A1", 1), ref("A1", 2), ref("A1", 3), ref("A2", 1), ref("A2", 2)}
	errs := make(chan error, len(refs))
	for _, r := range refs {
		go func(r domain.CardRef) {
			_, err := svc.Add(ctx, "uid-1", r)
			errs <- err
		}(r)
	}
	for range refs {
		require.NoError(t, <-errs)
	}

	snap, err := svc.Get(ctx, "uid-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, refs, snap.Entries)
}

func TestNewWishlistServiceValidatesDeps(t *testing.T) {
	_, err := NewWishlistService(WishlistServiceDeps{Catalog: tenCardCatalog(t)})
	assert.Error(t, err)
	_, err = NewWishlistService(WishlistServiceDeps{Repository: newRecordingWishlistRepo()})
	assert.Error(t, err)
}

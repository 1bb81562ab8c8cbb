package services

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	domain "github.com/pocket-tcg/api/internal/domain"
	"github.com/pocket-tcg/api/internal/repositories/memory"
	"github.com/pocket-tcg/api/internal/view"
)

type browseFixture struct {
	browse    BrowseService
	wishlists WishlistService
	directory DirectoryService
	repo      *recordingWishlistRepo
}

func newBrowseFixture(t *testing.T) browseFixture {
	t.Helper()
	cat := tenCardCatalog(t)
	repo := newRecordingWishlistRepo()
	wishlists, err := NewWishlistService(WishlistServiceDeps{Repository: repo, Catalog: cat})
	require.NoError(t, err)
	directory, err := NewDirectoryService(DirectoryServiceDeps{Repository: memory.NewDirectoryRepository()})
	require.NoError(t, err)
	browse, err := NewBrowseService(BrowseServiceDeps{Catalog: cat, Wishlists: wishlists, Directory: directory})
	require.NoError(t, err)
	return browseFixture{browse: browse, wishlists: wishlists, directory: directory, repo: repo}
}

func (f browseFixture) register(t *testing.T, uid, name string) {
	t.Helper()
	_, err := f.directory.Register(context.Background(), RegisterUserCommand{UID: uid, DisplayName: name})
	require.NoError(t, err)
}

func windowRefs(res BrowseResult) []domain.CardRef {
	var out []domain.CardRef
	for _, c := range res.Window() {
		out = append(out, c.Ref())
	}
	return out
}

func TestBrowseSetFilterFitsOnePage(t *testing.T) {
	f := newBrowseFixture(t)

	res, err := f.browse.Resolve(context.Background(), BrowseRequest{
		UserID:  "me",
		Mode:    domain.ViewAllCards,
		Filters: domain.Filters{Set: "A1"},
		Page:    1,
	})
	require.NoError(t, err)

	want := []domain.CardRef{ref("A1", 1), ref("A1", 2), ref("A1", 3), ref("A1", 4), ref("A1", 5), ref("A1", 6)}
	if diff := cmp.Diff(want, windowRefs(res)); diff != "" {
		t.Fatalf("window mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, res.HasPrevPage)
	assert.False(t, res.HasNextPage)
	assert.Equal(t, "Showing Results 1 - 6 (Page 1/1)", res.Label())
	assert.Equal(t, "All Cards", res.Title)
}

func TestBrowseEmptyOwnWishlist(t *testing.T) {
	f := newBrowseFixture(t)

	res, err := f.browse.Resolve(context.Background(), BrowseRequest{UserID: "me", Mode: domain.ViewMyWishlist})
	require.NoError(t, err)
	assert.Empty(t, res.Cards)
	assert.True(t, res.NoResults)
	assert.Equal(t, "No results found", res.Label())
	assert.Equal(t, "My Wishlist", res.Title)
}

func TestBrowseClickAddsInAllCards(t *testing.T) {
	f := newBrowseFixture(t)
	ctx := context.Background()

	_, err := f.wishlists.Add(ctx, "me", ref("A1", 1))
	require.NoError(t, err)

	out, err := f.browse.Click(ctx, ClickRequest{UserID: "me", Mode: domain.ViewAllCards, Card: ref("A2", 2)})
	require.NoError(t, err)
	assert.Equal(t, view.ClickAdd, out.Action)
	assert.True(t, out.Wishlisted)
	assert.True(t, out.Change.Changed)

	writes := f.repo.writes()
	require.Len(t, writes, 2)
	assert.Equal(t, []domain.CardRef{ref("A1", 1), ref("A2", 2)}, writes[1])

	out, err = f.browse.Click(ctx, ClickRequest{UserID: "me", Mode: domain.ViewAllCards, Card: ref("A2", 2)})
	require.NoError(t, err)
	assert.Equal(t, view.ClickRemove, out.Action)
	assert.False(t, out.Wishlisted)
	assert.Equal(t, []domain.CardRef{ref("A1", 1)}, out.Change.Snapshot.Entries)
}

func TestBrowseClickOutsideAllCardsIsNoop(t *testing.T) {
	f := newBrowseFixture(t)

	out, err := f.browse.Click(context.Background(), ClickRequest{UserID: "me", Mode: domain.ViewMyWishlist, Card: ref("A1", 3)})
	require.NoError(t, err)
	assert.Equal(t, view.ClickNone, out.Action)
	assert.True(t, out.Wishlisted)
	assert.Empty(t, f.repo.writes())
}

func TestBrowseClickUnknownCard(t *testing.T) {
	f := newBrowseFixture(t)
	_, err := f.browse.Click(context.Background(), ClickRequest{UserID: "me", Card: ref("Z9", 1)})
	assert.ErrorIs(t, err, ErrWishlistUnknownCard)
}

func TestBrowseFriendWishlistIgnoresOwn(t *testing.T) {
	f := newBrowseFixture(t)
	ctx := context.Background()
	f.register(t, "me", "Me")
	f.register(t, "misty", "Misty")

	_, err := f.wishlists.Add(ctx, "me", ref("A1", 1))
	require.NoError(t, err)
	_, err = f.wishlists.Add(ctx, "misty", ref("A2", 4))
	require.NoError(t, err)
	_, err = f.wishlists.Add(ctx, "misty", ref("A1", 5))
	require.NoError(t, err)

	res, err := f.browse.Resolve(ctx, BrowseRequest{UserID: "me", Mode: domain.ViewFriendWishlist, FriendID: "misty"})
	require.NoError(t, err)
	assert.Equal(t, []domain.CardRef{ref("A1", 5), ref("A2", 4)}, windowRefs(res))
	assert.Equal(t, "Misty's Wishlist", res.Title)
	require.NotNil(t, res.Friend)
	assert.Equal(t, "misty", res.Friend.UID)
}

func TestBrowseFriendValidation(t *testing.T) {
	f := newBrowseFixture(t)
	ctx := context.Background()

	_, err := f.browse.Resolve(ctx, BrowseRequest{UserID: "me", Mode: domain.ViewFriendWishlist})
	assert.ErrorIs(t, err, ErrBrowseFriendRequired)

	_, err = f.browse.Resolve(ctx, BrowseRequest{UserID: "me", Mode: domain.ViewFriendWishlist, FriendID: "ghost"})
	assert.ErrorIs(t, err, ErrBrowseUnknownFriend)

	_, err = f.browse.Resolve(ctx, BrowseRequest{Mode: domain.ViewAllCards})
	assert.ErrorIs(t, err, ErrBrowseUserRequired)

	_, err = f.browse.Resolve(ctx, BrowseRequest{UserID: "me", Page: -1})
	assert.ErrorIs(t, err, ErrBrowseInvalidPage)
}

func TestBrowseMyFriendsListsDirectory(t *testing.T) {
	f := newBrowseFixture(t)
	f.register(t, "me", "Me")
	f.register(t, "ash", "Ash")

	res, err := f.browse.Resolve(context.Background(), BrowseRequest{UserID: "me", Mode: domain.ViewMyFriends})
	require.NoError(t, err)
	require.Len(t, res.Friends, 2)
	assert.Equal(t, "Ash", res.Friends[0].DisplayName)
	assert.Equal(t, "Me", res.Friends[1].DisplayName)
	assert.Len(t, res.Cards, view.PageSize)
	assert.Equal(t, "My Friends", res.Title)
}

func TestBrowsePagePastEndIsEmpty(t *testing.T) {
	f := newBrowseFixture(t)

	res, err := f.browse.Resolve(context.Background(), BrowseRequest{UserID: "me", Page: 3})
	require.NoError(t, err)
	assert.Empty(t, res.Cards)
	assert.Equal(t, "No results found", res.Label())
}

func receiveFrame(t *testing.T, ch <-chan BrowseFrame, match func(BrowseResult) bool) BrowseResult {
	t.Helper()
	for {
		frame := receive(t, ch)
		require.NoError(t, frame.Err)
		if match(frame.Result) {
			return frame.Result
		}
	}
}

func TestBrowseStreamFollowsOwnWishlist(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newBrowseFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := f.browse.Stream(ctx, BrowseRequest{UserID: "me", Mode: domain.ViewMyWishlist})
	require.NoError(t, err)
	first := receiveFrame(t, ch, func(BrowseResult) bool { return true })
	assert.True(t, first.NoResults)

	_, err = f.wishlists.Add(context.Background(), "me", ref("A2", 1))
	require.NoError(t, err)
	got := receiveFrame(t, ch, func(r BrowseResult) bool { return len(r.Cards) == 1 })
	assert.Equal(t, []domain.CardRef{ref("A2", 1)}, windowRefs(got))

	cancel()
	waitClosed(t, ch)
}

func TestBrowseStreamFollowsFriendAndDirectory(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newBrowseFixture(t)
	f.register(t, "me", "Me")
	f.register(t, "misty", "Misty")
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := f.browse.Stream(ctx, BrowseRequest{UserID: "me", Mode: domain.ViewFriendWishlist, FriendID: "misty"})
	require.NoError(t, err)
	first := receiveFrame(t, ch, func(BrowseResult) bool { return true })
	assert.Equal(t, "Misty's Wishlist", first.Title)

	_, err = f.wishlists.Add(context.Background(), "misty", ref("A1", 6))
	require.NoError(t, err)
	got := receiveFrame(t, ch, func(r BrowseResult) bool { return len(r.Cards) == 1 })
	assert.Equal(t, []domain.CardRef{ref("A1", 6)}, windowRefs(got))

	f.register(t, "misty", "Misty W")
	got = receiveFrame(t, ch, func(r BrowseResult) bool { return r.Title == "Misty W's Wishlist" })
	assert.Equal(t, "Misty W", got.Friend.DisplayName)

	cancel()
	waitClosed(t, ch)
}

func TestBrowseStreamUnknownFriendEndsWithError(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newBrowseFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := f.browse.Stream(ctx, BrowseRequest{UserID: "me", Mode: domain.ViewFriendWishlist, FriendID: "ghost"})
	require.NoError(t, err)
	frame := receive(t, ch)
	assert.ErrorIs(t, frame.Err, ErrBrowseUnknownFriend)
	waitClosed(t, ch)
}

func TestBrowseStreamValidatesRequest(t *testing.T) {
	f := newBrowseFixture(t)
	_, err := f.browse.Stream(context.Background(), BrowseRequest{Mode: domain.ViewAllCards})
	assert.ErrorIs(t, err, ErrBrowseUserRequired)
}

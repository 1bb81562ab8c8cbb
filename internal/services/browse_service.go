package services

import (
	"context"
	"errors"
	"strings"

	domain "github.com/pocket-tcg/api/internal/domain"
	"github.com/pocket-tcg/api/internal/repositories"
	"github.com/pocket-tcg/api/internal/view"
)

var (
	errBrowseUserRequired   = errors.New("browse: user id is required")
	errBrowseInvalidPage    = errors.New("browse: page must be at least 1")
	errBrowseFriendRequired = errors.New("browse: friend view requires a friend id")
	errBrowseUnknownFriend  = errors.New("browse: friend is not in the directory")
	errBrowseStreamClosed   = errors.New("browse: snapshot stream closed")
)

var (
	// ErrBrowseUserRequired indicates the caller did not supply a user id.
	ErrBrowseUserRequired = errBrowseUserRequired
	// ErrBrowseInvalidPage indicates a page below 1.
	ErrBrowseInvalidPage = errBrowseInvalidPage
	// ErrBrowseFriendRequired indicates the friend view was requested without a friend.
	ErrBrowseFriendRequired = errBrowseFriendRequired
	// ErrBrowseUnknownFriend indicates the selected friend is not a registered user.
	ErrBrowseUnknownFriend = errBrowseUnknownFriend
	// ErrBrowseStreamClosed indicates a backing watch ended while the stream was live.
	ErrBrowseStreamClosed = errBrowseStreamClosed
)

// BrowseServiceDeps bundles collaborators for NewBrowseService.
type BrowseServiceDeps struct {
	Catalog   CatalogSource
	Wishlists WishlistService
	Directory DirectoryService
	// ExcludeSelfFromFriends drops the signed-in user from the friends view.
	ExcludeSelfFromFriends bool
}

type browseService struct {
	cards       []domain.Card
	catalog     CatalogSource
	wishlists   WishlistService
	directory   DirectoryService
	excludeSelf bool
}

var _ BrowseService = (*browseService)(nil)

// NewBrowseService builds the browse service. The catalog is snapshotted once.
func NewBrowseService(deps BrowseServiceDeps) (BrowseService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("browse service: catalog is required")
	}
	if deps.Wishlists == nil {
		return nil, errors.New("browse service: wishlist service is required")
	}
	if deps.Directory == nil {
		return nil, errors.New("browse service: directory service is required")
	}
	return &browseService{
		cards:       deps.Catalog.Cards(),
		catalog:     deps.Catalog,
		wishlists:   deps.Wishlists,
		directory:   deps.Directory,
		excludeSelf: deps.ExcludeSelfFromFriends,
	}, nil
}

func (s *browseService) Resolve(ctx context.Context, req BrowseRequest) (BrowseResult, error) {
	req, err := normalizeBrowseRequest(req)
	if err != nil {
		return BrowseResult{}, err
	}

	own, err := s.wishlists.Get(ctx, req.UserID)
	if err != nil {
		return BrowseResult{}, err
	}

	var (
		users  []UserSummary
		friend []CardRef
	)
	if needsDirectory(req.Mode) {
		if users, err = s.directory.List(ctx); err != nil {
			return BrowseResult{}, err
		}
	}
	if req.Mode == domain.ViewFriendWishlist {
		if _, ok := view.FindUser(users, req.FriendID); !ok {
			return BrowseResult{}, errBrowseUnknownFriend
		}
		snap, err := s.wishlists.Get(ctx, req.FriendID)
		if err != nil {
			return BrowseResult{}, err
		}
		friend = snap.Entries
	}
	return s.compose(req, own.Entries, friend, users)
}

func (s *browseService) Click(ctx context.Context, req ClickRequest) (ClickResult, error) {
	uid := strings.TrimSpace(req.UserID)
	if uid == "" {
		return ClickResult{}, errBrowseUserRequired
	}
	if !s.catalog.Contains(req.Card) {
		return ClickResult{}, ErrWishlistUnknownCard
	}

	own, err := s.wishlists.Get(ctx, uid)
	if err != nil {
		return ClickResult{}, err
	}

	action := view.Click(req.Mode, view.NewMembership(own.Entries), req.Card)
	change := WishlistChange{Snapshot: own}
	switch action {
	case view.ClickAdd:
		change, err = s.wishlists.Add(ctx, uid, req.Card)
	case view.ClickRemove:
		change, err = s.wishlists.Remove(ctx, uid, req.Card)
	}
	if err != nil {
		return ClickResult{}, err
	}

	return ClickResult{
		Action:     action,
		Wishlisted: view.Badge(req.Mode, view.NewMembership(change.Snapshot.Entries), req.Card),
		Change:     change,
	}, nil
}

// Stream re-resolves the view whenever the own wishlist, the friend's wishlist, or the directory
// changes. Only the newest frame is kept for a slow reader. The channel closes when ctx ends or
// after a frame carrying Err.
func (s *browseService) Stream(ctx context.Context, req BrowseRequest) (<-chan BrowseFrame, error) {
	req, err := normalizeBrowseRequest(req)
	if err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	ownCh, err := s.wishlists.Watch(watchCtx, req.UserID)
	if err != nil {
		cancel()
		return nil, err
	}
	var friendCh <-chan WishlistSnapshot
	if req.Mode == domain.ViewFriendWishlist {
		if friendCh, err = s.wishlists.Watch(watchCtx, req.FriendID); err != nil {
			cancel()
			return nil, err
		}
	}
	var usersCh <-chan []UserSummary
	if needsDirectory(req.Mode) {
		if usersCh, err = s.directory.Watch(watchCtx); err != nil {
			cancel()
			return nil, err
		}
	}

	out := repositories.NewLatest[BrowseFrame]()
	go func() {
		defer out.Close()
		defer cancel()

		var (
			own, friend                  []CardRef
			users                        []UserSummary
			haveOwn, haveFriend, haveDir bool
		)
		haveFriend = friendCh == nil
		haveDir = usersCh == nil

		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-ownCh:
				if !ok {
					s.endStream(ctx, out)
					return
				}
				own, haveOwn = snap.Entries, true
			case snap, ok := <-friendCh:
				if !ok {
					s.endStream(ctx, out)
					return
				}
				friend, haveFriend = snap.Entries, true
			case list, ok := <-usersCh:
				if !ok {
					s.endStream(ctx, out)
					return
				}
				users, haveDir = list, true
			}

			if !haveOwn || !haveFriend || !haveDir {
				continue
			}
			result, err := s.compose(req, own, friend, users)
			if err != nil {
				out.Offer(BrowseFrame{Err: err})
				return
			}
			out.Offer(BrowseFrame{Result: result})
		}
	}()
	return out.C(), nil
}

func (s *browseService) endStream(ctx context.Context, out *repositories.Latest[BrowseFrame]) {
	if ctx.Err() == nil {
		out.Offer(BrowseFrame{Err: errBrowseStreamClosed})
	}
}

func (s *browseService) compose(req BrowseRequest, own, friend []CardRef, users []UserSummary) (BrowseResult, error) {
	result := BrowseResult{
		Result: view.Resolve(s.cards, view.Request{
			Mode:    req.Mode,
			Filters: req.Filters,
			Page:    req.Page,
			Own:     own,
			Friend:  friend,
		}),
	}

	var friendName string
	switch req.Mode {
	case domain.ViewFriendWishlist:
		summary, ok := view.FindUser(users, req.FriendID)
		if !ok {
			return BrowseResult{}, errBrowseUnknownFriend
		}
		result.Friend = &summary
		friendName = summary.DisplayName
	case domain.ViewMyFriends:
		result.Friends = view.Friends(users, req.UserID, s.excludeSelf)
	}
	result.Title = view.Title(req.Mode, friendName)
	return result, nil
}

func normalizeBrowseRequest(req BrowseRequest) (BrowseRequest, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.FriendID = strings.TrimSpace(req.FriendID)
	if req.UserID == "" {
		return req, errBrowseUserRequired
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.Page < 1 {
		return req, errBrowseInvalidPage
	}
	if req.Mode == domain.ViewFriendWishlist && req.FriendID == "" {
		return req, errBrowseFriendRequired
	}
	if req.Mode != domain.ViewFriendWishlist {
		req.FriendID = ""
	}
	return req, nil
}

func needsDirectory(mode domain.ViewMode) bool {
	return mode == domain.ViewFriendWishlist || mode == domain.ViewMyFriends
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pocket-tcg/api/internal/platform/httpx"
	"github.com/pocket-tcg/api/internal/services"
	"github.com/pocket-tcg/api/internal/view"
)

// WishlistHandlers exposes the signed-in user's wishlist and the read-only directory views.
type WishlistHandlers struct {
	wishlists services.WishlistService
	directory services.DirectoryService
	limiter   *WriteLimiter
}

// NewWishlistHandlers builds the wishlist handlers. limiter may be nil.
func NewWishlistHandlers(wishlists services.WishlistService, directory services.DirectoryService, limiter *WriteLimiter) *WishlistHandlers {
	return &WishlistHandlers{wishlists: wishlists, directory: directory, limiter: limiter}
}

// Routes registers /me/wishlist endpoints.
func (h *WishlistHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/wishlist", h.getOwn)
	r.Group(func(g chi.Router) {
		g.Use(h.limiter.Middleware())
		g.Put("/wishlist/{set}/{number}", h.add)
		g.Delete("/wishlist/{set}/{number}", h.remove)
	})
}

// UserRoutes registers /users endpoints.
func (h *WishlistHandlers) UserRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listFriends)
	r.Get("/{uid}/wishlist", h.getFriend)
}

type wishlistChangeResponse struct {
	Changed  bool            `json:"changed"`
	Action   string          `json:"action,omitempty"`
	Wishlist wishlistPayload `json:"wishlist"`
}

type usersResponse struct {
	Users []userPayload `json:"users"`
}

type friendWishlistResponse struct {
	User     userPayload     `json:"user"`
	Wishlist wishlistPayload `json:"wishlist"`
}

func (h *WishlistHandlers) getOwn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wishlists == nil {
		serviceUnavailable(ctx, w, "wishlist")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	snap, err := h.wishlists.Get(ctx, identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildWishlistPayload(snap))
}

func (h *WishlistHandlers) add(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, true)
}

func (h *WishlistHandlers) remove(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, false)
}

func (h *WishlistHandlers) mutate(w http.ResponseWriter, r *http.Request, add bool) {
	ctx := r.Context()
	if h.wishlists == nil {
		serviceUnavailable(ctx, w, "wishlist")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	ref, ok := cardRefFromPath(r)
	if !ok {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_card", "card must be addressed as {set}/{number}"))
		return
	}
	apply := h.wishlists.Remove
	if add {
		apply = h.wishlists.Add
	}
	change, err := apply(ctx, identity.UID, ref)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, wishlistChangeResponse{
		Changed:  change.Changed,
		Action:   change.Action,
		Wishlist: buildWishlistPayload(change.Snapshot),
	})
}

func (h *WishlistHandlers) listFriends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.directory == nil {
		serviceUnavailable(ctx, w, "directory")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	friends, err := h.directory.Friends(ctx, identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, usersResponse{Users: toUserPayloads(friends)})
}

func (h *WishlistHandlers) getFriend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.directory == nil || h.wishlists == nil {
		serviceUnavailable(ctx, w, "directory")
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	uid := strings.TrimSpace(chi.URLParam(r, "uid"))
	users, err := h.directory.List(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	user, found := view.FindUser(users, uid)
	if !found {
		writeServiceError(ctx, w, services.ErrBrowseUnknownFriend)
		return
	}
	snap, err := h.wishlists.Get(ctx, uid)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, friendWishlistResponse{
		User:     toUserPayload(user),
		Wishlist: buildWishlistPayload(snap),
	})
}

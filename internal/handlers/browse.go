package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/pocket-tcg/api/internal/domain"
	"github.com/pocket-tcg/api/internal/platform/httpx"
	"github.com/pocket-tcg/api/internal/platform/pagination"
	"github.com/pocket-tcg/api/internal/services"
)

// BrowseHandlers serves the resolved card views and card clicks.
type BrowseHandlers struct {
	browse      services.BrowseService
	images      ImageURLs
	limiter     *WriteLimiter
	idempotency func(http.Handler) http.Handler
}

// BrowseOption customises BrowseHandlers.
type BrowseOption func(*BrowseHandlers)

// WithBrowseWriteLimiter throttles card clicks per user.
func WithBrowseWriteLimiter(l *WriteLimiter) BrowseOption {
	return func(h *BrowseHandlers) { h.limiter = l }
}

// WithBrowseIdempotency wraps the click route with an idempotency middleware.
func WithBrowseIdempotency(mw func(http.Handler) http.Handler) BrowseOption {
	return func(h *BrowseHandlers) { h.idempotency = mw }
}

// NewBrowseHandlers builds the browse handlers.
func NewBrowseHandlers(browse services.BrowseService, images ImageURLs, opts ...BrowseOption) *BrowseHandlers {
	h := &BrowseHandlers{browse: browse, images: images}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers /me/view endpoints. Callers mount it behind RequireFirebaseAuth.
func (h *BrowseHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/view", h.getView)
	r.Group(func(g chi.Router) {
		g.Use(h.limiter.Middleware())
		if h.idempotency != nil {
			g.Use(h.idempotency)
		}
		g.Post("/view/click", h.click)
	})
}

func (h *BrowseHandlers) getView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.browse == nil {
		serviceUnavailable(ctx, w, "browse")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	query, err := pagination.FromRequest(r)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	res, err := h.browse.Resolve(ctx, browseRequest(identity.UID, query))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildViewPayload(res, h.images))
}

type clickRequest struct {
	View   string `json:"view"`
	Set    string `json:"set"`
	Number int    `json:"number"`
}

type clickResponse struct {
	Action     string          `json:"action"`
	Wishlisted bool            `json:"wishlisted"`
	Changed    bool            `json:"changed"`
	Wishlist   wishlistPayload `json:"wishlist"`
}

func (h *BrowseHandlers) click(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.browse == nil {
		serviceUnavailable(ctx, w, "browse")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var body clickRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		return
	}
	mode, err := domain.ParseViewMode(body.View)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_view", err.Error()))
		return
	}
	ref := domain.CardRef{Set: strings.TrimSpace(body.Set), Number: body.Number}
	if ref.Set == "" || ref.Number <= 0 {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_card", "set and a positive number are required"))
		return
	}

	res, err := h.browse.Click(ctx, services.ClickRequest{UserID: identity.UID, Mode: mode, Card: ref})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, clickResponse{
		Action:     res.Action.String(),
		Wishlisted: res.Wishlisted,
		Changed:    res.Change.Changed,
		Wishlist:   buildWishlistPayload(res.Change.Snapshot),
	})
}

func browseRequest(uid string, q pagination.Query) services.BrowseRequest {
	return services.BrowseRequest{
		UserID:   uid,
		Mode:     q.View,
		FriendID: q.Friend,
		Filters:  q.Filters,
		Page:     q.Page,
	}
}

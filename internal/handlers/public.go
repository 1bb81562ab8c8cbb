package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pocket-tcg/api/internal/catalog"
	domain "github.com/pocket-tcg/api/internal/domain"
	"github.com/pocket-tcg/api/internal/platform/httpx"
	"github.com/pocket-tcg/api/internal/services"
	"github.com/pocket-tcg/api/internal/view"
)

const catalogCacheControl = "public, max-age=300"

// PublicHandlers serves catalog metadata that needs no sign-in.
type PublicHandlers struct {
	catalog services.CatalogSource
	images  ImageURLs
}

// NewPublicHandlers builds the public handlers.
func NewPublicHandlers(cat services.CatalogSource, images ImageURLs) *PublicHandlers {
	return &PublicHandlers{catalog: cat, images: images}
}

// Routes registers /public endpoints.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/catalog/options", h.options)
	r.Get("/cards/{set}/{number}/image", h.image)
}

type catalogOptionsResponse struct {
	catalog.Options
	PageSize  int `json:"pageSize"`
	CardCount int `json:"cardCount"`
}

func (h *PublicHandlers) options(w http.ResponseWriter, r *http.Request) {
	count := 0
	if h.catalog != nil {
		count = len(h.catalog.Cards())
	}
	w.Header().Set("Cache-Control", catalogCacheControl)
	httpx.WriteJSON(w, http.StatusOK, catalogOptionsResponse{
		Options:   catalog.FilterOptions(),
		PageSize:  view.PageSize,
		CardCount: count,
	})
}

func (h *PublicHandlers) image(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.images == nil || h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	ref, ok := cardRefFromPath(r)
	if !ok {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_card", "card must be addressed as {set}/{number}"))
		return
	}
	if !h.catalog.Contains(ref) {
		httpx.WriteError(ctx, w, httpx.NotFound("card_not_found", "card is not in the catalog"))
		return
	}
	w.Header().Set("Cache-Control", catalogCacheControl)
	http.Redirect(w, r, h.images.URL(ref), http.StatusFound)
}

func cardRefFromPath(r *http.Request) (domain.CardRef, bool) {
	set := strings.TrimSpace(chi.URLParam(r, "set"))
	number, err := strconv.Atoi(strings.TrimSpace(chi.URLParam(r, "number")))
	if set == "" || err != nil || number <= 0 {
		return domain.CardRef{}, false
	}
	return domain.CardRef{Set: set, Number: number}, true
}

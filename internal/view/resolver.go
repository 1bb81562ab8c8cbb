// Package view derives the visible, paginated card window for each wishlist view.
//
// Everything here is pure: the resolver never touches the store, so callers re-run it
// whenever a fresh wishlist snapshot arrives.
package view

import (
	"fmt"
	"strings"

	domain "github.com/pocket-tcg/api/internal/domain"
)

// PageSize is the fixed number of cards per page for every view.
const PageSize = 9

// Request carries the resolver inputs. Own and Friend are wishlist entry sequences; Friend is
// ignored unless Mode is domain.ViewFriendWishlist.
type Request struct {
	Mode    domain.ViewMode
	Filters domain.Filters
	Page    int
	Own     []domain.CardRef
	Friend  []domain.CardRef
}

// CardView is one card in the page window along with its badge and click behaviour.
type CardView struct {
	Card       domain.Card
	Wishlisted bool
	OnClick    ClickAction
}

// Result is the resolved page window and its pagination state.
type Result struct {
	Mode    domain.ViewMode
	Filters domain.Filters
	Page    int
	Cards   []CardView

	Total         int
	ResultMin     int
	ResultMax     int
	NumberOfPages int
	HasPrevPage   bool
	HasNextPage   bool
	NoResults     bool
}

// Resolve selects, filters, and paginates the catalog for the requested view.
func Resolve(catalog []domain.Card, req Request) Result {
	own := NewMembership(req.Own)

	var selected []domain.Card
	switch req.Mode {
	case domain.ViewMyWishlist:
		selected = own.Select(catalog)
	case domain.ViewFriendWishlist:
		selected = NewMembership(req.Friend).Select(catalog)
	default:
		selected = catalog
	}

	filtered := Filter(selected, req.Filters)
	total := len(filtered)

	// Pages past the end collapse to [total, total) before any multiplication can overflow.
	resultMin, resultMax := total, total
	switch {
	case req.Page < 1:
		resultMin, resultMax = 0, 0
	case req.Page <= total/PageSize+1:
		resultMin = (req.Page - 1) * PageSize
		resultMax = min(req.Page*PageSize, total)
	}

	res := Result{
		Mode:          req.Mode,
		Filters:       req.Filters,
		Page:          req.Page,
		Total:         total,
		ResultMin:     resultMin,
		ResultMax:     resultMax,
		NumberOfPages: (total + PageSize - 1) / PageSize,
		HasPrevPage:   resultMin > 0,
		HasNextPage:   resultMax < total,
		NoResults:     total == 0,
	}

	lo, hi := windowBounds(resultMin, resultMax, total)
	res.Cards = make([]CardView, 0, hi-lo)
	for _, card := range filtered[lo:hi] {
		res.Cards = append(res.Cards, CardView{
			Card:       card,
			Wishlisted: Badge(req.Mode, own, card.Ref()),
			OnClick:    Click(req.Mode, own, card.Ref()),
		})
	}
	return res
}

// Filter applies the set, rarity, and type filters in that order. Set and rarity match exactly;
// type matches by prefix. The input slice is never modified.
func Filter(cards []domain.Card, f domain.Filters) []domain.Card {
	out := cards
	if f.Set != "" {
		out = keep(out, func(c domain.Card) bool { return c.Set == f.Set })
	}
	if f.Rarity != "" {
		out = keep(out, func(c domain.Card) bool { return c.Rarity == f.Rarity })
	}
	if f.Type != "" {
		out = keep(out, func(c domain.Card) bool { return strings.HasPrefix(c.Type, f.Type) })
	}
	return out
}

// Window returns the cards currently visible in the result.
func (r Result) Window() []domain.Card {
	out := make([]domain.Card, 0, len(r.Cards))
	for _, cv := range r.Cards {
		out = append(out, cv.Card)
	}
	return out
}

// Label renders the range summary shown above the card grid. An empty window reads as no
// results even when the filtered sequence is non-empty, so a page past the end never shows an
// inverted range.
func (r Result) Label() string {
	if len(r.Cards) == 0 {
		return "No results found"
	}
	return fmt.Sprintf("Showing Results %d - %d (Page %d/%d)", r.ResultMin+1, r.ResultMax, r.Page, r.NumberOfPages)
}

// Title names the view for display. friendName is used only for the friend wishlist view.
func Title(mode domain.ViewMode, friendName string) string {
	switch mode {
	case domain.ViewMyWishlist:
		return "My Wishlist"
	case domain.ViewMyFriends:
		return "My Friends"
	case domain.ViewFriendWishlist:
		return friendName + "'s Wishlist"
	default:
		return "All Cards"
	}
}

// windowBounds clamps [resultMin, resultMax) to valid slice bounds. Pages past the end, and
// pages below 1, produce an empty window.
func windowBounds(resultMin, resultMax, total int) (int, int) {
	lo := resultMin
	if lo < 0 {
		lo = 0
	}
	if lo > total {
		lo = total
	}
	hi := resultMax
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func keep(cards []domain.Card, pred func(domain.Card) bool) []domain.Card {
	out := make([]domain.Card, 0, len(cards))
	for _, c := range cards {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out
}

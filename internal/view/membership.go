package view

import domain "github.com/pocket-tcg/api/internal/domain"

// ClickAction is the wishlist mutation a card click triggers.
type ClickAction int

const (
	// ClickNone leaves the wishlist untouched.
	ClickNone ClickAction = iota
	// ClickAdd appends the card to the signed-in user's wishlist.
	ClickAdd
	// ClickRemove removes the card from the signed-in user's wishlist.
	ClickRemove
)

func (a ClickAction) String() string {
	switch a {
	case ClickAdd:
		return "add"
	case ClickRemove:
		return "remove"
	default:
		return "none"
	}
}

// MarshalText encodes the action name for JSON payloads.
func (a ClickAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Membership answers exact (set, number) membership questions for a wishlist.
type Membership map[domain.CardRef]struct{}

// NewMembership indexes the supplied entries.
func NewMembership(entries []domain.CardRef) Membership {
	m := make(Membership, len(entries))
	for _, e := range entries {
		m[e] = struct{}{}
	}
	return m
}

// Has reports whether ref is a member.
func (m Membership) Has(ref domain.CardRef) bool {
	_, ok := m[ref]
	return ok
}

// Select returns the catalog cards that are members, in catalog order.
func (m Membership) Select(catalog []domain.Card) []domain.Card {
	return keep(catalog, func(c domain.Card) bool { return m.Has(c.Ref()) })
}

// Badge reports whether a card renders as wishlisted. Only the all-cards view reflects real
// membership; every other view shows its cards as wishlisted.
func Badge(mode domain.ViewMode, own Membership, ref domain.CardRef) bool {
	if mode != domain.ViewAllCards {
		return true
	}
	return own.Has(ref)
}

// Click returns the action a click on ref performs. Clicks toggle membership in the all-cards
// view and do nothing elsewhere.
func Click(mode domain.ViewMode, own Membership, ref domain.CardRef) ClickAction {
	if mode != domain.ViewAllCards {
		return ClickNone
	}
	if own.Has(ref) {
		return ClickRemove
	}
	return ClickAdd
}

// Add returns entries with ref appended, or entries unchanged (and false) when it is already present.
func Add(entries []domain.CardRef, ref domain.CardRef) ([]domain.CardRef, bool) {
	for _, e := range entries {
		if e == ref {
			return entries, false
		}
	}
	out := make([]domain.CardRef, 0, len(entries)+1)
	out = append(out, entries...)
	return append(out, ref), true
}

// Remove returns entries without any occurrence of ref, or entries unchanged (and false) when absent.
func Remove(entries []domain.CardRef, ref domain.CardRef) ([]domain.CardRef, bool) {
	out := make([]domain.CardRef, 0, len(entries))
	for _, e := range entries {
		if e != ref {
			out = append(out, e)
		}
	}
	if len(out) == len(entries) {
		return entries, false
	}
	return out, true
}

package domain

import (
	"errors"
	"strings"
)

// ViewMode selects which card sequence the resolver starts from.
type ViewMode int

const (
	// ViewAllCards shows the whole catalog with toggleable wishlist badges.
	ViewAllCards ViewMode = iota
	// ViewMyWishlist shows catalog cards present in the signed-in user's wishlist.
	ViewMyWishlist
	// ViewMyFriends shows the friends list alongside the full catalog.
	ViewMyFriends
	// ViewFriendWishlist shows catalog cards present in the selected friend's wishlist.
	ViewFriendWishlist
)

// ErrUnknownViewMode is returned when a view name cannot be parsed.
var ErrUnknownViewMode = errors.New("domain: unknown view mode")

var viewModeNames = map[ViewMode]string{
	ViewAllCards:       "all",
	ViewMyWishlist:     "wishlist",
	ViewMyFriends:      "friends",
	ViewFriendWishlist: "friend",
}

// String returns the query-string name of the view mode.
func (m ViewMode) String() string {
	if name, ok := viewModeNames[m]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the view mode using its query-string name.
func (m ViewMode) MarshalText() ([]byte, error) {
	if _, ok := viewModeNames[m]; !ok {
		return nil, ErrUnknownViewMode
	}
	return []byte(m.String()), nil
}

// UnmarshalText decodes a view mode name.
func (m *ViewMode) UnmarshalText(text []byte) error {
	parsed, err := ParseViewMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseViewMode converts a name (or one of its aliases) into a ViewMode. Empty input selects ViewAllCards.
func ParseViewMode(raw string) (ViewMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all", "all-cards", "allcards":
		return ViewAllCards, nil
	case "wishlist", "my-wishlist", "mywishlist":
		return ViewMyWishlist, nil
	case "friends", "my-friends", "myfriends":
		return ViewMyFriends, nil
	case "friend", "friend-wishlist", "friendwishlist":
		return ViewFriendWishlist, nil
	default:
		return ViewAllCards, ErrUnknownViewMode
	}
}

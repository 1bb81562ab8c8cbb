// Package pagination parses the view query string shared by the view, stream, and click routes.
package pagination

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pocket-tcg/api/internal/domain"
	"github.com/pocket-tcg/api/internal/view"
)

const (
	// FirstPage is the page used when the client omits page.
	FirstPage = 1
	// MaxPage keeps page window arithmetic inside int.
	MaxPage = math.MaxInt / view.PageSize

	maxFilterValueLength = 64
	maxUIDLength         = 128
)

var (
	ErrInvalidPage    = errors.New("pagination: invalid page")
	ErrInvalidView    = errors.New("pagination: invalid view")
	ErrInvalidFilter  = errors.New("pagination: invalid filter")
	ErrFriendRequired = errors.New("pagination: friend view requires a friend uid")
)

// Query is a parsed view request.
type Query struct {
	View    domain.ViewMode
	Friend  string
	Filters domain.Filters
	Page    int
}

// FromRequest parses r's query string.
func FromRequest(r *http.Request) (Query, error) {
	if r == nil {
		return Query{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query())
}

// Parse reads view, friend, set, rarity, type and page. A friend uid without an explicit view
// selects the friend's wishlist. Page defaults to 1 and must lie in [FirstPage, MaxPage]; pages
// past the end are left to the resolver.
func Parse(values url.Values) (Query, error) {
	if values == nil {
		values = url.Values{}
	}

	q := Query{Page: FirstPage}

	rawView := strings.TrimSpace(values.Get("view"))
	mode, err := domain.ParseViewMode(rawView)
	if err != nil {
		return Query{}, fmt.Errorf("%w: %q", ErrInvalidView, rawView)
	}
	q.View = mode

	friend := strings.TrimSpace(values.Get("friend"))
	if len(friend) > maxUIDLength {
		return Query{}, fmt.Errorf("%w: friend too long", ErrInvalidFilter)
	}
	if friend != "" && rawView == "" {
		q.View = domain.ViewFriendWishlist
	}
	if q.View == domain.ViewFriendWishlist {
		if friend == "" {
			return Query{}, ErrFriendRequired
		}
		q.Friend = friend
	}

	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"set", &q.Filters.Set},
		{"rarity", &q.Filters.Rarity},
		{"type", &q.Filters.Type},
	} {
		value := strings.TrimSpace(values.Get(f.name))
		if utf8.RuneCountInString(value) > maxFilterValueLength {
			return Query{}, fmt.Errorf("%w: %s too long", ErrInvalidFilter, f.name)
		}
		*f.dst = value
	}

	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < FirstPage || page > MaxPage {
			return Query{}, fmt.Errorf("%w: %q", ErrInvalidPage, raw)
		}
		q.Page = page
	}
	return q, nil
}

// Encode renders q back into query values, omitting defaults.
func (q Query) Encode() url.Values {
	values := url.Values{}
	if q.View != domain.ViewAllCards {
		values.Set("view", q.View.String())
	}
	if q.Friend != "" {
		values.Set("friend", q.Friend)
	}
	if q.Filters.Set != "" {
		values.Set("set", q.Filters.Set)
	}
	if q.Filters.Rarity != "" {
		values.Set("rarity", q.Filters.Rarity)
	}
	if q.Filters.Type != "" {
		values.Set("type", q.Filters.Type)
	}
	if q.Page > FirstPage {
		values.Set("page", strconv.Itoa(q.Page))
	}
	return values
}

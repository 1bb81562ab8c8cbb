package handlers

import (
	"time"

	domain "github.com/pocket-tcg/api/internal/domain"
	"github.com/pocket-tcg/api/internal/services"
	"github.com/pocket-tcg/api/internal/view"
)

// ImageURLs renders card artwork URLs.
type ImageURLs interface {
	URL(ref domain.CardRef) string
}

type cardPayload struct {
	Set        string `json:"set"`
	Number     int    `json:"number"`
	Name       string `json:"name,omitempty"`
	Rarity     string `json:"rarity"`
	Type       string `json:"type"`
	ImageURL   string `json:"imageUrl,omitempty"`
	Wishlisted bool   `json:"wishlisted"`
	OnClick    string `json:"onClick"`
}

type userPayload struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
}

type viewPayload struct {
	View          string         `json:"view"`
	Title         string         `json:"title"`
	Friend        *userPayload   `json:"friend,omitempty"`
	Friends       []userPayload  `json:"friends,omitempty"`
	Filters       domain.Filters `json:"filters"`
	Page          int            `json:"page"`
	PageSize      int            `json:"pageSize"`
	Total         int            `json:"total"`
	ResultMin     int            `json:"resultMin"`
	ResultMax     int            `json:"resultMax"`
	NumberOfPages int            `json:"numberOfPages"`
	HasPrevPage   bool           `json:"hasPrevPage"`
	HasNextPage   bool           `json:"hasNextPage"`
	NoResults     bool           `json:"noResults"`
	Label         string         `json:"label"`
	Cards         []cardPayload  `json:"cards"`
}

type wishlistPayload struct {
	UserID    string           `json:"userId"`
	Entries   []domain.CardRef `json:"entries"`
	UpdatedAt string           `json:"updatedAt,omitempty"`
}

func buildViewPayload(res services.BrowseResult, images ImageURLs) viewPayload {
	payload := viewPayload{
		View:          res.Mode.String(),
		Title:         res.Title,
		Filters:       res.Filters,
		Page:          res.Page,
		PageSize:      view.PageSize,
		Total:         res.Total,
		ResultMin:     res.ResultMin,
		ResultMax:     res.ResultMax,
		NumberOfPages: res.NumberOfPages,
		HasPrevPage:   res.HasPrevPage,
		HasNextPage:   res.HasNextPage,
		NoResults:     res.NoResults,
		Label:         res.Label(),
		Cards:         make([]cardPayload, 0, len(res.Cards)),
	}
	if res.Friend != nil {
		friend := toUserPayload(*res.Friend)
		payload.Friend = &friend
	}
	if res.Friends != nil {
		payload.Friends = toUserPayloads(res.Friends)
	}
	for _, cv := range res.Cards {
		payload.Cards = append(payload.Cards, buildCardPayload(cv, images))
	}
	return payload
}

func buildCardPayload(cv view.CardView, images ImageURLs) cardPayload {
	card := cardPayload{
		Set:        cv.Card.Set,
		Number:     cv.Card.Number,
		Name:       cv.Card.Name,
		Rarity:     cv.Card.Rarity,
		Type:       cv.Card.Type,
		Wishlisted: cv.Wishlisted,
		OnClick:    cv.OnClick.String(),
	}
	if images != nil {
		card.ImageURL = images.URL(cv.Card.Ref())
	}
	return card
}

func buildWishlistPayload(snap services.WishlistSnapshot) wishlistPayload {
	entries := snap.Entries
	if entries == nil {
		entries = []domain.CardRef{}
	}
	payload := wishlistPayload{UserID: snap.UserID, Entries: entries}
	if !snap.UpdatedAt.IsZero() {
		payload.UpdatedAt = snap.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return payload
}

func toUserPayload(u services.UserSummary) userPayload {
	return userPayload{UID: u.UID, DisplayName: u.DisplayName}
}

func toUserPayloads(users []services.UserSummary) []userPayload {
	out := make([]userPayload, 0, len(users))
	for _, u := range users {
		out = append(out, toUserPayload(u))
	}
	return out
}

package services

import (
	"context"
	"time"

	domain "github.com/pocket-tcg/api/internal/domain"
	"github.com/pocket-tcg/api/internal/view"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Card               = domain.Card
	CardRef            = domain.CardRef
	UserSummary        = domain.UserSummary
	WishlistSnapshot   = domain.WishlistSnapshot
	DirectorySnapshot  = domain.DirectorySnapshot
	SystemHealthReport = domain.SystemHealthReport
)

// EventLogger receives structured service events. main adapts it to zap.
type EventLogger func(ctx context.Context, event string, fields map[string]any)

// CatalogSource is the read-only card catalog.
type CatalogSource interface {
	Cards() []domain.Card
	Lookup(ref domain.CardRef) (domain.Card, bool)
	Contains(ref domain.CardRef) bool
}

// WishlistEventPublisher emits change notifications after a wishlist write.
type WishlistEventPublisher interface {
	PublishWishlistEvent(ctx context.Context, event domain.WishlistEvent) (string, error)
}

// WishlistService mutates and observes per-user wishlists. Every mutation writes the full
// sequence.
type WishlistService interface {
	Get(ctx context.Context, uid string) (WishlistSnapshot, error)
	Add(ctx context.Context, uid string, ref CardRef) (WishlistChange, error)
	Remove(ctx context.Context, uid string, ref CardRef) (WishlistChange, error)
	Toggle(ctx context.Context, uid string, ref CardRef) (WishlistChange, error)
	Watch(ctx context.Context, uid string) (<-chan WishlistSnapshot, error)
}

// WishlistChange reports the result of a mutation. Action is empty when nothing was written.
type WishlistChange struct {
	Snapshot WishlistSnapshot
	Action   string
	Changed  bool
}

// DirectoryService maintains the list of signed-in users.
type DirectoryService interface {
	Register(ctx context.Context, cmd RegisterUserCommand) (UserSummary, error)
	List(ctx context.Context) ([]UserSummary, error)
	Friends(ctx context.Context, self string) ([]UserSummary, error)
	Watch(ctx context.Context) (<-chan []UserSummary, error)
}

// RegisterUserCommand is the identity reported at sign-in.
type RegisterUserCommand struct {
	UID         string
	DisplayName string
	Email       string
}

// BrowseService resolves paginated card views for a signed-in user.
type BrowseService interface {
	Resolve(ctx context.Context, req BrowseRequest) (BrowseResult, error)
	Click(ctx context.Context, req ClickRequest) (ClickResult, error)
	Stream(ctx context.Context, req BrowseRequest) (<-chan BrowseFrame, error)
}

// BrowseRequest selects a view. FriendID is used only by the friend wishlist view.
type BrowseRequest struct {
	UserID   string
	Mode     domain.ViewMode
	FriendID string
	Filters  domain.Filters
	Page     int
}

// BrowseResult is a resolved page plus the view chrome the client renders around it.
type BrowseResult struct {
	view.Result
	Title  string
	Friend *UserSummary
	// Friends is populated in the friends view.
	Friends []UserSummary
}

// BrowseFrame is one push on a live view stream. A frame with Err set is the last one.
type BrowseFrame struct {
	Result BrowseResult
	Err    error
}

// ClickRequest is a card click in a given view.
type ClickRequest struct {
	UserID string
	Mode   domain.ViewMode
	Card   CardRef
}

// ClickResult reports what the click did and the card's badge afterwards.
type ClickResult struct {
	Action     view.ClickAction
	Wishlisted bool
	Change     WishlistChange
}

// SystemService reports process and dependency health.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

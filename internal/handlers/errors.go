package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/pocket-tcg/api/internal/platform/auth"
	"github.com/pocket-tcg/api/internal/platform/httpx"
	"github.com/pocket-tcg/api/internal/platform/pagination"
	"github.com/pocket-tcg/api/internal/platform/requestctx"
	"github.com/pocket-tcg/api/internal/repositories"
	"github.com/pocket-tcg/api/internal/services"
)

func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || identity.UID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func serviceUnavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError(name+"_service_unavailable", name+" service is unavailable", http.StatusServiceUnavailable))
}

// toHTTPError maps service and repository errors onto the API envelope. The second result is
// false when the error is unexpected and should be logged.
func toHTTPError(err error) (httpx.Error, bool) {
	switch {
	case errors.Is(err, pagination.ErrInvalidPage), errors.Is(err, services.ErrBrowseInvalidPage):
		return httpx.BadRequest("invalid_page", "page must be a positive integer"), true
	case errors.Is(err, pagination.ErrInvalidView):
		return httpx.BadRequest("invalid_view", err.Error()), true
	case errors.Is(err, pagination.ErrInvalidFilter):
		return httpx.BadRequest("invalid_filter", err.Error()), true
	case errors.Is(err, pagination.ErrFriendRequired), errors.Is(err, services.ErrBrowseFriendRequired):
		return httpx.BadRequest("friend_required", "the friend view needs a friend uid"), true
	case errors.Is(err, services.ErrBrowseUnknownFriend):
		return httpx.NotFound("friend_not_found", "friend not found"), true
	case errors.Is(err, services.ErrWishlistUnknownCard):
		return httpx.NotFound("card_not_found", "card is not in the catalog"), true
	case errors.Is(err, services.ErrWishlistUserRequired),
		errors.Is(err, services.ErrBrowseUserRequired),
		errors.Is(err, services.ErrDirectoryUserRequired):
		return httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized), true
	case errors.Is(err, services.ErrBrowseStreamClosed):
		return httpx.NewError("stream_closed", "live updates ended", http.StatusServiceUnavailable), true
	case errors.Is(err, context.DeadlineExceeded):
		return httpx.NewError("timeout", "the request timed out", http.StatusGatewayTimeout), true
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return httpx.NotFound("not_found", "resource not found"), true
		case repoErr.IsConflict():
			return httpx.NewError("conflict", "the wishlist changed; retry", http.StatusConflict), true
		case repoErr.IsUnavailable():
			return httpx.NewError("store_unavailable", "wishlist store is unavailable", http.StatusServiceUnavailable), false
		}
	}
	return httpx.Internal(), false
}

func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	apiErr, expected := toHTTPError(err)
	if !expected {
		requestctx.Logger(ctx).Error("request failed", zap.Error(err))
	}
	httpx.WriteError(ctx, w, apiErr)
}

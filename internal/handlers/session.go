package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pocket-tcg/api/internal/platform/auth"
	"github.com/pocket-tcg/api/internal/platform/httpx"
	"github.com/pocket-tcg/api/internal/services"
)

// SessionHandlers reports sign-in state and records signed-in users in the directory.
type SessionHandlers struct {
	authn     *auth.Authenticator
	directory services.DirectoryService
}

// NewSessionHandlers builds the session handlers.
func NewSessionHandlers(authn *auth.Authenticator, directory services.DirectoryService) *SessionHandlers {
	return &SessionHandlers{authn: authn, directory: directory}
}

// Routes registers GET /session on the API root. The identity is optional there.
func (h *SessionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(g chi.Router) {
		if h.authn != nil {
			g.Use(h.authn.OptionalFirebaseAuth())
		}
		g.Get("/session", h.getSession)
	})
}

// MeRoutes registers POST /me/session. Callers mount it behind RequireFirebaseAuth.
func (h *SessionHandlers) MeRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/session", h.signIn)
}

type sessionUserPayload struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

type sessionResponse struct {
	SignedIn bool                `json:"signedIn"`
	Loading  bool                `json:"loading"`
	User     *sessionUserPayload `json:"user"`
}

type signInRequest struct {
	DisplayName string `json:"displayName"`
}

func (h *SessionHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{}
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity.UID != "" {
		resp.SignedIn = true
		resp.User = &sessionUserPayload{
			UID:         identity.UID,
			DisplayName: identity.DisplayName,
			Email:       identity.Email,
		}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *SessionHandlers) signIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.directory == nil {
		serviceUnavailable(ctx, w, "directory")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var body signInRequest
	if err := httpx.DecodeJSON(r, &body); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		return
	}
	name := identity.DisplayName
	if body.DisplayName != "" {
		name = body.DisplayName
	}

	user, err := h.directory.Register(ctx, services.RegisterUserCommand{
		UID:         identity.UID,
		DisplayName: name,
		Email:       identity.Email,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		SignedIn: true,
		User: &sessionUserPayload{
			UID:         user.UID,
			DisplayName: user.DisplayName,
			Email:       identity.Email,
		},
	})
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/pocket-tcg/api/internal/catalog"
	domain "github.com/pocket-tcg/api/internal/domain"
	"github.com/pocket-tcg/api/internal/images"
	"github.com/pocket-tcg/api/internal/platform/auth"
	"github.com/pocket-tcg/api/internal/platform/idempotency"
	"github.com/pocket-tcg/api/internal/repositories/memory"
	"github.com/pocket-tcg/api/internal/services"
)

const testImageBase = "https://img.example.com/pocket"

// tokenVerifier accepts "token-<uid>" and rejects everything else.
type tokenVerifier struct {
	names map[string]string
}

func (v tokenVerifier) VerifyIDToken(_ context.Context, token string) (*firebaseauth.Token, error) {
	uid, ok := strings.CutPrefix(token, "token-")
	if !ok || uid == "" {
		return nil, errors.New("token rejected")
	}
	return &firebaseauth.Token{UID: uid, Claims: map[string]interface{}{
		"name":  v.names[uid],
		"email": uid + "@example.com",
	}}, nil
}

type testApp struct {
	router    http.Handler
	wishlists services.WishlistService
	directory services.DirectoryService
	repo      *memory.WishlistRepository
}

type appOptions struct {
	writesPerMinute int
	writeBurst      int
	clock           func() time.Time
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	var cards []domain.Card
	for i := 1; i <= 6; i++ {
		cards = append(cards, domain.Card{Set: "A1", Number: i, Rarity: "◊", Type: "G"})
	}
	for i := 1; i <= 4; i++ {
		cards = append(cards, domain.Card{Set: "A2", Number: i, Rarity: "◊◊", Type: "W"})
	}
	c, err := catalog.New(cards)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func newTestApp(t *testing.T, opts appOptions) testApp {
	t.Helper()
	cat := testCatalog(t)
	repo := memory.NewWishlistRepository()

	wishlists, err := services.NewWishlistService(services.WishlistServiceDeps{Repository: repo, Catalog: cat})
	if err != nil {
		t.Fatalf("wishlist service: %v", err)
	}
	directory, err := services.NewDirectoryService(services.DirectoryServiceDeps{Repository: memory.NewDirectoryRepository()})
	if err != nil {
		t.Fatalf("directory service: %v", err)
	}
	browse, err := services.NewBrowseService(services.BrowseServiceDeps{Catalog: cat, Wishlists: wishlists, Directory: directory})
	if err != nil {
		t.Fatalf("browse service: %v", err)
	}

	authn := auth.NewAuthenticator(tokenVerifier{names: map[string]string{"ash": "Ash", "misty": "Misty"}})
	imgs := images.NewResolver(testImageBase)
	limiter := NewWriteLimiter(opts.writesPerMinute, opts.writeBurst, opts.clock)

	session := NewSessionHandlers(authn, directory)
	browseHandlers := NewBrowseHandlers(browse, imgs,
		WithBrowseWriteLimiter(limiter),
		WithBrowseIdempotency(idempotency.Middleware(idempotency.NewMemoryStore())),
	)
	wishlistHandlers := NewWishlistHandlers(wishlists, directory, limiter)
	stream := NewStreamHandlers(browse, imgs, WithStreamTimeouts(50*time.Millisecond, time.Second, time.Second))

	router := NewRouter(
		WithPublicRoutes(NewPublicHandlers(cat, imgs).Routes),
		WithSessionRoutes(session.Routes),
		WithMeRoutes(Authenticated(authn, session.MeRoutes, browseHandlers.Routes, wishlistHandlers.Routes, stream.Routes)),
		WithUserRoutes(Authenticated(authn, wishlistHandlers.UserRoutes)),
	)
	return testApp{router: router, wishlists: wishlists, directory: directory, repo: repo}
}

func (a testApp) do(t *testing.T, method, path, uid, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set("Authorization", "Bearer token-"+uid)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return payload.Error
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func TestCatalogOptions(t *testing.T) {
	app := newTestApp(t, appOptions{})
	rr := app.do(t, http.MethodGet, "/api/v1/public/catalog/options", "", "")
	expectStatus(t, rr, http.StatusOK)

	body := decodeBody[catalogOptionsResponse](t, rr)
	if body.PageSize != 9 || body.CardCount != 10 {
		t.Fatalf("unexpected page size/card count: %+v", body)
	}
	if len(body.Sets) != 4 || body.Sets[0].Label != "Genetic Apex" {
		t.Fatalf("unexpected sets: %+v", body.Sets)
	}
}

func TestCardImageRedirect(t *testing.T) {
	app := newTestApp(t, appOptions{})

	rr := app.do(t, http.MethodGet, "/api/v1/public/cards/A1/4/image", "", "")
	expectStatus(t, rr, http.StatusFound)
	if loc := rr.Header().Get("Location"); loc != testImageBase+"/A1/A1_004_EN.webp" {
		t.Fatalf("unexpected location %s", loc)
	}

	rr = app.do(t, http.MethodGet, "/api/v1/public/cards/B9/1/image", "", "")
	expectStatus(t, rr, http.StatusNotFound)

	rr = app.do(t, http.MethodGet, "/api/v1/public/cards/A1/zero/image", "", "")
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestSessionAnonymousAndSignedIn(t *testing.T) {
	app := newTestApp(t, appOptions{})

	rr := app.do(t, http.MethodGet, "/api/v1/session", "", "")
	expectStatus(t, rr, http.StatusOK)
	anon := decodeBody[sessionResponse](t, rr)
	if anon.SignedIn || anon.Loading || anon.User != nil {
		t.Fatalf("expected anonymous session, got %+v", anon)
	}

	rr = app.do(t, http.MethodGet, "/api/v1/session", "", "", "Authorization", "Bearer garbage")
	expectStatus(t, rr, http.StatusOK)
	if decodeBody[sessionResponse](t, rr).SignedIn {
		t.Fatalf("invalid token must read as anonymous")
	}

	rr = app.do(t, http.MethodGet, "/api/v1/session", "ash", "")
	expectStatus(t, rr, http.StatusOK)
	signed := decodeBody[sessionResponse](t, rr)
	if !signed.SignedIn || signed.User == nil || signed.User.UID != "ash" || signed.User.DisplayName != "Ash" {
		t.Fatalf("unexpected session %+v", signed)
	}
}

func TestSignInRegistersDirectoryEntry(t *testing.T) {
	app := newTestApp(t, appOptions{})

	rr := app.do(t, http.MethodPost, "/api/v1/me/session", "", "")
	expectStatus(t, rr, http.StatusUnauthorized)

	rr = app.do(t, http.MethodPost, "/api/v1/me/session", "ash", "")
	expectStatus(t, rr, http.StatusOK)

	rr = app.do(t, http.MethodPost, "/api/v1/me/session", "misty", `{"displayName":"<b>Misty</b> W"}`)
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[sessionResponse](t, rr).User.DisplayName; got != "Misty W" {
		t.Fatalf("expected sanitised name, got %q", got)
	}

	users, err := app.directory.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 || users[0].UID != "ash" || users[1].UID != "misty" {
		t.Fatalf("unexpected directory %+v", users)
	}
}

func TestViewRequiresAuth(t *testing.T) {
	app := newTestApp(t, appOptions{})
	rr := app.do(t, http.MethodGet, "/api/v1/me/view", "", "")
	expectStatus(t, rr, http.StatusUnauthorized)
	if code := errorCode(t, rr.Body.Bytes()); code != "unauthenticated" {
		t.Fatalf("expected unauthenticated, got %s", code)
	}
}

func TestViewSetFilterSinglePage(t *testing.T) {
	app := newTestApp(t, appOptions{})
	rr := app.do(t, http.MethodGet, "/api/v1/me/view?set=A1", "ash", "")
	expectStatus(t, rr, http.StatusOK)

	body := decodeBody[viewPayload](t, rr)
	if len(body.Cards) != 6 || body.HasNextPage || body.HasPrevPage {
		t.Fatalf("unexpected window: %+v", body)
	}
	if body.Label != "Showing Results 1 - 6 (Page 1/1)" {
		t.Fatalf("unexpected label %q", body.Label)
	}
	if body.Cards[0].ImageURL != testImageBase+"/A1/A1_001_EN.webp" || body.Cards[0].OnClick != "add" {
		t.Fatalf("unexpected first card %+v", body.Cards[0])
	}
}

func TestViewEmptyWishlistAndPastEnd(t *testing.T) {
	app := newTestApp(t, appOptions{})

	rr := app.do(t, http.MethodGet, "/api/v1/me/view?view=wishlist", "ash", "")
	expectStatus(t, rr, http.StatusOK)
	body := decodeBody[viewPayload](t, rr)
	if len(body.Cards) != 0 || !body.NoResults || body.Label != "No results found" || body.Title != "My Wishlist" {
		t.Fatalf("unexpected empty wishlist payload %+v", body)
	}

	rr = app.do(t, http.MethodGet, "/api/v1/me/view?page=5", "ash", "")
	expectStatus(t, rr, http.StatusOK)
	if got := decodeBody[viewPayload](t, rr).Label; got != "No results found" {
		t.Fatalf("expected empty label past the end, got %q", got)
	}
}

func TestViewRejectsBadQueries(t *testing.T) {
	app := newTestApp(t, appOptions{})
	cases := map[string]string{
		"/api/v1/me/view?page=0":         "invalid_page",
		"/api/v1/me/view?page=x":         "invalid_page",
		"/api/v1/me/view?view=trades":    "invalid_view",
		"/api/v1/me/view?view=friend":    "friend_required",
		"/api/v1/me/view?friend=unknown": "friend_not_found",
	}
	for path, code := range cases {
		rr := app.do(t, http.MethodGet, path, "ash", "")
		if rr.Code != http.StatusBadRequest && rr.Code != http.StatusNotFound {
			t.Fatalf("%s: unexpected status %d", path, rr.Code)
		}
		if got := errorCode(t, rr.Body.Bytes()); got != code {
			t.Fatalf("%s: expected %s, got %s", path, code, got)
		}
	}
}

func TestFriendView(t *testing.T) {
	app := newTestApp(t, appOptions{})
	expectStatus(t, app.do(t, http.MethodPost, "/api/v1/me/session", "misty", ""), http.StatusOK)
	if _, err := app.wishlists.Add(context.Background(), "misty", domain.CardRef{Set: "A2", Number: 3}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rr := app.do(t, http.MethodGet, "/api/v1/me/view?friend=misty", "ash", "")
	expectStatus(t, rr, http.StatusOK)
	body := decodeBody[viewPayload](t, rr)
	if body.View != "friend" || body.Title != "Misty's Wishlist" || body.Friend == nil || body.Friend.UID != "misty" {
		t.Fatalf("unexpected friend view %+v", body)
	}
	if len(body.Cards) != 1 || body.Cards[0].Set != "A2" || body.Cards[0].Number != 3 || body.Cards[0].OnClick != "none" {
		t.Fatalf("unexpected friend cards %+v", body.Cards)
	}
}

func TestClickTogglesInAllCards(t *testing.T) {
	app := newTestApp(t, appOptions{})

	rr := app.do(t, http.MethodPost, "/api/v1/me/view/click", "ash", `{"view":"all","set":"A1","number":2}`)
	expectStatus(t, rr, http.StatusOK)
	body := decodeBody[clickResponse](t, rr)
	if body.Action != "add" || !body.Wishlisted || !body.Changed || len(body.Wishlist.Entries) != 1 {
		t.Fatalf("unexpected click response %+v", body)
	}

	rr = app.do(t, http.MethodPost, "/api/v1/me/view/click", "ash", `{"view":"all","set":"A1","number":2}`)
	expectStatus(t, rr, http.StatusOK)
	if body := decodeBody[clickResponse](t, rr); body.Action != "remove" || body.Wishlisted {
		t.Fatalf("expected removal, got %+v", body)
	}

	rr = app.do(t, http.MethodPost, "/api/v1/me/view/click", "ash", `{"view":"wishlist","set":"A1","number":2}`)
	expectStatus(t, rr, http.StatusOK)
	if body := decodeBody[clickResponse](t, rr); body.Action != "none" || body.Changed {
		t.Fatalf("expected no-op outside all cards, got %+v", body)
	}
}

func TestClickValidation(t *testing.T) {
	app := newTestApp(t, appOptions{})
	cases := []struct {
		body   string
		status int
		code   string
	}{
		{`{"view":"all","set":"A1"}`, http.StatusBadRequest, "invalid_card"},
		{`{"view":"nope","set":"A1","number":1}`, http.StatusBadRequest, "invalid_view"},
		{`{"view":"all","set":"Z9","number":1}`, http.StatusNotFound, "card_not_found"},
		{`{"view":"all","set":"A1","number":1,"extra":true}`, http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		rr := app.do(t, http.MethodPost, "/api/v1/me/view/click", "ash", tc.body)
		expectStatus(t, rr, tc.status)
		if code := errorCode(t, rr.Body.Bytes()); code != tc.code {
			t.Fatalf("%s: expected %s, got %s", tc.body, tc.code, code)
		}
	}
}

func TestClickIdempotencyKeyReplays(t *testing.T) {
	app := newTestApp(t, appOptions{})
	body := `{"view":"all","set":"A2","number":1}`

	first := app.do(t, http.MethodPost, "/api/v1/me/view/click", "ash", body, "Idempotency-Key", "k-1")
	expectStatus(t, first, http.StatusOK)
	second := app.do(t, http.MethodPost, "/api/v1/me/view/click", "ash", body, "Idempotency-Key", "k-1")
	expectStatus(t, second, http.StatusOK)

	if second.Header().Get("X-Idempotent-Replay") != "true" {
		t.Fatalf("expected replay header, got %v", second.Header())
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replayed body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}
	snap, _ := app.wishlists.Get(context.Background(), "ash")
	if len(snap.Entries) != 1 {
		t.Fatalf("replay must not toggle again, entries=%v", snap.Entries)
	}
}

func TestWishlistRoutes(t *testing.T) {
	app := newTestApp(t, appOptions{})

	rr := app.do(t, http.MethodPut, "/api/v1/me/wishlist/A1/5", "ash", "")
	expectStatus(t, rr, http.StatusOK)
	if body := decodeBody[wishlistChangeResponse](t, rr); !body.Changed || body.Action != domain.WishlistActionAdded {
		t.Fatalf("unexpected add response %+v", body)
	}

	rr = app.do(t, http.MethodPut, "/api/v1/me/wishlist/A1/5", "ash", "")
	expectStatus(t, rr, http.StatusOK)
	if body := decodeBody[wishlistChangeResponse](t, rr); body.Changed {
		t.Fatalf("second add must be a no-op, got %+v", body)
	}

	rr = app.do(t, http.MethodGet, "/api/v1/me/wishlist", "ash", "")
	expectStatus(t, rr, http.StatusOK)
	if body := decodeBody[wishlistPayload](t, rr); len(body.Entries) != 1 || body.Entries[0] != (domain.CardRef{Set: "A1", Number: 5}) {
		t.Fatalf("unexpected wishlist %+v", body)
	}

	rr = app.do(t, http.MethodDelete, "/api/v1/me/wishlist/A1/5", "ash", "")
	expectStatus(t, rr, http.StatusOK)
	rr = app.do(t, http.MethodDelete, "/api/v1/me/wishlist/A1/5", "ash", "")
	expectStatus(t, rr, http.StatusOK)
	if body := decodeBody[wishlistChangeResponse](t, rr); body.Changed || len(body.Wishlist.Entries) != 0 {
		t.Fatalf("unexpected remove response %+v", body)
	}

	rr = app.do(t, http.MethodPut, "/api/v1/me/wishlist/A9/1", "ash", "")
	expectStatus(t, rr, http.StatusNotFound)
}

func TestUsersAndFriendWishlist(t *testing.T) {
	app := newTestApp(t, appOptions{})
	expectStatus(t, app.do(t, http.MethodPost, "/api/v1/me/session", "ash", ""), http.StatusOK)
	expectStatus(t, app.do(t, http.MethodPost, "/api/v1/me/session", "misty", ""), http.StatusOK)
	expectStatus(t, app.do(t, http.MethodPut, "/api/v1/me/wishlist/A2/2", "misty", ""), http.StatusOK)

	rr := app.do(t, http.MethodGet, "/api/v1/users", "ash", "")
	expectStatus(t, rr, http.StatusOK)
	users := decodeBody[usersResponse](t, rr).Users
	if len(users) != 2 || users[0].DisplayName != "Ash" || users[1].DisplayName != "Misty" {
		t.Fatalf("unexpected users %+v", users)
	}

	rr = app.do(t, http.MethodGet, "/api/v1/users/misty/wishlist", "ash", "")
	expectStatus(t, rr, http.StatusOK)
	body := decodeBody[friendWishlistResponse](t, rr)
	if body.User.UID != "misty" || len(body.Wishlist.Entries) != 1 {
		t.Fatalf("unexpected friend wishlist %+v", body)
	}

	expectStatus(t, app.do(t, http.MethodGet, "/api/v1/users/ghost/wishlist", "ash", ""), http.StatusNotFound)
	expectStatus(t, app.do(t, http.MethodGet, "/api/v1/users", "", ""), http.StatusUnauthorized)
}

func TestWriteRateLimit(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	app := newTestApp(t, appOptions{writesPerMinute: 1, writeBurst: 2, clock: func() time.Time { return now }})

	expectStatus(t, app.do(t, http.MethodPut, "/api/v1/me/wishlist/A1/1", "ash", ""), http.StatusOK)
	expectStatus(t, app.do(t, http.MethodPut, "/api/v1/me/wishlist/A1/2", "ash", ""), http.StatusOK)

	rr := app.do(t, http.MethodPost, "/api/v1/me/view/click", "ash", `{"view":"all","set":"A1","number":3}`)
	expectStatus(t, rr, http.StatusTooManyRequests)
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	// Other users have their own budget and reads are never limited.
	expectStatus(t, app.do(t, http.MethodPut, "/api/v1/me/wishlist/A1/1", "misty", ""), http.StatusOK)
	expectStatus(t, app.do(t, http.MethodGet, "/api/v1/me/wishlist", "ash", ""), http.StatusOK)
}

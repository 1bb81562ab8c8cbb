package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"

	domain "github.com/pocket-tcg/api/internal/domain"
)

func dialStream(t *testing.T, srv *httptest.Server, query, uid string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/me/stream" + query
	header := http.Header{}
	if uid != "" {
		header.Set("Authorization", "Bearer token-"+uid)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func readStreamMessage(t *testing.T, conn *websocket.Conn, match func(streamMessage) bool) streamMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("set deadline: %v", err)
		}
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read stream message: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func TestStreamPushesViewOnWishlistChange(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	app := newTestApp(t, appOptions{})
	srv := httptest.NewServer(app.router)
	defer srv.Close()

	conn, _, err := dialStream(t, srv, "?view=wishlist", "ash")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readStreamMessage(t, conn, func(streamMessage) bool { return true })
	if first.Type != streamMessageView || first.View == nil || !first.View.NoResults {
		t.Fatalf("expected empty wishlist frame, got %+v", first)
	}

	if _, err := app.wishlists.Add(context.Background(), "ash", domain.CardRef{Set: "A1", Number: 3}); err != nil {
		t.Fatalf("add: %v", err)
	}
	next := readStreamMessage(t, conn, func(m streamMessage) bool { return m.View != nil && len(m.View.Cards) == 1 })
	if next.View.Cards[0].Number != 3 || next.View.Label != "Showing Results 1 - 1 (Page 1/1)" {
		t.Fatalf("unexpected pushed view %+v", next.View)
	}

	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	waitForWatchers(t, app, "ash", 0)
}

func TestStreamRequiresAuth(t *testing.T) {
	app := newTestApp(t, appOptions{})
	srv := httptest.NewServer(app.router)
	defer srv.Close()

	_, resp, err := dialStream(t, srv, "", "")
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("expected bad handshake, got %v", err)
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
	resp.Body.Close()
}

func TestStreamRejectsInvalidQueryBeforeUpgrade(t *testing.T) {
	app := newTestApp(t, appOptions{})
	srv := httptest.NewServer(app.router)
	defer srv.Close()

	_, resp, err := dialStream(t, srv, "?page=-2", "ash")
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("expected bad handshake, got %v", err)
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", resp)
	}
	resp.Body.Close()
}

func TestStreamUnknownFriendSendsError(t *testing.T) {
	app := newTestApp(t, appOptions{})
	srv := httptest.NewServer(app.router)
	defer srv.Close()

	conn, _, err := dialStream(t, srv, "?friend=ghost", "ash")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg := readStreamMessage(t, conn, func(streamMessage) bool { return true })
	if msg.Type != streamMessageError || msg.Error != "friend_not_found" {
		t.Fatalf("expected friend_not_found, got %+v", msg)
	}
}

func waitForWatchers(t *testing.T, app testApp, uid string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if app.repo.Watchers(uid) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d watchers for %s, got %d", want, uid, app.repo.Watchers(uid))
}

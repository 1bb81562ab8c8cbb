package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pocket-tcg/api/internal/platform/pagination"
	"github.com/pocket-tcg/api/internal/platform/requestctx"
	"github.com/pocket-tcg/api/internal/services"
)

const (
	defaultStreamWriteWait = 10 * time.Second
	defaultStreamPongWait  = 60 * time.Second
	// Clients only send pongs and close frames.
	maxStreamMessageSize = 512

	streamMessageView  = "view"
	streamMessageError = "error"
)

// StreamHandlers pushes the resolved view over a websocket each time the underlying wishlists
// or the directory change.
type StreamHandlers struct {
	browse   services.BrowseService
	images   ImageURLs
	upgrader websocket.Upgrader

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

// StreamOption customises StreamHandlers.
type StreamOption func(*StreamHandlers)

// WithStreamTimeouts overrides the keepalive timings. pingPeriod must be shorter than pongWait.
func WithStreamTimeouts(pingPeriod, pongWait, writeWait time.Duration) StreamOption {
	return func(h *StreamHandlers) {
		if pongWait > 0 {
			h.pongWait = pongWait
		}
		if pingPeriod > 0 && pingPeriod < h.pongWait {
			h.pingPeriod = pingPeriod
		}
		if writeWait > 0 {
			h.writeWait = writeWait
		}
	}
}

// WithStreamOriginCheck replaces the same-origin check applied on upgrade.
func WithStreamOriginCheck(check func(*http.Request) bool) StreamOption {
	return func(h *StreamHandlers) { h.upgrader.CheckOrigin = check }
}

// NewStreamHandlers builds the live view handlers.
func NewStreamHandlers(browse services.BrowseService, images ImageURLs, opts ...StreamOption) *StreamHandlers {
	h := &StreamHandlers{
		browse: browse,
		images: images,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		writeWait:  defaultStreamWriteWait,
		pongWait:   defaultStreamPongWait,
		pingPeriod: (defaultStreamPongWait * 9) / 10,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.pingPeriod >= h.pongWait {
		h.pingPeriod = (h.pongWait * 9) / 10
	}
	return h
}

// Routes registers GET /me/stream. Callers mount it behind RequireFirebaseAuth.
func (h *StreamHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/stream", h.serve)
}

type streamMessage struct {
	Type    string       `json:"type"`
	View    *viewPayload `json:"view,omitempty"`
	Error   string       `json:"error,omitempty"`
	Message string       `json:"message,omitempty"`
}

func (h *StreamHandlers) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.browse == nil {
		serviceUnavailable(ctx, w, "browse")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	query, err := pagination.FromRequest(r)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames, err := h.browse.Stream(ctx, browseRequest(identity.UID, query))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		requestctx.Logger(ctx).Warn("stream upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger := requestctx.NamedLogger(ctx, "stream")
	logger.Debug("stream opened", zap.String("view", query.View.String()))

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, frames, logger)
}

// readPump consumes control frames so pongs extend the read deadline. Any read error, including
// the client closing, ends the stream.
func (h *StreamHandlers) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxStreamMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandlers) writePump(ctx context.Context, conn *websocket.Conn, frames <-chan services.BrowseFrame, logger *zap.Logger) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.close(conn, websocket.CloseGoingAway, "")
			return
		case frame, ok := <-frames:
			if !ok {
				h.close(conn, websocket.CloseNormalClosure, "")
				return
			}
			if frame.Err != nil {
				apiErr, expected := toHTTPError(frame.Err)
				if !expected {
					logger.Error("stream ended", zap.Error(frame.Err))
				}
				_ = h.write(conn, streamMessage{Type: streamMessageError, Error: apiErr.Code, Message: apiErr.Message})
				h.close(conn, websocket.CloseInternalServerErr, apiErr.Code)
				return
			}
			payload := buildViewPayload(frame.Result, h.images)
			if err := h.write(conn, streamMessage{Type: streamMessageView, View: &payload}); err != nil {
				logger.Debug("stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(h.writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandlers) write(conn *websocket.Conn, msg streamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func (h *StreamHandlers) close(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(h.writeWait))
}

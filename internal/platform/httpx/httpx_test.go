package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pocket-tcg/api/internal/platform/requestctx"
)

func TestWriteErrorIncludesTraceAndDetails(t *testing.T) {
	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "trace-1"})
	rec := httptest.NewRecorder()

	WriteError(ctx, rec, BadRequest("invalid_page", "page\nmust be positive").WithDetails(map[string]any{
		"field":  "page",
		"status": 999,
	}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "invalid_page" || body["message"] != "page must be positive" {
		t.Fatalf("unexpected envelope %v", body)
	}
	if body["trace_id"] != "trace-1" {
		t.Fatalf("expected trace id, got %v", body["trace_id"])
	}
	if body["field"] != "page" {
		t.Fatalf("expected detail field, got %v", body["field"])
	}
	if body["status"] != float64(http.StatusBadRequest) {
		t.Fatalf("details must not override status, got %v", body["status"])
	}
}

func TestNewErrorDefaultsStatus(t *testing.T) {
	if got := NewError("x", "y", 0).Status; got != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Set string `json:"set"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"set":"A1"}`))
	var p payload
	if err := DecodeJSON(req, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Set != "A1" {
		t.Fatalf("unexpected set %q", p.Set)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := DecodeJSON(req, &p); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("expected ErrEmptyBody got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`))
	if err := DecodeJSON(req, &p); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router tests verify the routing table, the middleware chains,
// and the static and health endpoints.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"designdrip/internal/editor"
	"designdrip/internal/handlers"
	"designdrip/internal/middleware"
	"designdrip/internal/models"
	"designdrip/internal/session"
)

type resolverFunc func(context.Context, http.ResponseWriter, *http.Request) (*session.Visitor, error)

func (f resolverFunc) Resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) (*session.Visitor, error) {
	return f(ctx, w, r)
}

type nopPersister struct{}

func (nopPersister) Persist(_ context.Context, d *models.DesignDocument) (*models.DesignDocument, error) {
	return d, nil
}

func newTestRouter(t *testing.T, resolve resolverFunc, limiter *middleware.RateLimiter) chi.Router {
	t.Helper()
	mgr := editor.NewManager(nopPersister{}, editor.Options{}, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { mgr.Shutdown(context.Background()) })
	if resolve == nil {
		visitor := &session.Visitor{ID: uuid.New()}
		resolve = func(context.Context, http.ResponseWriter, *http.Request) (*session.Visitor, error) {
			return visitor, nil
		}
	}
	return New(resolve, handlers.NewAPI(handlers.Deps{Sessions: mgr}), limiter, false)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, nil, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content-type: got %q", ct)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field: got %v", body["status"])
	}
}

func TestRoutesRegistered(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	var got []string
	err := chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		got = append(got, method+" "+strings.TrimSuffix(route, "/"))
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}

	want := []string{
		"GET /health",
		"GET /api/colors/{id}/views",
		"GET /api/templates",
		"GET /api/designs",
		"GET /api/designs/{id}",
		"GET /api/designs/{id}/draft",
		"DELETE /api/designs/{id}",
		"POST /api/sessions",
		"GET /api/sessions/{sid}",
		"DELETE /api/sessions/{sid}",
		"POST /api/sessions/{sid}/objects",
		"DELETE /api/sessions/{sid}/objects",
		"PATCH /api/sessions/{sid}/objects/{oid}",
		"DELETE /api/sessions/{sid}/objects/{oid}",
		"POST /api/sessions/{sid}/objects/{oid}/remove-background",
		"POST /api/sessions/{sid}/undo",
		"POST /api/sessions/{sid}/redo",
		"PUT /api/sessions/{sid}/view",
		"PUT /api/sessions/{sid}/name",
		"POST /api/sessions/{sid}/save",
		"POST /api/sessions/{sid}/templates/{tid}",
		"POST /api/sessions/{sid}/uploads",
		"POST /api/sessions/{sid}/ai-images",
	}
	for _, route := range want {
		if !slices.Contains(got, route) {
			t.Errorf("route %q not registered", route)
		}
	}
}

func TestStaticFiles(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/garments/classic-tee-white-front.png", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content-type: got %q", ct)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/missing.png", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing file: got %d, want 404", w.Code)
	}
}

func TestAPIRequiresCSRFToken(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{}`)))
	if w.Code != http.StatusForbidden {
		t.Fatalf("POST without token: got %d, want 403", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{}`))
	req.AddCookie(&http.Cookie{Name: middleware.CSRFCookieName, Value: "tok"})
	req.Header.Set(middleware.CSRFHeaderName, "tok")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("POST with token and empty body: got %d, want 400", w.Code)
	}
}

func TestAPISecurityHeaders(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/designs/not-a-uuid", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control: got %q", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options: got %q", got)
	}
}

func TestVisitorFailureIsUnavailable(t *testing.T) {
	r := newTestRouter(t, func(context.Context, http.ResponseWriter, *http.Request) (*session.Visitor, error) {
		return nil, errors.New("valkey down")
	}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/templates", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("health must not need a visitor: got %d", w.Code)
	}
}

func TestAssetEndpointsRateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, time.Minute, nil)
	t.Cleanup(limiter.Stop)
	r := newTestRouter(t, nil, limiter)

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+uuid.NewString()+"/ai-images", strings.NewReader(`{"prompt":"fox"}`))
		req.AddCookie(&http.Cookie{Name: middleware.CSRFCookieName, Value: "tok"})
		req.Header.Set(middleware.CSRFHeaderName, "tok")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	if got := post(); got != http.StatusNotFound {
		t.Fatalf("first request: got %d, want 404 for unknown session", got)
	}
	if got := post(); got != http.StatusTooManyRequests {
		t.Errorf("second request: got %d, want 429", got)
	}
}

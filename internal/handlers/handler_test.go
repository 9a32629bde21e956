// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for the API handler
// tests: in-memory fakes for every dependency, a real editor.Manager and a
// chi router carrying the API routes.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"designdrip/internal/cache"
	"designdrip/internal/editor"
	"designdrip/internal/middleware"
	"designdrip/internal/models"
	"designdrip/internal/session"
	"designdrip/internal/zone"
)

const cdnPrefix = "https://cdn.test/"

var chestZone = zone.Rect{X: 250, Y: 400, Width: 300, Height: 300}

// fakePersister stores documents in memory and bumps their version.
type fakePersister struct {
	mu    sync.Mutex
	calls []*models.DesignDocument
	fail  error
}

func (f *fakePersister) Persist(_ context.Context, doc *models.DesignDocument) (*models.DesignDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, doc.Clone())
	if f.fail != nil {
		return nil, f.fail
	}
	saved := doc.Clone()
	saved.Version++
	return saved, nil
}

func (f *fakePersister) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakePersister) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

type fakeCatalog struct {
	variant models.ColorVariant
	views   []models.GarmentView
}

func newFakeCatalog() *fakeCatalog {
	c := &fakeCatalog{variant: models.ColorVariant{ID: uuid.New(), GarmentID: uuid.New(), Color: "white", ColorValue: "#ffffff"}}
	for _, v := range models.AllViews {
		c.views = append(c.views, models.GarmentView{
			ViewName:     v,
			ImageURL:     "/static/garments/" + string(v) + ".png",
			EditableZone: chestZone,
		})
	}
	return c
}

func (c *fakeCatalog) FindColorVariant(_ context.Context, id uuid.UUID) (*models.ColorVariant, error) {
	if id != c.variant.ID {
		return nil, nil
	}
	v := c.variant
	return &v, nil
}

func (c *fakeCatalog) ViewsForColor(_ context.Context, id uuid.UUID) ([]models.GarmentView, error) {
	if id != c.variant.ID {
		return nil, nil
	}
	return append([]models.GarmentView(nil), c.views...), nil
}

type fakeTemplates []models.DesignTemplate

func (f fakeTemplates) List(_ context.Context, view models.ViewName) ([]models.DesignTemplate, error) {
	var out []models.DesignTemplate
	for _, t := range f {
		if view == "" || t.ViewName == view {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f fakeTemplates) FindByID(_ context.Context, id uuid.UUID) (*models.DesignTemplate, error) {
	for _, t := range f {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, nil
}

type fakeDesigns struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*models.DesignDocument
}

func (f *fakeDesigns) put(doc *models.DesignDocument) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc.Clone()
}

func (f *fakeDesigns) FindByID(_ context.Context, id uuid.UUID) (*models.DesignDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, nil
	}
	return d.Clone(), nil
}

func (f *fakeDesigns) ListByOwner(_ context.Context, owner uuid.UUID, limit, offset int) ([]models.DesignDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DesignDocument
	for _, d := range f.docs {
		if d.OwnerID == owner {
			out = append(out, *d.Clone())
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:min(len(out), offset+limit)], nil
}

func (f *fakeDesigns) Delete(_ context.Context, id, owner uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok || d.OwnerID != owner {
		return false, nil
	}
	delete(f.docs, id)
	return true, nil
}

type fakeDrafts struct {
	mu      sync.Mutex
	drafts  map[uuid.UUID]*cache.Draft
	dropped []uuid.UUID
}

func (f *fakeDrafts) Load(_ context.Context, id uuid.UUID) (*cache.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drafts[id], nil
}

func (f *fakeDrafts) Drop(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, id)
	f.dropped = append(f.dropped, id)
	return nil
}

// fakeAssets hands out 600x300 images under cdnPrefix.
type fakeAssets struct {
	mu      sync.Mutex
	err      error
	uploads  [][]byte
	prompts  []string
	cutFrom  []string
}

func (f *fakeAssets) asset(owner uuid.UUID, src models.AssetSource) *models.Asset {
	id := uuid.New()
	return &models.Asset{
		ID: id, OwnerID: owner, Source: src,
		ContentType: "image/png", Width: 600, Height: 300,
		URL: cdnPrefix + "assets/" + id.String() + ".png",
	}
}

func (f *fakeAssets) Upload(_ context.Context, owner uuid.UUID, _ string, data []byte) (*models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.uploads = append(f.uploads, data)
	return f.asset(owner, models.AssetSourceUpload), nil
}

func (f *fakeAssets) Generate(_ context.Context, owner uuid.UUID, prompt string) (*models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.prompts = append(f.prompts, prompt)
	return f.asset(owner, models.AssetSourceAI), nil
}

func (f *fakeAssets) RemoveBackground(_ context.Context, owner uuid.UUID, src string) (*models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.cutFrom = append(f.cutFrom, src)
	return f.asset(owner, models.AssetSourceBGRemove), nil
}

// testEnv bundles an API, its fakes and a router exposing its routes.
type testEnv struct {
	api       *API
	handler   http.Handler
	persister *fakePersister
	catalog   *fakeCatalog
	templates fakeTemplates
	designs   *fakeDesigns
	drafts    *fakeDrafts
	assets    *fakeAssets
	visitor   uuid.UUID
	deleted   []uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		persister: &fakePersister{},
		catalog:   newFakeCatalog(),
		designs:   &fakeDesigns{docs: make(map[uuid.UUID]*models.DesignDocument)},
		drafts:    &fakeDrafts{drafts: make(map[uuid.UUID]*cache.Draft)},
		assets:    &fakeAssets{},
		visitor:   uuid.New(),
	}
	env.templates = fakeTemplates{{
		ID:       uuid.New(),
		Name:     "Badge",
		ViewName: models.ViewFront,
		Scene:    json.RawMessage(`{"version":1,"objects":[{"id":"t1","type":"text","text":"HELLO","left":300,"top":450,"width":100,"height":40,"scaleX":1,"scaleY":1,"angle":0,"z":0}]}`),
	}}

	mgr := editor.NewManager(env.persister, editor.Options{
		AutosaveQuiet: time.Hour,
		ClampMode:     zone.ModeIntersect,
	}, time.Hour, logger)
	t.Cleanup(func() { mgr.Shutdown(context.Background()) })

	env.api = NewAPI(Deps{
		Sessions:     mgr,
		Catalog:      env.catalog,
		Templates:    env.templates,
		Designs:      env.designs,
		Drafts:       env.drafts,
		Assets:       env.assets,
		OnDelete:     func(id uuid.UUID) { env.deleted = append(env.deleted, id) },
		ImageSources: []string{cdnPrefix, "/static/"},
	})
	env.handler = testRoutes(env.api)
	return env
}

// testRoutes mounts the API the way the router does, minus middleware.
func testRoutes(a *API) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", a.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/colors/{id}/views", a.ColorViews)
		r.Get("/templates", a.ListTemplates)
		r.Get("/designs", a.ListDesigns)
		r.Get("/designs/{id}", a.GetDesign)
		r.Get("/designs/{id}/draft", a.GetDraft)
		r.Delete("/designs/{id}", a.DeleteDesign)
		r.Post("/sessions", a.OpenSession)
		r.Route("/sessions/{sid}", func(r chi.Router) {
			r.Get("/", a.GetSession)
			r.Delete("/", a.CloseSession)
			r.Post("/objects", a.AddObject)
			r.Delete("/objects", a.ClearView)
			r.Patch("/objects/{oid}", a.UpdateObject)
			r.Delete("/objects/{oid}", a.DeleteObject)
			r.Post("/objects/{oid}/remove-background", a.RemoveBackground)
			r.Post("/undo", a.Undo)
			r.Post("/redo", a.Redo)
			r.Put("/view", a.SwitchView)
			r.Put("/name", a.Rename)
			r.Post("/save", a.Save)
			r.Post("/templates/{tid}", a.ApplyTemplate)
			r.Post("/uploads", a.Upload)
			r.Post("/ai-images", a.GenerateImage)
		})
	})
	return r
}

// do sends a JSON request as the env's visitor.
func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAs(t, e.visitor, method, path, body)
}

func (e *testEnv) doAs(t *testing.T, visitor uuid.UUID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.serve(req, visitor)
}

func (e *testEnv) serve(req *http.Request, visitor uuid.UUID) *httptest.ResponseRecorder {
	req = req.WithContext(middleware.WithVisitor(req.Context(), &session.Visitor{ID: visitor}))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// openSession opens a session on a new design and returns its state.
func (e *testEnv) openSession(t *testing.T) editor.State {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/sessions", map[string]any{"colorVariantId": e.catalog.variant.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open session: status %d, body %s", rec.Code, rec.Body)
	}
	return decode[mutationResponse](t, rec).State
}

func sessionPath(st editor.State, suffix string) string {
	return "/api/sessions/" + st.SessionID.String() + suffix
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body %s)", v, err, rec.Body)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body)
	}
}

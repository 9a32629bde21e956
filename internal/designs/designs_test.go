// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package designs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"designdrip/internal/models"
	"designdrip/internal/scene"
	"designdrip/internal/store"
	"designdrip/internal/zone"
)

type fakeRepo struct {
	mu      sync.Mutex
	err     error
	creates []*models.DesignDocument
	updates []*models.DesignDocument
}

func (f *fakeRepo) Create(_ context.Context, d *models.DesignDocument) (*models.DesignDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := d.Clone()
	c.Version = 1
	f.creates = append(f.creates, c)
	return c.Clone(), nil
}

func (f *fakeRepo) Update(_ context.Context, d *models.DesignDocument) (*models.DesignDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := d.Clone()
	c.Version = d.Version + 1
	f.updates = append(f.updates, c)
	return c.Clone(), nil
}

type fakeCatalog []models.GarmentView

func (f fakeCatalog) ViewsForColor(context.Context, uuid.UUID) ([]models.GarmentView, error) {
	return f, nil
}

type fakeRenderer struct {
	calls atomic.Int32
	fail  models.ViewName
}

func (f *fakeRenderer) Render(_ context.Context, v models.GarmentView, _ scene.Snapshot) ([]byte, error) {
	f.calls.Add(1)
	if v.ViewName == f.fail {
		return nil, errors.New("render boom")
	}
	return []byte("png:" + string(v.ViewName)), nil
}

type fakeUploader struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeUploader) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	io.Copy(io.Discard, body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return "https://cdn.test/" + key, nil
}

type fakeDrafts struct {
	mu      sync.Mutex
	stashed map[uuid.UUID]error
	dropped []uuid.UUID
}

func newFakeDrafts() *fakeDrafts {
	return &fakeDrafts{stashed: make(map[uuid.UUID]error)}
}

func (f *fakeDrafts) Stash(_ context.Context, doc *models.DesignDocument, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stashed[doc.ID] = cause
	return nil
}

func (f *fakeDrafts) Drop(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stashed, id)
	f.dropped = append(f.dropped, id)
	return nil
}

var testZone = zone.Rect{X: 250, Y: 400, Width: 300, Height: 300}

func garmentViews() fakeCatalog {
	var out fakeCatalog
	for _, v := range models.AllViews {
		out = append(out, models.GarmentView{ViewName: v, ImageURL: "/static/" + string(v) + ".png", EditableZone: testZone})
	}
	return out
}

func sceneJSON(t *testing.T, objects ...scene.Object) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(scene.Snapshot{Version: scene.FormatVersion, Objects: objects})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func newDoc(t *testing.T) *models.DesignDocument {
	t.Helper()
	doc := &models.DesignDocument{
		ID:             uuid.New(),
		OwnerID:        uuid.New(),
		ColorVariantID: uuid.New(),
	}
	doc.Scenes.Set(models.ViewFront, sceneJSON(t, scene.Object{
		ID: "a", Kind: scene.KindImage, Src: "https://cdn.test/a.png",
		Left: 260, Top: 410, Width: 40, Height: 40, ScaleX: 1, ScaleY: 1,
	}))
	return doc
}

func TestPersistCreatesThenUpdates(t *testing.T) {
	repo := &fakeRepo{}
	uploader := &fakeUploader{}
	svc := NewService(Config{
		Repository: repo,
		Catalog:    garmentViews(),
		Renderer:   &fakeRenderer{},
		Uploader:   uploader,
	})
	ctx := context.Background()
	doc := newDoc(t)

	saved, err := svc.Persist(ctx, doc)
	if err != nil {
		t.Fatalf("first Persist: %v", err)
	}
	if len(repo.creates) != 1 || len(repo.updates) != 0 {
		t.Fatalf("creates=%d updates=%d", len(repo.creates), len(repo.updates))
	}
	if saved.ID != doc.ID || saved.Version != 1 {
		t.Errorf("saved = %s v%d", saved.ID, saved.Version)
	}
	url, ok := saved.Previews.Get(models.ViewFront)
	if !ok || !strings.HasSuffix(url, "previews/"+doc.ID.String()+"/front-v1.png") {
		t.Errorf("front preview = %q", url)
	}
	if _, ok := saved.Previews.Get(models.ViewBack); ok {
		t.Error("unedited view should have no preview")
	}

	saved.Scenes.Set(models.ViewFront, sceneJSON(t))
	again, err := svc.Persist(ctx, saved)
	if err != nil {
		t.Fatalf("second Persist: %v", err)
	}
	if len(repo.updates) != 1 || again.Version != 2 {
		t.Errorf("updates=%d version=%d", len(repo.updates), again.Version)
	}
	if url, _ := again.Previews.Get(models.ViewFront); !strings.HasSuffix(url, "front-v2.png") {
		t.Errorf("updated preview = %q", url)
	}
}

func TestPersistSkipsUnchangedPreviews(t *testing.T) {
	renderer := &fakeRenderer{}
	svc := NewService(Config{
		Repository: &fakeRepo{},
		Catalog:    garmentViews(),
		Renderer:   renderer,
		Uploader:   &fakeUploader{},
	})
	ctx := context.Background()

	doc := newDoc(t)
	doc.Scenes.Set(models.ViewBack, sceneJSON(t))
	saved, err := svc.Persist(ctx, doc)
	if err != nil {
		t.Fatal(err)
	}
	if got := renderer.calls.Load(); got != 2 {
		t.Fatalf("renders after first save = %d, want 2", got)
	}
	firstBack, _ := saved.Previews.Get(models.ViewBack)

	saved.Scenes.Set(models.ViewFront, sceneJSON(t))
	saved, err = svc.Persist(ctx, saved)
	if err != nil {
		t.Fatal(err)
	}
	if got := renderer.calls.Load(); got != 3 {
		t.Errorf("renders after second save = %d, want 3", got)
	}
	if back, _ := saved.Previews.Get(models.ViewBack); back != firstBack {
		t.Errorf("unchanged back preview = %q, want %q", back, firstBack)
	}

	svc.Forget(saved.ID)
	if _, err := svc.Persist(ctx, saved); err != nil {
		t.Fatal(err)
	}
	if got := renderer.calls.Load(); got != 5 {
		t.Errorf("renders after Forget = %d, want 5", got)
	}
}

func TestPersistPreviewFailureDoesNotFailSave(t *testing.T) {
	svc := NewService(Config{
		Repository: &fakeRepo{},
		Catalog:    garmentViews(),
		Renderer:   &fakeRenderer{fail: models.ViewFront},
		Uploader:   &fakeUploader{},
	})
	saved, err := svc.Persist(context.Background(), newDoc(t))
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if _, ok := saved.Previews.Get(models.ViewFront); ok {
		t.Error("failed preview should not be set")
	}
}

func TestPersistWithoutPreviews(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(Config{Repository: repo, Catalog: garmentViews()})
	saved, err := svc.Persist(context.Background(), newDoc(t))
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if saved.Previews.Len() != 0 {
		t.Errorf("previews = %d, want 0", saved.Previews.Len())
	}
}

func TestPersistStashesDraftOnFailure(t *testing.T) {
	repo := &fakeRepo{err: store.ErrVersionConflict}
	drafts := newFakeDrafts()
	svc := NewService(Config{Repository: repo, Catalog: garmentViews(), Drafts: drafts})
	doc := newDoc(t)
	doc.Version = 3

	_, err := svc.Persist(context.Background(), doc)
	if !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}
	cause, ok := drafts.stashed[doc.ID]
	if !ok || !errors.Is(cause, store.ErrVersionConflict) {
		t.Errorf("draft stash = %v, %v", cause, ok)
	}

	repo.err = nil
	if _, err := svc.Persist(context.Background(), doc); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if _, ok := drafts.stashed[doc.ID]; ok {
		t.Error("draft should be dropped after a successful save")
	}
}

func TestPersistDoesNotMutateInput(t *testing.T) {
	svc := NewService(Config{
		Repository: &fakeRepo{},
		Catalog:    garmentViews(),
		Renderer:   &fakeRenderer{},
		Uploader:   &fakeUploader{},
	})
	doc := newDoc(t)
	if _, err := svc.Persist(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	if doc.Previews.Len() != 0 || doc.Version != 0 {
		t.Errorf("input changed: previews=%d version=%d", doc.Previews.Len(), doc.Version)
	}
}

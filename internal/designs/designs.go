// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package designs persists design documents for the editor. Every save
// writes the document to PostgreSQL, renders a preview of each edited view
// into object storage, and keeps a draft in Valkey while the database is
// unreachable.
package designs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"designdrip/internal/models"
	"designdrip/internal/scene"
	"designdrip/internal/storage"
)

const (
	// maxParallelRenders bounds concurrent preview renders per save.
	maxParallelRenders = 2

	// maxTrackedPreviews bounds the render bookkeeping kept in memory.
	maxTrackedPreviews = 10_000

	draftTimeout = 5 * time.Second
)

// Repository stores design documents.
type Repository interface {
	Create(ctx context.Context, d *models.DesignDocument) (*models.DesignDocument, error)
	Update(ctx context.Context, d *models.DesignDocument) (*models.DesignDocument, error)
}

// Catalog returns the garment views of a color variant.
type Catalog interface {
	ViewsForColor(ctx context.Context, colorVariantID uuid.UUID) ([]models.GarmentView, error)
}

// Renderer draws a scene onto a garment view as PNG.
type Renderer interface {
	Render(ctx context.Context, view models.GarmentView, snap scene.Snapshot) ([]byte, error)
}

// Uploader writes preview images to object storage and returns their URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// Drafts keeps unsaved documents.
type Drafts interface {
	Stash(ctx context.Context, doc *models.DesignDocument, cause error) error
	Drop(ctx context.Context, designID uuid.UUID) error
}

// Config wires a Service. Renderer, Uploader and Drafts are optional; a
// missing one disables previews or draft stashing.
type Config struct {
	Repository Repository
	Catalog    Catalog
	Renderer   Renderer
	Uploader   Uploader
	Drafts     Drafts
	Logger     *slog.Logger
}

// Service implements editor.Persister.
type Service struct {
	repo     Repository
	catalog  Catalog
	renderer Renderer
	uploader Uploader
	drafts   Drafts
	logger   *slog.Logger

	mu       sync.Mutex
	rendered map[previewKey]renderedPreview
}

type previewKey struct {
	design uuid.UUID
	view   models.ViewName
}

// renderedPreview remembers the scene a preview was last rendered from so
// unchanged views are not rendered again.
type renderedPreview struct {
	hash uint64
	url  string
}

// NewService creates a design persistence service.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		repo:     cfg.Repository,
		catalog:  cfg.Catalog,
		renderer: cfg.Renderer,
		uploader: cfg.Uploader,
		drafts:   cfg.Drafts,
		logger:   cfg.Logger,
		rendered: make(map[previewKey]renderedPreview),
	}
}

// Persist writes doc, creating it on its first save and otherwise updating
// it at doc.Version. Previews are refreshed first; a preview failure keeps
// the previous preview and does not fail the save. When the write fails the
// document is stashed as a draft.
func (s *Service) Persist(ctx context.Context, doc *models.DesignDocument) (*models.DesignDocument, error) {
	doc = doc.Clone()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	s.refreshPreviews(ctx, doc)

	var (
		saved *models.DesignDocument
		err   error
	)
	if doc.IsNew() {
		saved, err = s.repo.Create(ctx, doc)
	} else {
		saved, err = s.repo.Update(ctx, doc)
	}
	if err != nil {
		s.stash(doc, err)
		return nil, err
	}

	if s.drafts != nil {
		if err := s.drafts.Drop(ctx, saved.ID); err != nil {
			s.logger.Warn("drop draft failed", "design", saved.ID, "error", err)
		}
	}
	s.logger.Debug("design persisted", "design", saved.ID, "version", saved.Version)
	return saved, nil
}

// stash writes doc to the draft cache. It runs detached from the save
// context, which may be the reason the save failed.
func (s *Service) stash(doc *models.DesignDocument, cause error) {
	if s.drafts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), draftTimeout)
	defer cancel()
	if err := s.drafts.Stash(ctx, doc, cause); err != nil {
		s.logger.Warn("stash draft failed", "design", doc.ID, "error", err)
	}
}

// refreshPreviews renders every view that has a scene and sets the new URLs
// on doc. Keys carry the version the save will produce.
func (s *Service) refreshPreviews(ctx context.Context, doc *models.DesignDocument) {
	if s.renderer == nil || s.uploader == nil || doc.Scenes.Len() == 0 {
		return
	}
	views, err := s.catalog.ViewsForColor(ctx, doc.ColorVariantID)
	if err != nil {
		s.logger.Warn("preview views lookup failed", "design", doc.ID, "error", err)
		return
	}
	garment := models.ViewSet[models.GarmentView]{}
	for _, v := range views {
		garment.Set(v.ViewName, v)
	}
	nextVersion := doc.Version + 1

	type job struct {
		view models.GarmentView
		raw  json.RawMessage
		hash uint64
	}
	var jobs []job
	doc.Scenes.Each(func(name models.ViewName, raw json.RawMessage) {
		g, ok := garment.Get(name)
		if !ok {
			return
		}
		h := xxhash.Sum64(raw)
		if prev, ok := s.lastRendered(doc.ID, name); ok && prev.hash == h {
			doc.Previews.Set(name, prev.url)
			return
		}
		jobs = append(jobs, job{view: g, raw: raw, hash: h})
	})

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelRenders)
	for _, j := range jobs {
		g.Go(func() error {
			url, err := s.renderPreview(gctx, doc.ID, nextVersion, j.view, j.raw)
			if err != nil {
				s.logger.Warn("preview render failed", "design", doc.ID, "view", j.view.ViewName, "error", err)
				return nil
			}
			mu.Lock()
			doc.Previews.Set(j.view.ViewName, url)
			mu.Unlock()
			s.remember(doc.ID, j.view.ViewName, renderedPreview{hash: j.hash, url: url})
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) renderPreview(ctx context.Context, designID uuid.UUID, version int, view models.GarmentView, raw []byte) (string, error) {
	snap, err := scene.ParseSnapshot(raw)
	if err != nil {
		return "", err
	}
	png, err := s.renderer.Render(ctx, view, snap)
	if err != nil {
		return "", err
	}
	key := storage.PreviewKey(designID, string(view.ViewName), version)
	url, err := s.uploader.Upload(ctx, key, "image/png", bytes.NewReader(png), int64(len(png)))
	if err != nil {
		return "", fmt.Errorf("upload preview: %w", err)
	}
	return url, nil
}

func (s *Service) lastRendered(id uuid.UUID, v models.ViewName) (renderedPreview, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rendered[previewKey{id, v}]
	return p, ok
}

func (s *Service) remember(id uuid.UUID, v models.ViewName, p renderedPreview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rendered) >= maxTrackedPreviews {
		clear(s.rendered)
	}
	s.rendered[previewKey{id, v}] = p
}

// Forget drops the preview bookkeeping of a design, for example after it
// was deleted.
func (s *Service) Forget(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.rendered {
		if k.design == id {
			delete(s.rendered, k)
		}
	}
}

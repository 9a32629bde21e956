// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the JSON HTTP API the browser editor talks to.
// Handlers receive their dependencies through the API struct and map
// domain errors to status codes in one place.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"designdrip/internal/ai"
	"designdrip/internal/assets"
	"designdrip/internal/cache"
	"designdrip/internal/editor"
	"designdrip/internal/imaging"
	"designdrip/internal/middleware"
	"designdrip/internal/models"
	"designdrip/internal/scene"
	"designdrip/internal/store"
	"designdrip/internal/zone"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// Catalog reads garment color variants and their views.
type Catalog interface {
	FindColorVariant(ctx context.Context, id uuid.UUID) (*models.ColorVariant, error)
	ViewsForColor(ctx context.Context, colorVariantID uuid.UUID) ([]models.GarmentView, error)
}

// Templates reads design templates.
type Templates interface {
	List(ctx context.Context, view models.ViewName) ([]models.DesignTemplate, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.DesignTemplate, error)
}

// Designs reads and deletes stored design documents.
type Designs interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.DesignDocument, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.DesignDocument, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error)
}

// Drafts reads documents stashed after a failed save.
type Drafts interface {
	Load(ctx context.Context, designID uuid.UUID) (*cache.Draft, error)
	Drop(ctx context.Context, designID uuid.UUID) error
}

// Assets produces images for insertion into a scene.
type Assets interface {
	Upload(ctx context.Context, owner uuid.UUID, filename string, data []byte) (*models.Asset, error)
	Generate(ctx context.Context, owner uuid.UUID, prompt string) (*models.Asset, error)
	RemoveBackground(ctx context.Context, owner uuid.UUID, src string) (*models.Asset, error)
}

// Deps wires an API. Drafts and Assets may be nil when Valkey or object
// storage are not configured.
type Deps struct {
	Sessions  *editor.Manager
	Catalog   Catalog
	Templates Templates
	Designs   Designs
	Drafts    Drafts
	Assets    Assets

	// OnDelete is called after a design was deleted, e.g. to drop preview
	// bookkeeping. Optional.
	OnDelete func(designID uuid.UUID)

	// ImageSources lists URL prefixes image objects may point at. The
	// preview renderer fetches these, so arbitrary URLs are refused.
	ImageSources []string
}

// API groups the editor HTTP handlers and their dependencies.
type API struct {
	sessions     *editor.Manager
	catalog      Catalog
	templates    Templates
	designs      Designs
	drafts       Drafts
	assets       Assets
	onDelete     func(uuid.UUID)
	imageSources []string
}

// NewAPI creates the handler group.
func NewAPI(d Deps) *API {
	return &API{
		sessions:     d.Sessions,
		catalog:      d.Catalog,
		templates:    d.Templates,
		designs:      d.Designs,
		drafts:       d.Drafts,
		assets:       d.Assets,
		onDelete:     d.OnDelete,
		imageSources: d.ImageSources,
	}
}

// Health is the liveness probe.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": a.sessions.Len(),
	})
}

// writeJSON sends a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeError sends {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// respondError maps a domain error to a status code. Unexpected errors are
// logged and answered with a generic 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		assetErr   *assets.AssetError
		persistErr *editor.PersistenceError
	)
	switch {
	case errors.Is(err, zone.ErrOutsideZone):
		writeError(w, http.StatusUnprocessableEntity, "object lies outside the editable zone")
	case errors.Is(err, scene.ErrInvalidObject),
		errors.Is(err, editor.ErrInvalidName),
		errors.Is(err, editor.ErrUnknownView),
		errors.Is(err, assets.ErrEmptyPrompt):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ai.ErrPromptRejected):
		writeError(w, http.StatusUnprocessableEntity, "prompt rejected by content moderation")
	case errors.Is(err, scene.ErrNotFound), errors.Is(err, editor.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, editor.ErrClosed):
		writeError(w, http.StatusGone, "editing session is closed")
	case errors.Is(err, store.ErrVersionConflict):
		writeError(w, http.StatusConflict, "design was changed elsewhere; reload to continue")
	case errors.Is(err, assets.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "file too large (max 20 MB)")
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported image format (png, jpeg, gif or webp)")
	case errors.Is(err, assets.ErrStorageUnavailable), errors.Is(err, assets.ErrBackgroundRemovalUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &assetErr):
		slog.Warn("asset service failed", "source", assetErr.Source, "error", assetErr.Err, "path", r.URL.Path)
		writeJSON(w, http.StatusBadGateway, errorBody{
			Error:     string(assetErr.Source) + " service failed",
			Retryable: assetErr.Retryable,
		})
	case errors.As(err, &persistErr):
		slog.Error("save failed", "trigger", persistErr.Trigger, "error", persistErr.Err, "path", r.URL.Path)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "design could not be saved", Retryable: true})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// visitorID returns the identity of the request's visitor. The Visitor
// middleware guarantees one on every API route.
func visitorID(r *http.Request) uuid.UUID {
	if v := middleware.VisitorFromCtx(r.Context()); v != nil {
		return v.ID
	}
	return uuid.Nil
}

// uuidParam parses a UUID route parameter, answering 404 when malformed.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return uuid.Nil, false
	}
	return id, true
}

// allowedSource reports whether an image object may reference src.
func (a *API) allowedSource(src string) bool {
	for _, p := range a.imageSources {
		if p != "" && strings.HasPrefix(src, p) {
			return true
		}
	}
	return false
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"designdrip/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListDesigns lists the visitor's designs, most recently updated first.
// Supports ?limit= and ?offset=.
func (a *API) ListDesigns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := max(queryInt(r, "offset", 0), 0)

	items, err := a.designs.ListByOwner(r.Context(), visitorID(r), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if items == nil {
		items = []models.DesignDocument{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"designs": items,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetDesign returns one of the visitor's designs.
func (a *API) GetDesign(w http.ResponseWriter, r *http.Request) {
	doc, ok := a.ownedDesign(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetDraft returns the unsaved draft stashed after a failed save, if any.
func (a *API) GetDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if a.drafts == nil {
		writeError(w, http.StatusNotFound, "no draft")
		return
	}
	draft, err := a.drafts.Load(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if draft == nil || draft.Document == nil || draft.Document.OwnerID != visitorID(r) {
		writeError(w, http.StatusNotFound, "no draft")
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// DeleteDesign deletes one of the visitor's designs and its draft.
func (a *API) DeleteDesign(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	deleted, err := a.designs.Delete(r.Context(), id, visitorID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "design not found")
		return
	}

	if a.drafts != nil {
		if err := a.drafts.Drop(r.Context(), id); err != nil {
			slog.Warn("drop draft of deleted design", "design", id, "error", err)
		}
	}
	if a.onDelete != nil {
		a.onDelete(id)
	}
	slog.Info("design deleted", "design", id, "visitor", visitorID(r))
	w.WriteHeader(http.StatusNoContent)
}

// ownedDesign loads the design named by the {id} parameter, answering 404
// when it does not exist or belongs to someone else.
func (a *API) ownedDesign(w http.ResponseWriter, r *http.Request) (*models.DesignDocument, bool) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return nil, false
	}
	return a.loadOwned(w, r, id)
}

func (a *API) loadOwned(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*models.DesignDocument, bool) {
	doc, err := a.designs.FindByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	if doc == nil || doc.OwnerID != visitorID(r) {
		writeError(w, http.StatusNotFound, "design not found")
		return nil, false
	}
	return doc, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}

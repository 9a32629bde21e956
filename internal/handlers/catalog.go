// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"

	"designdrip/internal/models"
)

// ColorViews lists the photographed views of a color variant with their
// editable zones.
func (a *API) ColorViews(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	variant, err := a.catalog.FindColorVariant(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if variant == nil {
		writeError(w, http.StatusNotFound, "color variant not found")
		return
	}
	views, err := a.catalog.ViewsForColor(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if views == nil {
		views = []models.GarmentView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"colorVariant": variant,
		"views":        views,
	})
}

// ListTemplates lists design templates, optionally filtered by ?view=.
func (a *API) ListTemplates(w http.ResponseWriter, r *http.Request) {
	var view models.ViewName
	if q := r.URL.Query().Get("view"); q != "" {
		v, err := models.ParseViewName(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		view = v
	}
	items, err := a.templates.List(r.Context(), view)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if items == nil {
		items = []models.DesignTemplate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": items})
}

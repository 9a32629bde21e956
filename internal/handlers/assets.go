// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"designdrip/internal/assets"
	"designdrip/internal/editor"
	"designdrip/internal/models"
	"designdrip/internal/scene"
)

// multipartOverhead is the room left for multipart boundaries and headers
// on top of the file itself.
const multipartOverhead = 64 << 10

// assetResponse is a mutationResponse that also carries the stored asset.
type assetResponse struct {
	mutationResponse
	Asset *models.Asset `json:"asset"`
}

// Upload stores an uploaded image and inserts it centred in the editable
// zone of the active view. The design is saved right after the insert.
func (a *API) Upload(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok || !a.assetsAvailable(w) {
		return
	}

	if r.ContentLength > assets.MaxUploadSize+multipartOverhead {
		respondError(w, r, assets.ErrTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, assets.MaxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(assets.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, assets.ErrTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()
	if header.Size > assets.MaxUploadSize {
		respondError(w, r, assets.ErrTooLarge)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}

	asset, err := a.assets.Upload(r.Context(), s.OwnerID(), header.Filename, data)
	if err != nil {
		respondError(w, r, err)
		return
	}
	a.insertAsset(w, r, s, asset)
}

// GenerateImage creates an image from a text prompt and inserts it. Prompts
// are moderated before generation.
func (a *API) GenerateImage(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok || !a.assetsAvailable(w) {
		return
	}
	var req struct {
		Prompt string `json:"prompt"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := validatePrompt(req.Prompt); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	asset, err := a.assets.Generate(r.Context(), s.OwnerID(), req.Prompt)
	if err != nil {
		respondError(w, r, err)
		return
	}
	a.insertAsset(w, r, s, asset)
}

// RemoveBackground cuts out the background of an image object and points
// the object at the result. The swap is one undo step and is saved right
// away.
func (a *API) RemoveBackground(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok || !a.assetsAvailable(w) {
		return
	}
	id := chi.URLParam(r, "oid")
	obj, err := s.Object(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if obj.Kind != scene.KindImage {
		writeError(w, http.StatusUnprocessableEntity, "only image objects have a background")
		return
	}

	asset, err := a.assets.RemoveBackground(r.Context(), s.OwnerID(), obj.Src)
	if err != nil {
		respondError(w, r, err)
		return
	}
	updated, err := s.ReplaceSource(id, asset.URL)
	if err != nil {
		respondError(w, r, err)
		return
	}
	a.respondAsset(w, r, s, http.StatusOK, &updated, asset)
}

func (a *API) insertAsset(w http.ResponseWriter, r *http.Request, s *editor.Session, asset *models.Asset) {
	obj, err := s.InsertAsset(asset.URL, float64(asset.Width), float64(asset.Height))
	if err != nil {
		respondError(w, r, err)
		return
	}
	a.respondAsset(w, r, s, http.StatusCreated, &obj, asset)
}

func (a *API) respondAsset(w http.ResponseWriter, r *http.Request, s *editor.Session, status int, obj *scene.Object, asset *models.Asset) {
	st, err := s.State()
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, status, assetResponse{
		mutationResponse: mutationResponse{Object: obj, Changed: true, State: st},
		Asset:            asset,
	})
}

func (a *API) assetsAvailable(w http.ResponseWriter) bool {
	if a.assets == nil {
		writeError(w, http.StatusServiceUnavailable, assets.ErrStorageUnavailable.Error())
		return false
	}
	return true
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"designdrip/internal/editor"
	"designdrip/internal/models"
	"designdrip/internal/scene"
)

// mutationResponse is returned by every edit: the affected object, if
// any, whether anything changed, and the session state to re-render.
type mutationResponse struct {
	Object  *scene.Object `json:"object,omitempty"`
	Changed bool          `json:"changed"`
	State   editor.State  `json:"state"`
}

type openSessionRequest struct {
	DesignID       *uuid.UUID `json:"designId"`
	ColorVariantID *uuid.UUID `json:"colorVariantId"`
	Name           string     `json:"name"`
	RestoreDraft   bool       `json:"restoreDraft"`
}

// OpenSession starts an editing session, either on a stored design
// (designId, optionally restoring its stashed draft) or on a new design of
// a color variant (colorVariantId).
func (a *API) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var doc *models.DesignDocument
	switch {
	case req.DesignID != nil:
		stored, ok := a.loadOwned(w, r, *req.DesignID)
		if !ok {
			return
		}
		doc = stored
		if req.RestoreDraft {
			doc = a.restoreDraft(r, stored)
		}
	case req.ColorVariantID != nil:
		variant, err := a.catalog.FindColorVariant(r.Context(), *req.ColorVariantID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if variant == nil {
			writeError(w, http.StatusNotFound, "color variant not found")
			return
		}
		if msg := validateName(req.Name, true); msg != "" {
			writeError(w, http.StatusUnprocessableEntity, msg)
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = models.DefaultDesignName
		}
		doc = &models.DesignDocument{
			ID:             uuid.New(),
			OwnerID:        visitorID(r),
			Name:           name,
			ColorVariantID: variant.ID,
		}
	default:
		writeError(w, http.StatusBadRequest, "designId or colorVariantId is required")
		return
	}

	views, err := a.catalog.ViewsForColor(r.Context(), doc.ColorVariantID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s, err := a.sessions.Open(doc, views)
	if err != nil {
		respondError(w, r, err)
		return
	}
	a.respondState(w, r, s, http.StatusCreated, nil, false)
}

// restoreDraft returns the stashed draft of stored when one exists and was
// taken at the stored version. Older drafts were superseded by a later
// save and are ignored.
func (a *API) restoreDraft(r *http.Request, stored *models.DesignDocument) *models.DesignDocument {
	if a.drafts == nil {
		return stored
	}
	draft, err := a.drafts.Load(r.Context(), stored.ID)
	if err != nil {
		slog.Warn("load draft failed", "design", stored.ID, "error", err)
		return stored
	}
	if draft == nil || draft.Document == nil || draft.Document.OwnerID != stored.OwnerID ||
		draft.Document.Version != stored.Version {
		return stored
	}
	doc := draft.Document.Clone()
	doc.ID = stored.ID
	doc.ColorVariantID = stored.ColorVariantID
	return doc
}

// GetSession returns the session state.
func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	a.respondState(w, r, s, http.StatusOK, nil, false)
}

// CloseSession performs the final save and ends the session. A failed
// final save is reported; the document stays recoverable as a draft.
func (a *API) CloseSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := a.sessions.Close(r.Context(), s.ID()); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addObjectRequest struct {
	Type     scene.Kind `json:"type"`
	Src      string     `json:"src"`
	Text     string     `json:"text"`
	FontSize float64    `json:"fontSize"`
	Fill     string     `json:"fill"`
	Width    float64    `json:"width"`
	Height   float64    `json:"height"`
	Left     *float64   `json:"left"`
	Top      *float64   `json:"top"`
	ScaleX   float64    `json:"scaleX"`
	ScaleY   float64    `json:"scaleY"`
	Angle    float64    `json:"angle"`
}

// AddObject places an image or text object on the active view. Without
// left/top the object is centred in the editable zone.
func (a *API) AddObject(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req addObjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := a.validateAddObject(&req); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	var (
		obj scene.Object
		err error
	)
	switch {
	case req.Left != nil && req.Top != nil:
		obj, err = s.AddObject(scene.Object{
			Kind: req.Type, Src: req.Src,
			Text: req.Text, FontSize: req.FontSize, Fill: req.Fill,
			Left: *req.Left, Top: *req.Top,
			Width: req.Width, Height: req.Height,
			ScaleX: req.ScaleX, ScaleY: req.ScaleY, Angle: req.Angle,
		})
	case req.Type == scene.KindImage:
		obj, err = s.AddImage(req.Src, req.Width, req.Height)
	default:
		obj, err = s.AddText(req.Text, req.FontSize, req.Fill)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	a.respondState(w, r, s, http.StatusCreated, &obj, true)
}

type updateObjectRequest struct {
	Delta *scene.Delta `json:"delta"`
	Text  *string      `json:"text"`
	Z     *int         `json:"z"`
}

// UpdateObject transforms an object, replaces its text or moves it in the
// z-order. Each present field is applied and recorded as its own undo
// step, in the order text, transform, z.
func (a *API) UpdateObject(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "oid")
	var req updateObjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Delta == nil && req.Text == nil && req.Z == nil {
		writeError(w, http.StatusBadRequest, "delta, text or z is required")
		return
	}
	if req.Text != nil {
		if msg := validateText(*req.Text); msg != "" {
			writeError(w, http.StatusUnprocessableEntity, msg)
			return
		}
	}
	if req.Delta != nil {
		if msg := validateDelta(*req.Delta); msg != "" {
			writeError(w, http.StatusUnprocessableEntity, msg)
			return
		}
	}

	changed := false
	if req.Text != nil {
		c, err := s.UpdateText(id, *req.Text)
		if err != nil {
			respondError(w, r, err)
			return
		}
		changed = changed || c
	}
	if req.Delta != nil && !req.Delta.IsZero() {
		if _, err := s.TransformObject(id, *req.Delta); err != nil {
			respondError(w, r, err)
			return
		}
		changed = true
	}
	if req.Z != nil {
		c, err := s.Reorder(id, *req.Z)
		if err != nil {
			respondError(w, r, err)
			return
		}
		changed = changed || c
	}

	obj, err := s.Object(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	a.respondState(w, r, s, http.StatusOK, &obj, changed)
}

// DeleteObject removes an object from the active view. Removing an
// unknown id changes nothing and still succeeds.
func (a *API) DeleteObject(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	removed, err := s.RemoveObject(chi.URLParam(r, "oid"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	a.respondState(w, r, s, http.StatusOK, nil, removed)
}

// ClearView removes every object of the active view. It is one undo step.
func (a *API) ClearView(w http.ResponseWriter, r *http.Request) {
	a.step(w, r, (*editor.Session).ClearView)
}

// Undo steps the active view back.
func (a *API) Undo(w http.ResponseWriter, r *http.Request) {
	a.step(w, r, (*editor.Session).Undo)
}

// Redo steps the active view forward.
func (a *API) Redo(w http.ResponseWriter, r *http.Request) {
	a.step(w, r, (*editor.Session).Redo)
}

func (a *API) step(w http.ResponseWriter, r *http.Request, move func(*editor.Session) (bool, error)) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	changed, err := move(s)
	if err != nil {
		respondError(w, r, err)
		return
	}
	a.respondState(w, r, s, http.StatusOK, nil, changed)
}

// SwitchView makes another garment view active, saving pending changes
// first.
func (a *API) SwitchView(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req struct {
		View string `json:"view"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := models.ParseViewName(req.View)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.SwitchView(r.Context(), v); err != nil {
		respondError(w, r, err)
		return
	}
	a.respondState(w, r, s, http.StatusOK, nil, true)
}

// Rename sets the design name.
func (a *API) Rename(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := validateName(req.Name, false); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}
	if err := s.Rename(req.Name); err != nil {
		respondError(w, r, err)
		return
	}
	a.respondState(w, r, s, http.StatusOK, nil, true)
}

// Save persists the design and waits for the result.
func (a *API) Save(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := s.Save(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	a.respondState(w, r, s, http.StatusOK, nil, false)
}

// ApplyTemplate adds a template's objects to the active view as one undo
// step and saves.
func (a *API) ApplyTemplate(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	tid, ok := uuidParam(w, r, "tid")
	if !ok {
		return
	}
	tpl, err := a.templates.FindByID(r.Context(), tid)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if tpl == nil {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	n, err := s.ApplyTemplate(tpl)
	if err != nil {
		respondError(w, r, err)
		return
	}
	a.respondState(w, r, s, http.StatusOK, nil, n > 0)
}

// session returns the session named by {sid}. Sessions of other visitors
// answer 404 like unknown ones.
func (a *API) session(w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	sid, ok := uuidParam(w, r, "sid")
	if !ok {
		return nil, false
	}
	s, err := a.sessions.Get(sid)
	if err != nil || s.OwnerID() != visitorID(r) {
		writeError(w, http.StatusNotFound, "editing session not found")
		return nil, false
	}
	return s, true
}

func (a *API) respondState(w http.ResponseWriter, r *http.Request, s *editor.Session, status int, obj *scene.Object, changed bool) {
	st, err := s.State()
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, status, mutationResponse{Object: obj, Changed: changed, State: st})
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package editor implements the server-side editing session behind one
// open editor tab: a scene and undo history per garment view, the active
// view, and the save coordinator that persists the design document.
package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"designdrip/internal/history"
	"designdrip/internal/models"
	"designdrip/internal/scene"
	"designdrip/internal/zone"
)

// Options configures new sessions.
type Options struct {
	AutosaveQuiet  time.Duration
	PersistTimeout time.Duration
	HistoryLimit   int
	ClampMode      zone.Mode
}

// placementFill is the share of the editable zone a newly inserted image
// may cover along its longer side.
const placementFill = 0.8

type viewState struct {
	garment models.GarmentView
	scene   *scene.Scene
	history *history.Stack
	edited  bool
}

// Session is one open editor tab. All methods are safe for concurrent use;
// edits are applied in the order they acquire the session lock.
type Session struct {
	id      uuid.UUID
	opts    Options
	logger  *slog.Logger
	garment models.ViewSet[models.GarmentView]
	saver   *Coordinator

	rev      atomic.Uint64
	lastUsed atomic.Int64

	mu     sync.Mutex
	doc    *models.DesignDocument
	views  models.ViewSet[*viewState]
	active models.ViewName
	closed bool
}

// State is what the client renders after every operation.
type State struct {
	SessionID      uuid.UUID              `json:"sessionId"`
	DesignID       *uuid.UUID             `json:"designId,omitempty"`
	Name           string                 `json:"name"`
	ColorVariantID uuid.UUID              `json:"colorVariantId"`
	Version        int                    `json:"version"`
	ActiveView     models.GarmentView     `json:"activeView"`
	Views          []models.ViewName      `json:"views"`
	Objects        []scene.Object         `json:"objects"`
	CanUndo        bool                   `json:"canUndo"`
	CanRedo        bool                   `json:"canRedo"`
	Save           SaveStatus             `json:"save"`
	Previews       models.ViewSet[string] `json:"previewImagesByView"`
}

// NewSession opens doc for editing on the given garment views. The first
// view in display order that the garment offers becomes active. A stored
// document starts clean; a new one is dirty only after its first edit.
func NewSession(doc *models.DesignDocument, views []models.GarmentView, p Persister, opts Options, logger *slog.Logger) (*Session, error) {
	if len(views) == 0 {
		return nil, fmt.Errorf("open session: %w", ErrUnknownView)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ClampMode == "" {
		opts.ClampMode = zone.ModeIntersect
	}

	s := &Session{
		id:     uuid.New(),
		opts:   opts,
		doc:    doc.Clone(),
		logger: logger,
	}
	s.logger = logger.With("session", s.id)
	for _, v := range views {
		if !v.EditableZone.Valid() {
			return nil, fmt.Errorf("open session: view %s has an invalid editable zone", v.ViewName)
		}
		s.garment.Set(v.ViewName, v)
	}
	for _, v := range models.AllViews {
		if _, ok := s.garment.Get(v); ok {
			s.active = v
			break
		}
	}
	if s.active == "" {
		return nil, fmt.Errorf("open session: %w", ErrUnknownView)
	}
	if _, err := s.viewLocked(s.active); err != nil {
		return nil, err
	}

	s.saver = NewCoordinator(s, p, opts.AutosaveQuiet, opts.PersistTimeout, 0, s.logger)
	s.markUsed()
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// OwnerID returns the visitor that owns the edited design.
func (s *Session) OwnerID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.OwnerID
}

// LastUsed returns when the session last served a request.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Session) markUsed() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// viewLocked returns the state of view v, loading its stored scene on
// first use.
func (s *Session) viewLocked(v models.ViewName) (*viewState, error) {
	if vs, ok := s.views.Get(v); ok {
		return vs, nil
	}
	g, ok := s.garment.Get(v)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownView, v)
	}

	sc := scene.New(g.EditableZone, s.opts.ClampMode)
	if raw, ok := s.doc.Scenes.Get(v); ok && len(raw) > 0 {
		if err := sc.Deserialize(raw); err != nil {
			return nil, fmt.Errorf("load %s scene: %w", v, err)
		}
	}
	initial, err := sc.Serialize()
	if err != nil {
		return nil, err
	}

	vs := &viewState{garment: g, scene: sc, history: history.New(initial, s.opts.HistoryLimit)}
	s.views.Set(v, vs)
	return vs, nil
}

func (s *Session) activeLocked() (*viewState, error) {
	if s.closed {
		return nil, ErrClosed
	}
	s.markUsed()
	return s.viewLocked(s.active)
}

// commitLocked records the active scene in history and marks the document
// dirty. If the scene cannot be recorded it is put back to the newest
// history entry, so the scene never runs ahead of its history.
func (s *Session) commitLocked(vs *viewState) error {
	data, err := vs.scene.Serialize()
	if err != nil {
		s.restoreLocked(vs)
		return err
	}
	vs.history.Commit(data)
	vs.edited = true
	s.changedLocked()
	return nil
}

func (s *Session) changedLocked() {
	s.rev.Add(1)
	s.saver.Touch()
}

// restoreLocked puts the scene back to the snapshot under the history
// pointer. Used to roll back failed and multi-step mutations.
func (s *Session) restoreLocked(vs *viewState) {
	if err := vs.scene.Deserialize(vs.history.Current().Snapshot); err != nil {
		s.logger.Error("restore scene from history", "error", err)
	}
}

// AddObject places obj on top of the active scene.
func (s *Session) AddObject(obj scene.Object) (scene.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs, err := s.activeLocked()
	if err != nil {
		return scene.Object{}, err
	}
	added, err := vs.scene.AddObject(obj)
	if err != nil {
		return scene.Object{}, err
	}
	if err := s.commitLocked(vs); err != nil {
		return scene.Object{}, err
	}
	return added, nil
}

// AddImage places an image of the given natural size centred in the
// editable zone, scaled down to fit if needed.
func (s *Session) AddImage(src string, width, height float64) (scene.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addImageLocked(src, width, height)
}

func (s *Session) addImageLocked(src string, width, height float64) (scene.Object, error) {
	vs, err := s.activeLocked()
	if err != nil {
		return scene.Object{}, err
	}
	if width <= 0 || height <= 0 {
		return scene.Object{}, fmt.Errorf("%w: image size %vx%v", scene.ErrInvalidObject, width, height)
	}

	z := vs.garment.EditableZone
	scale := max(scene.MinScale, min(1, placementFill*z.Width/width, placementFill*z.Height/height))
	obj := scene.Object{
		Kind:   scene.KindImage,
		Src:    src,
		Left:   z.X + (z.Width-width*scale)/2,
		Top:    z.Y + (z.Height-height*scale)/2,
		Width:  width,
		Height: height,
		ScaleX: scale,
		ScaleY: scale,
	}
	added, err := vs.scene.AddObject(obj)
	if err != nil {
		return scene.Object{}, err
	}
	if err := s.commitLocked(vs); err != nil {
		return scene.Object{}, err
	}
	return added, nil
}

// AddText places a text object centred in the editable zone.
func (s *Session) AddText(text string, fontSize float64, fill string) (scene.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs, err := s.activeLocked()
	if err != nil {
		return scene.Object{}, err
	}
	obj := scene.Object{Kind: scene.KindText, Text: text, FontSize: fontSize, Fill: fill}
	// Measure first so the box can be centred.
	measure := scene.New(zone.Rect{X: -1e9, Y: -1e9, Width: 2e9, Height: 2e9}, zone.ModeNone)
	measured, err := measure.AddObject(obj)
	if err != nil {
		return scene.Object{}, err
	}
	z := vs.garment.EditableZone
	measured.ID = ""
	measured.Left = z.X + (z.Width-measured.Width)/2
	measured.Top = z.Y + (z.Height-measured.Height)/2

	added, err := vs.scene.AddObject(measured)
	if err != nil {
		return scene.Object{}, err
	}
	if err := s.commitLocked(vs); err != nil {
		return scene.Object{}, err
	}
	return added, nil
}

// InsertAsset adds an image produced by an external service and saves as
// soon as the image is in the scene.
func (s *Session) InsertAsset(src string, width, height float64) (scene.Object, error) {
	s.mu.Lock()
	obj, err := s.addImageLocked(src, width, height)
	s.mu.Unlock()
	if err != nil {
		return scene.Object{}, err
	}
	s.saver.Trigger(TriggerInsert)
	return obj, nil
}

// ReplaceSource swaps the asset of an image object, as after background
// removal, and saves immediately.
func (s *Session) ReplaceSource(id, src string) (scene.Object, error) {
	s.mu.Lock()
	vs, err := s.activeLocked()
	if err != nil {
		s.mu.Unlock()
		return scene.Object{}, err
	}
	changed, err := vs.scene.SetSource(id, src)
	if err == nil && changed {
		err = s.commitLocked(vs)
	}
	obj, _ := vs.scene.Get(id)
	s.mu.Unlock()
	if err != nil {
		return scene.Object{}, err
	}
	if changed {
		s.saver.Trigger(TriggerInsert)
	}
	return obj, nil
}

// Object returns an object of the active scene.
func (s *Session) Object(id string) (scene.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vs, err := s.activeLocked()
	if err != nil {
		return scene.Object{}, err
	}
	obj, ok := vs.scene.Get(id)
	if !ok {
		return scene.Object{}, scene.ErrNotFound
	}
	return obj, nil
}

// TransformObject moves, scales and rotates an object of the active scene.
// A zero delta changes nothing and records no history.
func (s *Session) TransformObject(id string, d scene.Delta) (scene.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs, err := s.activeLocked()
	if err != nil {
		return scene.Object{}, err
	}
	before, ok := vs.scene.Get(id)
	if !ok {
		return scene.Object{}, scene.ErrNotFound
	}
	after, err := vs.scene.TransformObject(id, d)
	if err != nil {
		return scene.Object{}, err
	}
	if after == before {
		return after, nil
	}
	if err := s.commitLocked(vs); err != nil {
		return scene.Object{}, err
	}
	return after, nil
}

// RemoveObject deletes an object. Removing an absent id records nothing.
func (s *Session) RemoveObject(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs, err := s.activeLocked()
	if err != nil {
		return false, err
	}
	if !vs.scene.RemoveObject(id) {
		return false, nil
	}
	return true, s.commitLocked(vs)
}

// ClearView removes every object of the active view as one history entry.
func (s *Session) ClearView() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs, err := s.activeLocked()
	if err != nil {
		return false, err
	}
	if !vs.scene.Clear() {
		return false, nil
	}
	return true, s.commitLocked(vs)
}

// Reorder moves an object to z position z.
func (s *Session) Reorder(id string, z int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs, err := s.activeLocked()
	if err != nil {
		return false, err
	}
	changed, err := vs.scene.Reorder(id, z)
	if err != nil || !changed {
		return false, err
	}
	return true, s.commitLocked(vs)
}

// UpdateText replaces the text of a text object.
func (s *Session) UpdateText(id, text string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs, err := s.activeLocked()
	if err != nil {
		return false, err
	}
	changed, err := vs.scene.UpdateText(id, text)
	if err != nil || !changed {
		return false, err
	}
	return true, s.commitLocked(vs)
}

// ApplyTemplate adds every object of tpl to the active scene as a single
// history entry and saves immediately. Objects get fresh ids so a template
// can be applied more than once. A template made for another view is
// rejected with ErrUnknownView; one without a view fits any. If any object
// is rejected the scene is left unchanged.
func (s *Session) ApplyTemplate(tpl *models.DesignTemplate) (int, error) {
	snap, err := scene.ParseSnapshot(tpl.Scene)
	if err != nil {
		return 0, fmt.Errorf("template %s: %w", tpl.ID, err)
	}

	s.mu.Lock()
	vs, err := s.activeLocked()
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	if tpl.ViewName != "" && tpl.ViewName != s.active {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: template %s is for the %s view", ErrUnknownView, tpl.ID, tpl.ViewName)
	}
	for _, obj := range snap.Objects {
		obj.ID = ""
		if _, err := vs.scene.AddObject(obj); err != nil {
			s.restoreLocked(vs)
			s.mu.Unlock()
			return 0, fmt.Errorf("template %s: %w", tpl.ID, err)
		}
	}
	if len(snap.Objects) > 0 {
		err = s.commitLocked(vs)
	}
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if len(snap.Objects) > 0 {
		s.saver.Trigger(TriggerInsert)
	}
	return len(snap.Objects), nil
}

// Undo steps the active view back one entry. It reports false when there
// is nothing to undo.
func (s *Session) Undo() (bool, error) {
	return s.step((*history.Stack).Undo)
}

// Redo steps the active view forward one entry. It reports false when
// there is nothing to redo.
func (s *Session) Redo() (bool, error) {
	return s.step((*history.Stack).Redo)
}

func (s *Session) step(move func(*history.Stack) ([]byte, bool)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs, err := s.activeLocked()
	if err != nil {
		return false, err
	}
	data, ok := move(vs.history)
	if !ok {
		return false, nil
	}
	if err := vs.scene.Deserialize(data); err != nil {
		return false, fmt.Errorf("restore history entry: %w", err)
	}
	vs.edited = true
	s.changedLocked()
	return true, nil
}

// SwitchView makes v the active view. Pending changes are flushed first;
// a failed flush is logged and left visible in the save status, and the
// switch still happens.
func (s *Session) SwitchView(ctx context.Context, v models.ViewName) error {
	if _, ok := s.garment.Get(v); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownView, v)
	}
	if err := s.saver.Flush(ctx); err != nil {
		s.logger.Warn("flush before view switch failed", "view", v, "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.viewLocked(v); err != nil {
		return err
	}
	s.active = v
	s.markUsed()
	return nil
}

// Rename sets the design name.
func (s *Session) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 200 {
		return ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.doc.Name == name {
		return nil
	}
	s.doc.Name = name
	s.markUsed()
	s.changedLocked()
	return nil
}

// Save persists the document and waits for the result.
func (s *Session) Save(ctx context.Context) error {
	s.markUsed()
	return s.saver.Save(ctx)
}

// Flush saves pending changes, if any, and waits.
func (s *Session) Flush(ctx context.Context) error {
	return s.saver.Flush(ctx)
}

// Close performs a final save and rejects further edits. A failed save is
// returned; the unsaved document remains available from Document.
func (s *Session) Close(ctx context.Context) error {
	err := s.saver.Close(ctx)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

// SaveStatus returns the state of the save coordinator.
func (s *Session) SaveStatus() SaveStatus {
	return s.saver.Status()
}

// State returns the client view of the session.
func (s *Session) State() (State, error) {
	s.mu.Lock()
	vs, err := s.viewLocked(s.active)
	if err != nil {
		s.mu.Unlock()
		return State{}, err
	}
	st := State{
		SessionID:      s.id,
		Name:           s.doc.DisplayName(),
		ColorVariantID: s.doc.ColorVariantID,
		Version:        s.doc.Version,
		ActiveView:     vs.garment,
		Objects:        vs.scene.Objects(),
		CanUndo:        vs.history.CanUndo(),
		CanRedo:        vs.history.CanRedo(),
		Previews:       s.doc.Clone().Previews,
	}
	if !s.doc.IsNew() {
		id := s.doc.ID
		st.DesignID = &id
	}
	s.garment.Each(func(v models.ViewName, _ models.GarmentView) {
		st.Views = append(st.Views, v)
	})
	s.mu.Unlock()

	st.Save = s.saver.Status()
	return st, nil
}

// Revision implements Source.
func (s *Session) Revision() uint64 {
	return s.rev.Load()
}

// Snapshot implements Source. Views opened in this session contribute the
// scene under their history pointer; other views keep their stored scene.
func (s *Session) Snapshot() (*models.DesignDocument, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.doc.Clone()
	doc.Name = s.doc.DisplayName()
	s.views.Each(func(v models.ViewName, vs *viewState) {
		if _, stored := doc.Scenes.Get(v); vs.edited || stored {
			doc.Scenes.Set(v, json.RawMessage(vs.history.Current().Snapshot))
		}
	})
	return doc, s.rev.Load()
}

// MarkSaved implements Source.
func (s *Session) MarkSaved(saved *models.DesignDocument, _ uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.ID = saved.ID
	s.doc.OwnerID = saved.OwnerID
	s.doc.Version = saved.Version
	s.doc.CreatedAt = saved.CreatedAt
	s.doc.UpdatedAt = saved.UpdatedAt
	s.doc.Previews = saved.Clone().Previews
	saved.Scenes.Each(func(v models.ViewName, raw json.RawMessage) {
		if _, ok := s.doc.Scenes.Get(v); !ok {
			s.doc.Scenes.Set(v, append(json.RawMessage(nil), raw...))
		}
	})
}

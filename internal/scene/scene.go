// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package scene holds the in-memory object graph for one garment view:
// the images and text a customer has placed, in z-order, bounded by the
// view's editable zone. A Scene is not safe for concurrent use; the
// editing session that owns it serializes access.
package scene

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"designdrip/internal/zone"
)

var (
	// ErrNotFound is returned when an operation names an unknown object.
	ErrNotFound = errors.New("scene: object not found")

	// ErrInvalidObject is returned for objects with a bad kind, size or id.
	ErrInvalidObject = errors.New("scene: invalid object")
)

const (
	// DefaultFontSize applies to text objects created without a size.
	DefaultFontSize = 40.0

	// maxTextLen bounds the text a single object may carry.
	maxTextLen = 500

	// MinScale and MaxScale bound the magnitude of each scale factor.
	MinScale = 0.01
	MaxScale = 100.0

	// MaxSide bounds each side of an object's scaled box, and MaxCoordinate
	// the absolute value of its position.
	MaxSide       = 10_000.0
	MaxCoordinate = 100_000.0

	// MaxFontSize bounds the font size of text objects.
	MaxFontSize = 400.0

	// maxNaturalSide bounds the unscaled size of an object.
	maxNaturalSide = 100_000.0
)

// Kind distinguishes image objects from text objects.
type Kind string

const (
	KindImage Kind = "image"
	KindText  Kind = "text"
)

// Object is a single placed item. Left/Top is the top-left corner of the
// unrotated box; Angle rotates clockwise about the box centre.
type Object struct {
	ID       string  `json:"id"`
	Kind     Kind    `json:"type"`
	Src      string  `json:"src,omitempty"`
	Text     string  `json:"text,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`
	Fill     string  `json:"fill,omitempty"`
	Left     float64 `json:"left"`
	Top      float64 `json:"top"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	ScaleX   float64 `json:"scaleX"`
	ScaleY   float64 `json:"scaleY"`
	Angle    float64 `json:"angle"`
	Z        int     `json:"z"`
}

// Placement returns the geometric part of the object.
func (o Object) Placement() zone.Placement {
	return zone.Placement{
		Left: o.Left, Top: o.Top,
		Width: o.Width, Height: o.Height,
		ScaleX: o.ScaleX, ScaleY: o.ScaleY,
		Angle: o.Angle,
	}
}

func (o *Object) setPlacement(p zone.Placement) {
	o.Left, o.Top = p.Left, p.Top
	o.Width, o.Height = p.Width, p.Height
	o.ScaleX, o.ScaleY = p.ScaleX, p.ScaleY
	o.Angle = p.Angle
}

// Delta is a relative transform. Scale factors multiply the current scale;
// a zero factor leaves that axis unchanged. Rotate is in degrees. Moves
// are limited to twice MaxCoordinate per step.
type Delta struct {
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
	ScaleX float64 `json:"scaleX"`
	ScaleY float64 `json:"scaleY"`
	Rotate float64 `json:"rotate"`
}

// Valid reports whether every component is finite and the move is within
// range.
func (d Delta) Valid() bool {
	for _, v := range []float64{d.DX, d.DY, d.ScaleX, d.ScaleY, d.Rotate} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return math.Abs(d.DX) <= 2*MaxCoordinate && math.Abs(d.DY) <= 2*MaxCoordinate
}

// IsZero reports whether the delta leaves every object unchanged.
func (d Delta) IsZero() bool {
	return d.DX == 0 && d.DY == 0 &&
		(d.ScaleX == 0 || d.ScaleX == 1) &&
		(d.ScaleY == 0 || d.ScaleY == 1) &&
		d.Rotate == 0
}

// Scene is the ordered object list for one garment view. Index 0 is the
// bottom of the stack.
type Scene struct {
	zone    zone.Rect
	mode    zone.Mode
	objects []Object
}

// New creates an empty scene bounded by the given editable zone. mode
// decides how transforms that leave the zone are corrected.
func New(editable zone.Rect, mode zone.Mode) *Scene {
	if mode == "" {
		mode = zone.ModeIntersect
	}
	return &Scene{zone: editable, mode: mode, objects: []Object{}}
}

// Len returns the number of objects in the scene.
func (s *Scene) Len() int {
	return len(s.objects)
}

// Objects returns a copy of the objects in z-order.
func (s *Scene) Objects() []Object {
	return slices.Clone(s.objects)
}

// Get returns the object with the given id.
func (s *Scene) Get(id string) (Object, bool) {
	i := s.index(id)
	if i < 0 {
		return Object{}, false
	}
	return s.objects[i], true
}

// AddObject inserts obj on top of the z-order. A missing id is generated
// and missing scale factors default to 1. The object is rejected with
// zone.ErrOutsideZone when its bounding box lies entirely outside the
// editable zone; partial overlap is accepted as placed.
func (s *Scene) AddObject(obj Object) (Object, error) {
	if obj.ID == "" {
		obj.ID = uuid.NewString()
	}
	if obj.ScaleX == 0 {
		obj.ScaleX = 1
	}
	if obj.ScaleY == 0 {
		obj.ScaleY = 1
	}
	if s.index(obj.ID) >= 0 {
		return Object{}, fmt.Errorf("%w: duplicate id %q", ErrInvalidObject, obj.ID)
	}
	if err := normalize(&obj); err != nil {
		return Object{}, err
	}
	if err := zone.Check(obj.Placement(), s.zone); err != nil {
		return Object{}, err
	}

	obj.Z = len(s.objects)
	s.objects = append(s.objects, obj)
	return obj, nil
}

// TransformObject applies a move/scale/rotate delta. The result passes
// through the zone constraint: with zone.ModeNone a result that leaves the
// zone entirely is rejected and the object is unchanged; the other modes
// reposition it. Results outside the scale and size limits are rejected
// with ErrInvalidObject.
func (s *Scene) TransformObject(id string, d Delta) (Object, error) {
	i := s.index(id)
	if i < 0 {
		return Object{}, ErrNotFound
	}
	obj := s.objects[i]
	if !d.Valid() {
		return obj, fmt.Errorf("%w: transform out of range", ErrInvalidObject)
	}

	p := obj.Placement().Translate(d.DX, d.DY)
	if d.ScaleX != 0 {
		p.ScaleX *= d.ScaleX
	}
	if d.ScaleY != 0 {
		p.ScaleY *= d.ScaleY
	}
	p.Angle = normalizeAngle(p.Angle + d.Rotate)
	if err := checkSize(p); err != nil {
		return obj, err
	}

	corrected, inBounds := zone.Constrain(p, s.zone, s.mode)
	if s.mode == zone.ModeNone && !inBounds {
		return obj, zone.ErrOutsideZone
	}
	if err := checkPosition(corrected); err != nil {
		return obj, err
	}

	obj.setPlacement(corrected)
	s.objects[i] = obj
	return obj, nil
}

// RemoveObject deletes the object with the given id. Removing an absent
// id is a no-op and reports false.
func (s *Scene) RemoveObject(id string) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.objects = slices.Delete(s.objects, i, i+1)
	s.renumber()
	return true
}

// Reorder moves an object to z position z (clamped to the stack). It
// reports whether the order changed.
func (s *Scene) Reorder(id string, z int) (bool, error) {
	i := s.index(id)
	if i < 0 {
		return false, ErrNotFound
	}
	z = max(0, min(z, len(s.objects)-1))
	if z == i {
		return false, nil
	}
	obj := s.objects[i]
	s.objects = slices.Delete(s.objects, i, i+1)
	s.objects = slices.Insert(s.objects, z, obj)
	s.renumber()
	return true, nil
}

// UpdateText replaces the text of a text object. It reports whether the
// text changed.
func (s *Scene) UpdateText(id, text string) (bool, error) {
	i := s.index(id)
	if i < 0 {
		return false, ErrNotFound
	}
	obj := &s.objects[i]
	if obj.Kind != KindText {
		return false, fmt.Errorf("%w: object %q is not text", ErrInvalidObject, id)
	}
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > maxTextLen {
		return false, fmt.Errorf("%w: text must be 1-%d characters", ErrInvalidObject, maxTextLen)
	}
	if obj.Text == text {
		return false, nil
	}
	obj.Text = text
	return true, nil
}

// SetSource swaps the asset of an image object, keeping its transform.
// It reports whether the source changed.
func (s *Scene) SetSource(id, src string) (bool, error) {
	i := s.index(id)
	if i < 0 {
		return false, ErrNotFound
	}
	obj := &s.objects[i]
	if obj.Kind != KindImage {
		return false, fmt.Errorf("%w: object %q is not an image", ErrInvalidObject, id)
	}
	src = strings.TrimSpace(src)
	if src == "" {
		return false, fmt.Errorf("%w: image requires a source url", ErrInvalidObject)
	}
	if obj.Src == src {
		return false, nil
	}
	obj.Src = src
	return true, nil
}

// Clear removes every object. It reports whether anything was removed.
func (s *Scene) Clear() bool {
	if len(s.objects) == 0 {
		return false
	}
	s.objects = []Object{}
	return true
}

func (s *Scene) index(id string) int {
	return slices.IndexFunc(s.objects, func(o Object) bool { return o.ID == id })
}

func (s *Scene) renumber() {
	for i := range s.objects {
		s.objects[i].Z = i
	}
}

// normalize validates an object and fills in defaults. Scale factors are
// not defaulted here: a stored scene always carries them.
func normalize(obj *Object) error {
	switch obj.Kind {
	case KindImage:
		if strings.TrimSpace(obj.Src) == "" {
			return fmt.Errorf("%w: image requires a source url", ErrInvalidObject)
		}
	case KindText:
		obj.Text = strings.TrimSpace(obj.Text)
		if obj.Text == "" || utf8.RuneCountInString(obj.Text) > maxTextLen {
			return fmt.Errorf("%w: text must be 1-%d characters", ErrInvalidObject, maxTextLen)
		}
		if obj.FontSize <= 0 {
			obj.FontSize = DefaultFontSize
		}
		if !(obj.FontSize <= MaxFontSize) {
			return fmt.Errorf("%w: font size must be at most %v", ErrInvalidObject, MaxFontSize)
		}
		if obj.Fill == "" {
			obj.Fill = "#000000"
		}
		if obj.Width <= 0 || obj.Height <= 0 {
			obj.Width, obj.Height = estimateTextBox(obj.Text, obj.FontSize)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidObject, obj.Kind)
	}

	if !(obj.Width > 0 && obj.Height > 0) {
		return fmt.Errorf("%w: width and height must be positive", ErrInvalidObject)
	}
	p := obj.Placement()
	if err := checkSize(p); err != nil {
		return err
	}
	if err := checkPosition(p); err != nil {
		return err
	}
	obj.Angle = normalizeAngle(obj.Angle)
	return nil
}

// checkSize enforces finite geometry, the scale range and the size limits.
func checkSize(p zone.Placement) error {
	for _, v := range []float64{p.Left, p.Top, p.Width, p.Height, p.ScaleX, p.ScaleY, p.Angle} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: geometry must be finite", ErrInvalidObject)
		}
	}
	for _, f := range []float64{p.ScaleX, p.ScaleY} {
		if a := math.Abs(f); a < MinScale || a > MaxScale {
			return fmt.Errorf("%w: scale must be between %v and %v", ErrInvalidObject, MinScale, MaxScale)
		}
	}
	if p.Width > maxNaturalSide || p.Height > maxNaturalSide {
		return fmt.Errorf("%w: size above %v", ErrInvalidObject, maxNaturalSide)
	}
	if p.Width*math.Abs(p.ScaleX) > MaxSide || p.Height*math.Abs(p.ScaleY) > MaxSide {
		return fmt.Errorf("%w: scaled size above %v", ErrInvalidObject, MaxSide)
	}
	return nil
}

func checkPosition(p zone.Placement) error {
	if math.Abs(p.Left) > MaxCoordinate || math.Abs(p.Top) > MaxCoordinate {
		return fmt.Errorf("%w: position out of range", ErrInvalidObject)
	}
	return nil
}

// estimateTextBox approximates the box of a single line of text when the
// client did not measure it.
func estimateTextBox(text string, fontSize float64) (float64, float64) {
	return float64(utf8.RuneCountInString(text)) * fontSize * 0.6, fontSize * 1.2
}

// normalizeAngle maps an angle into [0, 360).
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		// -1e-15 + 360 rounds up to 360.
		a = 0
	}
	return a
}

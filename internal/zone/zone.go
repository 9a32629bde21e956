// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package zone implements the editable-zone constraint for garment views.
// A garment photo carries one printable rectangle; every object placed on
// the garment must keep its bounding box overlapping that rectangle.
// All functions here are pure: they take a proposed placement and a zone
// and return a corrected placement plus an in-bounds verdict.
package zone

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrOutsideZone is returned when a placement's bounding box lies entirely
// outside the editable zone and the active policy does not correct it.
var ErrOutsideZone = errors.New("zone: object lies entirely outside the editable zone")

// MinOverlap is how far (in pixels) a pulled-back object reaches into the
// zone when the intersect policy repositions it.
const MinOverlap = 8.0

// Rect is an axis-aligned rectangle in garment-image pixel coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MaxX returns the right edge.
func (r Rect) MaxX() float64 { return r.X + r.Width }

// MaxY returns the bottom edge.
func (r Rect) MaxY() float64 { return r.Y + r.Height }

// Valid reports whether the rectangle has a positive area.
func (r Rect) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Intersects reports whether the two rectangles share a region of positive
// area. Rectangles that only touch along an edge do not intersect.
func (r Rect) Intersects(other Rect) bool {
	return r.X < other.MaxX() && r.MaxX() > other.X &&
		r.Y < other.MaxY() && r.MaxY() > other.Y
}

// Contains reports whether other lies completely inside r.
func (r Rect) Contains(other Rect) bool {
	return other.X >= r.X && other.MaxX() <= r.MaxX() &&
		other.Y >= r.Y && other.MaxY() <= r.MaxY()
}

// Placement is the geometric part of a scene object: its unrotated box
// (top-left corner plus intrinsic size), scale factors, and a clockwise
// rotation in degrees about the box centre.
type Placement struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
	ScaleX float64
	ScaleY float64
	Angle  float64
}

// Translate returns the placement moved by (dx, dy).
func (p Placement) Translate(dx, dy float64) Placement {
	p.Left += dx
	p.Top += dy
	return p
}

// Bounds returns the axis-aligned bounding box of the placement after
// scaling and rotation.
func (p Placement) Bounds() Rect {
	w := p.Width * math.Abs(p.ScaleX)
	h := p.Height * math.Abs(p.ScaleY)

	corners := []r2.Vec{
		{X: p.Left, Y: p.Top},
		{X: p.Left + w, Y: p.Top},
		{X: p.Left + w, Y: p.Top + h},
		{X: p.Left, Y: p.Top + h},
	}

	if math.Mod(p.Angle, 360) != 0 {
		centre := r2.Vec{X: p.Left + w/2, Y: p.Top + h/2}
		rot := r2.NewRotation(p.Angle*math.Pi/180, centre)
		for i, c := range corners {
			corners[i] = rot.Rotate(c)
		}
	}

	box := r2.Box{Min: corners[0], Max: corners[0]}
	for _, c := range corners[1:] {
		box.Min.X = math.Min(box.Min.X, c.X)
		box.Min.Y = math.Min(box.Min.Y, c.Y)
		box.Max.X = math.Max(box.Max.X, c.X)
		box.Max.Y = math.Max(box.Max.Y, c.Y)
	}
	size := r2.Sub(box.Max, box.Min)
	return Rect{X: box.Min.X, Y: box.Min.Y, Width: size.X, Height: size.Y}
}

// Mode selects how Constrain corrects a placement.
type Mode string

const (
	// ModeNone never moves a placement; fully-outside results are rejected.
	ModeNone Mode = "none"
	// ModeIntersect pulls a fully-outside placement back until its box
	// overlaps the zone by MinOverlap.
	ModeIntersect Mode = "intersect"
	// ModeContain pulls every placement fully inside the zone. Boxes wider
	// or taller than the zone are centred on that axis.
	ModeContain Mode = "contain"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNone, ModeIntersect, ModeContain:
		return Mode(s), nil
	case "":
		return ModeIntersect, nil
	}
	return "", fmt.Errorf("zone: unknown clamp mode %q", s)
}

// Constrain checks a proposed placement against the editable zone and
// returns the corrected placement together with whether the proposal
// itself overlapped the zone. The correction depends on mode; with
// ModeNone the placement is returned unchanged.
func Constrain(p Placement, zone Rect, mode Mode) (Placement, bool) {
	bb := p.Bounds()
	inBounds := bb.Intersects(zone)

	switch mode {
	case ModeIntersect:
		if inBounds {
			return p, true
		}
		dx := pullAxis(bb.X, bb.MaxX(), zone.X, zone.MaxX(), zone.Width)
		dy := pullAxis(bb.Y, bb.MaxY(), zone.Y, zone.MaxY(), zone.Height)
		return p.Translate(dx, dy), false

	case ModeContain:
		dx := containAxis(bb.X, bb.MaxX(), zone.X, zone.MaxX())
		dy := containAxis(bb.Y, bb.MaxY(), zone.Y, zone.MaxY())
		return p.Translate(dx, dy), inBounds
	}

	return p, inBounds
}

// Check is the validation-only form of Constrain: it returns
// ErrOutsideZone when the placement's box does not overlap the zone.
func Check(p Placement, zone Rect) error {
	if !p.Bounds().Intersects(zone) {
		return ErrOutsideZone
	}
	return nil
}

// pullAxis returns the shift that brings [lo, hi] to overlap [zlo, zhi].
func pullAxis(lo, hi, zlo, zhi, zsize float64) float64 {
	m := math.Min(MinOverlap, zsize/2)
	switch {
	case hi <= zlo:
		return zlo + m - hi
	case lo >= zhi:
		return zhi - m - lo
	}
	return 0
}

// containAxis returns the shift that brings [lo, hi] inside [zlo, zhi].
func containAxis(lo, hi, zlo, zhi float64) float64 {
	if hi-lo > zhi-zlo {
		return (zlo+zhi)/2 - (lo+hi)/2
	}
	switch {
	case lo < zlo:
		return zlo - lo
	case hi > zhi:
		return zhi - hi
	}
	return 0
}

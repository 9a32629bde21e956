// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import "fmt"

// ViewName identifies one photographed side of a garment.
type ViewName string

const (
	ViewFront ViewName = "front"
	ViewBack  ViewName = "back"
	ViewLeft  ViewName = "left"
	ViewRight ViewName = "right"
)

// AllViews lists every view in display order.
var AllViews = []ViewName{ViewFront, ViewBack, ViewLeft, ViewRight}

// ParseViewName validates a view name from user input.
func ParseViewName(s string) (ViewName, error) {
	switch v := ViewName(s); v {
	case ViewFront, ViewBack, ViewLeft, ViewRight:
		return v, nil
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// ViewSet holds at most one value per garment view. Absent views are nil
// and omitted from JSON.
type ViewSet[T any] struct {
	Front *T `json:"front,omitempty"`
	Back  *T `json:"back,omitempty"`
	Left  *T `json:"left,omitempty"`
	Right *T `json:"right,omitempty"`
}

func (s *ViewSet[T]) slot(v ViewName) **T {
	switch v {
	case ViewFront:
		return &s.Front
	case ViewBack:
		return &s.Back
	case ViewLeft:
		return &s.Left
	case ViewRight:
		return &s.Right
	}
	return nil
}

// Get returns the value for v and whether it is set.
func (s ViewSet[T]) Get(v ViewName) (T, bool) {
	var zero T
	p := s.slot(v)
	if p == nil || *p == nil {
		return zero, false
	}
	return **p, true
}

// Set stores val under v. Unknown view names are ignored.
func (s *ViewSet[T]) Set(v ViewName, val T) {
	if p := s.slot(v); p != nil {
		*p = &val
	}
}

// Each calls fn for every set view in display order.
func (s ViewSet[T]) Each(fn func(ViewName, T)) {
	for _, v := range AllViews {
		if val, ok := s.Get(v); ok {
			fn(v, val)
		}
	}
}

// Len returns the number of set views.
func (s ViewSet[T]) Len() int {
	n := 0
	s.Each(func(ViewName, T) { n++ })
	return n
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"designdrip/internal/database"
	"designdrip/internal/models"
	"designdrip/internal/zone"
)

func TestGarmentStoreViewsForColor(t *testing.T) {
	db := testDB(t)
	s := NewGarmentStore(db)
	ctx := context.Background()

	views, err := s.ViewsForColor(ctx, database.DevColorVariantID)
	if err != nil {
		t.Fatalf("ViewsForColor: %v", err)
	}
	if len(views) != 4 {
		t.Fatalf("expected 4 views, got %d", len(views))
	}
	for i, want := range models.AllViews {
		if views[i].ViewName != want {
			t.Errorf("views[%d] = %q, want %q", i, views[i].ViewName, want)
		}
	}
	wantZone := zone.Rect{X: 250, Y: 400, Width: 300, Height: 300}
	if views[0].EditableZone != wantZone {
		t.Errorf("front zone = %+v, want %+v", views[0].EditableZone, wantZone)
	}

	none, err := s.ViewsForColor(ctx, uuid.New())
	if err != nil || len(none) != 0 {
		t.Errorf("unknown variant: got %d views, err %v", len(none), err)
	}
}

func TestGarmentStoreFindColorVariant(t *testing.T) {
	db := testDB(t)
	s := NewGarmentStore(db)
	ctx := context.Background()

	cv, err := s.FindColorVariant(ctx, database.DevColorVariantID)
	if err != nil {
		t.Fatalf("FindColorVariant: %v", err)
	}
	if cv == nil || cv.Color != "White" || cv.ColorValue != "#ffffff" {
		t.Errorf("variant = %+v", cv)
	}

	cv, err = s.FindColorVariant(ctx, uuid.New())
	if err != nil || cv != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", cv, err)
	}
}

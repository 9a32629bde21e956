// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"designdrip/internal/models"
)

// GarmentStore reads the garment catalog. The editor never writes to it.
type GarmentStore struct {
	db *sql.DB
}

// NewGarmentStore creates a new GarmentStore with the given database connection.
func NewGarmentStore(db *sql.DB) *GarmentStore {
	return &GarmentStore{db: db}
}

// FindColorVariant retrieves a color variant by ID. Returns (nil, nil) if
// not found.
func (s *GarmentStore) FindColorVariant(ctx context.Context, id uuid.UUID) (*models.ColorVariant, error) {
	var cv models.ColorVariant
	err := s.db.QueryRowContext(ctx, `
		SELECT id, garment_id, color, color_value
		FROM color_variants WHERE id = $1
	`, id).Scan(&cv.ID, &cv.GarmentID, &cv.Color, &cv.ColorValue)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find color variant: %w", err)
	}
	return &cv, nil
}

// ViewsForColor returns the photographed views of a color variant in
// display order (front, back, left, right). An unknown variant yields an
// empty slice.
func (s *GarmentStore) ViewsForColor(ctx context.Context, colorVariantID uuid.UUID) ([]models.GarmentView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT view_name, image_url, zone_x, zone_y, zone_width, zone_height
		FROM garment_views
		WHERE color_variant_id = $1
		ORDER BY CASE view_name
			WHEN 'front' THEN 0 WHEN 'back' THEN 1
			WHEN 'left' THEN 2 ELSE 3 END
	`, colorVariantID)
	if err != nil {
		return nil, fmt.Errorf("list garment views: %w", err)
	}
	defer rows.Close()

	var views []models.GarmentView
	for rows.Next() {
		var v models.GarmentView
		z := &v.EditableZone
		if err := rows.Scan(&v.ViewName, &v.ImageURL, &z.X, &z.Y, &z.Width, &z.Height); err != nil {
			return nil, fmt.Errorf("scan garment view: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

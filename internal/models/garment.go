// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"github.com/google/uuid"

	"designdrip/internal/zone"
)

// ColorVariant is one color of a garment. ID is the identity used by
// designs; Color and ColorValue are display labels only.
type ColorVariant struct {
	ID         uuid.UUID `json:"id"`
	GarmentID  uuid.UUID `json:"garment_id"`
	Color      string    `json:"color"`
	ColorValue string    `json:"color_value"`
}

// GarmentView is one photographed side of a color variant together with
// the rectangle that may be printed on. Issued by the catalog and never
// modified by the editor.
type GarmentView struct {
	ViewName     ViewName  `json:"viewName"`
	ImageURL     string    `json:"imageUrl"`
	EditableZone zone.Rect `json:"editableZone"`
}

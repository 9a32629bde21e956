// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Development catalog identities. Fixed so that local clients and tests can
// open a session without querying the catalog first.
var (
	DevGarmentID      = uuid.MustParse("0d0a4c1e-5c6b-4f43-9d0e-1f2a3b4c5d01")
	DevColorVariantID = uuid.MustParse("0d0a4c1e-5c6b-4f43-9d0e-1f2a3b4c5d02")
)

// devZone is the printable chest/back area on the 800x1000 garment images.
var devZone = struct{ x, y, w, h float64 }{250, 400, 300, 300}

const starterTemplateScene = `{"version":1,"objects":[` +
	`{"id":"tpl-heading","type":"text","text":"DESIGN DRIP","fontSize":48,"fill":"#111111",` +
	`"left":270,"top":520,"width":260,"height":58,"scaleX":1,"scaleY":1,"angle":0,"z":0}]}`

// Seed populates the database with initial development data: one garment
// with a white color variant photographed from four sides, and a starter
// template. It does nothing when a garment already exists.
func Seed(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM garments").Scan(&count); err != nil {
		return fmt.Errorf("seed check garments: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO garments (id, name) VALUES ($1, $2)`,
		DevGarmentID, "Classic Tee"); err != nil {
		return fmt.Errorf("seed insert garment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO color_variants (id, garment_id, color, color_value)
		VALUES ($1, $2, $3, $4)
	`, DevColorVariantID, DevGarmentID, "White", "#ffffff"); err != nil {
		return fmt.Errorf("seed insert color variant: %w", err)
	}

	for _, view := range []string{"front", "back", "left", "right"} {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO garment_views (color_variant_id, view_name, image_url, zone_x, zone_y, zone_width, zone_height)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, DevColorVariantID, view, "/static/garments/classic-tee-white-"+view+".png",
			devZone.x, devZone.y, devZone.w, devZone.h)
		if err != nil {
			return fmt.Errorf("seed insert %s view: %w", view, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO design_templates (name, view_name, scene)
		VALUES ($1, $2, $3)
	`, "Bold heading", "front", starterTemplateScene); err != nil {
		return fmt.Errorf("seed insert template: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with development catalog",
		"color_variant", DevColorVariantID,
	)

	return nil
}

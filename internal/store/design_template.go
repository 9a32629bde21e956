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

// TemplateStore handles ready-made design templates.
type TemplateStore struct {
	db *sql.DB
}

// NewTemplateStore creates a new TemplateStore with the given database connection.
func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

const templateColumns = `id, name, view_name, scene, thumbnail_url, created_at`

func scanTemplate(scanner interface{ Scan(...any) error }) (*models.DesignTemplate, error) {
	var (
		t     models.DesignTemplate
		scene []byte
	)
	if err := scanner.Scan(&t.ID, &t.Name, &t.ViewName, &scene, &t.ThumbnailURL, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Scene = scene
	return &t, nil
}

// List returns all templates, optionally restricted to one view. An empty
// view lists every template.
func (s *TemplateStore) List(ctx context.Context, view models.ViewName) ([]models.DesignTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+templateColumns+`
		FROM design_templates
		WHERE $1::text = '' OR view_name = $1
		ORDER BY name
	`, string(view))
	if err != nil {
		return nil, fmt.Errorf("list design templates: %w", err)
	}
	defer rows.Close()

	var items []models.DesignTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan design template: %w", err)
		}
		items = append(items, *t)
	}
	return items, rows.Err()
}

// FindByID retrieves a template by its UUID. Returns (nil, nil) if not found.
func (s *TemplateStore) FindByID(ctx context.Context, id uuid.UUID) (*models.DesignTemplate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM design_templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find design template: %w", err)
	}
	return t, nil
}

// Create inserts a template and returns it with the generated ID.
func (s *TemplateStore) Create(ctx context.Context, t *models.DesignTemplate) (*models.DesignTemplate, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO design_templates (name, view_name, scene, thumbnail_url)
		VALUES ($1, $2, $3, $4)
		RETURNING `+templateColumns,
		t.Name, string(t.ViewName), string(t.Scene), t.ThumbnailURL,
	)
	created, err := scanTemplate(row)
	if err != nil {
		return nil, fmt.Errorf("create design template: %w", err)
	}
	return created, nil
}

// Delete removes a template.
func (s *TemplateStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM design_templates WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete design template: %w", err)
	}
	return nil
}

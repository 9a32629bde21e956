// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"designdrip/internal/models"
)

// ErrVersionConflict is returned by DesignStore.Update when the stored
// design no longer has the version the caller started from, either
// because another writer saved first or because the design was deleted.
var ErrVersionConflict = errors.New("store: design version conflict")

// DesignStore handles design document persistence. Scenes and previews are
// stored as JSONB keyed by view name.
type DesignStore struct {
	db *sql.DB
}

// NewDesignStore creates a new DesignStore with the given database connection.
func NewDesignStore(db *sql.DB) *DesignStore {
	return &DesignStore{db: db}
}

const designColumns = `id, owner_id, name, color_variant_id, scenes, previews,
	version, created_at, updated_at`

func scanDesign(scanner interface{ Scan(...any) error }) (*models.DesignDocument, error) {
	var (
		d                     models.DesignDocument
		scenesRaw, previewRaw []byte
	)
	err := scanner.Scan(
		&d.ID, &d.OwnerID, &d.Name, &d.ColorVariantID, &scenesRaw, &previewRaw,
		&d.Version, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scenesRaw, &d.Scenes); err != nil {
		return nil, fmt.Errorf("decode scenes: %w", err)
	}
	if err := json.Unmarshal(previewRaw, &d.Previews); err != nil {
		return nil, fmt.Errorf("decode previews: %w", err)
	}
	return &d, nil
}

func encodeViews(d *models.DesignDocument) (scenes, previews string, err error) {
	s, err := json.Marshal(d.Scenes)
	if err != nil {
		return "", "", fmt.Errorf("encode scenes: %w", err)
	}
	p, err := json.Marshal(d.Previews)
	if err != nil {
		return "", "", fmt.Errorf("encode previews: %w", err)
	}
	return string(s), string(p), nil
}

// Create inserts a new design at version 1. d.ID must be set; the editor
// assigns it when the session opens so that drafts and previews can be
// keyed before the first save.
func (s *DesignStore) Create(ctx context.Context, d *models.DesignDocument) (*models.DesignDocument, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	scenes, previews, err := encodeViews(d)
	if err != nil {
		return nil, fmt.Errorf("create design: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO designs (id, owner_id, name, color_variant_id, scenes, previews, version)
		VALUES ($1, $2, $3, $4, $5, $6, 1)
		RETURNING `+designColumns,
		d.ID, d.OwnerID, d.DisplayName(), d.ColorVariantID, scenes, previews,
	)
	created, err := scanDesign(row)
	if err != nil {
		return nil, fmt.Errorf("create design: %w", err)
	}
	return created, nil
}

// Update writes d over the stored design if the stored version still equals
// d.Version, and increments the version. ErrVersionConflict is returned
// otherwise.
func (s *DesignStore) Update(ctx context.Context, d *models.DesignDocument) (*models.DesignDocument, error) {
	scenes, previews, err := encodeViews(d)
	if err != nil {
		return nil, fmt.Errorf("update design: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE designs
		SET name = $1, scenes = $2, previews = $3,
			version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5
		RETURNING `+designColumns,
		d.DisplayName(), scenes, previews, d.ID, d.Version,
	)
	updated, err := scanDesign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update design %s at version %d: %w", d.ID, d.Version, ErrVersionConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("update design: %w", err)
	}
	return updated, nil
}

// FindByID retrieves a design by its UUID. Returns (nil, nil) if not found.
func (s *DesignStore) FindByID(ctx context.Context, id uuid.UUID) (*models.DesignDocument, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+designColumns+` FROM designs WHERE id = $1`, id)
	d, err := scanDesign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find design by id: %w", err)
	}
	return d, nil
}

// ListByOwner returns an owner's designs, most recently updated first.
func (s *DesignStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.DesignDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+designColumns+`
		FROM designs
		WHERE owner_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list designs: %w", err)
	}
	defer rows.Close()

	var items []models.DesignDocument
	for rows.Next() {
		d, err := scanDesign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan design: %w", err)
		}
		items = append(items, *d)
	}
	return items, rows.Err()
}

// Delete removes an owner's design. It reports whether a row was deleted.
func (s *DesignStore) Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM designs WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete design: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete design rows: %w", err)
	}
	return n > 0, nil
}

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

// AssetStore handles metadata for images stored in object storage.
type AssetStore struct {
	db *sql.DB
}

// NewAssetStore creates a new AssetStore with the given database connection.
func NewAssetStore(db *sql.DB) *AssetStore {
	return &AssetStore{db: db}
}

// assetColumns lists the columns selected in asset queries.
const assetColumns = `id, owner_id, source, filename, content_type, size_bytes,
	width, height, bucket, s3_key, thumb_s3_key, prompt, created_at`

// scanAsset scans an asset row from the result set. URL is derived by the
// caller from the storage client.
func scanAsset(scanner interface{ Scan(...any) error }) (*models.Asset, error) {
	var a models.Asset
	err := scanner.Scan(
		&a.ID, &a.OwnerID, &a.Source, &a.Filename, &a.ContentType, &a.SizeBytes,
		&a.Width, &a.Height, &a.Bucket, &a.S3Key, &a.ThumbS3Key, &a.Prompt, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new asset record. A zero ID is replaced with a new one;
// callers that already used the ID in object keys pass it in.
func (s *AssetStore) Create(ctx context.Context, a *models.Asset) (*models.Asset, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO assets (id, owner_id, source, filename, content_type, size_bytes,
			width, height, bucket, s3_key, thumb_s3_key, prompt)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+assetColumns,
		id, a.OwnerID, string(a.Source), a.Filename, a.ContentType, a.SizeBytes,
		a.Width, a.Height, a.Bucket, a.S3Key, a.ThumbS3Key, a.Prompt,
	)
	created, err := scanAsset(row)
	if err != nil {
		return nil, fmt.Errorf("create asset: %w", err)
	}
	created.URL = a.URL
	return created, nil
}

// FindByID retrieves a single asset by its UUID. Returns (nil, nil) if not found.
func (s *AssetStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find asset by id: %w", err)
	}
	return a, nil
}

// ListByOwner returns an owner's assets, newest first.
func (s *AssetStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+assetColumns+`
		FROM assets
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var items []models.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		items = append(items, *a)
	}
	return items, rows.Err()
}

// Delete removes an asset record and returns it so the caller can clean
// up the corresponding S3 objects.
func (s *AssetStore) Delete(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	row := s.db.QueryRowContext(ctx, `
		DELETE FROM assets WHERE id = $1
		RETURNING `+assetColumns, id)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete asset: %w", err)
	}
	return a, nil
}

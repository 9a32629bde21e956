// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AssetSource records which service produced an asset.
type AssetSource string

const (
	AssetSourceUpload   AssetSource = "upload"
	AssetSourceAI       AssetSource = "ai"
	AssetSourceBGRemove AssetSource = "bgremove"
)

// Asset is an image stored in S3-compatible object storage that can be
// placed into a scene. Metadata is stored in PostgreSQL.
type Asset struct {
	ID          uuid.UUID   `json:"id"`
	OwnerID     uuid.UUID   `json:"owner_id"`
	Source      AssetSource `json:"source"`
	Filename    string      `json:"filename"`
	ContentType string      `json:"content_type"`
	SizeBytes   int64       `json:"size_bytes"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	Bucket      string      `json:"bucket"`
	S3Key       string      `json:"s3_key"`
	ThumbS3Key  *string     `json:"thumb_s3_key,omitempty"`
	Prompt      *string     `json:"prompt,omitempty"`
	URL         string      `json:"url"`
	CreatedAt   time.Time   `json:"created_at"`
}

// HumanSize returns a human-readable file size string.
func (a *Asset) HumanSize() string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	switch {
	case a.SizeBytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(a.SizeBytes)/float64(mb))
	case a.SizeBytes >= kb:
		return fmt.Sprintf("%.0f KB", float64(a.SizeBytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", a.SizeBytes)
	}
}

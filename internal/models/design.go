// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultDesignName is used when a design is created without a name.
const DefaultDesignName = "Untitled design"

// DesignDocument is the saved, multi-view aggregate of one customer's
// customization of a garment color. Scenes holds the serialized scene of
// every edited view; Previews holds the rendered preview URL per view.
// Version increments on every persisted update.
type DesignDocument struct {
	ID             uuid.UUID                `json:"id"`
	OwnerID        uuid.UUID                `json:"ownerId"`
	Name           string                   `json:"name"`
	ColorVariantID uuid.UUID                `json:"colorVariantId"`
	Version        int                      `json:"version"`
	Scenes         ViewSet[json.RawMessage] `json:"scenesByView"`
	Previews       ViewSet[string]          `json:"previewImagesByView"`
	CreatedAt      time.Time                `json:"createdAt"`
	UpdatedAt      time.Time                `json:"updatedAt"`
}

// IsNew reports whether the document has never been persisted.
func (d *DesignDocument) IsNew() bool {
	return d.Version == 0
}

// DisplayName returns the trimmed name or the default.
func (d *DesignDocument) DisplayName() string {
	if n := strings.TrimSpace(d.Name); n != "" {
		return n
	}
	return DefaultDesignName
}

// Clone returns a deep copy. Scene bytes are copied so the caller may hand
// the clone to another goroutine.
func (d *DesignDocument) Clone() *DesignDocument {
	c := *d
	c.Scenes = ViewSet[json.RawMessage]{}
	d.Scenes.Each(func(v ViewName, raw json.RawMessage) {
		c.Scenes.Set(v, append(json.RawMessage(nil), raw...))
	})
	c.Previews = ViewSet[string]{}
	d.Previews.Each(func(v ViewName, url string) {
		c.Previews.Set(v, url)
	})
	return &c
}

// DesignTemplate is a ready-made scene a customer can apply to a view.
type DesignTemplate struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	ViewName     ViewName        `json:"viewName"`
	Scene        json.RawMessage `json:"scene"`
	ThumbnailURL *string         `json:"thumbnailUrl,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

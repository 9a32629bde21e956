// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"designdrip/internal/models"
)

const (
	// draftKeyPrefix is the Valkey key prefix for stashed drafts.
	draftKeyPrefix = "draft:"

	// DefaultDraftTTL is how long an unsaved draft stays recoverable.
	DefaultDraftTTL = 7 * 24 * time.Hour
)

// Draft is a design document that could not be persisted, together with
// the failure that stopped it.
type Draft struct {
	Document  *models.DesignDocument `json:"document"`
	Error     string                 `json:"error,omitempty"`
	StashedAt time.Time              `json:"stashedAt"`
}

// DraftCache stores unsaved design documents in Valkey, one per design.
type DraftCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDraftCache creates a draft cache backed by the given Valkey client.
func NewDraftCache(client *redis.Client, ttl time.Duration) *DraftCache {
	if ttl == 0 {
		ttl = DefaultDraftTTL
	}
	return &DraftCache{client: client, ttl: ttl}
}

// DraftKey returns the Valkey key for a design's draft.
func DraftKey(designID uuid.UUID) string {
	return draftKeyPrefix + designID.String()
}

// Stash writes doc under its design ID, replacing any earlier draft. cause
// is recorded for display and may be nil.
func (dc *DraftCache) Stash(ctx context.Context, doc *models.DesignDocument, cause error) error {
	d := Draft{Document: doc, StashedAt: time.Now().UTC()}
	if cause != nil {
		d.Error = cause.Error()
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("draft marshal: %w", err)
	}
	if err := dc.client.Set(ctx, DraftKey(doc.ID), payload, dc.ttl).Err(); err != nil {
		return fmt.Errorf("draft stash: %w", err)
	}
	slog.Debug("draft stashed", "design", doc.ID)
	return nil
}

// Load returns the stashed draft for a design. Returns (nil, nil) when
// there is none.
func (dc *DraftCache) Load(ctx context.Context, designID uuid.UUID) (*Draft, error) {
	payload, err := dc.client.Get(ctx, DraftKey(designID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("draft get: %w", err)
	}

	var d Draft
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("draft unmarshal: %w", err)
	}
	return &d, nil
}

// Drop removes a design's draft. Missing drafts are not an error.
func (dc *DraftCache) Drop(ctx context.Context, designID uuid.UUID) error {
	if err := dc.client.Del(ctx, DraftKey(designID)).Err(); err != nil {
		return fmt.Errorf("draft drop: %w", err)
	}
	return nil
}

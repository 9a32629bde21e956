// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"designdrip/internal/models"
)

// testValkeyClient returns a Redis client for tests.
// Skips if Valkey is unavailable.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15, // Use DB 15 for tests.
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping integration test: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, draftKeyPrefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})

	return client
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestConnectValkey(t *testing.T) {
	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")

	client, err := ConnectValkey(host, port, os.Getenv("VALKEY_PASSWORD"))
	if err != nil {
		t.Skipf("skipping: Valkey not available: %v", err)
	}
	defer client.Close()

	pong, err := client.Ping(context.Background()).Result()
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if pong != "PONG" {
		t.Errorf("expected PONG, got %q", pong)
	}
}

func TestDraftKey(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	if got := DraftKey(id); got != "draft:11111111-2222-3333-4444-555555555555" {
		t.Errorf("DraftKey = %q", got)
	}
}

func TestDraftStashLoadDrop(t *testing.T) {
	client := testValkeyClient(t)
	dc := NewDraftCache(client, time.Minute)
	ctx := context.Background()

	doc := &models.DesignDocument{ID: uuid.New(), Name: "Unsaved", Version: 3}
	doc.Scenes.Set(models.ViewFront, json.RawMessage(`{"version":1,"objects":[]}`))

	// Miss.
	d, err := dc.Load(ctx, doc.ID)
	if err != nil || d != nil {
		t.Fatalf("expected (nil, nil) before stash, got (%v, %v)", d, err)
	}

	if err := dc.Stash(ctx, doc, errors.New("database unavailable")); err != nil {
		t.Fatalf("Stash: %v", err)
	}

	d, err = dc.Load(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d == nil {
		t.Fatal("expected draft after stash")
	}
	if d.Document.Name != "Unsaved" || d.Document.Version != 3 {
		t.Errorf("document = %+v", d.Document)
	}
	if _, ok := d.Document.Scenes.Get(models.ViewFront); !ok {
		t.Error("front scene lost in draft")
	}
	if d.Error != "database unavailable" {
		t.Errorf("error = %q", d.Error)
	}
	if d.StashedAt.IsZero() {
		t.Error("StashedAt should be set")
	}

	ttl, _ := client.TTL(ctx, DraftKey(doc.ID)).Result()
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want within 1m", ttl)
	}

	if err := dc.Drop(ctx, doc.ID); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if d, _ := dc.Load(ctx, doc.ID); d != nil {
		t.Error("draft still present after Drop")
	}
	if err := dc.Drop(ctx, doc.ID); err != nil {
		t.Errorf("second Drop: %v", err)
	}
}

func TestDraftCacheDefaultTTL(t *testing.T) {
	dc := NewDraftCache(nil, 0)
	if dc.ttl != DefaultDraftTTL {
		t.Errorf("ttl = %v, want %v", dc.ttl, DefaultDraftTTL)
	}
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// testValkeyClient returns a Redis client connected to the test Valkey.
// Skips the test if Valkey is unavailable.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15, // Use DB 15 for tests to isolate from dev data.
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping integration test: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		// Clean up test keys.
		keys, _ := client.Keys(ctx, keyPrefix+"*").Result()
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

func visitorCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatal("expected visitor cookie to be set")
	return nil
}

func requestWith(c *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/designs", nil)
	if c != nil {
		req.AddCookie(c)
	}
	return req
}

// Requests without a usable cookie never reach Valkey, so a store without
// a client answers them.
func TestGetWithoutUsableCookie(t *testing.T) {
	store := NewStore(nil, false)
	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"no cookie", nil},
		{"empty", &http.Cookie{Name: CookieName, Value: ""}},
		{"too short", &http.Cookie{Name: CookieName, Value: "abc123"}},
		{"not hex", &http.Cookie{Name: CookieName, Value: strings.Repeat("zz", tokenLength)}},
		{"key injection", &http.Cookie{Name: CookieName, Value: strings.Repeat("a", 2*tokenLength-2) + "*:"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := store.Get(context.Background(), requestWith(tt.cookie))
			if err != nil || v != nil {
				t.Errorf("Get = %v, %v; want nil, nil", v, err)
			}
		})
	}
}

func TestGenerateTokenShape(t *testing.T) {
	tok, err := generateToken()
	if err != nil {
		t.Fatal(err)
	}
	if !validToken(tok) {
		t.Errorf("generated token %q fails validToken", tok)
	}
	other, _ := generateToken()
	if tok == other {
		t.Error("tokens should be unique")
	}
}

func TestCreateSetsCookie(t *testing.T) {
	client := testValkeyClient(t)
	for _, secure := range []bool{false, true} {
		w := httptest.NewRecorder()
		v, err := NewStore(client, secure).Create(context.Background(), w)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if v.ID == uuid.Nil || v.CreatedAt.IsZero() {
			t.Errorf("visitor = %+v", v)
		}
		c := visitorCookie(t, w)
		if !c.HttpOnly || c.Secure != secure || c.SameSite != http.SameSiteLaxMode {
			t.Errorf("secure=%v cookie = %+v", secure, c)
		}
		if c.MaxAge != int(DefaultTTL.Seconds()) {
			t.Errorf("MaxAge = %d", c.MaxAge)
		}
	}
}

func TestResolveKeepsIdentity(t *testing.T) {
	client := testValkeyClient(t)
	store := NewStore(client, false)
	ctx := context.Background()

	w := httptest.NewRecorder()
	first, err := store.Resolve(ctx, w, requestWith(nil))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	cookie := visitorCookie(t, w)

	w2 := httptest.NewRecorder()
	second, err := store.Resolve(ctx, w2, requestWith(cookie))
	if err != nil {
		t.Fatalf("Resolve again: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("visitor changed: %s != %s", second.ID, first.ID)
	}
	if len(w2.Result().Cookies()) != 0 {
		t.Error("known visitor should not get a new cookie")
	}
}

func TestResolveReplacesExpiredIdentity(t *testing.T) {
	client := testValkeyClient(t)
	store := NewStore(client, false)
	ctx := context.Background()

	stale := &http.Cookie{Name: CookieName, Value: strings.Repeat("ab", tokenLength)}
	w := httptest.NewRecorder()
	v, err := store.Resolve(ctx, w, requestWith(stale))
	if err != nil || v == nil {
		t.Fatalf("Resolve = %v, %v", v, err)
	}
	if c := visitorCookie(t, w); c.Value == stale.Value {
		t.Error("an expired token must not be reused")
	}
}

func TestGetSlidesExpiry(t *testing.T) {
	client := testValkeyClient(t)
	store := NewStore(client, false)
	ctx := context.Background()

	w := httptest.NewRecorder()
	if _, err := store.Create(ctx, w); err != nil {
		t.Fatal(err)
	}
	cookie := visitorCookie(t, w)
	key := keyPrefix + cookie.Value

	client.Expire(ctx, key, time.Hour)
	if _, err := store.Get(ctx, requestWith(cookie)); err != nil {
		t.Fatal(err)
	}
	if ttl := client.TTL(ctx, key).Val(); ttl < DefaultTTL-time.Minute {
		t.Errorf("TTL after Get = %v, want about %v", ttl, DefaultTTL)
	}
}

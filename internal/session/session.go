// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package session provides Valkey-backed anonymous visitor identity.
// Visitors are identified by a secure cookie; the cookie token maps to a
// stable visitor ID in Valkey, which owns designs and assets.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// CookieName is the name of the visitor cookie sent to the browser.
	CookieName = "dd_visitor"

	// DefaultTTL is how long an idle visitor identity lives in Valkey.
	DefaultTTL = 30 * 24 * time.Hour

	// keyPrefix namespaces visitor keys in Valkey to avoid collisions.
	keyPrefix = "visitor:"

	// tokenLength is the byte length of the random cookie token (32 bytes = 64 hex chars).
	tokenLength = 32
)

// Visitor is the identity stored in Valkey behind a cookie token.
type Visitor struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Store manages visitor identities in Valkey.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	secure bool
}

// NewStore creates a visitor store backed by the given Valkey client.
// secure sets the Secure flag on cookies and should be true behind TLS.
func NewStore(client *redis.Client, secure bool) *Store {
	return &Store{
		client: client,
		ttl:    DefaultTTL,
		secure: secure,
	}
}

// Create generates a new visitor, stores it in Valkey, and sets the cookie
// on the response.
func (s *Store) Create(ctx context.Context, w http.ResponseWriter) (*Visitor, error) {
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("visitor create: %w", err)
	}

	v := &Visitor{ID: uuid.New(), CreatedAt: time.Now().UTC()}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("visitor marshal: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+token, payload, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("visitor store: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl.Seconds()),
	})

	return v, nil
}

// Get retrieves the visitor named by the request cookie and slides its
// expiry. Returns nil if the cookie is missing or malformed, or the identity
// has expired.
func (s *Store) Get(ctx context.Context, r *http.Request) (*Visitor, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || !validToken(cookie.Value) {
		return nil, nil
	}

	key := keyPrefix + cookie.Value
	payload, err := s.client.GetEx(ctx, key, s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("visitor get: %w", err)
	}

	var v Visitor
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("visitor unmarshal: %w", err)
	}
	return &v, nil
}

// Resolve returns the request's visitor, creating one when the request has
// none.
func (s *Store) Resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Visitor, error) {
	v, err := s.Get(ctx, r)
	if err != nil {
		return nil, err
	}
	if v != nil {
		return v, nil
	}
	return s.Create(ctx, w)
}

// generateToken creates a cryptographically random cookie token.
func generateToken() (string, error) {
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// validToken reports whether s has the shape generateToken produces.
func validToken(s string) bool {
	if len(s) != 2*tokenLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

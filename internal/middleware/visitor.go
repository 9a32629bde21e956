// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"designdrip/internal/session"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// VisitorKey is the context key for the request's visitor.
	VisitorKey contextKey = "visitor"
)

// VisitorResolver finds or creates the visitor behind a request.
// *session.Store implements it.
type VisitorResolver interface {
	Resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) (*session.Visitor, error)
}

// Visitor resolves the anonymous visitor identity from the cookie, issuing
// a new one on first contact, and stores it in the request context.
// Designs and assets are owned by this identity, so requests are refused
// when it cannot be established.
func Visitor(store VisitorResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v, err := store.Resolve(r.Context(), w, r)
			if err != nil {
				slog.Error("resolve visitor", "error", err, "path", r.URL.Path)
				writeError(w, http.StatusServiceUnavailable, "visitor identity unavailable")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithVisitor(r.Context(), v)))
		})
	}
}

// WithVisitor returns a copy of ctx carrying v.
func WithVisitor(ctx context.Context, v *session.Visitor) context.Context {
	return context.WithValue(ctx, VisitorKey, v)
}

// VisitorFromCtx extracts the visitor from the request context.
// Returns nil if the Visitor middleware did not run.
func VisitorFromCtx(ctx context.Context) *session.Visitor {
	v, _ := ctx.Value(VisitorKey).(*session.Visitor)
	return v
}

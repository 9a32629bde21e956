// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up the HTTP routes and middleware chains of the
// editor service: the health probe, embedded static files, and the JSON
// API under /api.
package router

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"designdrip/internal/handlers"
	"designdrip/internal/middleware"
	"designdrip/web"
)

// New creates the chi router. assetLimiter throttles the endpoints that
// call paid external services; it may be nil. secureCookies sets the
// Secure flag on the CSRF cookie.
func New(visitors middleware.VisitorResolver, api *handlers.API, assetLimiter *middleware.RateLimiter, secureCookies bool) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)

	r.Get("/health", api.Health)
	r.Handle(web.StaticPrefix+"*", staticHandler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Visitor(visitors))
		r.Use(middleware.NewCSRF(secureCookies))

		// Catalog
		r.Get("/colors/{id}/views", api.ColorViews)
		r.Get("/templates", api.ListTemplates)

		// Stored designs
		r.Route("/designs", func(r chi.Router) {
			r.Get("/", api.ListDesigns)
			r.Get("/{id}", api.GetDesign)
			r.Get("/{id}/draft", api.GetDraft)
			r.Delete("/{id}", api.DeleteDesign)
		})

		// Editing sessions
		r.Post("/sessions", api.OpenSession)
		r.Route("/sessions/{sid}", func(r chi.Router) {
			r.Get("/", api.GetSession)
			r.Delete("/", api.CloseSession)

			r.Post("/objects", api.AddObject)
			r.Delete("/objects", api.ClearView)
			r.Patch("/objects/{oid}", api.UpdateObject)
			r.Delete("/objects/{oid}", api.DeleteObject)

			r.Post("/undo", api.Undo)
			r.Post("/redo", api.Redo)
			r.Put("/view", api.SwitchView)
			r.Put("/name", api.Rename)
			r.Post("/save", api.Save)
			r.Post("/templates/{tid}", api.ApplyTemplate)

			// Asset producing endpoints, rate limited per visitor.
			r.Group(func(r chi.Router) {
				if assetLimiter != nil {
					r.Use(assetLimiter.Middleware)
				}
				r.Post("/uploads", api.Upload)
				r.Post("/ai-images", api.GenerateImage)
				r.Post("/objects/{oid}/remove-background", api.RemoveBackground)
			})
		})
	})

	return r
}

// staticHandler serves the embedded web/static tree under /static/.
func staticHandler() http.Handler {
	sub, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		panic("router: embedded static tree missing: " + err.Error())
	}
	return http.StripPrefix(web.StaticPrefix, http.FileServerFS(sub))
}

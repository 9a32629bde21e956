// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package ai provides the image generators customers use to create artwork
// for their designs (OpenAI, Gemini) and the prompt moderation that runs
// before every generation. The Registry selects the active generator by
// name.
package ai

import (
	"fmt"
	"slices"
	"sync"
)

// ProviderConfig holds the credentials and settings for a single provider.
// Model is the image model; an empty BaseURL selects the public endpoint.
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Registry manages the configured image generators and selects the active
// one. All methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	generators map[string]ImageGenerator
	active     string
	moderator  Moderator // nil when no moderation key is configured
}

// NewRegistry creates a registry with a generator for every image-capable
// config that has an API key. A "mistral" entry only contributes
// moderation. OpenAI's free moderation endpoint is preferred; Mistral is
// used as a fallback.
func NewRegistry(active string, configs map[string]ProviderConfig) *Registry {
	r := &Registry{
		generators: make(map[string]ImageGenerator),
		active:     active,
	}

	for name, cfg := range configs {
		if cfg.APIKey == "" {
			continue
		}
		switch name {
		case "openai":
			r.generators[name] = newOpenAI(cfg)
		case "gemini":
			r.generators[name] = newGemini(cfg)
		}
	}

	openaiCfg := configs["openai"]
	mistralCfg := configs["mistral"]
	var mods []Moderator
	if openaiCfg.APIKey != "" {
		mods = append(mods, newOpenAIModerator(openaiCfg.APIKey, openaiCfg.BaseURL))
	}
	if mistralCfg.APIKey != "" {
		mods = append(mods, newMistralModerator(mistralCfg.APIKey, mistralCfg.BaseURL))
	}
	switch len(mods) {
	case 1:
		r.moderator = mods[0]
	case 2:
		r.moderator = newFallbackModerator(mods[0], mods[1])
	}

	return r
}

// Active returns the currently active generator.
func (r *Registry) Active() (ImageGenerator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.generators[r.active]
	if !ok {
		return nil, fmt.Errorf("ai: no image provider configured for %q", r.active)
	}
	return g, nil
}

// ActiveName returns the name of the active generator.
func (r *Registry) ActiveName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Available returns the sorted names of all configured generators.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Register adds or replaces a generator.
func (r *Registry) Register(name string, g ImageGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[name] = g
}

// SetModerator replaces the prompt moderator. nil disables moderation.
func (r *Registry) SetModerator(m Moderator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moderator = m
}

// StatusError is returned when a provider answers with a non-200 status.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.Code, e.Body)
}

// IsAuth reports whether the provider rejected the credentials.
func (e *StatusError) IsAuth() bool {
	return e.Code == 401 || e.Code == 403
}

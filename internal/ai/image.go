// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrPromptRejected is returned when moderation flags a prompt.
var ErrPromptRejected = errors.New("ai: prompt rejected by moderation")

// ImageGenerator creates artwork from a text prompt.
type ImageGenerator interface {
	// GenerateImage returns the raw image bytes and their MIME type.
	GenerateImage(ctx context.Context, prompt string) ([]byte, string, error)

	// Name returns the provider identifier (e.g., "openai").
	Name() string
}

// GenerateImage moderates prompt and then calls the active generator.
// A flagged prompt yields an error wrapping ErrPromptRejected that lists
// the flagged categories. A moderation outage does not block generation;
// providers still apply their own safety filters.
func (r *Registry) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	g, err := r.Active()
	if err != nil {
		return nil, "", err
	}

	res, err := r.CheckPrompt(ctx, prompt)
	if err == nil && !res.Safe {
		return nil, "", fmt.Errorf("%w: %s", ErrPromptRejected, strings.Join(res.Categories, ", "))
	}

	return g.GenerateImage(ctx, prompt)
}

// SupportsImageGeneration reports whether an active generator exists.
func (r *Registry) SupportsImageGeneration() bool {
	_, err := r.Active()
	return err == nil
}

// CheckPrompt runs prompt through the moderator. Without a moderator every
// prompt is considered safe.
func (r *Registry) CheckPrompt(ctx context.Context, prompt string) (*ModerationResult, error) {
	r.mu.RLock()
	m := r.moderator
	r.mu.RUnlock()

	if m == nil {
		return &ModerationResult{Safe: true}, nil
	}
	return m.CheckSafety(ctx, prompt)
}

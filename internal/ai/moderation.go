// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"
)

// ModerationResult contains the outcome of a prompt safety check.
type ModerationResult struct {
	Safe       bool     // true if the prompt passes moderation
	Categories []string // flagged category names, sorted; empty when safe
}

// Moderator checks user prompts for policy violations before they reach an
// image generator.
type Moderator interface {
	CheckSafety(ctx context.Context, text string) (*ModerationResult, error)
}

// moderationEndpoint posts {"model","input"} to an OpenAI-compatible
// moderation endpoint. OpenAI and Mistral share the request shape.
type moderationEndpoint struct {
	provider string
	model    string
	url      string
	apiKey   string
	client   *http.Client
}

func (m *moderationEndpoint) post(ctx context.Context, text string, out any) error {
	payload, err := json.Marshal(moderationRequest{Model: m.model, Input: text})
	if err != nil {
		return fmt.Errorf("%s moderation marshal: %w", m.provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s moderation request: %w", m.provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s moderation http: %w", m.provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s moderation read body: %w", m.provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Provider: m.provider + " moderation", Code: resp.StatusCode, Body: string(respBody)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s moderation unmarshal: %w", m.provider, err)
	}
	return nil
}

// openAIModerator uses the free OpenAI moderation API.
type openAIModerator struct {
	endpoint moderationEndpoint
}

func newOpenAIModerator(apiKey, baseURL string) *openAIModerator {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &openAIModerator{endpoint: moderationEndpoint{
		provider: "openai",
		model:    "omni-moderation-latest",
		url:      baseURL + "/moderations",
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
	}}
}

func (m *openAIModerator) CheckSafety(ctx context.Context, text string) (*ModerationResult, error) {
	var result moderationResponse
	if err := m.endpoint.post(ctx, text, &result); err != nil {
		return nil, err
	}
	if len(result.Results) == 0 || !result.Results[0].Flagged {
		return &ModerationResult{Safe: true}, nil
	}
	return &ModerationResult{Safe: false, Categories: flaggedCategories(result.Results[0].Categories)}, nil
}

// mistralModerator uses the paid Mistral moderation API. Mistral has no
// top-level flag, so any flagged category makes a prompt unsafe.
type mistralModerator struct {
	endpoint moderationEndpoint
}

func newMistralModerator(apiKey, baseURL string) *mistralModerator {
	if baseURL == "" {
		baseURL = "https://api.mistral.ai"
	}
	return &mistralModerator{endpoint: moderationEndpoint{
		provider: "mistral",
		model:    "mistral-moderation-latest",
		url:      baseURL + "/v1/moderations",
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
	}}
}

func (m *mistralModerator) CheckSafety(ctx context.Context, text string) (*ModerationResult, error) {
	var result moderationResponse
	if err := m.endpoint.post(ctx, text, &result); err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		return &ModerationResult{Safe: true}, nil
	}
	flagged := flaggedCategories(result.Results[0].Categories)
	return &ModerationResult{Safe: len(flagged) == 0, Categories: flagged}, nil
}

// fallbackModerator asks primary first and switches to secondary when
// primary rejects its credentials (project-scoped OpenAI keys cannot call
// the moderation endpoint). Once switched it stays on secondary.
type fallbackModerator struct {
	primary   Moderator
	secondary Moderator
	switched  atomic.Bool
}

func newFallbackModerator(primary, secondary Moderator) *fallbackModerator {
	return &fallbackModerator{primary: primary, secondary: secondary}
}

func (f *fallbackModerator) CheckSafety(ctx context.Context, text string) (*ModerationResult, error) {
	if !f.switched.Load() {
		res, err := f.primary.CheckSafety(ctx, text)
		var se *StatusError
		if err == nil || !errors.As(err, &se) || !se.IsAuth() {
			return res, err
		}
		slog.Warn("moderation credentials rejected, switching to fallback", "error", err)
		f.switched.Store(true)
	}
	return f.secondary.CheckSafety(ctx, text)
}

// flaggedCategories turns "hate/threatening" into "hate (threatening)" and
// underscores into spaces.
func flaggedCategories(cats map[string]bool) []string {
	var flagged []string
	for cat, isFlagged := range cats {
		if !isFlagged {
			continue
		}
		display := cat
		if head, tail, ok := strings.Cut(cat, "/"); ok {
			display = head + " (" + tail + ")"
		}
		flagged = append(flagged, strings.ReplaceAll(display, "_", " "))
	}
	slices.Sort(flagged)
	return flagged
}

type moderationRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type moderationResponse struct {
	Results []moderationResult `json:"results"`
}

type moderationResult struct {
	Flagged    bool            `json:"flagged"`
	Categories map[string]bool `json:"categories"`
}

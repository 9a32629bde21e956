// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com"
	geminiModel   = "gemini-2.5-flash-image"

	// maxGeminiResponse bounds the JSON envelope; images arrive base64
	// encoded inside it.
	maxGeminiResponse = 32 << 20
	maxErrorBody      = 4 << 10
)

// geminiProvider asks a Gemini image model for one square artwork through
// generateContent.
type geminiProvider struct {
	config ProviderConfig
	client *http.Client
}

func newGemini(cfg ProviderConfig) *geminiProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = geminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = geminiModel
	}
	return &geminiProvider{
		config: cfg,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *geminiProvider) Name() string { return "gemini" }

// GenerateImage returns the first inline image in the response. A prompt
// blocked by Gemini's own safety filters is reported as ErrPromptRejected.
func (p *geminiProvider) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	var call geminiCall
	call.Contents = []geminiTurn{{Parts: []geminiPart{{Text: artworkPrompt(prompt)}}}}
	call.GenerationConfig.ResponseModalities = []string{"IMAGE"}
	call.GenerationConfig.ImageConfig.AspectRatio = "1:1"

	payload, err := json.Marshal(call)
	if err != nil {
		return nil, "", fmt.Errorf("gemini marshal: %w", err)
	}
	endpoint := p.config.BaseURL + "/v1beta/models/" + p.config.Model + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("gemini http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, "", &StatusError{Provider: p.Name(), Code: resp.StatusCode, Body: string(msg)}
	}

	var reply geminiReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxGeminiResponse)).Decode(&reply); err != nil {
		return nil, "", fmt.Errorf("gemini decode: %w", err)
	}
	if reason := reply.PromptFeedback.BlockReason; reason != "" {
		return nil, "", fmt.Errorf("%w: gemini blocked the prompt (%s)", ErrPromptRejected, reason)
	}
	return reply.firstImage()
}

var errNoGeminiImage = errors.New("gemini: no image data in response")

// artworkPrompt frames a customer prompt for print. OpenAI gets the same
// effect from a transparent background.
func artworkPrompt(prompt string) string {
	return "Print-ready artwork for a garment: one isolated subject on a plain white background, no mockup. " + prompt
}

func (r *geminiReply) firstImage() ([]byte, string, error) {
	for _, c := range r.Candidates {
		for _, part := range c.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			img, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, "", fmt.Errorf("gemini base64: %w", err)
			}
			mime := part.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			return img, mime, nil
		}
	}
	return nil, "", errNoGeminiImage
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiTurn struct {
	Parts []geminiPart `json:"parts"`
}

type geminiCall struct {
	Contents         []geminiTurn `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
		ImageConfig        struct {
			AspectRatio string `json:"aspectRatio"`
		} `json:"imageConfig"`
	} `json:"generationConfig"`
}

type geminiReply struct {
	Candidates []struct {
		Content geminiTurn `json:"content"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"math"
	"strings"
	"unicode/utf8"

	"designdrip/internal/imaging"
	"designdrip/internal/scene"
)

// Validation limits for editor requests.
const (
	maxNameLen    = 200
	maxTextLen    = 500
	maxPromptLen  = 1_000
	maxImageSide  = 10_000
)

// validateName checks a design name. An empty name is accepted only when
// optional is set; the default name is used instead.
func validateName(name string, optional bool) string {
	name = strings.TrimSpace(name)
	if name == "" {
		if optional {
			return ""
		}
		return "Name is required."
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return "Name is too long (max 200 characters)."
	}
	return ""
}

// validateText checks the content of a text object.
func validateText(text string) string {
	if strings.TrimSpace(text) == "" {
		return "Text is required."
	}
	if utf8.RuneCountInString(text) > maxTextLen {
		return "Text is too long (max 500 characters)."
	}
	return ""
}

// validatePrompt checks an image generation prompt.
func validatePrompt(prompt string) string {
	if strings.TrimSpace(prompt) == "" {
		return "Prompt is required."
	}
	if utf8.RuneCountInString(prompt) > maxPromptLen {
		return "Prompt is too long (max 1,000 characters)."
	}
	return ""
}

// validateAddObject checks an add-object request and returns the first
// error found.
func (a *API) validateAddObject(req *addObjectRequest) string {
	if (req.Left == nil) != (req.Top == nil) {
		return "Left and top must be given together."
	}
	if req.Left != nil && (math.Abs(*req.Left) > scene.MaxCoordinate || math.Abs(*req.Top) > scene.MaxCoordinate) {
		return "Position is out of range."
	}
	for _, f := range []float64{req.ScaleX, req.ScaleY} {
		if f != 0 && (f < scene.MinScale || f > scene.MaxScale) {
			return "Scale must be between 0.01 and 100."
		}
	}
	if req.Width*scaleOrOne(req.ScaleX) > scene.MaxSide || req.Height*scaleOrOne(req.ScaleY) > scene.MaxSide {
		return "Scaled size must not exceed 10,000."
	}

	switch req.Type {
	case scene.KindImage:
		if req.Src == "" {
			return "Image source is required."
		}
		if !a.allowedSource(req.Src) {
			return "Image source is not allowed; upload the image first."
		}
		if req.Width <= 0 || req.Height <= 0 || req.Width > maxImageSide || req.Height > maxImageSide {
			return "Image width and height must be between 1 and 10,000."
		}
	case scene.KindText:
		if msg := validateText(req.Text); msg != "" {
			return msg
		}
		if req.FontSize < 0 || req.FontSize > scene.MaxFontSize {
			return "Font size must be between 1 and 400."
		}
		if req.Fill != "" {
			if _, err := imaging.ParseHexColor(req.Fill); err != nil {
				return "Fill must be a hex color like #1a2b3c."
			}
		}
	default:
		return `Type must be "image" or "text".`
	}
	return ""
}

// validateDelta checks a transform request. The scene enforces the limits
// of the resulting placement.
func validateDelta(d scene.Delta) string {
	if !d.Valid() {
		return "Move is out of range."
	}
	const maxFactor = scene.MaxScale / scene.MinScale
	for _, f := range []float64{d.ScaleX, d.ScaleY} {
		if a := math.Abs(f); f != 0 && (a > maxFactor || a < 1/maxFactor) {
			return "Scale factor is out of range."
		}
	}
	return ""
}

func scaleOrOne(f float64) float64 {
	if f == 0 {
		return 1
	}
	return f
}

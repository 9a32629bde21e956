// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package assets

import (
	"context"
	"errors"
	"fmt"

	"designdrip/internal/ai"
	"designdrip/internal/models"
)

var (
	// ErrStorageUnavailable is returned when object storage is not configured.
	ErrStorageUnavailable = errors.New("assets: object storage is not configured")

	// ErrTooLarge is returned for uploads above MaxUploadSize.
	ErrTooLarge = errors.New("assets: file too large")

	// ErrEmptyPrompt is returned when an AI image is requested without a prompt.
	ErrEmptyPrompt = errors.New("assets: prompt is required")

	// ErrBackgroundRemovalUnavailable is returned when no background removal
	// service is configured.
	ErrBackgroundRemovalUnavailable = errors.New("assets: background removal is not configured")
)

// AssetError is returned when producing an asset fails in an external
// service: object storage, the image generator or background removal.
type AssetError struct {
	Source    models.AssetSource
	Retryable bool
	Err       error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("%s asset failed: %v", e.Source, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

func newAssetError(src models.AssetSource, err error) *AssetError {
	return &AssetError{Source: src, Retryable: retryable(err), Err: err}
}

// retryable reports whether trying again later could succeed. Rejected
// prompts, bad credentials and client errors will fail the same way.
func retryable(err error) bool {
	if errors.Is(err, ai.ErrPromptRejected) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *ai.StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code >= 500
	}
	var re *RemoverError
	if errors.As(err, &re) {
		return re.Code == 429 || re.Code >= 500
	}
	return true
}

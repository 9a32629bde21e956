// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// BackgroundRemover cuts the subject out of an image and returns a PNG with
// a transparent background.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, image []byte) ([]byte, error)
}

// RemoverError is returned when the background removal API answers with a
// non-200 status.
type RemoverError struct {
	Code int
	Body string
}

func (e *RemoverError) Error() string {
	return fmt.Sprintf("background removal API error (status %d): %s", e.Code, e.Body)
}

// RemoveBGClient talks to a remove.bg compatible API
// (POST {base}/removebg, multipart image_file, X-Api-Key header).
type RemoveBGClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewRemoveBGClient returns nil when apiKey is empty, so callers can treat
// the feature as unavailable.
func NewRemoveBGClient(apiKey, baseURL string) *RemoveBGClient {
	if apiKey == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = "https://api.remove.bg/v1.0"
	}
	return &RemoveBGClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// RemoveBackground implements BackgroundRemover.
func (c *RemoveBGClient) RemoveBackground(ctx context.Context, image []byte) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image_file", "image")
	if err != nil {
		return nil, fmt.Errorf("removebg form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("removebg form: %w", err)
	}
	_ = mw.WriteField("size", "auto")
	_ = mw.WriteField("format", "png")
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("removebg form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/removebg", &body)
	if err != nil {
		return nil, fmt.Errorf("removebg request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "image/png")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("removebg http: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("removebg read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RemoverError{Code: resp.StatusCode, Body: string(respBody)}
	}
	if len(respBody) == 0 {
		return nil, fmt.Errorf("removebg: empty response")
	}
	return respBody, nil
}

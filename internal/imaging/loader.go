// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package imaging

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"
)

// MaxSourceBytes bounds the size of any image the renderer fetches.
const MaxSourceBytes = 20 << 20

// Loader fetches the encoded bytes of an image source URL.
type Loader interface {
	Load(ctx context.Context, src string) ([]byte, error)
}

// ObjectReader reads objects of the service's own bucket by URL.
// *storage.Client implements it.
type ObjectReader interface {
	ExtractKey(rawURL string) (string, bool)
	Download(ctx context.Context, key string) ([]byte, error)
}

// SourceLoader resolves site-relative paths under StaticPrefix from an
// embedded file system, reads URLs of the own bucket through Objects, and
// fetches other absolute http(s) URLs.
type SourceLoader struct {
	Static       fs.FS
	StaticPrefix string // e.g. "/static/"; stripped before opening Static
	Objects      ObjectReader
	Client       *http.Client
}

// NewSourceLoader creates a loader serving prefix from static and
// everything else over HTTP.
func NewSourceLoader(static fs.FS, prefix string) *SourceLoader {
	return &SourceLoader{
		Static:       static,
		StaticPrefix: prefix,
		Client:       &http.Client{Timeout: 20 * time.Second},
	}
}

// Load implements Loader.
func (l *SourceLoader) Load(ctx context.Context, src string) ([]byte, error) {
	if l.Static != nil && l.StaticPrefix != "" && strings.HasPrefix(src, l.StaticPrefix) {
		// Embedded trees keep the "static" directory, so only the leading
		// slash is dropped.
		name := strings.TrimPrefix(src, "/")
		data, err := fs.ReadFile(l.Static, name)
		if err != nil {
			return nil, fmt.Errorf("imaging: read %s: %w", src, err)
		}
		return data, nil
	}

	if l.Objects != nil {
		if key, ok := l.Objects.ExtractKey(src); ok {
			data, err := l.Objects.Download(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("imaging: download %s: %w", key, err)
			}
			if len(data) > MaxSourceBytes {
				return nil, fmt.Errorf("imaging: %s exceeds %d bytes", src, MaxSourceBytes)
			}
			return data, nil
		}
	}

	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return nil, fmt.Errorf("imaging: unsupported source %q", src)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("imaging: request %s: %w", src, err)
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imaging: fetch %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("imaging: fetch %s: status %d", src, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("imaging: read %s: %w", src, err)
	}
	if len(data) > MaxSourceBytes {
		return nil, fmt.Errorf("imaging: %s exceeds %d bytes", src, MaxSourceBytes)
	}
	return data, nil
}

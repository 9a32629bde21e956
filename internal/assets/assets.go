// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package assets produces the images customers place on their designs:
// direct uploads, AI generated artwork and background-removed cutouts.
// Every asset is stored in object storage with a thumbnail and recorded in
// PostgreSQL.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"designdrip/internal/imaging"
	"designdrip/internal/models"
	"designdrip/internal/slug"
	"designdrip/internal/storage"
)

// MaxUploadSize is the largest accepted upload (20 MB).
const MaxUploadSize = imaging.MaxSourceBytes

// maxFileBase bounds the name part of stored filenames.
const maxFileBase = 60

// allowedTypes are the content types accepted for upload, detected from
// the file contents rather than the client's header.
var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ObjectStore is the subset of the storage client the service needs.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Recorder persists asset metadata.
type Recorder interface {
	Create(ctx context.Context, a *models.Asset) (*models.Asset, error)
}

// ImageGenerator creates artwork from a prompt. *ai.Registry implements it.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, string, error)
}

// Service stores uploads and the output of the AI and background removal
// services as assets.
type Service struct {
	objects   ObjectStore
	records   Recorder
	generator ImageGenerator
	remover   BackgroundRemover
	loader    imaging.Loader
	logger    *slog.Logger
}

// Config wires a Service. Generator and Remover may be nil when the
// respective feature is not configured; Loader fetches the current image
// of an object for background removal.
type Config struct {
	Objects   ObjectStore
	Records   Recorder
	Generator ImageGenerator
	Remover   BackgroundRemover
	Loader    imaging.Loader
	Logger    *slog.Logger
}

// NewService creates an asset service.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		objects:   cfg.Objects,
		records:   cfg.Records,
		generator: cfg.Generator,
		remover:   cfg.Remover,
		loader:    cfg.Loader,
		logger:    cfg.Logger,
	}
}

// Upload validates an uploaded image and stores it.
func (s *Service) Upload(ctx context.Context, owner uuid.UUID, filename string, data []byte) (*models.Asset, error) {
	if len(data) > MaxUploadSize {
		return nil, ErrTooLarge
	}
	info, err := imaging.Probe(data)
	if err != nil {
		return nil, err
	}
	if _, ok := allowedTypes[info.ContentType]; !ok {
		return nil, fmt.Errorf("%w: %s", imaging.ErrUnsupportedFormat, info.ContentType)
	}

	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return s.store(ctx, owner, models.AssetSourceUpload, base, data, info, nil)
}

// Generate moderates prompt, generates an image and stores it.
func (s *Service) Generate(ctx context.Context, owner uuid.UUID, prompt string) (*models.Asset, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if s.generator == nil {
		return nil, newAssetError(models.AssetSourceAI, errors.New("no image generator configured"))
	}

	data, _, err := s.generator.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, newAssetError(models.AssetSourceAI, err)
	}
	info, err := imaging.Probe(data)
	if err != nil {
		return nil, newAssetError(models.AssetSourceAI, fmt.Errorf("generated image: %w", err))
	}

	return s.store(ctx, owner, models.AssetSourceAI, prompt, data, info, &prompt)
}

// RemoveBackground loads the image at src, removes its background and
// stores the cutout as a new asset.
func (s *Service) RemoveBackground(ctx context.Context, owner uuid.UUID, src string) (*models.Asset, error) {
	if s.remover == nil {
		return nil, ErrBackgroundRemovalUnavailable
	}
	original, err := s.loader.Load(ctx, src)
	if err != nil {
		return nil, newAssetError(models.AssetSourceBGRemove, fmt.Errorf("load source image: %w", err))
	}

	cutout, err := s.remover.RemoveBackground(ctx, original)
	if err != nil {
		return nil, newAssetError(models.AssetSourceBGRemove, err)
	}
	info, err := imaging.Probe(cutout)
	if err != nil {
		return nil, newAssetError(models.AssetSourceBGRemove, fmt.Errorf("cutout: %w", err))
	}

	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + "-cutout"
	return s.store(ctx, owner, models.AssetSourceBGRemove, base, cutout, info, nil)
}

// store uploads data and its thumbnail and records the asset. A failed
// thumbnail is logged and the asset is stored without one.
func (s *Service) store(ctx context.Context, owner uuid.UUID, src models.AssetSource, name string, data []byte, info imaging.Info, prompt *string) (*models.Asset, error) {
	if s.objects == nil {
		return nil, ErrStorageUnavailable
	}

	id := uuid.New()
	ext := allowedTypes[info.ContentType]
	key := storage.AssetKey(owner, id, ext)

	url, err := s.objects.Upload(ctx, key, info.ContentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, newAssetError(src, err)
	}

	var thumbKey *string
	if thumb, err := imaging.Thumbnail(data); err != nil {
		s.logger.Warn("thumbnail generation failed", "error", err, "key", key)
	} else {
		tk := storage.ThumbKey(owner, id)
		if _, err := s.objects.Upload(ctx, tk, "image/png", bytes.NewReader(thumb), int64(len(thumb))); err != nil {
			s.logger.Warn("thumbnail upload failed", "error", err, "key", tk)
		} else {
			thumbKey = &tk
		}
	}

	a, err := s.records.Create(ctx, &models.Asset{
		ID:          id,
		OwnerID:     owner,
		Source:      src,
		Filename:    fileName(name, ext),
		ContentType: info.ContentType,
		SizeBytes:   int64(len(data)),
		Width:       info.Width,
		Height:      info.Height,
		Bucket:      s.objects.Bucket(),
		S3Key:       key,
		ThumbS3Key:  thumbKey,
		Prompt:      prompt,
		URL:         url,
	})
	if err != nil {
		s.cleanup(key, thumbKey)
		return nil, newAssetError(src, err)
	}

	s.logger.Info("asset stored", "asset", a.ID, "source", src, "owner", owner, "size", a.HumanSize())
	return a, nil
}

// cleanup removes objects uploaded for an asset that could not be recorded.
func (s *Service) cleanup(key string, thumbKey *string) {
	ctx := context.Background()
	if err := s.objects.Delete(ctx, key); err != nil {
		s.logger.Warn("delete orphaned asset object", "error", err, "key", key)
	}
	if thumbKey != nil {
		if err := s.objects.Delete(ctx, *thumbKey); err != nil {
			s.logger.Warn("delete orphaned thumbnail", "error", err, "key", *thumbKey)
		}
	}
}

// fileName builds a display filename from a free-form name.
func fileName(name, ext string) string {
	base := slug.Make(name, maxFileBase)
	if base == "" {
		base = "image"
	}
	return base + ext
}

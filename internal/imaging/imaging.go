// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imaging decodes customer images, generates asset thumbnails, and
// renders design previews by compositing scene objects onto garment
// photographs. It is pure Go (disintegration/imaging plus x/image) so it
// runs without CGO.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for data that is not a decodable image.
var ErrUnsupportedFormat = errors.New("imaging: unsupported image format")

// MaxPixels bounds the decoded size of any input image.
const MaxPixels = 40_000_000

// ThumbSize is the longest side of generated asset thumbnails.
const ThumbSize = 320

// Info describes an image without decoding its pixels.
type Info struct {
	Width       int
	Height      int
	ContentType string
}

var formatTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// Probe reads the dimensions and format of an encoded image.
func Probe(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	ct, ok := formatTypes[format]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, fmt.Errorf("%w: empty image", ErrUnsupportedFormat)
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return Info{}, fmt.Errorf("imaging: image too large (%dx%d)", cfg.Width, cfg.Height)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, ContentType: ct}, nil
}

// Decode decodes an image after checking its size, applying the EXIF
// orientation of JPEGs.
func Decode(data []byte) (image.Image, error) {
	if _, err := Probe(data); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return img, nil
}

// Thumbnail returns a PNG no larger than ThumbSize on either side. Smaller
// images are not upscaled.
func Thumbnail(data []byte) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() > ThumbSize || b.Dy() > ThumbSize {
		img = imaging.Fit(img, ThumbSize, ThumbSize, imaging.Lanczos)
	}
	return EncodePNG(img)
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imaging: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package imaging

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"

	"github.com/disintegration/imaging"

	"designdrip/internal/models"
	"designdrip/internal/scene"
)

// maxTilePixels bounds the pixels of any single object tile. Larger objects
// fail the preview instead of exhausting memory.
const maxTilePixels = 25_000_000

// ErrTileTooLarge is returned when an object would need a larger tile than
// the renderer allocates.
var ErrTileTooLarge = errors.New("imaging: object too large to render")

// Renderer composites scenes onto garment photographs.
type Renderer struct {
	loader Loader
}

// NewRenderer creates a renderer that reads garment photographs and image
// objects through l.
func NewRenderer(l Loader) *Renderer {
	return &Renderer{loader: l}
}

// Render draws snap's objects in z-order onto the view's photograph and
// returns the result as PNG. Everything outside the editable zone is
// clipped, matching what can actually be printed.
func (r *Renderer) Render(ctx context.Context, view models.GarmentView, snap scene.Snapshot) ([]byte, error) {
	base, err := r.loadImage(ctx, view.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("preview base %s: %w", view.ViewName, err)
	}
	canvas := imaging.Clone(base)
	layer := image.NewNRGBA(canvas.Bounds())

	objects := slices.Clone(snap.Objects)
	slices.SortStableFunc(objects, func(a, b scene.Object) int { return cmp.Compare(a.Z, b.Z) })

	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tile, err := r.objectTile(ctx, obj)
		if err != nil {
			return nil, fmt.Errorf("preview object %s: %w", obj.ID, err)
		}
		if tile == nil {
			continue
		}
		layer = imaging.Overlay(layer, tile, tileOrigin(obj, tile.Bounds()), 1.0)
	}

	z := view.EditableZone
	clip := image.Rect(
		int(math.Floor(z.X)), int(math.Floor(z.Y)),
		int(math.Ceil(z.MaxX())), int(math.Ceil(z.MaxY())),
	).Intersect(canvas.Bounds())
	if !clip.Empty() {
		canvas = imaging.Overlay(canvas, imaging.Crop(layer, clip), clip.Min, 1.0)
	}

	return EncodePNG(canvas)
}

func (r *Renderer) loadImage(ctx context.Context, src string) (image.Image, error) {
	data, err := r.loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// objectTile returns the object's pixels scaled, flipped and rotated, or
// nil when the object is too small to draw.
func (r *Renderer) objectTile(ctx context.Context, obj scene.Object) (*image.NRGBA, error) {
	fw := obj.Width * math.Abs(obj.ScaleX)
	fh := obj.Height * math.Abs(obj.ScaleY)
	if !fitsTile(fw, fh) || (obj.Kind == scene.KindText && !fitsTile(obj.Width, obj.Height)) {
		return nil, fmt.Errorf("%w: %vx%v", ErrTileTooLarge, fw, fh)
	}
	w := int(math.Round(fw))
	h := int(math.Round(fh))
	if w < 1 || h < 1 {
		return nil, nil
	}

	var tile *image.NRGBA
	switch obj.Kind {
	case scene.KindImage:
		src, err := r.loadImage(ctx, obj.Src)
		if err != nil {
			return nil, err
		}
		tile = imaging.Resize(src, w, h, imaging.Lanczos)
	case scene.KindText:
		iw := max(int(math.Round(obj.Width)), 1)
		ih := max(int(math.Round(obj.Height)), 1)
		txt, err := renderText(obj.Text, obj.FontSize, obj.Fill, iw, ih)
		if err != nil {
			return nil, err
		}
		tile = txt
		if iw != w || ih != h {
			tile = imaging.Resize(txt, w, h, imaging.Linear)
		}
	default:
		return nil, fmt.Errorf("unknown kind %q", obj.Kind)
	}

	if obj.ScaleX < 0 {
		tile = imaging.FlipH(tile)
	}
	if obj.ScaleY < 0 {
		tile = imaging.FlipV(tile)
	}
	if math.Mod(obj.Angle, 360) != 0 {
		// imaging rotates counter-clockwise; scene angles are clockwise.
		tile = imaging.Rotate(tile, -obj.Angle, color.Transparent)
	}
	return tile, nil
}

// fitsTile reports whether a w by h tile stays within maxTilePixels. NaN
// sizes never fit.
func fitsTile(w, h float64) bool {
	return w >= 0 && h >= 0 && w <= maxTilePixels && h <= maxTilePixels && w*h <= maxTilePixels
}

// tileOrigin places a (possibly rotated) tile so that its centre matches
// the centre of the object's scaled box.
func tileOrigin(obj scene.Object, b image.Rectangle) image.Point {
	cx := obj.Left + obj.Width*math.Abs(obj.ScaleX)/2
	cy := obj.Top + obj.Height*math.Abs(obj.ScaleY)/2
	return image.Pt(
		int(math.Round(cx-float64(b.Dx())/2)),
		int(math.Round(cy-float64(b.Dy())/2)),
	)
}

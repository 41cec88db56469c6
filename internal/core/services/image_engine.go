// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // registers the GIF decoder
	"image/jpeg"
	"image/png"
	"math"

	"github.com/gen2brain/webp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // registers the WebP decoder

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
)

// Default encoder qualities when the caller does not give one.
const (
	DefaultJPEGQuality = 80
	DefaultWEBPQuality = 80
)

// MaxInputPixels is the default ceiling on the declared pixel count of a
// source image. Larger images are refused before any pixel is decoded.
const MaxInputPixels = 0x3FFF * 0x3FFF

// ErrTooManyPixels is returned by Decode for images above the pixel ceiling.
var ErrTooManyPixels = errors.New("image exceeds the input pixel limit")

// ResizeOptions is a target box and the strategy used to fit into it. Either
// dimension may be nil; with a single dimension the aspect ratio is kept and
// the fit strategy does not matter.
type ResizeOptions struct {
	Width  *int
	Height *int
	Fit    model.FitMode
}

// ImageEngine is the decode/resize/encode capability the transformer needs.
type ImageEngine interface {
	// Decode returns the image and the name of its source format
	// ("jpeg", "png", "gif", "webp").
	Decode(data []byte) (image.Image, string, error)
	// Resize applies opts and reports whether the image changed. It never enlarges.
	Resize(img image.Image, opts ResizeOptions) (image.Image, bool)
	// Encode writes img in format. A nil quality uses the format default.
	Encode(img image.Image, format model.ImageFormat, quality *int) ([]byte, error)
}

// GoImageEngine implements ImageEngine with the Go image packages,
// golang.org/x/image for scaling and WebP decoding, and gen2brain/webp for
// WebP encoding.
type GoImageEngine struct {
	// Scaler is the interpolator; CatmullRom when nil.
	Scaler draw.Scaler
	// Background fills the padding of contain fits.
	Background color.Color
	// MaxPixels caps width*height of decoded sources; MaxInputPixels when zero.
	MaxPixels int64
}

// NewGoImageEngine returns an engine with the default scaler and a black background.
func NewGoImageEngine() *GoImageEngine {
	return &GoImageEngine{Scaler: draw.CatmullRom, Background: color.Black}
}

// Decode reads the header first and refuses sources whose declared size is
// above the pixel ceiling. A small compressed file can declare dimensions
// whose decoded form would not fit in memory.
func (e *GoImageEngine) Decode(data []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image header: %w", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > e.maxPixels() {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

func (e *GoImageEngine) Resize(img image.Image, opts ResizeOptions) (image.Image, bool) {
	b := img.Bounds()
	plan := PlanResize(b.Dx(), b.Dy(), opts)
	if plan.Identity(b.Dx(), b.Dy()) {
		return img, false
	}

	canvas := image.NewRGBA(image.Rect(0, 0, plan.CanvasWidth, plan.CanvasHeight))
	if plan.Padded() {
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(e.background()), image.Point{}, draw.Src)
	}
	src := plan.Source.Add(b.Min)
	e.scaler().Scale(canvas, plan.Dest, img, src, draw.Over, nil)
	return canvas, true
}

func (e *GoImageEngine) Encode(img image.Image, format model.ImageFormat, quality *int) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case model.FormatJPEG:
		q := DefaultJPEGQuality
		if quality != nil {
			q = *quality
		}
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: q})
	case model.FormatPNG:
		// PNG is lossless; quality has no effect on it.
		err = (&png.Encoder{CompressionLevel: png.DefaultCompression}).Encode(&buf, img)
	case model.FormatWEBP:
		q := DefaultWEBPQuality
		if quality != nil {
			q = *quality
		}
		err = webp.Encode(&buf, img, webp.Options{Quality: q, Method: 4})
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

func (e *GoImageEngine) scaler() draw.Scaler {
	if e.Scaler == nil {
		return draw.CatmullRom
	}
	return e.Scaler
}

func (e *GoImageEngine) maxPixels() int64 {
	if e.MaxPixels <= 0 {
		return MaxInputPixels
	}
	return e.MaxPixels
}

func (e *GoImageEngine) background() color.Color {
	if e.Background == nil {
		return color.Black
	}
	return e.Background
}

// ResizePlan is the geometry of a resize: the region of the source that is
// kept, the canvas size, and where on the canvas the region is drawn.
type ResizePlan struct {
	Source       image.Rectangle // In source coordinates, origin at (0,0).
	CanvasWidth  int
	CanvasHeight int
	Dest         image.Rectangle
}

// Identity reports whether the plan leaves a w x h image untouched.
func (p ResizePlan) Identity(w, h int) bool {
	return p.CanvasWidth == w && p.CanvasHeight == h &&
		p.Source == image.Rect(0, 0, w, h) && p.Dest == image.Rect(0, 0, w, h)
}

// Padded reports whether part of the canvas is not covered by the image.
func (p ResizePlan) Padded() bool {
	return p.Dest != image.Rect(0, 0, p.CanvasWidth, p.CanvasHeight)
}

// PlanResize computes the geometry for fitting a w x h image into opts.
// Scale factors are capped at 1.
//
//   - cover:   scale to cover the box, then center crop to the box.
//   - contain: scale to fit inside the box, then pad to the box.
//   - inside:  scale to fit inside the box.
//   - outside: scale so the image covers the box, no crop.
func PlanResize(w, h int, opts ResizeOptions) ResizePlan {
	full := image.Rect(0, 0, w, h)
	identity := ResizePlan{Source: full, CanvasWidth: w, CanvasHeight: h, Dest: full}
	if w <= 0 || h <= 0 || (opts.Width == nil && opts.Height == nil) {
		return identity
	}

	// A single dimension keeps the aspect ratio.
	if opts.Width == nil || opts.Height == nil {
		var scale float64
		if opts.Width != nil {
			scale = math.Min(1, float64(*opts.Width)/float64(w))
		} else {
			scale = math.Min(1, float64(*opts.Height)/float64(h))
		}
		sw, sh := scaled(w, scale), scaled(h, scale)
		return ResizePlan{Source: full, CanvasWidth: sw, CanvasHeight: sh, Dest: image.Rect(0, 0, sw, sh)}
	}

	boxW, boxH := *opts.Width, *opts.Height
	rx, ry := float64(boxW)/float64(w), float64(boxH)/float64(h)

	switch opts.Fit {
	case model.FitContain:
		if w <= boxW && h <= boxH {
			return identity
		}
		scale := math.Min(rx, ry)
		sw, sh := scaled(w, scale), scaled(h, scale)
		offX, offY := (boxW-sw)/2, (boxH-sh)/2
		return ResizePlan{Source: full, CanvasWidth: boxW, CanvasHeight: boxH, Dest: image.Rect(offX, offY, offX+sw, offY+sh)}

	case model.FitInside:
		scale := math.Min(1, math.Min(rx, ry))
		sw, sh := scaled(w, scale), scaled(h, scale)
		return ResizePlan{Source: full, CanvasWidth: sw, CanvasHeight: sh, Dest: image.Rect(0, 0, sw, sh)}

	case model.FitOutside:
		scale := math.Min(1, math.Max(rx, ry))
		sw, sh := scaled(w, scale), scaled(h, scale)
		return ResizePlan{Source: full, CanvasWidth: sw, CanvasHeight: sh, Dest: image.Rect(0, 0, sw, sh)}

	default: // cover
		scale := math.Min(1, math.Max(rx, ry))
		sw, sh := scaled(w, scale), scaled(h, scale)
		cw, ch := min(boxW, sw), min(boxH, sh)
		// The kept region, mapped back to source pixels and centered.
		srcW := min(w, int(math.Round(float64(cw)/scale)))
		srcH := min(h, int(math.Round(float64(ch)/scale)))
		offX, offY := (w-srcW)/2, (h-srcH)/2
		return ResizePlan{
			Source:       image.Rect(offX, offY, offX+srcW, offY+srcH),
			CanvasWidth:  cw,
			CanvasHeight: ch,
			Dest:         image.Rect(0, 0, cw, ch),
		}
	}
}

func scaled(v int, scale float64) int {
	return max(1, int(math.Round(float64(v)*scale)))
}

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

package test

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/gen2brain/webp"
)

// Gradient returns a w x h image with a horizontal and vertical gradient, so
// crops and scales produce visibly different pixels.
func Gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / max(1, w-1)), G: uint8(y * 255 / max(1, h-1)), B: 128, A: 255})
		}
	}
	return img
}

func JPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	HandleErr(jpeg.Encode(&buf, Gradient(w, h), &jpeg.Options{Quality: 90}), t)
	return buf.Bytes()
}

func PNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	HandleErr(png.Encode(&buf, Gradient(w, h)), t)
	return buf.Bytes()
}

func GIF(t *testing.T, w, h int) []byte {
	t.Helper()
	src := Gradient(w, h)
	paletted := image.NewPaletted(src.Bounds(), palette.Plan9)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			paletted.Set(x, y, src.At(x, y))
		}
	}
	var buf bytes.Buffer
	HandleErr(gif.Encode(&buf, paletted, nil), t)
	return buf.Bytes()
}

func WEBP(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	HandleErr(webp.Encode(&buf, Gradient(w, h), webp.Options{Quality: 90}), t)
	return buf.Bytes()
}

// OversizedPNG returns a valid 1x1 PNG whose header declares w x h. Only
// header readers accept it; decoding the pixels fails.
func OversizedPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := PNG(t, 1, 1)
	// Signature (8), IHDR length (4) and type (4) precede width and height.
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

// MP4Header is enough of an ISO BMFF header for magic number sniffing.
var MP4Header = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2', 0x00, 0x00, 0x00, 0x00, 'm', 'p', '4', '2', 'i', 's', 'o', 'm'}

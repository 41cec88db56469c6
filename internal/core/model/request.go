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

// Package model defines the core data structures for the application.
// This file, `request.go`, contains the transient request types that flow
// through a derivative workflow. They live only for the duration of a single
// request and are never persisted in this form.
package model

import (
	"fmt"
	"strings"
)

// ImageFormat is an output encoding the service can produce.
type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
	FormatWEBP ImageFormat = "webp"
)

// ProbeFormats is the order in which stored artifacts are looked up when the
// caller did not pin an output format.
var ProbeFormats = []ImageFormat{FormatJPEG, FormatPNG, FormatWEBP}

// ContentType returns the MIME type used when storing an artifact of this format.
func (f ImageFormat) ContentType() string {
	return "image/" + string(f)
}

// Valid reports whether f is one of the supported output formats.
func (f ImageFormat) Valid() bool {
	switch f {
	case FormatJPEG, FormatPNG, FormatWEBP:
		return true
	}
	return false
}

// ParseImageFormat normalizes a caller supplied format name. Matching is case
// insensitive and "jpg" is accepted as an alias for "jpeg".
func ParseImageFormat(in string) (ImageFormat, error) {
	normalized := strings.ToLower(strings.TrimSpace(in))
	if normalized == "jpg" {
		return FormatJPEG, nil
	}
	if f := ImageFormat(normalized); f.Valid() {
		return f, nil
	}
	return "", fmt.Errorf("unsupported image format %q", in)
}

// CropMode is the caller facing name of a fit strategy.
type CropMode string

const (
	CropFill    CropMode = "fill"
	CropFit     CropMode = "fit"
	CropInside  CropMode = "inside"
	CropOutside CropMode = "outside"
)

// DefaultCrop is applied to image requests that do not name a crop mode.
const DefaultCrop = CropFill

// ParseCropMode normalizes a caller supplied crop mode, case insensitively.
func ParseCropMode(in string) (CropMode, error) {
	switch c := CropMode(strings.ToLower(strings.TrimSpace(in))); c {
	case CropFill, CropFit, CropInside, CropOutside:
		return c, nil
	}
	return "", fmt.Errorf("unsupported crop mode %q", in)
}

// FitMode is the geometric strategy used by the image engine.
type FitMode string

const (
	// FitCover fills the box and center crops the overflow.
	FitCover FitMode = "cover"
	// FitContain fits inside the box and pads the remainder.
	FitContain FitMode = "contain"
	// FitInside scales so both sides are within the box.
	FitInside FitMode = "inside"
	// FitOutside scales so both sides reach or exceed the box.
	FitOutside FitMode = "outside"
)

// Fit maps a crop mode to its fit strategy. The empty crop mode maps to cover.
func (c CropMode) Fit() FitMode {
	switch c {
	case CropFit:
		return FitContain
	case CropInside:
		return FitInside
	case CropOutside:
		return FitOutside
	default:
		return FitCover
	}
}

// Modality separates still image requests from video frame requests. The two
// live in different key namespaces.
type Modality string

const (
	ModalityImage Modality = "image"
	ModalityVideo Modality = "video"
)

// TransformRequest is a validated, normalized derivative request. Optional
// parameters are nil when the caller omitted them; omission is significant
// because it changes the cache identity.
type TransformRequest struct {
	SourceURL string       // Normalized absolute http(s) URL.
	Width     *int         // 1..5000
	Height    *int         // 1..5000
	Format    *ImageFormat // Requested output format.
	Quality   *int         // 1..100
	Crop      CropMode     // Empty when the caller gave none (video only; images default to fill).
	Timestamp *float64     // Seconds into the video; required for video requests.
	Modality  Modality
}

// Resizes reports whether the request asks for any dimension change.
func (r *TransformRequest) Resizes() bool {
	return r.Width != nil || r.Height != nil
}

// CandidateFormats returns the formats to probe the store with, in order.
func (r *TransformRequest) CandidateFormats() []ImageFormat {
	if r.Format != nil {
		return []ImageFormat{*r.Format}
	}
	out := make([]ImageFormat, len(ProbeFormats))
	copy(out, ProbeFormats)
	return out
}

// IntPtr, FloatPtr and FormatPtr are small helpers for building requests.
func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }

func FormatPtr(v ImageFormat) *ImageFormat { return &v }

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
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
)

// MaxDimension is the largest width or height a caller may ask for.
const MaxDimension = 5000

// Query parameter names.
const (
	ParamURL     = "url"
	ParamWidth   = "width"
	ParamHeight  = "height"
	ParamFormat  = "format"
	ParamQuality = "quality"
	ParamCrop    = "crop"
	ParamTime    = "time"
)

// MsgTimeRequired rejects video requests without a timestamp.
const MsgTimeRequired = "time is required"

const (
	msgQuality   = "quality must be an integer between 1 and 100"
	msgTimeRange = "time must be a number >= 0"
	msgFormat    = "format must be jpeg, png, or webp"
	msgCrop      = "crop must be fill, fit, inside, or outside"
)

// RequestParser turns raw query values into a validated TransformRequest.
// Repeated parameters resolve to their first value.
type RequestParser struct {
	guard *URLGuard
}

func NewRequestParser(guard *URLGuard) *RequestParser {
	return &RequestParser{guard: guard}
}

// Parse validates values for modality. Scalar parameters are checked before
// the URL so malformed requests never trigger a DNS lookup. Every rejection
// is an InvalidInput error.
func (p *RequestParser) Parse(ctx context.Context, modality model.Modality, values url.Values) (*model.TransformRequest, error) {
	req := &model.TransformRequest{Modality: modality}
	var err error

	if modality == model.ModalityVideo {
		if req.Timestamp, err = parseTime(values); err != nil {
			return nil, err
		}
	}
	if req.Width, err = parseDimension(values, ParamWidth); err != nil {
		return nil, err
	}
	if req.Height, err = parseDimension(values, ParamHeight); err != nil {
		return nil, err
	}
	if req.Format, err = parseFormat(values); err != nil {
		return nil, err
	}
	if req.Quality, err = parseQuality(values); err != nil {
		return nil, err
	}
	if req.Crop, err = parseCrop(values, modality); err != nil {
		return nil, err
	}

	source, err := p.guard.Validate(ctx, values.Get(ParamURL))
	if err != nil {
		return nil, err
	}
	req.SourceURL = source.String()
	return req, nil
}

// parseInteger accepts integral decimal numbers, including forms like "100.0".
func parseInteger(raw string) (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func parseDimension(values url.Values, name string) (*int, error) {
	if !values.Has(name) {
		return nil, nil
	}
	v, ok := parseInteger(values.Get(name))
	if !ok || v <= 0 {
		return nil, mediaerr.Invalid(name + " must be a positive integer")
	}
	if v > MaxDimension {
		return nil, mediaerr.Invalid(fmt.Sprintf("%s must be <= %d", name, MaxDimension))
	}
	return &v, nil
}

func parseQuality(values url.Values) (*int, error) {
	if !values.Has(ParamQuality) {
		return nil, nil
	}
	v, ok := parseInteger(values.Get(ParamQuality))
	if !ok || v < 1 || v > 100 {
		return nil, mediaerr.Invalid(msgQuality)
	}
	return &v, nil
}

func parseTime(values url.Values) (*float64, error) {
	if !values.Has(ParamTime) {
		return nil, mediaerr.Invalid(MsgTimeRequired)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(values.Get(ParamTime)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil, mediaerr.Invalid(msgTimeRange)
	}
	return &v, nil
}

func parseFormat(values url.Values) (*model.ImageFormat, error) {
	raw := values.Get(ParamFormat)
	if raw == "" {
		return nil, nil
	}
	f, err := model.ParseImageFormat(raw)
	if err != nil {
		return nil, mediaerr.Wrap(mediaerr.InvalidInput, msgFormat, err)
	}
	return &f, nil
}

// parseCrop defaults image requests to fill. Video requests keep an absent
// crop as empty; it still fits as cover.
func parseCrop(values url.Values, modality model.Modality) (model.CropMode, error) {
	raw := values.Get(ParamCrop)
	if raw == "" {
		if modality == model.ModalityVideo {
			return "", nil
		}
		return model.DefaultCrop, nil
	}
	c, err := model.ParseCropMode(raw)
	if err != nil {
		return "", mediaerr.Wrap(mediaerr.InvalidInput, msgCrop, err)
	}
	return c, nil
}

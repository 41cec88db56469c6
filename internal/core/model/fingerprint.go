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

package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Key namespaces in the artifact store.
const (
	ImageKeyPrefix     = "images"
	ThumbnailKeyPrefix = "thumbnails"
)

// CanonicalString renders the request parameters in the fixed order
// url|w|h|f|q|c|t. Absent parameters render as the empty string. Changing the
// order or the placeholder invalidates every stored artifact.
func CanonicalString(req *TransformRequest) string {
	var format, timestamp string
	if req.Format != nil {
		format = string(*req.Format)
	}
	if req.Timestamp != nil {
		timestamp = strconv.FormatFloat(*req.Timestamp, 'f', -1, 64)
	}
	return strings.Join([]string{
		"url=" + req.SourceURL,
		"w=" + optionalInt(req.Width),
		"h=" + optionalInt(req.Height),
		"f=" + format,
		"q=" + optionalInt(req.Quality),
		"c=" + string(req.Crop),
		"t=" + timestamp,
	}, "|")
}

// Fingerprint is the 64 character lowercase hex SHA-256 of the canonical string.
func Fingerprint(req *TransformRequest) string {
	sum := sha256.Sum256([]byte(CanonicalString(req)))
	return hex.EncodeToString(sum[:])
}

// ImageKey builds the storage key of an image derivative.
func ImageKey(fingerprint string, ext ImageFormat) string {
	return fmt.Sprintf("%s/%s.%s", ImageKeyPrefix, fingerprint, ext)
}

// ThumbnailKey builds the storage key of a video thumbnail.
func ThumbnailKey(fingerprint string, ext ImageFormat) string {
	return fmt.Sprintf("%s/%s.%s", ThumbnailKeyPrefix, fingerprint, ext)
}

// KeyFor picks the namespace by modality.
func KeyFor(modality Modality, fingerprint string, ext ImageFormat) string {
	if modality == ModalityVideo {
		return ThumbnailKey(fingerprint, ext)
	}
	return ImageKey(fingerprint, ext)
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

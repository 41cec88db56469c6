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
// This file holds the artifact side of the pipeline: the fetched source
// resource, the transform output, the record returned to callers and the
// event row persisted after a fresh store.
package model

import (
	"time"

	"github.com/google/uuid"
)

// RemoteResource is a fetched source object. It is request scoped and is
// never shared between requests.
type RemoteResource struct {
	URL         string
	ContentType string
	Data        []byte
}

// Derivative is the encoded output of a transform.
type Derivative struct {
	Data   []byte
	Width  int
	Height int
	Format ImageFormat
}

// ArtifactRecord is the response body for a successful request.
type ArtifactRecord struct {
	Key    string      `json:"key"`
	URL    string      `json:"url"`
	Cached bool        `json:"cached"`
	Width  *int        `json:"width,omitempty"`
	Height *int        `json:"height,omitempty"`
	Format ImageFormat `json:"format,omitempty"`
}

// ArtifactEvent describes a freshly stored artifact. It is published to
// Pub/Sub and appended to BigQuery when those sinks are configured.
type ArtifactEvent struct {
	Id          string    `json:"id" bigquery:"id"`
	Key         string    `json:"key" bigquery:"key"`
	URL         string    `json:"url" bigquery:"url"`
	SourceURL   string    `json:"source_url" bigquery:"source_url"`
	Fingerprint string    `json:"fingerprint" bigquery:"fingerprint"`
	Modality    string    `json:"modality" bigquery:"modality"`
	Format      string    `json:"format" bigquery:"format"`
	Width       int       `json:"width" bigquery:"width"`
	Height      int       `json:"height" bigquery:"height"`
	Bytes       int       `json:"bytes" bigquery:"bytes"`
	CreateDate  time.Time `json:"create_date" bigquery:"create_date"`
}

// NewArtifactEvent builds the event for a stored artifact. The id is a UUIDv5
// of the key so replays of the same artifact collapse to one row.
func NewArtifactEvent(req *TransformRequest, fingerprint string, record *ArtifactRecord, size int) *ArtifactEvent {
	event := &ArtifactEvent{
		Id:          uuid.NewSHA1(uuid.NameSpaceURL, []byte(record.Key)).String(),
		Key:         record.Key,
		URL:         record.URL,
		SourceURL:   req.SourceURL,
		Fingerprint: fingerprint,
		Modality:    string(req.Modality),
		Format:      string(record.Format),
		Bytes:       size,
		CreateDate:  time.Now(),
	}
	if record.Width != nil {
		event.Width = *record.Width
	}
	if record.Height != nil {
		event.Height = *record.Height
	}
	return event
}

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

// Package cloud holds the configuration model and the clients for the
// external services the derivative pipeline talks to: the artifact store
// (S3, Google Cloud Storage or in-memory), Pub/Sub and BigQuery.
//
// The configuration is read from TOML files (see LoadConfig) into the Config
// struct below, then selectively overridden from the environment. It is built
// once at startup and passed explicitly to everything that needs it.
package cloud

import (
	"errors"
	"fmt"
	"time"
)

// Storage backends.
const (
	StorageBackendS3     = "s3"
	StorageBackendGCS    = "gcs"
	StorageBackendMemory = "memory"
)

// DefaultCacheControl is attached to every stored artifact. Keys are content
// addressed so the objects never change.
const DefaultCacheControl = "public,max-age=31536000,immutable"

// Storage configures the artifact store.
type Storage struct {
	Backend            string  `toml:"backend"`               // "s3", "gcs" or "memory".
	Bucket             string  `toml:"bucket"`                // Destination bucket for all artifacts.
	Region             string  `toml:"region"`                // S3 region; also used to build the default public URL.
	BaseURL            string  `toml:"base_url"`              // Public URL prefix (CDN). Optional.
	Endpoint           string  `toml:"endpoint"`              // Custom endpoint for S3 compatible stores or the GCS emulator.
	UsePathStyle       bool    `toml:"use_path_style"`        // S3 path style addressing.
	AccessKeyID        string  `toml:"access_key_id"`         // Static S3 credentials. Optional; the default chain is used when empty.
	SecretAccessKey    string  `toml:"secret_access_key"`     // Static S3 credentials.
	CacheControl       string  `toml:"cache_control"`         // Cache-Control header of stored objects.
	MaxWritesPerSecond float64 `toml:"max_writes_per_second"` // Rate limit on store writes. Zero disables the limit.
	WriteBurst         int     `toml:"write_burst"`           // Burst size of the write limiter.
}

// FetchLimits bounds a single remote fetch.
type FetchLimits struct {
	MaxBytes       int64 `toml:"max_bytes"`       // Size ceiling of the body.
	TimeoutSeconds int   `toml:"timeout_seconds"` // Deadline for the complete response.
}

// Timeout returns the fetch deadline as a duration.
func (f FetchLimits) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// Fetch holds the per modality fetch limits.
type Fetch struct {
	Image FetchLimits `toml:"image"`
	Video FetchLimits `toml:"video"`
	// AllowPrivateNetworks disables address classification. Only meant for
	// local development against servers on loopback.
	AllowPrivateNetworks bool `toml:"allow_private_networks"`
	// UserAgent sent with every remote fetch.
	UserAgent string `toml:"user_agent"`
}

// Video configures the external decoding tools.
type Video struct {
	FFMpegPath  string `toml:"ffmpeg_path"`
	FFProbePath string `toml:"ffprobe_path"`
	ScratchDir  string `toml:"scratch_dir"` // Empty means os.TempDir().
}

// Events configures the optional artifact event sinks and the pre-warm
// subscription.
type Events struct {
	Topic               string `toml:"topic"`                // Pub/Sub topic receiving an event per fresh artifact.
	PrewarmSubscription string `toml:"prewarm_subscription"` // Pub/Sub subscription of derivative requests to pre-compute.
	Dataset             string `toml:"dataset"`              // BigQuery dataset of the artifact audit table.
	Table               string `toml:"table"`                // BigQuery audit table.
	QueueSize           int    `toml:"queue_size"`           // Events buffered for background delivery; more are dropped.
	TimeoutSeconds      int    `toml:"timeout_seconds"`      // Delivery budget of one event across all sinks.
}

// Telemetry toggles the Google Cloud exporters.
type Telemetry struct {
	Enabled  bool   `toml:"enabled"`
	LogFile  string `toml:"log_file"`  // Additional log destination. Empty logs to stdout only.
	LogLevel string `toml:"log_level"` // debug, info, warn, error.
}

// Config is the complete application configuration.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name            string `toml:"name"`              // Service name reported to telemetry.
		GoogleProjectId string `toml:"google_project_id"` // Project for Pub/Sub, BigQuery and the exporters.
		GoogleLocation  string `toml:"location"`
	} `toml:"application"`
	Server struct {
		Port              int      `toml:"port"`
		RequestsPerSecond float64  `toml:"requests_per_second"` // Inbound request limit. Zero disables it.
		RequestBurst      int      `toml:"request_burst"`
		AllowedOrigins    []string `toml:"allowed_origins"` // Empty allows every origin.
	} `toml:"server"`
	Storage   Storage   `toml:"storage"`
	Fetch     Fetch     `toml:"fetch"`
	Video     Video     `toml:"video"`
	Events    Events    `toml:"events"`
	Telemetry Telemetry `toml:"telemetry"`
}

// NewConfig returns a Config populated with the service defaults. Values read
// from TOML files and the environment are layered on top.
func NewConfig() *Config {
	c := &Config{}
	c.Application.Name = "media-derivatives"
	c.Server.Port = 8080
	c.Storage.Backend = StorageBackendS3
	c.Storage.Region = "us-east-1"
	c.Storage.CacheControl = DefaultCacheControl
	c.Fetch.Image = FetchLimits{MaxBytes: 10 * 1024 * 1024, TimeoutSeconds: 8}
	c.Fetch.Video = FetchLimits{MaxBytes: 50 * 1024 * 1024, TimeoutSeconds: 12}
	c.Fetch.UserAgent = "media-derivatives/1.0"
	c.Video.FFMpegPath = "ffmpeg"
	c.Video.FFProbePath = "ffprobe"
	c.Events.QueueSize = 256
	c.Events.TimeoutSeconds = 10
	c.Telemetry.LogLevel = "info"
	return c
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case StorageBackendS3, StorageBackendGCS:
		if c.Storage.Bucket == "" {
			errs = append(errs, fmt.Errorf("storage.bucket is required for the %s backend", c.Storage.Backend))
		}
	case StorageBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Fetch.Image.MaxBytes <= 0 || c.Fetch.Video.MaxBytes <= 0 {
		errs = append(errs, errors.New("fetch size limits must be positive"))
	}
	if c.Fetch.Image.TimeoutSeconds <= 0 || c.Fetch.Video.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("fetch timeouts must be positive"))
	}
	if c.Server.Port <= 0 {
		errs = append(errs, errors.New("server.port must be positive"))
	}
	needsProject := c.Telemetry.Enabled || c.Events.Topic != "" || c.Events.Table != "" || c.Events.PrewarmSubscription != ""
	if needsProject && c.Application.GoogleProjectId == "" {
		errs = append(errs, errors.New("application.google_project_id is required for telemetry and events"))
	}
	return errors.Join(errs...)
}

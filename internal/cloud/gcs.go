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

package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
)

// GCSStore is an ArtifactStore backed by a Google Cloud Storage bucket.
type GCSStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// NewGCSClient creates a storage client. When an endpoint is configured (for
// example the fake-gcs-server emulator) authentication is disabled.
func NewGCSClient(ctx context.Context, cfg Storage) (*storage.Client, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: create client: %w", err)
	}
	slog.Info("gcs artifact store initialized", "bucket", cfg.Bucket, "endpoint", cfg.Endpoint)
	return client, nil
}

// NewGCSStore wraps client for the configured bucket.
func NewGCSStore(client *storage.Client, cfg Storage) *GCSStore {
	return &GCSStore{client: client, bucket: cfg.Bucket, baseURL: cfg.BaseURL}
}

func (g *GCSStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.client.Bucket(g.bucket).Object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, mediaerr.Storage(msgExistsFailed, fmt.Errorf("gcs attrs gs://%s/%s: %w", g.bucket, key, err))
}

// Put streams data to the object. The object only becomes visible once the
// writer is closed, so a failed Close is a failed Put.
func (g *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string, cacheControl string) error {
	writer := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = cacheControl

	if written, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return mediaerr.Storage(msgPutFailed, fmt.Errorf("gcs write gs://%s/%s after %d bytes: %w", g.bucket, key, written, err))
	}
	if err := writer.Close(); err != nil {
		return mediaerr.Storage(msgPutFailed, fmt.Errorf("gcs close gs://%s/%s: %w", g.bucket, key, err))
	}
	slog.DebugContext(ctx, "artifact stored", "bucket", g.bucket, "key", key, "bytes", len(data))
	return nil
}

// PublicURL uses the configured base URL, else the storage.googleapis.com address.
func (g *GCSStore) PublicURL(key string) string {
	if g.baseURL != "" {
		return strings.TrimRight(g.baseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, key)
}

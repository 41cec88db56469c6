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
	"fmt"
	"strings"
)

// ArtifactStore is the durable home of derivatives. Implementations classify
// their own failures as mediaerr.StorageFailure; a missing object is never an
// error for Exists.
type ArtifactStore interface {
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	// Put writes data under key, replacing any previous object.
	Put(ctx context.Context, key string, data []byte, contentType string, cacheControl string) error
	// PublicURL is the address clients use to read key. It does not touch the network.
	PublicURL(key string) string
}

// Storage failure messages.
const (
	msgExistsFailed = "Failed to check object in storage"
	msgPutFailed    = "Failed to upload object to storage"
)

// PublicURLFor builds a public URL. A configured base URL wins (its trailing
// slashes are dropped); otherwise the bucket's virtual hosted S3 address is used.
func PublicURLFor(baseURL, bucket, region, key string) string {
	if baseURL != "" {
		return strings.TrimRight(baseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}

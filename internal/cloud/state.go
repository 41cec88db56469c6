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
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ServiceClients holds every external client the service created at startup.
// Clients for features that are not configured stay nil.
type ServiceClients struct {
	StorageClient   *storage.Client  // Set for the gcs backend.
	S3Client        *s3.Client       // Set for the s3 backend.
	PubsubClient    *pubsub.Client   // Set when events.topic or events.prewarm_subscription is configured.
	BigQueryClient  *bigquery.Client // Set when events.table is configured.
	Store           ArtifactStore    // The artifact store, already wrapped by QuotaAwareStore when limited.
	Events          ArtifactEventSink
	PrewarmListener *PubSubListener // Command is attached by the caller.

	publisher *PubSubEventPublisher
	events    *AsyncEventSink
}

// Close releases every client that was opened.
func (c *ServiceClients) Close() {
	if c.events != nil {
		c.events.Close()
	}
	if c.publisher != nil {
		c.publisher.Stop()
	}
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.BigQueryClient != nil {
		_ = c.BigQueryClient.Close()
	}
}

// NewCloudServiceClients creates the clients required by config. On error any
// client created so far is closed.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	cloud = &ServiceClients{}
	defer func() {
		if err != nil {
			cloud.Close()
			cloud = nil
		}
	}()

	var store ArtifactStore
	switch config.Storage.Backend {
	case StorageBackendS3:
		cloud.S3Client, err = NewS3Client(ctx, config.Storage)
		if err != nil {
			return cloud, err
		}
		store = NewS3Store(cloud.S3Client, config.Storage)
	case StorageBackendGCS:
		cloud.StorageClient, err = NewGCSClient(ctx, config.Storage)
		if err != nil {
			return cloud, err
		}
		store = NewGCSStore(cloud.StorageClient, config.Storage)
	case StorageBackendMemory:
		store = NewMemoryStore(config.Storage.BaseURL, config.Storage.Bucket, config.Storage.Region)
	default:
		return cloud, fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
	}
	if config.Storage.MaxWritesPerSecond > 0 {
		store = NewQuotaAwareStore(store, config.Storage.MaxWritesPerSecond, config.Storage.WriteBurst)
	}
	cloud.Store = store

	if config.Events.Topic != "" || config.Events.PrewarmSubscription != "" {
		cloud.PubsubClient, err = pubsub.NewClient(ctx, config.Application.GoogleProjectId)
		if err != nil {
			return cloud, fmt.Errorf("pubsub: create client: %w", err)
		}
	}

	var sinks MultiSink
	if config.Events.Topic != "" {
		cloud.publisher = NewPubSubEventPublisher(cloud.PubsubClient, config.Events.Topic)
		sinks = append(sinks, cloud.publisher)
	}
	if config.Events.Table != "" {
		cloud.BigQueryClient, err = bigquery.NewClient(ctx, config.Application.GoogleProjectId)
		if err != nil {
			return cloud, fmt.Errorf("bigquery: create client: %w", err)
		}
		sinks = append(sinks, NewBigQueryEventSink(cloud.BigQueryClient, config.Events.Dataset, config.Events.Table))
	}
	if len(sinks) > 0 {
		timeout := time.Duration(config.Events.TimeoutSeconds) * time.Second
		cloud.events = NewAsyncEventSink(sinks, config.Events.QueueSize, timeout)
		cloud.Events = cloud.events
	}

	if config.Events.PrewarmSubscription != "" {
		cloud.PrewarmListener = NewPubSubListener(cloud.PubsubClient, config.Events.PrewarmSubscription, nil)
	}

	return cloud, nil
}

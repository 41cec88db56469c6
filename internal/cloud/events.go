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

// Package cloud holds the configuration model and the service clients. This
// file defines the artifact event sinks: every freshly stored derivative can
// be announced on a Pub/Sub topic and appended to a BigQuery audit table.
//
// Sinks are best effort. The configured sinks are delivered to by a
// background worker behind AsyncEventSink, so a slow topic or table never
// delays a response; failed deliveries are logged and dropped.
package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/pubsub"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
)

// ArtifactEventSink receives an event per freshly stored artifact.
type ArtifactEventSink interface {
	Notify(ctx context.Context, event *model.ArtifactEvent) error
}

// PubSubEventPublisher publishes artifact events as JSON messages.
type PubSubEventPublisher struct {
	topic *pubsub.Topic
}

// NewPubSubEventPublisher publishes to topicID using client.
func NewPubSubEventPublisher(client *pubsub.Client, topicID string) *PubSubEventPublisher {
	return &PubSubEventPublisher{topic: client.Topic(topicID)}
}

// Notify publishes the event and waits for the server acknowledgement.
func (p *PubSubEventPublisher) Notify(ctx context.Context, event *model.ArtifactEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal artifact event: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"modality": event.Modality,
			"format":   event.Format,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish artifact event %s: %w", event.Key, err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *PubSubEventPublisher) Stop() {
	p.topic.Stop()
}

// BigQueryEventSink streams artifact events into a table.
type BigQueryEventSink struct {
	inserter *bigquery.Inserter
}

// NewBigQueryEventSink appends rows to dataset.table.
func NewBigQueryEventSink(client *bigquery.Client, dataset, table string) *BigQueryEventSink {
	return &BigQueryEventSink{inserter: client.Dataset(dataset).Table(table).Inserter()}
}

func (b *BigQueryEventSink) Notify(ctx context.Context, event *model.ArtifactEvent) error {
	if err := b.inserter.Put(ctx, event); err != nil {
		return fmt.Errorf("insert artifact event %s: %w", event.Key, err)
	}
	return nil
}

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []ArtifactEventSink

func (m MultiSink) Notify(ctx context.Context, event *model.ArtifactEvent) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Errors returned by AsyncEventSink.Notify when an event is not accepted.
var (
	ErrEventQueueFull   = errors.New("artifact event queue is full")
	ErrEventSinkClosed  = errors.New("artifact event sink is closed")
	defaultEventTimeout = 10 * time.Second
)

type queuedEvent struct {
	ctx   context.Context
	event *model.ArtifactEvent
}

// AsyncEventSink queues events and delivers them to sink from a single
// background worker. Notify never blocks; a full queue drops the event.
type AsyncEventSink struct {
	sink    ArtifactEventSink
	timeout time.Duration
	queue   chan queuedEvent
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsyncEventSink starts the delivery worker. Each event gets timeout to
// reach sink.
func NewAsyncEventSink(sink ArtifactEventSink, size int, timeout time.Duration) *AsyncEventSink {
	if size <= 0 {
		size = 1
	}
	if timeout <= 0 {
		timeout = defaultEventTimeout
	}
	out := &AsyncEventSink{
		sink:    sink,
		timeout: timeout,
		queue:   make(chan queuedEvent, size),
		done:    make(chan struct{}),
	}
	go out.run()
	return out
}

// Notify enqueues the event. The delivery keeps the values of ctx (trace
// context) but not its cancellation.
func (a *AsyncEventSink) Notify(ctx context.Context, event *model.ArtifactEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrEventSinkClosed
	}
	select {
	case a.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		return fmt.Errorf("%w: dropped %s", ErrEventQueueFull, event.Key)
	}
}

// Close stops accepting events and waits until the queued ones are delivered.
func (a *AsyncEventSink) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *AsyncEventSink) run() {
	defer close(a.done)
	for item := range a.queue {
		ctx, cancel := context.WithTimeout(item.ctx, a.timeout)
		if err := a.sink.Notify(ctx, item.event); err != nil {
			slog.WarnContext(ctx, "failed to deliver artifact event", "key", item.event.Key, "error", err)
		}
		cancel()
	}
}

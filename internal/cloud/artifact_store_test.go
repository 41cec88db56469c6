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

package cloud_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/cloud"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
)

func TestPublicURLFor(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/images/a.png",
		cloud.PublicURLFor("https://cdn.example.com///", "bucket", "us-east-1", "images/a.png"))
	assert.Equal(t, "https://bucket.s3.us-east-1.amazonaws.com/images/a.png",
		cloud.PublicURLFor("", "bucket", "us-east-1", "images/a.png"))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := cloud.NewMemoryStore("", "bucket", "us-east-1")

	ok, err := store.Exists(ctx, "images/x.jpeg")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "images/x.jpeg", []byte("data"), "image/jpeg", cloud.DefaultCacheControl))
	ok, err = store.Exists(ctx, "images/x.jpeg")
	require.NoError(t, err)
	assert.True(t, ok)

	obj, found := store.Object("images/x.jpeg")
	require.True(t, found)
	assert.Equal(t, "image/jpeg", obj.ContentType)
	assert.Equal(t, cloud.DefaultCacheControl, obj.CacheControl)
	assert.Equal(t, 1, store.PutCalls())
	assert.Equal(t, 2, store.ExistsCalls())
}

// fakeS3 returns canned results for the two calls the store makes.
type fakeS3 struct {
	headErr error
	putErr  error
	lastPut *s3.PutObjectInput
}

func (f *fakeS3) HeadObject(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.lastPut = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &s3.PutObjectOutput{}, nil
}

func s3Config() cloud.Storage {
	return cloud.Storage{Bucket: "bucket", Region: "us-west-2"}
}

func TestS3StoreExists(t *testing.T) {
	ctx := context.Background()

	cases := map[string]struct {
		err    error
		exists bool
		failed bool
	}{
		"present":        {err: nil, exists: true},
		"typed notfound": {err: &types.NotFound{}, exists: false},
		"api notfound":   {err: &smithy.GenericAPIError{Code: "NotFound"}, exists: false},
		"no such key":    {err: &smithy.GenericAPIError{Code: "NoSuchKey"}, exists: false},
		"access denied":  {err: &smithy.GenericAPIError{Code: "AccessDenied"}, failed: true},
		"network":        {err: errors.New("dial tcp: i/o timeout"), failed: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			store := cloud.NewS3Store(&fakeS3{headErr: tc.err}, s3Config())
			exists, err := store.Exists(ctx, "images/a.jpeg")
			if tc.failed {
				assert.Equal(t, mediaerr.StorageFailure, mediaerr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.exists, exists)
		})
	}
}

func TestS3StorePut(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{}
	store := cloud.NewS3Store(fake, s3Config())

	require.NoError(t, store.Put(ctx, "thumbnails/a.jpeg", []byte("jpeg"), "image/jpeg", cloud.DefaultCacheControl))
	require.NotNil(t, fake.lastPut)
	assert.Equal(t, "thumbnails/a.jpeg", *fake.lastPut.Key)
	assert.Equal(t, "image/jpeg", *fake.lastPut.ContentType)
	assert.Equal(t, cloud.DefaultCacheControl, *fake.lastPut.CacheControl)
	body, err := io.ReadAll(fake.lastPut.Body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(body))

	fake.putErr = errors.New("slow down")
	err = store.Put(ctx, "thumbnails/a.jpeg", []byte("jpeg"), "image/jpeg", cloud.DefaultCacheControl)
	assert.Equal(t, mediaerr.StorageFailure, mediaerr.KindOf(err))

	assert.Equal(t, "https://bucket.s3.us-west-2.amazonaws.com/thumbnails/a.jpeg", store.PublicURL("thumbnails/a.jpeg"))
}

func TestQuotaAwareStoreHonoursContext(t *testing.T) {
	inner := cloud.NewMemoryStore("", "bucket", "us-east-1")
	// One write per hour with a burst of one: the second write has to wait.
	store := cloud.NewQuotaAwareStore(inner, 1.0/3600, 1)

	require.NoError(t, store.Put(context.Background(), "a", []byte("1"), "image/png", ""))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := store.Put(ctx, "b", []byte("2"), "image/png", "")
	assert.Equal(t, mediaerr.StorageFailure, mediaerr.KindOf(err))
	assert.Equal(t, 1, inner.PutCalls())

	// Probes are not limited.
	ok, err := store.Exists(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

type recordingSink struct {
	events []*model.ArtifactEvent
	err    error
}

func (r *recordingSink) Notify(_ context.Context, event *model.ArtifactEvent) error {
	r.events = append(r.events, event)
	return r.err
}

func TestMultiSinkFansOut(t *testing.T) {
	ok := &recordingSink{}
	broken := &recordingSink{err: errors.New("topic gone")}
	sinks := cloud.MultiSink{broken, ok}

	err := sinks.Notify(context.Background(), &model.ArtifactEvent{Key: "images/a.png"})
	assert.EqualError(t, err, "topic gone")
	assert.Len(t, ok.events, 1)
	assert.Len(t, broken.events, 1)
}

// heldSink blocks every delivery until release is closed and records the
// context state it was delivered with.
type heldSink struct {
	release   chan struct{}
	delivered chan *model.ArtifactEvent
	ctxErrs   chan error
}

func newHeldSink(size int) *heldSink {
	return &heldSink{
		release:   make(chan struct{}),
		delivered: make(chan *model.ArtifactEvent, size),
		ctxErrs:   make(chan error, size),
	}
}

func (h *heldSink) Notify(ctx context.Context, event *model.ArtifactEvent) error {
	<-h.release
	h.ctxErrs <- ctx.Err()
	h.delivered <- event
	return nil
}

func TestAsyncEventSinkDeliversInBackground(t *testing.T) {
	inner := newHeldSink(4)
	sink := cloud.NewAsyncEventSink(inner, 4, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	require.NoError(t, sink.Notify(ctx, &model.ArtifactEvent{Key: "images/a.png"}))
	require.NoError(t, sink.Notify(ctx, &model.ArtifactEvent{Key: "images/b.png"}))
	assert.Less(t, time.Since(start), 500*time.Millisecond, "Notify does not wait for delivery")

	// The request finishing does not cancel its queued events.
	cancel()
	close(inner.release)
	sink.Close()

	require.Len(t, inner.delivered, 2)
	assert.Equal(t, "images/a.png", (<-inner.delivered).Key)
	assert.Equal(t, "images/b.png", (<-inner.delivered).Key)
	assert.NoError(t, <-inner.ctxErrs)
	assert.NoError(t, <-inner.ctxErrs)
}

func TestAsyncEventSinkDropsWhenFull(t *testing.T) {
	inner := newHeldSink(3)
	sink := cloud.NewAsyncEventSink(inner, 1, time.Second)

	var dropped int
	for _, key := range []string{"a", "b", "c"} {
		if err := sink.Notify(context.Background(), &model.ArtifactEvent{Key: key}); err != nil {
			assert.ErrorIs(t, err, cloud.ErrEventQueueFull)
			dropped++
		}
	}
	// One event may sit with the worker and one in the queue.
	assert.GreaterOrEqual(t, dropped, 1)

	close(inner.release)
	sink.Close()
	assert.Len(t, inner.delivered, 3-dropped)
	assert.ErrorIs(t, sink.Notify(context.Background(), &model.ArtifactEvent{Key: "d"}), cloud.ErrEventSinkClosed)
}

func TestAsyncEventSinkSurvivesFailingSink(t *testing.T) {
	broken := &recordingSink{err: errors.New("table gone")}
	sink := cloud.NewAsyncEventSink(broken, 2, time.Second)

	require.NoError(t, sink.Notify(context.Background(), &model.ArtifactEvent{Key: "images/a.png"}))
	sink.Close()
	assert.Len(t, broken.events, 1)
}

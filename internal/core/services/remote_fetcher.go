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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/cloud"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
)

const maxRedirects = 10

// FetchTarget describes what a fetch is for: the expected media family and
// the limits that apply to it.
type FetchTarget struct {
	Modality model.Modality
	Limits   cloud.FetchLimits
}

func (t FetchTarget) noun() string {
	if t.Modality == model.ModalityVideo {
		return "video"
	}
	return "image"
}

func (t FetchTarget) article() string {
	if t.Modality == model.ModalityVideo {
		return "a video"
	}
	return "an image"
}

// RemoteFetcher downloads a source object under the fetch envelope: one
// attempt, a deadline, a size ceiling and a content type family check.
type RemoteFetcher struct {
	client    *http.Client
	userAgent string
}

// NewRemoteFetcher builds a fetcher whose connections and redirects are
// checked by guard.
func NewRemoteFetcher(guard *URLGuard, userAgent string) *RemoteFetcher {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   guard.Control,
	}
	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			_, err := guard.Validate(req.Context(), req.URL.String())
			return err
		},
	}
	return NewRemoteFetcherWithClient(client, userAgent)
}

// NewRemoteFetcherWithClient uses a caller supplied client as is.
func NewRemoteFetcherWithClient(client *http.Client, userAgent string) *RemoteFetcher {
	return &RemoteFetcher{client: client, userAgent: userAgent}
}

// Fetch downloads target into memory.
//
// Inputs:
//   - ctx: Request context; cancelling it aborts the download.
//   - source: A URL already accepted by URLGuard.Validate.
//   - target: Expected media family and limits.
//
// Outputs:
//   - *model.RemoteResource: The body and its declared content type.
//   - error: UnsupportedMediaType, RemoteFetchTooLarge, RemoteFetchTimeout,
//     RemoteFetchFailure, or the guard's InvalidInput for a blocked redirect
//     or connection.
func (f *RemoteFetcher) Fetch(ctx context.Context, source *url.URL, target FetchTarget) (*model.RemoteResource, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, target.Limits.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, source.String(), nil)
	if err != nil {
		return nil, mediaerr.FetchFailed(f.failedMessage(target), err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.classify(ctx, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, mediaerr.FetchFailed(f.failedMessage(target), fmt.Errorf("remote responded %s", resp.Status))
	}

	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if !strings.HasPrefix(contentType, target.noun()+"/") {
		return nil, mediaerr.Unsupported(fmt.Sprintf("Remote content is not %s", target.article()))
	}

	if resp.ContentLength > target.Limits.MaxBytes {
		return nil, f.tooLarge(target)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, target.Limits.MaxBytes+1))
	if err != nil {
		return nil, f.classify(ctx, target, err)
	}
	if int64(len(data)) > target.Limits.MaxBytes {
		return nil, f.tooLarge(target)
	}

	slog.DebugContext(ctx, "fetched remote resource", "url", source.String(), "bytes", len(data), "content_type", contentType)
	return &model.RemoteResource{URL: source.String(), ContentType: contentType, Data: data}, nil
}

func (f *RemoteFetcher) tooLarge(target FetchTarget) error {
	noun := target.noun()
	return mediaerr.TooLarge(fmt.Sprintf("%s%s exceeds maximum size limit", strings.ToUpper(noun[:1]), noun[1:]))
}

func (f *RemoteFetcher) failedMessage(target FetchTarget) string {
	return "Failed to download " + target.noun()
}

// classify maps a transport error to the taxonomy. Errors the guard raised
// keep their classification; the fetch deadline is a timeout; a caller that
// went away is reported as such and never as a remote fault.
func (f *RemoteFetcher) classify(ctx context.Context, target FetchTarget, err error) error {
	if classified, ok := mediaerr.As(err); ok {
		return classified
	}
	if ctx.Err() != nil {
		return fmt.Errorf("fetch abandoned: %w", ctx.Err())
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return mediaerr.FetchTimeout(fmt.Sprintf("Remote %s request timed out", target.noun()), err)
	}
	return mediaerr.FetchFailed(f.failedMessage(target), err)
}

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

package test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// StaticResolver answers lookups from a fixed table.
type StaticResolver map[string][]string

func (r StaticResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	ips, ok := r[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	out := make([]net.IPAddr, 0, len(ips))
	for _, ip := range ips {
		out = append(out, net.IPAddr{IP: net.ParseIP(ip)})
	}
	return out, nil
}

// FakeDecoder is a scripted frame decoder. It records whether the staged
// file existed when it was called.
type FakeDecoder struct {
	Duration   float64
	Frame      []byte
	ProbeErr   error
	ExtractErr error

	mu           sync.Mutex
	Paths        []string
	SawFile      bool
	ExtractCalls int
	ExtractedAt  float64
}

func (d *FakeDecoder) ProbeDuration(_ context.Context, path string) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Paths = append(d.Paths, path)
	_, err := os.Stat(path)
	d.SawFile = err == nil
	if d.ProbeErr != nil {
		return 0, d.ProbeErr
	}
	return d.Duration, nil
}

func (d *FakeDecoder) ExtractFrame(_ context.Context, path string, seconds float64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ExtractCalls++
	d.ExtractedAt = seconds
	if d.ExtractErr != nil {
		return nil, d.ExtractErr
	}
	return d.Frame, nil
}

// Origin is an httptest server that serves one canned body and counts hits.
type Origin struct {
	*httptest.Server
	ContentType string
	Body        []byte

	gate        chan struct{}
	releaseOnce sync.Once
	hits        atomic.Int64
	status      atomic.Int64
}

// NewOrigin starts an origin serving body with contentType.
func NewOrigin(contentType string, body []byte) *Origin {
	return newOrigin(contentType, body, nil)
}

// NewGatedOrigin starts an origin that holds every response until Release.
func NewGatedOrigin(contentType string, body []byte) *Origin {
	return newOrigin(contentType, body, make(chan struct{}))
}

func newOrigin(contentType string, body []byte, gate chan struct{}) *Origin {
	o := &Origin{ContentType: contentType, Body: body, gate: gate}
	o.status.Store(http.StatusOK)
	o.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.hits.Add(1)
		if o.gate != nil {
			<-o.gate
		}
		w.Header().Set("Content-Type", o.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(o.Body)))
		w.WriteHeader(int(o.status.Load()))
		_, _ = w.Write(o.Body)
	}))
	return o
}

// Release lets held and future responses through.
func (o *Origin) Release() {
	o.releaseOnce.Do(func() {
		if o.gate != nil {
			close(o.gate)
		}
	})
}

// SetStatus changes the status code of later responses.
func (o *Origin) SetStatus(code int) {
	o.status.Store(int64(code))
}

// Hits is the number of requests the origin received.
func (o *Origin) Hits() int {
	return int(o.hits.Load())
}

// URLFor returns the URL of path on the origin.
func (o *Origin) URLFor(path string) string {
	return fmt.Sprintf("%s/%s", o.URL, path)
}

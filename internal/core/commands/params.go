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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. Each command is one state
// of the derivative pipeline: fingerprint, cache probe, fetch, frame
// extraction, transform, store and notify.
//
// Commands exchange values through the well-known Context keys below. The
// request and its fingerprint are read by steps several positions after the
// one that produced them.
package commands

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
)

// Context keys shared by the derivative commands.
const (
	CtxRequest     = "__REQUEST__"     // *model.TransformRequest
	CtxFingerprint = "__FINGERPRINT__" // string
	CtxResource    = "__RESOURCE__"    // *model.RemoteResource, the downloaded source
	CtxFrame       = "__FRAME__"       // *model.RemoteResource, the extracted video frame
	CtxDerivative  = "__DERIVATIVE__"  // *model.Derivative
	CtxRecord      = "__RECORD__"      // *model.ArtifactRecord, the final result
)

// RequestFrom returns the request stored in the Context, or nil.
func RequestFrom(context cor.Context) *model.TransformRequest {
	req, _ := context.Get(CtxRequest).(*model.TransformRequest)
	return req
}

// RecordFrom returns the artifact record stored in the Context, or nil.
func RecordFrom(context cor.Context) *model.ArtifactRecord {
	record, _ := context.Get(CtxRecord).(*model.ArtifactRecord)
	return record
}

// fingerprintFrom returns the fingerprint stored in the Context, or "".
func fingerprintFrom(context cor.Context) string {
	fp, _ := context.Get(CtxFingerprint).(string)
	return fp
}

// metricCounter is an optional counter; a counter that failed to register is
// skipped.
type metricCounter struct {
	counter metric.Int64Counter
}

func newCounter(meter metric.Meter, name string) metricCounter {
	counter, err := meter.Int64Counter(name)
	if err != nil {
		slog.Warn("error creating counter", "counter", name, "error", err)
		return metricCounter{}
	}
	return metricCounter{counter: counter}
}

func (m metricCounter) add(context cor.Context) {
	if m.counter != nil {
		m.counter.Add(context.GetContext(), 1)
	}
}

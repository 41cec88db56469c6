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

package commands

import (
	"log/slog"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/cloud"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
)

// ArtifactNotify announces a freshly stored derivative to the event sinks.
// Delivery is best effort: a failed notification is logged and counted but
// never fails the chain.
type ArtifactNotify struct {
	cor.BaseCommand
	sink cloud.ArtifactEventSink
}

func NewArtifactNotify(name string, sink cloud.ArtifactEventSink) *ArtifactNotify {
	out := &ArtifactNotify{BaseCommand: *cor.NewBaseCommand(name), sink: sink}
	out.InputParamName = CtxRecord
	return out
}

func (c *ArtifactNotify) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && RequestFrom(context) != nil
}

func (c *ArtifactNotify) Execute(context cor.Context) {
	record := RecordFrom(context)
	if c.sink == nil || record == nil || record.Cached {
		return
	}
	size := 0
	if derivative, ok := context.Get(CtxDerivative).(*model.Derivative); ok {
		size = len(derivative.Data)
	}

	event := model.NewArtifactEvent(RequestFrom(context), fingerprintFrom(context), record, size)
	if err := c.sink.Notify(context.GetContext(), event); err != nil {
		if c.ErrorCounter != nil {
			c.ErrorCounter.Add(context.GetContext(), 1)
		}
		slog.WarnContext(context.GetContext(), "failed to publish artifact event", "key", record.Key, "error", err)
		return
	}
	c.Succeed(context)
}

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
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
)

// Processor runs a request through the derivative pipeline.
type Processor interface {
	Process(ctx context.Context, req *model.TransformRequest) (*model.ArtifactRecord, error)
}

// PrewarmDispatch hands a parsed pre-warm request to the coordinator, so it
// shares coalescing and caching with HTTP traffic.
type PrewarmDispatch struct {
	cor.BaseCommand
	processor Processor
}

func NewPrewarmDispatch(name string, processor Processor) *PrewarmDispatch {
	out := &PrewarmDispatch{BaseCommand: *cor.NewBaseCommand(name), processor: processor}
	out.InputParamName = CtxRequest
	out.OutputParamName = CtxRecord
	return out
}

func (c *PrewarmDispatch) Execute(context cor.Context) {
	record, err := c.processor.Process(context.GetContext(), RequestFrom(context))
	if err != nil {
		c.Fail(context, err)
		return
	}
	slog.InfoContext(context.GetContext(), "pre-warmed derivative", "key", record.Key, "cached", record.Cached)
	context.Add(c.GetOutputParam(), record)
	c.Succeed(context)
}

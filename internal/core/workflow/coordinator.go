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

// This file defines the Coordinator, the single entry point for running a
// validated request through the derivative pipeline.
//
// Logic Flow:
//  1. The request is keyed by modality and fingerprint.
//  2. Concurrent requests with the same key share one chain execution
//     (singleflight). The key is forgotten when the execution ends, so a
//     failure is never replayed to later callers.
//  3. The shared execution runs detached from the cancellation of the caller
//     that started it, so a caller going away never fails the others. Each
//     caller still stops waiting as soon as its own context is done.
//  4. The chain runs in a fresh cor.Context whose scratch files are removed
//     when the execution finishes.
package workflow

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
)

// Coordinator dispatches requests to the chain of their modality.
type Coordinator struct {
	image cor.Command
	video cor.Command
	group singleflight.Group
}

// NewCoordinator creates a coordinator over the two modality chains.
func NewCoordinator(image, video cor.Command) *Coordinator {
	return &Coordinator{image: image, video: video}
}

// NewCoordinatorFor builds both chains from deps.
func NewCoordinatorFor(deps Dependencies) *Coordinator {
	return NewCoordinator(NewImageWorkflow(deps), NewVideoWorkflow(deps))
}

// Process returns the artifact record for req, computing and storing the
// derivative when it is not stored yet. Errors keep the classification of
// the step that raised them.
func (c *Coordinator) Process(ctx context.Context, req *model.TransformRequest) (*model.ArtifactRecord, error) {
	if req == nil {
		return nil, mediaerr.Invalid("request is required")
	}
	key := string(req.Modality) + ":" + model.Fingerprint(req)

	// Values such as the trace span are kept; cancellation is not.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.run(shared, req)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("request abandoned: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		record := *res.Val.(*model.ArtifactRecord)
		return &record, nil
	}
}

func (c *Coordinator) run(ctx context.Context, req *model.TransformRequest) (*model.ArtifactRecord, error) {
	command := c.image
	if req.Modality == model.ModalityVideo {
		command = c.video
	}

	chCtx := cor.NewContextFrom(ctx)
	defer chCtx.Close()
	chCtx.Add(commands.CtxRequest, req)

	if !command.IsExecutable(chCtx) {
		return nil, fmt.Errorf("%s is not executable", command.GetName())
	}
	command.Execute(chCtx)

	if chCtx.HasErrors() {
		return nil, cor.FirstError(chCtx)
	}
	record := commands.RecordFrom(chCtx)
	if record == nil {
		return nil, fmt.Errorf("%s finished without an artifact", command.GetName())
	}
	return record, nil
}

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

// Package workflow defines the high-level business logic orchestrations,
// combining commands into the derivative pipelines. This file builds the two
// chains the coordinator runs.
//
// Image chain:
//
//	fingerprint -> cache-probe -> remote-fetch -> image-transform -> artifact-persist [-> artifact-notify]
//
// Video chain:
//
//	fingerprint -> cache-probe -> remote-fetch -> frame-extract -> image-transform -> artifact-persist [-> artifact-notify]
//
// A cache hit halts either chain right after the probe.
package workflow

import (
	"github.com/jaycherian/gcp-go-media-derivatives/internal/cloud"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
)

// Dependencies are the collaborators the derivative chains are built from.
type Dependencies struct {
	Store        cloud.ArtifactStore
	Fetcher      commands.Fetcher
	Transformer  commands.Transformer
	Frames       commands.FrameExtractor
	Events       cloud.ArtifactEventSink // Optional.
	Fetch        cloud.Fetch
	CacheControl string
}

// DerivativeWorkflow is the chain for one modality.
type DerivativeWorkflow struct {
	cor.BaseCommand
	modality model.Modality
	deps     Dependencies
	chain    cor.Chain
}

// Execute runs the chain. The Context must carry the request under
// commands.CtxRequest.
func (w *DerivativeWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

func (w *DerivativeWorkflow) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && commands.RequestFrom(context) != nil
}

func (w *DerivativeWorkflow) initializeChain() {
	prefix := string(w.modality)
	out := cor.NewBaseChain(w.GetName())

	out.AddCommand(commands.NewRequestFingerprint(prefix + "-fingerprint"))
	out.AddCommand(commands.NewCacheProbe(prefix+"-cache-probe", w.deps.Store))
	out.AddCommand(commands.NewRemoteFetch(prefix+"-remote-fetch", w.deps.Fetcher, w.deps.Fetch))

	transformInput := commands.CtxResource
	if w.modality == model.ModalityVideo {
		out.AddCommand(commands.NewFrameExtract(prefix+"-frame-extract", w.deps.Frames))
		transformInput = commands.CtxFrame
	}
	out.AddCommand(commands.NewImageTransform(prefix+"-image-transform", w.deps.Transformer, transformInput))
	out.AddCommand(commands.NewArtifactPersist(prefix+"-artifact-persist", w.deps.Store, w.deps.CacheControl))

	if w.deps.Events != nil {
		out.AddCommand(commands.NewArtifactNotify(prefix+"-artifact-notify", w.deps.Events))
	}
	w.chain = out
}

// NewImageWorkflow builds the still image chain.
func NewImageWorkflow(deps Dependencies) *DerivativeWorkflow {
	return newDerivativeWorkflow("image-derivative-workflow", model.ModalityImage, deps)
}

// NewVideoWorkflow builds the video thumbnail chain.
func NewVideoWorkflow(deps Dependencies) *DerivativeWorkflow {
	return newDerivativeWorkflow("video-thumbnail-workflow", model.ModalityVideo, deps)
}

func newDerivativeWorkflow(name string, modality model.Modality, deps Dependencies) *DerivativeWorkflow {
	out := &DerivativeWorkflow{
		BaseCommand: *cor.NewBaseCommand(name),
		modality:    modality,
		deps:        deps,
	}
	out.initializeChain()
	return out
}

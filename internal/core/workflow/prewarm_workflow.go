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

package workflow

import (
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
)

// PrewarmWorkflow computes derivatives announced on the pre-warm
// subscription. It is attached to a cloud.PubSubListener.
type PrewarmWorkflow struct {
	cor.BaseCommand
	chain cor.Chain
}

func (p *PrewarmWorkflow) Execute(context cor.Context) {
	p.chain.Execute(context)
}

// NewPrewarmWorkflow builds the reader -> coordinator chain.
func NewPrewarmWorkflow(parser commands.RequestValidator, processor commands.Processor) *PrewarmWorkflow {
	chain := cor.NewBaseChain("prewarm-workflow-chain")
	chain.AddCommand(commands.NewPrewarmReader("prewarm-reader", parser))
	chain.AddCommand(commands.NewPrewarmDispatch("prewarm-dispatch", processor))
	return &PrewarmWorkflow{BaseCommand: *cor.NewBaseCommand("prewarm-workflow"), chain: chain}
}

// IsPermanent reports whether a pre-warm failure would fail again on
// redelivery. Such messages are acked and dropped.
func IsPermanent(err error) bool {
	switch mediaerr.KindOf(err) {
	case mediaerr.InvalidInput, mediaerr.UnsupportedMediaType, mediaerr.RemoteFetchTooLarge,
		mediaerr.ProcessingFailure, mediaerr.DecoderUnavailable:
		return true
	}
	return false
}

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

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/services"
)

// Transformer renders a derivative. *services.ImageTransformer satisfies it.
type Transformer interface {
	Transform(ctx context.Context, data []byte, params services.ImageParams) (*model.Derivative, error)
}

// ImageTransform renders the derivative from the bytes under its input
// parameter: the downloaded image, or the extracted video frame.
type ImageTransform struct {
	cor.BaseCommand
	transformer Transformer
}

// NewImageTransform creates the command. input is CtxResource for image
// chains and CtxFrame for video chains.
func NewImageTransform(name string, transformer Transformer, input string) *ImageTransform {
	out := &ImageTransform{BaseCommand: *cor.NewBaseCommand(name), transformer: transformer}
	out.InputParamName = input
	out.OutputParamName = CtxDerivative
	return out
}

func (c *ImageTransform) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && RequestFrom(context) != nil
}

func (c *ImageTransform) Execute(context cor.Context) {
	source := context.Get(c.GetInputParam()).(*model.RemoteResource)
	derivative, err := c.transformer.Transform(context.GetContext(), source.Data, services.ParamsFor(RequestFrom(context)))
	if err != nil {
		c.Fail(context, err)
		return
	}
	context.Add(c.GetOutputParam(), derivative)
	c.Succeed(context)
}

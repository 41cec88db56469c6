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

// This file defines the first command of the pre-warm workflow, which
// computes derivatives ahead of the first HTTP request for them.
//
// Logic Flow:
//  1. The command receives the raw Pub/Sub message body as a JSON string.
//  2. It decodes a PrewarmMessage: the modality and the same parameters the
//     HTTP endpoints take. Numeric JSON values are accepted alongside strings.
//  3. The parameters go through the RequestParser exactly like a query
//     string, so a pre-warmed artifact has the same fingerprint as the one an
//     HTTP caller would ask for.
//  4. The validated request is placed under CtxRequest for the coordinator.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
)

// PrewarmMessage is the body of a pre-warm Pub/Sub message, e.g.
//
//	{"modality": "video", "params": {"url": "https://example.com/v.mp4", "time": 2, "width": 320}}
type PrewarmMessage struct {
	Modality model.Modality `json:"modality"`
	Params   map[string]any `json:"params"`
}

// Values renders the parameters as query values.
func (m *PrewarmMessage) Values() (url.Values, error) {
	values := url.Values{}
	for name, raw := range m.Params {
		switch v := raw.(type) {
		case string:
			values.Set(name, v)
		case float64:
			values.Set(name, strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			values.Set(name, strconv.FormatBool(v))
		case nil:
		default:
			return nil, fmt.Errorf("parameter %q has unsupported type %T", name, raw)
		}
	}
	return values, nil
}

// RequestValidator turns query values into a validated request.
// *services.RequestParser satisfies it.
type RequestValidator interface {
	Parse(ctx context.Context, modality model.Modality, values url.Values) (*model.TransformRequest, error)
}

// PrewarmReader parses a pre-warm message into a TransformRequest.
type PrewarmReader struct {
	cor.BaseCommand
	parser RequestValidator
}

func NewPrewarmReader(name string, parser RequestValidator) *PrewarmReader {
	out := &PrewarmReader{BaseCommand: *cor.NewBaseCommand(name), parser: parser}
	out.OutputParamName = CtxRequest
	return out
}

func (c *PrewarmReader) Execute(context cor.Context) {
	in, ok := context.Get(c.GetInputParam()).(string)
	if !ok {
		c.Fail(context, mediaerr.Invalid("pre-warm message must be a JSON string"))
		return
	}

	var msg PrewarmMessage
	if err := json.Unmarshal([]byte(in), &msg); err != nil {
		c.Fail(context, mediaerr.Wrap(mediaerr.InvalidInput, "failed to unmarshal pre-warm message", err))
		return
	}
	if msg.Modality == "" {
		msg.Modality = model.ModalityImage
	}
	if msg.Modality != model.ModalityImage && msg.Modality != model.ModalityVideo {
		c.Fail(context, mediaerr.Newf(mediaerr.InvalidInput, "unknown modality %q", msg.Modality))
		return
	}
	values, err := msg.Values()
	if err != nil {
		c.Fail(context, mediaerr.Wrap(mediaerr.InvalidInput, "invalid pre-warm parameters", err))
		return
	}

	req, err := c.parser.Parse(context.GetContext(), msg.Modality, values)
	if err != nil {
		c.Fail(context, err)
		return
	}
	context.Add(c.GetOutputParam(), req)
	c.Succeed(context)
}

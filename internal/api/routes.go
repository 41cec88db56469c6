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

// Package api holds the HTTP front end of the derivative service: the gin
// routes, the mapping of classified errors to statuses and the middleware
// stack.
//
// Routes:
//   - GET /process: image derivative (url, width, height, format, quality, crop).
//   - GET /video/thumbnail: video frame derivative (url, time and the image parameters).
//   - GET /healthcheck: liveness probe.
package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/model"
)

// RequestParser validates query values. *services.RequestParser satisfies it.
type RequestParser interface {
	Parse(ctx context.Context, modality model.Modality, values url.Values) (*model.TransformRequest, error)
}

// Processor produces the artifact for a validated request.
// *workflow.Coordinator satisfies it.
type Processor interface {
	Process(ctx context.Context, req *model.TransformRequest) (*model.ArtifactRecord, error)
}

// DerivativeRouter registers the two derivative endpoints on r.
func DerivativeRouter(r gin.IRoutes, parser RequestParser, processor Processor) {
	r.GET("/process", derivativeHandler(model.ModalityImage, parser, processor))
	r.GET("/video/thumbnail", derivativeHandler(model.ModalityVideo, parser, processor))
}

// HealthRouter registers GET /healthcheck.
func HealthRouter(r gin.IRoutes) {
	r.GET("/healthcheck", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func derivativeHandler(modality model.Modality, parser RequestParser, processor Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		req, err := parser.Parse(ctx, modality, c.Request.URL.Query())
		if err != nil {
			RespondError(c, err)
			return
		}
		record, err := processor.Process(ctx, req)
		if err != nil {
			RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

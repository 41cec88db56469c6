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

package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
)

// MsgUnexpected is returned for errors that carry no classification. The
// detail is logged, never echoed.
const MsgUnexpected = "Unexpected server error"

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind mediaerr.Kind) int {
	switch kind {
	case mediaerr.InvalidInput:
		return http.StatusBadRequest
	case mediaerr.UnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case mediaerr.RemoteFetchFailure, mediaerr.StorageFailure:
		return http.StatusBadGateway
	case mediaerr.RemoteFetchTimeout:
		return http.StatusGatewayTimeout
	case mediaerr.RemoteFetchTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as {"error": message} with the status of its kind.
func RespondError(c *gin.Context, err error) {
	classified, ok := mediaerr.As(err)
	if !ok || classified.Kind == mediaerr.Internal {
		if c.Request.Context().Err() != nil {
			slog.InfoContext(c.Request.Context(), "client went away", "path", c.FullPath(), "error", err)
		} else {
			slog.ErrorContext(c.Request.Context(), "unexpected error", "path", c.FullPath(), "error", err)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": MsgUnexpected})
		return
	}

	status := StatusFor(classified.Kind)
	if status >= http.StatusInternalServerError {
		slog.WarnContext(c.Request.Context(), "request failed", "path", c.FullPath(), "kind", classified.Kind.String(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": classified.Message})
}

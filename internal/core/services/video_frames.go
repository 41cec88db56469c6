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

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/mediaerr"
)

// Messages of the video frame orchestrator.
const (
	MsgTimeNegative      = "time must be >= 0"
	MsgTimeOutOfRange    = "Requested time is outside video duration"
	MsgDecoderMissing    = "ffmpeg is not available on the host"
	msgExtractFailedFmt  = "Failed to extract video frame: %s"
	scratchFilePrefix    = "video-"
	defaultScratchSuffix = "bin"
)

// VideoFrameExtractor turns downloaded video bytes into a single still frame.
type VideoFrameExtractor struct {
	decoder    FrameDecoder
	scratchDir string
}

// NewVideoFrameExtractor creates an extractor that stages videos in
// scratchDir, or os.TempDir() when it is empty.
func NewVideoFrameExtractor(decoder FrameDecoder, scratchDir string) *VideoFrameExtractor {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &VideoFrameExtractor{decoder: decoder, scratchDir: scratchDir}
}

// CheckTimestamp rejects timestamps no video can satisfy.
func CheckTimestamp(seconds float64) error {
	if seconds < 0 {
		return mediaerr.Invalid(MsgTimeNegative)
	}
	return nil
}

// ExtractFrame writes data to a scratch file, checks seconds against the
// probed duration and returns the frame at seconds as JPEG bytes. The scratch
// file is removed on every path.
func (v *VideoFrameExtractor) ExtractFrame(ctx context.Context, data []byte, seconds float64) ([]byte, error) {
	if err := CheckTimestamp(seconds); err != nil {
		return nil, err
	}
	path, err := v.StageVideo(data)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.WarnContext(ctx, "failed to remove scratch file", "file", path, "error", err)
		}
	}()
	return v.FrameAt(ctx, path, seconds)
}

// StageVideo writes data to a new scratch file and returns its path. The
// caller owns the file.
func (v *VideoFrameExtractor) StageVideo(data []byte) (string, error) {
	path, err := v.writeScratchFile(data)
	if err != nil {
		return "", mediaerr.Processing(fmt.Sprintf(msgExtractFailedFmt, err.Error()), err)
	}
	return path, nil
}

// FrameAt returns the frame at seconds of the staged video at path as JPEG
// bytes, after checking seconds against the probed duration.
func (v *VideoFrameExtractor) FrameAt(ctx context.Context, path string, seconds float64) ([]byte, error) {
	if err := CheckTimestamp(seconds); err != nil {
		return nil, err
	}
	ctx, span := otel.Tracer("video-frames").Start(ctx, "extract_frame")
	defer span.End()
	span.SetAttributes(attribute.Float64("time", seconds), attribute.String("file", filepath.Base(path)))

	duration, err := v.decoder.ProbeDuration(ctx, path)
	if err != nil {
		return nil, v.classify(ctx, err)
	}
	span.SetAttributes(attribute.Float64("duration", duration))
	if seconds > duration {
		return nil, mediaerr.Invalid(MsgTimeOutOfRange)
	}

	frame, err := v.decoder.ExtractFrame(ctx, path, seconds)
	if err != nil {
		return nil, v.classify(ctx, err)
	}
	return frame, nil
}

// writeScratchFile stores data under a unique name whose extension matches
// the sniffed container, which keeps ffmpeg's demuxer probing reliable.
func (v *VideoFrameExtractor) writeScratchFile(data []byte) (string, error) {
	ext := defaultScratchSuffix
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown && kind.Extension != "" {
		ext = kind.Extension
	}
	path := filepath.Join(v.scratchDir, fmt.Sprintf("%s%s.%s", scratchFilePrefix, uuid.NewString(), ext))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	return path, nil
}

func (v *VideoFrameExtractor) classify(ctx context.Context, err error) error {
	if classified, ok := mediaerr.As(err); ok {
		return classified
	}
	if ctx.Err() != nil {
		return fmt.Errorf("frame extraction abandoned: %w", ctx.Err())
	}
	lower := strings.ToLower(err.Error())
	if errors.Is(err, ErrDecoderMissing) || (strings.Contains(lower, "ffmpeg") && strings.Contains(lower, "not found")) {
		return mediaerr.Wrap(mediaerr.DecoderUnavailable, MsgDecoderMissing, err)
	}
	return mediaerr.Processing(fmt.Sprintf(msgExtractFailedFmt, err.Error()), err)
}

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

// This file wraps the ffprobe and ffmpeg binaries behind the FrameDecoder
// interface.
//
// Logic Flow:
//  1. ProbeDuration runs ffprobe and reads the container duration in seconds.
//  2. ExtractFrame runs ffmpeg with an input seek, asks for exactly one video
//     frame encoded as MJPEG and reads it from stdout.
//  3. On failure the last few stderr lines are appended to the error so the
//     cause survives into the logs.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
)

// stderrTailLines is how much ffmpeg diagnostic output is kept on failure.
const stderrTailLines = 5

// ErrDecoderMissing is returned when the decoding tools are not installed.
var ErrDecoderMissing = errors.New("decoder binary not found")

// FrameDecoder is the external decoding capability the video orchestrator needs.
type FrameDecoder interface {
	// ProbeDuration returns the duration of the video at path in seconds.
	ProbeDuration(ctx context.Context, path string) (float64, error)
	// ExtractFrame returns the frame at seconds as JPEG bytes.
	ExtractFrame(ctx context.Context, path string, seconds float64) ([]byte, error)
}

// FFMpegDecoder implements FrameDecoder with the ffprobe and ffmpeg binaries.
type FFMpegDecoder struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFMpegDecoder creates a decoder. Empty paths fall back to the binaries
// on PATH.
func NewFFMpegDecoder(ffmpegPath, ffprobePath string) *FFMpegDecoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFMpegDecoder{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

func (d *FFMpegDecoder) ProbeDuration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	stdout, err := d.run(ctx, d.ffprobePath, args)
	if err != nil {
		return 0, err
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(stdout)), 64)
	if err != nil || duration < 0 {
		return 0, errors.New("Unable to determine video duration")
	}
	return duration, nil
}

func (d *FFMpegDecoder) ExtractFrame(ctx context.Context, path string, seconds float64) ([]byte, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(seconds, 'f', -1, 64),
		"-i", path,
		"-frames:v", "1",
		"-vcodec", "mjpeg",
		"-f", "image2",
		"pipe:1",
	}
	stdout, err := d.run(ctx, d.ffmpegPath, args)
	if err != nil {
		return nil, err
	}
	if len(stdout) == 0 {
		return nil, errors.New("No frame data produced")
	}
	return stdout, nil
}

func (d *FFMpegDecoder) run(ctx context.Context, binary string, args []string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", binary, ErrDecoderMissing)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if tail := StderrTail(stderr.String(), stderrTailLines); tail != "" {
			return nil, fmt.Errorf("%w. ffmpeg stderr:\n%s", err, tail)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// StderrTail returns the last n non-empty lines of output joined by newlines.
func StderrTail(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if line := strings.TrimRight(lines[i], "\r"); strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, "\n")
}

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

package cor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/cor"
	"github.com/stretchr/testify/assert"
)

// recorder is a command that appends its name to a shared trail, optionally
// failing or halting the chain.
type recorder struct {
	cor.BaseCommand
	trail *[]string
	fail  bool
	halt  bool
}

func newRecorder(name string, trail *[]string) *recorder {
	return &recorder{BaseCommand: *cor.NewBaseCommand(name), trail: trail}
}

func (r *recorder) IsExecutable(context cor.Context) bool {
	return context.GetContext() != nil
}

func (r *recorder) Execute(context cor.Context) {
	*r.trail = append(*r.trail, r.GetName())
	context.Add(cor.CtxOut, r.GetName())
	if r.fail {
		r.Fail(context, errors.New(r.GetName()+" failed"))
		return
	}
	if r.halt {
		context.Halt()
	}
	r.Succeed(context)
}

func TestChainPipesOutputToInput(t *testing.T) {
	var trail []string
	var seen interface{}

	chain := cor.NewBaseChain("pipe")
	chain.AddCommand(newRecorder("first", &trail))
	chain.AddCommand(&inspector{BaseCommand: *cor.NewBaseCommand("inspect"), seen: &seen})

	chCtx := cor.NewContextFrom(context.Background())
	chain.Execute(chCtx)

	assert.False(t, chCtx.HasErrors())
	assert.Equal(t, "first", seen)
}

func TestChainStopsOnFailure(t *testing.T) {
	var trail []string
	failing := newRecorder("second", &trail)
	failing.fail = true

	chain := cor.NewBaseChain("fail")
	chain.AddCommand(newRecorder("first", &trail)).
		AddCommand(failing).
		AddCommand(newRecorder("third", &trail))

	chCtx := cor.NewContextFrom(context.Background())
	chain.Execute(chCtx)

	assert.Equal(t, []string{"first", "second"}, trail)
	assert.EqualError(t, cor.FirstError(chCtx), "second failed")
}

func TestChainContinueOnFailure(t *testing.T) {
	var trail []string
	failing := newRecorder("first", &trail)
	failing.fail = true

	chain := cor.NewBaseChain("continue").ContinueOnFailure(true)
	chain.AddCommand(failing).AddCommand(newRecorder("second", &trail))

	chCtx := cor.NewContextFrom(context.Background())
	chain.Execute(chCtx)

	assert.Equal(t, []string{"first", "second"}, trail)
	assert.True(t, chCtx.HasErrors())
}

func TestChainHaltIsNotAFailure(t *testing.T) {
	var trail []string
	halting := newRecorder("probe", &trail)
	halting.halt = true

	chain := cor.NewBaseChain("halt")
	chain.AddCommand(halting).AddCommand(newRecorder("fetch", &trail))

	chCtx := cor.NewContextFrom(context.Background())
	chain.Execute(chCtx)

	assert.Equal(t, []string{"probe"}, trail)
	assert.True(t, chCtx.IsHalted())
	assert.False(t, chCtx.HasErrors())
}

func TestChainStopsWhenCancelled(t *testing.T) {
	var trail []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain := cor.NewBaseChain("cancelled")
	chain.AddCommand(newRecorder("first", &trail))

	chCtx := cor.NewContextFrom(ctx)
	chain.Execute(chCtx)

	assert.Empty(t, trail)
	assert.ErrorIs(t, cor.FirstError(chCtx), context.Canceled)
}

func TestContextCloseRemovesTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scratch.bin")
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	chCtx := cor.NewContextFrom(context.Background())
	chCtx.AddTempFile(path)
	chCtx.AddTempFile(filepath.Join(dir, "never-created"))
	chCtx.Close()

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, chCtx.GetTempFiles())
}

type inspector struct {
	cor.BaseCommand
	seen *interface{}
}

func (i *inspector) Execute(context cor.Context) {
	*i.seen = context.Get(i.GetInputParam())
}

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

package cor

import (
	"context"
	"errors"
	"log/slog"
	"os"
)

// BaseContext is the default Context. It keeps arbitrary values, the errors
// raised by commands, the halt flag and the scratch files to remove.
type BaseContext struct {
	data      map[string]interface{}
	errors    map[string]error
	tempFiles []string
	halted    bool
	context   context.Context
}

// NewBaseContext returns an empty Context. The Go context must be set with
// SetContext before the context is handed to a chain.
func NewBaseContext() Context {
	return &BaseContext{
		data:      make(map[string]interface{}),
		errors:    make(map[string]error),
		tempFiles: make([]string, 0),
	}
}

// NewContextFrom is a shortcut for NewBaseContext followed by SetContext.
func NewContextFrom(ctx context.Context) Context {
	out := NewBaseContext()
	out.SetContext(ctx)
	return out
}

func (c *BaseContext) SetContext(context context.Context) {
	c.context = context
}

func (c *BaseContext) GetContext() context.Context {
	return c.context
}

// Close removes every registered scratch file. A file that is already gone
// is not an error; anything else is logged and otherwise ignored.
func (c *BaseContext) Close() {
	for _, file := range c.GetTempFiles() {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove temporary file", "file", file, "error", err)
		}
	}
	c.tempFiles = c.tempFiles[:0]
}

func (c *BaseContext) Add(key string, value interface{}) Context {
	c.data[key] = value
	return c
}

func (c *BaseContext) AddTempFile(file string) {
	c.tempFiles = append(c.tempFiles, file)
}

func (c *BaseContext) GetTempFiles() []string {
	return c.tempFiles
}

func (c *BaseContext) AddError(key string, err error) {
	c.errors[key] = err
}

func (c *BaseContext) GetErrors() map[string]error {
	return c.errors
}

func (c *BaseContext) Get(key string) interface{} {
	return c.data[key]
}

func (c *BaseContext) Remove(key string) {
	delete(c.data, key)
}

func (c *BaseContext) HasErrors() bool {
	return len(c.errors) > 0
}

func (c *BaseContext) Halt() {
	c.halted = true
}

func (c *BaseContext) IsHalted() bool {
	return c.halted
}

// FirstError returns one of the recorded errors, or nil. Chains that stop on
// the first failure record at most one, so this is the failure of the chain.
func FirstError(c Context) error {
	for _, err := range c.GetErrors() {
		return err
	}
	return nil
}

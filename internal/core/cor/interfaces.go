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

// Package cor (Chain of Responsibility) provides the building blocks every
// derivative workflow is assembled from. A workflow is a Chain of Commands
// sharing one Context; each Command is one state of the pipeline (probe,
// fetch, transform, store) and the Context carries the request, the
// intermediate artifacts and any classified error between them.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the piping keys used by BaseChain.
const (
	// CtxIn holds the primary input of the next command. BaseChain moves the
	// previous command's CtxOut here after every step.
	CtxIn = "__IN__"
	// CtxOut is where a command leaves its primary output.
	CtxOut = "__OUT__"
)

// Context is the per execution state shared by the commands of a chain. A
// Context belongs to exactly one request and is not safe for concurrent use.
type Context interface {
	// SetContext replaces the Go context (cancellation, deadlines, spans).
	SetContext(context context.Context)

	// GetContext returns the current Go context.
	GetContext() context.Context

	// Add stores a value and returns the Context for chaining.
	Add(key string, value interface{}) Context

	// AddError records a failure, keyed by the name of the command that hit it.
	AddError(key string, err error)

	// GetErrors returns all recorded failures.
	GetErrors() map[string]error

	// Get returns the value stored under key, or nil.
	Get(key string) interface{}

	// Remove deletes the value stored under key.
	Remove(key string)

	// HasErrors reports whether any command recorded a failure.
	HasErrors() bool

	// Halt marks the execution as complete. Remaining commands are skipped
	// without being treated as failures; a cache hit uses this.
	Halt()

	// IsHalted reports whether Halt was called.
	IsHalted() bool

	// AddTempFile registers a scratch file for removal on Close.
	AddTempFile(file string)

	// GetTempFiles returns the registered scratch files.
	GetTempFiles() []string

	// Close removes registered scratch files. Callers defer it right after
	// creating the Context.
	Close()
}

// Executable is anything with a unit of work to run against a Context.
type Executable interface {
	Execute(context Context)
}

// Command is a single, instrumented step of a workflow.
type Command interface {
	Executable

	// GetName is used as the span name and the metric prefix.
	GetName() string

	// GetInputParam is the Context key the command reads its input from.
	GetInputParam() string

	// GetOutputParam is the Context key the command writes its output to.
	GetOutputParam() string

	// IsExecutable is the precondition checked before Execute.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer

	GetMeter() metric.Meter

	GetSuccessCounter() metric.Int64Counter

	GetErrorCounter() metric.Int64Counter
}

// Chain is an ordered sequence of commands. A Chain is itself a Command so
// chains nest.
type Chain interface {
	Command

	// ContinueOnFailure sets whether later commands still run after one fails.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command to the sequence.
	AddCommand(command Command) Chain
}

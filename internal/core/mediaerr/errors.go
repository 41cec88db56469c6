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

// Package mediaerr defines the error taxonomy shared by every stage of the
// derivative pipeline. Errors are classified where they are detected and are
// carried unchanged through the command chain; only the HTTP layer decides how
// a Kind is rendered to the caller.
package mediaerr

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a pipeline failure.
type Kind int

const (
	// Internal is the zero value; anything not explicitly classified ends up here.
	Internal Kind = iota
	InvalidInput
	UnsupportedMediaType
	RemoteFetchFailure
	RemoteFetchTimeout
	RemoteFetchTooLarge
	ProcessingFailure
	DecoderUnavailable
	StorageFailure
)

var kindNames = map[Kind]string{
	Internal:             "internal",
	InvalidInput:         "invalid_input",
	UnsupportedMediaType: "unsupported_media_type",
	RemoteFetchFailure:   "remote_fetch_failure",
	RemoteFetchTimeout:   "remote_fetch_timeout",
	RemoteFetchTooLarge:  "remote_fetch_too_large",
	ProcessingFailure:    "processing_failure",
	DecoderUnavailable:   "decoder_unavailable",
	StorageFailure:       "storage_failure",
}

// String returns a stable, log friendly name for the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified pipeline error. Message is safe to show to callers;
// Err holds the underlying cause and is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without an underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind with a caller facing message.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Convenience constructors, one per kind that callers raise directly.

func Invalid(message string) *Error { return New(InvalidInput, message) }

func Unsupported(message string) *Error { return New(UnsupportedMediaType, message) }

func FetchFailed(message string, err error) *Error { return Wrap(RemoteFetchFailure, message, err) }

func FetchTimeout(message string, err error) *Error { return Wrap(RemoteFetchTimeout, message, err) }

func TooLarge(message string) *Error { return New(RemoteFetchTooLarge, message) }

func Processing(message string, err error) *Error { return Wrap(ProcessingFailure, message, err) }

func Storage(message string, err error) *Error { return Wrap(StorageFailure, message, err) }

// As extracts the classified error from err's chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or Internal when err is not classified.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

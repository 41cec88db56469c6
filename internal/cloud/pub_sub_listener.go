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

// Package cloud holds the configuration model and the service clients. This
// file defines PubSubListener, which feeds messages from a subscription into a
// cor.Command. The service uses it for cache pre-warming: each message is a
// derivative request that is computed ahead of the first client asking for it.
//
// Logic Flow:
//  1. Listen starts Receive in a goroutine bound to the caller's context.
//  2. Each message gets a span and a fresh cor.Context with the payload in CtxIn.
//  3. The command runs; on success the message is acked.
//  4. On failure the message is acked when the error is permanent (the request
//     itself is bad) and nacked otherwise so Pub/Sub redelivers it.
package cloud

import (
	"context"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/cor"
)

// Receiver is the part of *pubsub.Subscription the listener needs.
type Receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
	String() string
}

// PermanentFunc decides whether a chain failure should be acked anyway.
type PermanentFunc func(err error) bool

// PubSubListener connects a subscription to a command.
type PubSubListener struct {
	subscription Receiver
	command      cor.Command
	permanent    PermanentFunc
}

// NewPubSubListener creates a listener on subscriptionID. The command may be
// attached later with SetCommand.
func NewPubSubListener(pubsubClient *pubsub.Client, subscriptionID string, command cor.Command) *PubSubListener {
	return NewListenerFor(pubsubClient.Subscription(subscriptionID), command)
}

// NewListenerFor builds a listener over any Receiver.
func NewListenerFor(receiver Receiver, command cor.Command) *PubSubListener {
	return &PubSubListener{subscription: receiver, command: command}
}

// SetCommand attaches command unless one is already set.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// SetPermanent installs the classifier for failures that must not be redelivered.
func (m *PubSubListener) SetPermanent(permanent PermanentFunc) {
	m.permanent = permanent
}

// Handle processes one message. Listen calls it for every delivery.
func (m *PubSubListener) Handle(ctx context.Context, msg *pubsub.Message) {
	tracer := otel.Tracer("message-listener")
	spanCtx, span := tracer.Start(ctx, "receive-message")
	defer span.End()
	span.SetAttributes(attribute.String("msg.id", msg.ID))

	chainCtx := cor.NewContextFrom(spanCtx)
	defer chainCtx.Close()
	chainCtx.Add(cor.CtxIn, string(msg.Data))

	m.command.Execute(chainCtx)

	if !chainCtx.HasErrors() {
		span.SetStatus(codes.Ok, "success")
		msg.Ack()
		return
	}

	span.SetStatus(codes.Error, "failed")
	err := cor.FirstError(chainCtx)
	if m.permanent != nil && m.permanent(err) {
		slog.WarnContext(spanCtx, "dropping message with permanent failure", "id", msg.ID, "error", err)
		msg.Ack()
		return
	}
	slog.ErrorContext(spanCtx, "error executing chain, message will be redelivered", "id", msg.ID, "error", err)
	msg.Nack()
}

// Listen starts receiving in the background until ctx is cancelled.
func (m *PubSubListener) Listen(ctx context.Context) {
	slog.Info("listening", "subscription", m.subscription.String())
	go func() {
		if err := m.subscription.Receive(ctx, m.Handle); err != nil {
			slog.Error("error receiving data", "subscription", m.subscription.String(), "error", err)
		}
	}()
}

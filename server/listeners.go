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

package main

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/workflow"
)

// SetupListeners starts the pre-warm listener when a subscription is
// configured. Messages run through the same coordinator as HTTP requests.
func SetupListeners(ctx context.Context, state *StateManager) {
	listener := state.cloud.PrewarmListener
	if listener == nil {
		return
	}
	listener.SetCommand(workflow.NewPrewarmWorkflow(state.parser, state.coordinator))
	listener.SetPermanent(workflow.IsPermanent)
	listener.Listen(ctx)
	slog.Info("pre-warm listener started", "subscription", state.config.Events.PrewarmSubscription)
}

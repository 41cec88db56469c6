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
	"fmt"
	"net"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/cloud"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/services"
	"github.com/jaycherian/gcp-go-media-derivatives/internal/core/workflow"
)

// StateManager holds the dependencies shared by the routes and listeners.
type StateManager struct {
	config      *cloud.Config
	cloud       *cloud.ServiceClients
	parser      *services.RequestParser
	coordinator *workflow.Coordinator
}

// InitState creates the cloud clients and assembles the pipeline.
func InitState(ctx context.Context, config *cloud.Config) (*StateManager, error) {
	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud clients: %w", err)
	}

	guard := services.NewURLGuard(net.DefaultResolver, config.Fetch.AllowPrivateNetworks)
	decoder := services.NewFFMpegDecoder(config.Video.FFMpegPath, config.Video.FFProbePath)

	deps := workflow.Dependencies{
		Store:        cloudClients.Store,
		Fetcher:      services.NewRemoteFetcher(guard, config.Fetch.UserAgent),
		Transformer:  services.NewImageTransformer(services.NewGoImageEngine()),
		Frames:       services.NewVideoFrameExtractor(decoder, config.Video.ScratchDir),
		Events:       cloudClients.Events,
		Fetch:        config.Fetch,
		CacheControl: config.Storage.CacheControl,
	}

	return &StateManager{
		config:      config,
		cloud:       cloudClients,
		parser:      services.NewRequestParser(guard),
		coordinator: workflow.NewCoordinatorFor(deps),
	}, nil
}

// Close releases the cloud clients.
func (s *StateManager) Close() {
	s.cloud.Close()
}

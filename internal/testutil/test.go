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

// Package test provides fixtures and fakes shared by the test suites: a test
// configuration, generated images in every supported format, a scripted DNS
// resolver, a scripted frame decoder and a media origin server.
package test

import (
	"testing"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/cloud"
)

// HandleErr fails the test when err is set.
func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// GetConfig returns a configuration for in-process tests: in-memory storage,
// loopback origins allowed and the default fetch limits.
func GetConfig() *cloud.Config {
	config := cloud.NewConfig()
	config.Application.Name = "media-derivatives-test"
	config.Storage.Backend = cloud.StorageBackendMemory
	config.Storage.Bucket = "test-bucket"
	config.Storage.BaseURL = "https://cdn.example.test"
	config.Fetch.AllowPrivateNetworks = true
	return config
}

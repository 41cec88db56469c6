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

package cloud_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jaycherian/gcp-go-media-derivatives/internal/cloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseToml = `
[application]
name = "derivatives-test"

[storage]
backend = "s3"
bucket = "base-bucket"
region = "eu-west-1"

[fetch.image]
max_bytes = 1024
timeout_seconds = 2
`

const runtimeToml = `
[storage]
bucket = "runtime-bucket"
`

// TestLoadConfigLayersRuntimeFile writes a base and a runtime file and checks
// that the runtime file wins while untouched values survive.
func TestLoadConfigLayersRuntimeFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte(baseToml), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.unit.toml"), []byte(runtimeToml), 0o600))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "unit")

	config := cloud.NewConfig()
	require.NoError(t, cloud.LoadConfig(config))

	assert.Equal(t, "derivatives-test", config.Application.Name)
	assert.Equal(t, "runtime-bucket", config.Storage.Bucket)
	assert.Equal(t, "eu-west-1", config.Storage.Region)
	assert.Equal(t, int64(1024), config.Fetch.Image.MaxBytes)
	// Video limits were not in either file, so the defaults remain.
	assert.Equal(t, int64(50*1024*1024), config.Fetch.Video.MaxBytes)
	assert.Equal(t, 12, config.Fetch.Video.TimeoutSeconds)
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte("[storage\nbucket="), 0o600))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "unit")

	assert.Error(t, cloud.LoadConfig(cloud.NewConfig()))
}

func TestApplyEnvironment(t *testing.T) {
	t.Setenv(cloud.EnvBucketName, "env-bucket")
	t.Setenv(cloud.EnvRegion, "ap-south-1")
	t.Setenv(cloud.EnvBucketBaseURL, "https://cdn.example.com/")
	t.Setenv(cloud.EnvPort, "9090")

	config := cloud.NewConfig()
	require.NoError(t, cloud.ApplyEnvironment(config))

	assert.Equal(t, "env-bucket", config.Storage.Bucket)
	assert.Equal(t, "ap-south-1", config.Storage.Region)
	assert.Equal(t, "https://cdn.example.com/", config.Storage.BaseURL)
	assert.Equal(t, 9090, config.Server.Port)

	t.Setenv(cloud.EnvPort, "eighty")
	assert.Error(t, cloud.ApplyEnvironment(config))
}

func TestValidate(t *testing.T) {
	config := cloud.NewConfig()
	// The default backend is s3, which needs a bucket.
	assert.Error(t, config.Validate())

	config.Storage.Bucket = "bucket"
	assert.NoError(t, config.Validate())

	config.Events.Topic = "artifacts"
	assert.Error(t, config.Validate(), "events need a project id")
	config.Application.GoogleProjectId = "project"
	assert.NoError(t, config.Validate())

	config.Storage.Backend = "ftp"
	assert.Error(t, config.Validate())

	memory := cloud.NewConfig()
	memory.Storage.Backend = cloud.StorageBackendMemory
	assert.NoError(t, memory.Validate())
}

func TestDefaults(t *testing.T) {
	config := cloud.NewConfig()
	assert.Equal(t, int64(10*1024*1024), config.Fetch.Image.MaxBytes)
	assert.Equal(t, 8, config.Fetch.Image.TimeoutSeconds)
	assert.Equal(t, cloud.DefaultCacheControl, config.Storage.CacheControl)
	assert.Equal(t, "public,max-age=31536000,immutable", cloud.DefaultCacheControl)
	assert.Equal(t, 256, config.Events.QueueSize)
	assert.Equal(t, 10, config.Events.TimeoutSeconds)
}

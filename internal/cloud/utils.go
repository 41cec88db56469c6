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

package cloud

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	ConfigFileBaseName  = ".env"                // Base name of configuration files (".env.toml").
	ConfigFileExtension = ".toml"               // Extension of configuration files.
	ConfigSeparator     = "."                   // Separator in runtime files (".env.local.toml").
	EnvConfigFilePrefix = "MEDIA_CONFIG_PREFIX" // Directory holding the configuration files.
	EnvConfigRuntime    = "MEDIA_RUNTIME"       // Runtime selecting the override file ("local", "test", "prod").
)

// Environment variables applied after the TOML files. These carry the
// deployment specific values most likely to differ between environments.
const (
	EnvBucketName    = "IMAGE_BUCKET_NAME"
	EnvRegion        = "AWS_REGION"
	EnvBucketBaseURL = "IMAGE_BUCKET_BASE_URL"
	EnvPort          = "PORT"
)

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig decodes the base configuration file and then the runtime
// specific file on top of it into baseConfig. A missing file is skipped; a
// malformed one is an error.
//
// With MEDIA_CONFIG_PREFIX=configs and MEDIA_RUNTIME=local the files read are
// configs/.env.toml and configs/.env.local.toml. The runtime defaults to "test".
func LoadConfig(baseConfig interface{}) error {
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "test"
	}

	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension

	for _, name := range []string{baseConfigFileName, envConfigFileName} {
		if !fileExists(name) {
			slog.Debug("configuration file not found, skipping", "file", name)
			continue
		}
		if _, err := toml.DecodeFile(name, baseConfig); err != nil {
			return fmt.Errorf("failed to decode configuration file %s: %w", name, err)
		}
		slog.Info("loaded configuration file", "file", name)
	}
	return nil
}

// ApplyEnvironment overrides configuration values from the environment.
func ApplyEnvironment(config *Config) error {
	if v := os.Getenv(EnvBucketName); v != "" {
		config.Storage.Bucket = v
	}
	if v := os.Getenv(EnvRegion); v != "" {
		config.Storage.Region = v
	}
	if v := os.Getenv(EnvBucketBaseURL); v != "" {
		config.Storage.BaseURL = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		config.Server.Port = port
	}
	return nil
}

// ReadConfig is the startup entry point: defaults, TOML files, environment,
// then validation.
func ReadConfig() (*Config, error) {
	config := NewConfig()
	if err := LoadConfig(config); err != nil {
		return nil, err
	}
	if err := ApplyEnvironment(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

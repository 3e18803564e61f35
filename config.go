/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package userstore

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/tomoncle/userstore/database"
	"github.com/tomoncle/userstore/security"
	"gopkg.in/yaml.v3"
)

// LogConfig selects the console log level and format ("text" or "json").
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"CONSOLE_LOG_FORMAT"`
}

// Config is the full store configuration.
type Config struct {
	Database database.Config `yaml:"database"`
	Security security.Config `yaml:"security"`
	Log      LogConfig       `yaml:"log"`
}

// DefaultConfig returns a MySQL configuration with bcrypt hashing.
func DefaultConfig() *Config {
	return &Config{
		Database: *database.DefaultConfig(),
		Security: security.DefaultConfig(),
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig starts from DefaultConfig, applies the YAML file at path when
// path is not empty, then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

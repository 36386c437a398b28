// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file, expands ${VAR}/${VAR:-default}/$VAR
// references against the process environment (loading a .env file from
// the config's directory first, if present), applies defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	if err := LoadDotEnvForConfig(path); err != nil {
		return nil, fmt.Errorf("config: load dotenv: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return loadFromBytes(raw)
}

// LoadFromString parses cfg as YAML without touching the filesystem for a
// config file (dotenv loading still consults the current directory).
func LoadFromString(cfg string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("config: load dotenv: %w", err)
	}
	return loadFromBytes([]byte(cfg))
}

func loadFromBytes(raw []byte) (*Config, error) {
	var generic map[string]interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	expanded := ExpandEnvVarsInData(generic)

	// Round-trip through YAML so the expanded generic map decodes into the
	// typed Config struct via the same tags used to parse it.
	reencoded, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("config: re-encode expanded config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(reencoded, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

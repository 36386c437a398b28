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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromStringAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromString(`
llm:
  api_key: test-key
`)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, 0.5, cfg.LLM.Temperature)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 7, cfg.Guideline.Threshold)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFromStringExpandsEnvVars(t *testing.T) {
	t.Setenv("CONVERSA_TEST_API_KEY", "from-env")

	cfg, err := LoadFromString(`
llm:
  api_key: ${CONVERSA_TEST_API_KEY}
  model: ${CONVERSA_TEST_MODEL:-gemini-2.0-flash}
`)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
}

func TestLoadFromStringRequiresAPIKey(t *testing.T) {
	_, err := LoadFromString(`name: no-key`)
	assert.Error(t, err)
}

func TestStoreConfigValidatesDSNForPersistentBackends(t *testing.T) {
	_, err := LoadFromString(`
llm:
  api_key: test-key
store:
  backend: sqlite
`)
	assert.Error(t, err)

	cfg, err := LoadFromString(`
llm:
  api_key: test-key
store:
  backend: sqlite
  dsn: ./conversa.db
`)
	require.NoError(t, err)
	assert.Equal(t, "./conversa.db", cfg.Store.DSN)
}

func TestGuidelineThresholdOutOfRange(t *testing.T) {
	_, err := LoadFromString(`
llm:
  api_key: test-key
guideline:
  threshold: 11
`)
	assert.Error(t, err)
}

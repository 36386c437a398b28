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

package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/conversa/config"
	"github.com/kadirpekel/conversa/session"
)

func TestBuildSessionStoreDefaultsToMemory(t *testing.T) {
	rt := &Runtime{}
	store, err := buildSessionStore(&config.Config{}, rt)
	require.NoError(t, err)
	assert.IsType(t, &session.MemStore{}, store)
}

func TestBuildSessionStoreExplicitMemory(t *testing.T) {
	rt := &Runtime{}
	cfg := &config.Config{Store: config.StoreConfig{Backend: "memory"}}
	store, err := buildSessionStore(cfg, rt)
	require.NoError(t, err)
	assert.IsType(t, &session.MemStore{}, store)
}

func TestBuildSessionStoreSQLiteOpensAndRegistersDB(t *testing.T) {
	rt := &Runtime{}
	cfg := &config.Config{Store: config.StoreConfig{Backend: "sqlite", DSN: ":memory:"}}
	store, err := buildSessionStore(cfg, rt)
	require.NoError(t, err)
	assert.IsType(t, &session.SQLStore{}, store)
	assert.NotNil(t, rt.sessionDB)
}

func TestBuildSessionStoreUnsupportedBackendErrors(t *testing.T) {
	rt := &Runtime{}
	cfg := &config.Config{Store: config.StoreConfig{Backend: "dynamodb"}}
	_, err := buildSessionStore(cfg, rt)
	assert.Error(t, err)
}

func TestCloseOnZeroValueRuntimeIsSafe(t *testing.T) {
	rt := &Runtime{}
	assert.NoError(t, rt.Close())
}

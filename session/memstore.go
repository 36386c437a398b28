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

package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-process Store, useful for tests and single-process
// deployments that don't need the SQL-backed store.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemStore builds an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]Session)}
}

func (m *MemStore) CreateSession(ctx context.Context, s Session) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Mode == "" {
		s.Mode = ModeAuto
	}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *MemStore) ReadSession(ctx context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, &ErrSessionNotFound{ID: id}
	}
	return s, nil
}

func (m *MemStore) ListSessions(ctx context.Context, agentID, customerID string) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Session
	for _, s := range m.sessions {
		if agentID != "" && s.AgentID != agentID {
			continue
		}
		if customerID != "" && s.CustomerID != customerID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *MemStore) UpdateMode(ctx context.Context, id string, mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return &ErrSessionNotFound{ID: id}
	}
	s.Mode = mode
	m.sessions[id] = s
	return nil
}

func (m *MemStore) UpdateTitle(ctx context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return &ErrSessionNotFound{ID: id}
	}
	s.Title = title
	m.sessions[id] = s
	return nil
}

func (m *MemStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

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

package guideline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/conversa/store"
)

func TestExpanderFollowsConnectionsAndInheritsScore(t *testing.T) {
	s := store.NewMemStore(nil)
	s.AddGuideline(store.Guideline{ID: "g1", Set: "a1"})
	s.AddGuideline(store.Guideline{ID: "g2", Set: "a1"})
	s.AddGuideline(store.Guideline{ID: "g3", Set: "a1"})
	s.AddConnection(store.GuidelineConnection{SourceGuidelineID: "g1", TargetGuidelineID: "g2", Kind: store.ConnectionEntails})
	s.AddConnection(store.GuidelineConnection{SourceGuidelineID: "g2", TargetGuidelineID: "g3", Kind: store.ConnectionSuggests})

	e := NewExpander(s, s)
	proposed := []Proposition{{Guideline: store.Guideline{ID: "g1"}, Score: 9}}

	out, err := e.Expand(context.Background(), "a1", proposed)
	require.NoError(t, err)
	require.Len(t, out, 2)

	byID := map[string]Proposition{}
	for _, p := range out {
		byID[p.Guideline.ID] = p
	}
	assert.Equal(t, 9, byID["g2"].Score)
	assert.Equal(t, 9, byID["g3"].Score)
	assert.True(t, byID["g2"].ReApplicable)
}

func TestExpanderTerminatesOnCycles(t *testing.T) {
	s := store.NewMemStore(nil)
	s.AddGuideline(store.Guideline{ID: "g1", Set: "a1"})
	s.AddGuideline(store.Guideline{ID: "g2", Set: "a1"})
	s.AddConnection(store.GuidelineConnection{SourceGuidelineID: "g1", TargetGuidelineID: "g2", Kind: store.ConnectionEntails})
	s.AddConnection(store.GuidelineConnection{SourceGuidelineID: "g2", TargetGuidelineID: "g1", Kind: store.ConnectionEntails})

	e := NewExpander(s, s)
	proposed := []Proposition{{Guideline: store.Guideline{ID: "g1"}, Score: 5}}

	out, err := e.Expand(context.Background(), "a1", proposed)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, "g2", out[0].Guideline.ID)
}

func TestExpanderNoConnectionsReturnsEmpty(t *testing.T) {
	s := store.NewMemStore(nil)
	s.AddGuideline(store.Guideline{ID: "g1", Set: "a1"})
	e := NewExpander(s, s)

	out, err := e.Expand(context.Background(), "a1", []Proposition{{Guideline: store.Guideline{ID: "g1"}, Score: 5}})
	require.NoError(t, err)
	assert.Empty(t, out)
}

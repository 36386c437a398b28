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
	"fmt"

	"github.com/kadirpekel/conversa/store"
)

// Expander adds guidelines reachable through stored entails/suggests edges
// from an already-proposed set (spec.md §4.E). The connection graph may
// contain cycles; traversal always terminates because each guideline is
// visited at most once (spec.md §9).
type Expander struct {
	Connections store.Connections
	Guidelines  store.Guidelines
}

// NewExpander builds an Expander over the given stores.
func NewExpander(conns store.Connections, guidelines store.Guidelines) *Expander {
	return &Expander{Connections: conns, Guidelines: guidelines}
}

// Expand computes the reachable set from the proposed propositions by
// forward traversal and returns the additional propositions found, each
// carrying the originating proposition's score (spec.md §9 resolves the
// "same score or decayed" open question in favor of same score, since a
// decayed score has no defined decay function in the source and would be
// an invented detail) and a rationale citing the traversal path.
func (e *Expander) Expand(ctx context.Context, agentID string, proposed []Proposition) ([]Proposition, error) {
	visited := make(map[string]bool, len(proposed))
	byID := make(map[string]store.Guideline, len(proposed))
	for _, p := range proposed {
		visited[p.Guideline.ID] = true
		byID[p.Guideline.ID] = p.Guideline
	}

	var added []Proposition
	type frontierItem struct {
		guidelineID string
		origin      Proposition
		path        []store.GuidelineConnection
	}

	var frontier []frontierItem
	for _, p := range proposed {
		frontier = append(frontier, frontierItem{guidelineID: p.Guideline.ID, origin: p})
	}

	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]

		edges, err := e.Connections.ConnectionsFrom(ctx, cur.guidelineID)
		if err != nil {
			return nil, fmt.Errorf("guideline: connections from %q: %w", cur.guidelineID, err)
		}

		for _, edge := range edges {
			if visited[edge.TargetGuidelineID] {
				continue
			}
			visited[edge.TargetGuidelineID] = true

			target, err := e.resolveGuideline(ctx, agentID, edge.TargetGuidelineID)
			if err != nil {
				return nil, err
			}

			path := append(append([]store.GuidelineConnection{}, cur.path...), edge)
			hops := cur.origin.Guideline.ID
			for _, c := range path {
				hops += fmt.Sprintf(" -%s-> %s", c.Kind, c.TargetGuidelineID)
			}
			newProp := Proposition{
				Guideline:     target,
				Score:         cur.origin.Score,
				Rationale:     "reached via connection path " + hops,
				ReApplicable:  true,
				ViaConnection: path,
			}
			added = append(added, newProp)
			frontier = append(frontier, frontierItem{guidelineID: target.ID, origin: cur.origin, path: path})
		}
	}

	return added, nil
}

func (e *Expander) resolveGuideline(ctx context.Context, agentID, guidelineID string) (store.Guideline, error) {
	all, err := e.Guidelines.ListGuidelines(ctx, agentID)
	if err != nil {
		return store.Guideline{}, fmt.Errorf("guideline: list guidelines for %q: %w", agentID, err)
	}
	for _, g := range all {
		if g.ID == guidelineID {
			return g, nil
		}
	}
	return store.Guideline{}, fmt.Errorf("guideline: connection target %q not found in agent %q's set", guidelineID, agentID)
}

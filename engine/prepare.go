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

package engine

import (
	"context"
	"fmt"

	"github.com/kadirpekel/conversa/event"
	"github.com/kadirpekel/conversa/guideline"
	"github.com/kadirpekel/conversa/interaction"
	"github.com/kadirpekel/conversa/store"
	"github.com/kadirpekel/conversa/tool"
	"github.com/kadirpekel/conversa/toolcaller"
)

// glossaryTopK bounds how many terms are pulled into one run's state.
const glossaryTopK = 10

// buildInteractionState assembles the read-only per-run view handed to
// every pipeline phase (spec.md §4.B, §4.H step preceding proposition).
func (e *Engine) buildInteractionState(ctx context.Context, rc RunContext) (interaction.State, error) {
	agent, err := e.Stores.ReadAgent(ctx, rc.AgentID)
	if err != nil {
		return interaction.State{}, fmt.Errorf("read agent: %w", err)
	}

	var customer store.Customer
	if rc.CustomerID != "" {
		customer, err = e.Stores.ReadCustomer(ctx, rc.CustomerID)
		if err != nil {
			return interaction.State{}, fmt.Errorf("read customer: %w", err)
		}
	}

	history, err := e.Log.List(ctx, rc.SessionID, event.Filters{ExcludeDeleted: true})
	if err != nil {
		return interaction.State{}, fmt.Errorf("list session history: %w", err)
	}

	st := interaction.State{Agent: agent, Customer: customer, History: history}

	query := st.LastCustomerMessage()
	if query != "" {
		terms, err := e.Stores.RelevantTerms(ctx, rc.AgentID, query, glossaryTopK)
		if err != nil {
			return interaction.State{}, fmt.Errorf("resolve glossary terms: %w", err)
		}
		st.Terms = terms
	}

	vars, err := e.Stores.ListContextVariables(ctx, rc.AgentID)
	if err != nil {
		return interaction.State{}, fmt.Errorf("list context variables: %w", err)
	}
	if len(vars) > 0 && rc.CustomerID != "" {
		values := make(map[string]store.ContextVariableValue, len(vars))
		for _, v := range vars {
			val, err := e.Stores.ReadContextVariableValue(ctx, rc.AgentID, v.ID, rc.CustomerID)
			if err != nil {
				continue // no stored value yet for this customer; omit rather than fail the run
			}
			values[v.ID] = val
		}
		st.ContextVariables = values
	}

	return st, nil
}

// proposeAndExpand runs the Proposer over the agent's full guideline set and
// then the Expander over the accepted propositions, merging the two sets by
// guideline ID with directly-proposed propositions taking precedence over
// ones reached via connection traversal (spec.md §4.D, §4.E).
func (e *Engine) proposeAndExpand(ctx context.Context, agentID string, st interaction.State) ([]guideline.Proposition, error) {
	candidates, err := e.Stores.ListGuidelines(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("list guidelines: %w", err)
	}

	proposed, err := e.Proposer.Propose(ctx, st, candidates)
	if err != nil {
		return nil, fmt.Errorf("propose: %w", err)
	}

	expanded, err := e.Expander.Expand(ctx, agentID, proposed)
	if err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}

	byID := make(map[string]guideline.Proposition, len(proposed)+len(expanded))
	order := make([]string, 0, len(proposed)+len(expanded))
	for _, p := range proposed {
		byID[p.Guideline.ID] = p
		order = append(order, p.Guideline.ID)
	}
	for _, p := range expanded {
		if _, exists := byID[p.Guideline.ID]; exists {
			continue // a direct score always wins over a connection-inherited one
		}
		byID[p.Guideline.ID] = p
		order = append(order, p.Guideline.ID)
	}

	out := make([]guideline.Proposition, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, nil
}

// toolEnabled resolves which propositions have tool associations and
// attaches their tool IDs, for handoff to the tool caller (spec.md §4.F).
func (e *Engine) toolEnabled(ctx context.Context, propositions []guideline.Proposition) ([]toolcaller.ToolEnabled, error) {
	var out []toolcaller.ToolEnabled
	for _, p := range propositions {
		assocs, err := e.Stores.ListToolAssociations(ctx, p.Guideline.ID)
		if err != nil {
			return nil, fmt.Errorf("list tool associations for %q: %w", p.Guideline.ID, err)
		}
		if len(assocs) == 0 {
			continue
		}
		ids := make([]tool.ID, len(assocs))
		for i, a := range assocs {
			ids[i] = tool.ID{ServiceName: a.Tool.ServiceName, ToolName: a.Tool.ToolName}
		}
		out = append(out, toolcaller.ToolEnabled{Proposition: p, ToolIDs: ids})
	}
	return out, nil
}

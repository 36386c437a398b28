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

package store

import "context"

// Agents is the read-side contract for agent lookup.
type Agents interface {
	ReadAgent(ctx context.Context, agentID string) (Agent, error)
}

// Customers is the read-side contract for customer lookup.
type Customers interface {
	ReadCustomer(ctx context.Context, customerID string) (Customer, error)
}

// Guidelines lists the guidelines belonging to an agent. Expansion along
// connections is the engine's job (spec.md §4.E), not the store's.
type Guidelines interface {
	ListGuidelines(ctx context.Context, agentID string) ([]Guideline, error)
}

// Connections exposes the directed guideline-connection graph, indexed in
// both directions so forward traversal from a proposed guideline is O(1)
// per hop.
type Connections interface {
	// ConnectionsFrom returns edges whose source is guidelineID.
	ConnectionsFrom(ctx context.Context, guidelineID string) ([]GuidelineConnection, error)
	// ConnectionsTo returns edges whose target is guidelineID.
	ConnectionsTo(ctx context.Context, guidelineID string) ([]GuidelineConnection, error)
}

// ToolAssociations lists the tools a guideline may call while active.
type ToolAssociations interface {
	ListToolAssociations(ctx context.Context, guidelineID string) ([]GuidelineToolAssociation, error)
}

// Glossary resolves glossary terms relevant to free text by semantic
// similarity. Implementations must tolerate arbitrarily long query text,
// e.g. by chunked embedding (spec.md §4.B).
type Glossary interface {
	RelevantTerms(ctx context.Context, agentID, queryText string, topK int) ([]Term, error)
}

// ContextVariables reads context-variable values for a customer.
type ContextVariables interface {
	ReadContextVariableValue(ctx context.Context, agentID, variableID, key string) (ContextVariableValue, error)
	ListContextVariables(ctx context.Context, agentID string) ([]ContextVariable, error)
	// ListContextVariableValues enumerates the values applicable to one
	// customer across all of the agent's variables.
	ListContextVariableValues(ctx context.Context, agentID, key string) ([]ContextVariableValue, error)
}

// Stores aggregates the read-only collaborators the engine consults during
// one processing run (spec.md §4.B).
type Stores interface {
	Agents
	Customers
	Guidelines
	Connections
	ToolAssociations
	Glossary
	ContextVariables
}

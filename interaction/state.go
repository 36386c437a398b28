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

// Package interaction carries the read-only, per-run view every pipeline
// phase (proposer, expander, tool caller, generator) is handed: agent,
// customer, history, glossary terms, context variables, and staged events
// produced earlier in the same run. Factoring it out here, rather than into
// the engine package, keeps guideline/toolcaller/message free of a cyclic
// dependency on the thing that orchestrates them.
package interaction

import (
	"github.com/kadirpekel/conversa/event"
	"github.com/kadirpekel/conversa/store"
)

// State is the shared input to one pipeline phase.
type State struct {
	Agent    store.Agent
	Customer store.Customer

	// History is the full (or generator-truncated) ordered event history
	// for the session, excluding the tombstoned.
	History []event.Event

	// Terms are the glossary entries found relevant to the current turn.
	Terms []store.Term

	// ContextVariables maps variable ID to its current value for this
	// customer.
	ContextVariables map[string]store.ContextVariableValue

	// StagedEvents are tool events appended earlier in this same run,
	// visible to later phases but not yet part of History.
	StagedEvents []event.Event
}

// LastCustomerMessage returns the most recent customer message text in the
// history, or "" if none exists.
func (s State) LastCustomerMessage() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		ev := s.History[i]
		if ev.Source != event.SourceCustomer || ev.Kind != event.KindMessage {
			continue
		}
		if msg, ok := ev.Data.(event.MessageData); ok {
			return msg.Message
		}
	}
	return ""
}

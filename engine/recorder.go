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
	"sync"

	"github.com/kadirpekel/conversa/event"
	"github.com/kadirpekel/conversa/guideline"
	"github.com/kadirpekel/conversa/store"
)

// IterationRecord captures one pass through the propose/expand/call loop,
// for later inspection of why a run produced the reply it did (SPEC_FULL.md's
// interaction-replay supplement, grounded on the original project's
// preparation-iteration tracing). Terms and ContextVariables are the
// glossary/context-variable view the iteration's propositions were scored
// against, so a client can see not just what was called but what was known.
type IterationRecord struct {
	Propositions     []guideline.Proposition
	ToolCalls        event.ToolData
	Terms            []store.Term
	ContextVariables map[string]store.ContextVariableValue
}

// Recorder keeps the preparation trace for recently completed runs, keyed by
// correlation id, so a client can later ask "what did the engine consider
// before producing this reply". It is bounded to maxRuns most recent
// correlation ids; older ones are evicted in insertion order.
type Recorder struct {
	mu      sync.Mutex
	order   []string
	byCorr  map[string][]IterationRecord
	maxRuns int
}

// NewRecorder builds a Recorder retaining at most maxRuns correlation ids'
// traces.
func NewRecorder(maxRuns int) *Recorder {
	if maxRuns <= 0 {
		maxRuns = 200
	}
	return &Recorder{byCorr: make(map[string][]IterationRecord), maxRuns: maxRuns}
}

// RecordIteration appends one iteration's trace under correlationID.
func (r *Recorder) RecordIteration(correlationID string, propositions []guideline.Proposition, toolCalls event.ToolData, terms []store.Term, contextVariables map[string]store.ContextVariableValue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byCorr[correlationID]; !exists {
		r.order = append(r.order, correlationID)
		if len(r.order) > r.maxRuns {
			evict := r.order[0]
			r.order = r.order[1:]
			delete(r.byCorr, evict)
		}
	}
	r.byCorr[correlationID] = append(r.byCorr[correlationID], IterationRecord{
		Propositions:     propositions,
		ToolCalls:        toolCalls,
		Terms:            terms,
		ContextVariables: contextVariables,
	})
}

// Trace returns the recorded iterations for a correlation id, if still
// retained.
func (r *Recorder) Trace(correlationID string) ([]IterationRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	trace, ok := r.byCorr[correlationID]
	return trace, ok
}

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

// Package guideline scores guideline applicability (Proposer, spec.md
// §4.D) and expands accepted propositions along the stored connection
// graph (Expander, spec.md §4.E). Both are transient, per-run concerns:
// their output lives only inside one processing run.
package guideline

import "github.com/kadirpekel/conversa/store"

// DefaultThreshold is the minimum score, on a 1-10 scale, for a guideline
// to be considered applicable. spec.md §9 notes the source is inconsistent
// between 7 and 8; this module treats it as configurable with default 7.
const DefaultThreshold = 7

// Proposition is a runtime judgement that a guideline applies now.
type Proposition struct {
	Guideline store.Guideline
	Score     int // 1..10
	Rationale string

	// PreviouslyAppliedRationale explains whether/why the guideline's
	// action was already taken earlier in the interaction (supplemented
	// per SPEC_FULL.md from the original source's re-applicability field).
	PreviouslyAppliedRationale string

	// ReApplicable is false when the guideline is still relevant in
	// principle but its action has already been satisfied; such
	// propositions are suppressed by the Proposer (spec.md §4.D).
	ReApplicable bool

	// ViaConnection is set by the Expander when this proposition was added
	// through connection traversal rather than direct scoring; it records
	// the path for the proposition's rationale (spec.md §4.E).
	ViaConnection []store.GuidelineConnection
}

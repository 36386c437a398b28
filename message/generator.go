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

// Package message produces at most one outgoing reply per processing run
// through a single structured LLM call carrying a bounded revision/critique
// loop (spec.md §4.G). Per spec.md §9's "revision loop vs step-by-step
// code" note, the revisions are never iterated as separate calls: one
// inference returns the whole ordered list and this package only selects
// among them.
package message

import (
	"context"
	"encoding/json"

	"github.com/kadirpekel/conversa/event"
	"github.com/kadirpekel/conversa/guideline"
	"github.com/kadirpekel/conversa/interaction"
	"github.com/kadirpekel/conversa/llmclient"
)

// maxRevisions is the hard bound from spec.md §4.G step 5.
const maxRevisions = 5

// Instruction is one guideline-or-insight the model must account for per
// revision (spec.md §4.G step 2).
type Instruction struct {
	Text string `json:"text"`
}

// Evaluation is the per-instruction applicability/data-availability
// judgement the model returns alongside the instruction list.
type Evaluation struct {
	Instruction      string `json:"instruction"`
	Applicable       bool   `json:"applicable"`
	DataAvailable    bool   `json:"data_available"`
}

// Revision is one candidate reply in the model's ordered revision list.
type Revision struct {
	RevisionNumber                          int    `json:"revision_number"`
	Content                                  string `json:"content"`
	InstructionsFollowed                     []string `json:"instructions_followed"`
	InstructionsBroken                       []string `json:"instructions_broken"`
	IsRepeatMessage                          bool   `json:"is_repeat_message"`
	FollowedAllInstructions                  bool   `json:"followed_all_instructions"`
	InstructionsBrokenOnlyDueToPrioritization bool   `json:"instructions_broken_only_due_to_prioritization"`
	PrioritizationRationale                  string `json:"prioritization_rationale"`
	InstructionsBrokenDueToMissingData       bool   `json:"instructions_broken_due_to_missing_data"`
	MissingDataRationale                     string `json:"missing_data_rationale"`
}

// Output is the full structured object the model returns (spec.md §4.G
// step 2).
type Output struct {
	LastMessageOfCustomer       string       `json:"last_message_of_customer"`
	Rationale                   string       `json:"rationale"`
	ProducedReply               bool         `json:"produced_reply"`
	Instructions                []Instruction `json:"instructions"`
	EvaluationForEachInstruction []Evaluation `json:"evaluation_for_each_instruction"`
	Revisions                   []Revision   `json:"revisions"`
}

// ErrGenerationFailed wraps a fatal failure of the generator's structured
// call, after the retry policy is exhausted (spec.md §4.G step 4, §7).
type ErrGenerationFailed struct{ Err error }

func (e *ErrGenerationFailed) Error() string { return "message generation failed: " + e.Err.Error() }
func (e *ErrGenerationFailed) Unwrap() error { return e.Err }

// Generator produces the reply, or decides not to, for one processing run.
type Generator struct {
	LLM *llmclient.Retry
	// SelfInsightLimit bounds the self-generated insights the model may add
	// to the instruction list beyond the active guidelines (spec.md §4.G
	// step 2: "up to 3 self-generated insights").
	SelfInsightLimit int
}

// NewGenerator builds a Generator with the spec's default insight limit.
func NewGenerator(llm *llmclient.Retry) *Generator {
	return &Generator{LLM: llm, SelfInsightLimit: 3}
}

// Generate runs the structured completion and selects a revision per
// spec.md §4.G step 3. It returns ("", false, nil) when no reply should be
// emitted this run, e.g. the empty-interaction rule of step 6.
func (g *Generator) Generate(ctx context.Context, st interaction.State, propositions []guideline.Proposition) (string, bool, error) {
	if len(propositions) == 0 {
		hasMessage := false
		for _, ev := range st.History {
			if ev.Kind == event.KindMessage {
				hasMessage = true
				break
			}
		}
		if !hasMessage {
			return "", false, nil
		}
	}

	prompt := buildGeneratorPrompt(st, propositions, g.SelfInsightLimit)
	var out Output
	if err := g.LLM.CompleteInto(ctx, llmclient.Request{
		SystemInstruction: generatorSystemInstruction,
		Prompt:            prompt,
		ResponseSchema:    generatorResponseSchema,
	}, &out); err != nil {
		return "", false, &ErrGenerationFailed{Err: err}
	}

	if !out.ProducedReply {
		return "", false, nil
	}
	if len(out.Revisions) == 0 {
		return "", false, nil
	}
	if len(out.Revisions) > maxRevisions {
		out.Revisions = out.Revisions[:maxRevisions]
	}

	return selectRevision(out.Revisions).Content, true, nil
}

// selectRevision implements spec.md §4.G step 3: the earliest revision
// satisfying one of the three acceptance conditions, else the last one.
func selectRevision(revisions []Revision) Revision {
	for _, r := range revisions {
		if r.IsRepeatMessage {
			continue
		}
		if r.FollowedAllInstructions {
			return r
		}
		if r.InstructionsBrokenOnlyDueToPrioritization {
			return r
		}
		if r.InstructionsBrokenDueToMissingData {
			return r
		}
	}
	return revisions[len(revisions)-1]
}

const generatorSystemInstruction = `Draft a reply to the customer, accounting for every active instruction (the agent's guidelines plus up to
3 insights you generate yourself). Produce an ordered list of up to 5 revisions, each self-critiqued against the
instruction list, stopping once a revision follows all instructions (or breaks some only due to prioritization
between conflicting instructions, or due to data that genuinely isn't available). If the conversation has nothing
to reply to, set produced_reply=false and leave revisions empty.`

var generatorResponseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"last_message_of_customer": map[string]any{"type": "string"},
		"rationale":                map[string]any{"type": "string"},
		"produced_reply":           map[string]any{"type": "boolean"},
		"instructions": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "object", "properties": map[string]any{"text": map[string]any{"type": "string"}}},
		},
		"evaluation_for_each_instruction": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"instruction":    map[string]any{"type": "string"},
					"applicable":     map[string]any{"type": "boolean"},
					"data_available": map[string]any{"type": "boolean"},
				},
			},
		},
		"revisions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"revision_number":             map[string]any{"type": "integer"},
					"content":                     map[string]any{"type": "string"},
					"instructions_followed":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"instructions_broken":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"is_repeat_message":           map[string]any{"type": "boolean"},
					"followed_all_instructions":   map[string]any{"type": "boolean"},
					"instructions_broken_only_due_to_prioritization": map[string]any{"type": "boolean"},
					"prioritization_rationale":    map[string]any{"type": "string"},
					"instructions_broken_due_to_missing_data": map[string]any{"type": "boolean"},
					"missing_data_rationale":      map[string]any{"type": "string"},
				},
				"required": []string{"revision_number", "content", "is_repeat_message", "followed_all_instructions"},
			},
		},
	},
	"required": []string{"produced_reply", "revisions"},
}

func buildGeneratorPrompt(st interaction.State, propositions []guideline.Proposition, insightLimit int) string {
	type promptProposition struct {
		Action    string `json:"action"`
		Score     int    `json:"score"`
		Rationale string `json:"rationale"`
	}
	props := make([]promptProposition, len(propositions))
	for i, p := range propositions {
		props[i] = promptProposition{Action: p.Guideline.Content.Action, Score: p.Score, Rationale: p.Rationale}
	}

	payload := struct {
		AgentName        string              `json:"agent_name"`
		AgentDescription string              `json:"agent_description"`
		Propositions     []promptProposition `json:"applicable_guidelines"`
		SelfInsightLimit int                 `json:"self_insight_limit"`
		HistoryLength    int                 `json:"history_event_count"`
		StagedToolEvents int                 `json:"staged_tool_event_count"`
	}{
		AgentName:        st.Agent.Name,
		AgentDescription: st.Agent.Description,
		Propositions:     props,
		SelfInsightLimit: insightLimit,
		HistoryLength:    len(st.History),
		StagedToolEvents: len(st.StagedEvents),
	}
	b, _ := json.Marshal(payload)
	return string(b)
}


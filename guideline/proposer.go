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
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/conversa/interaction"
	"github.com/kadirpekel/conversa/llmclient"
	"github.com/kadirpekel/conversa/store"
)

// batchSize bounds how many candidates go into one schematic LLM request,
// per spec.md §4.D step 1 ("batches of fixed size, ~10-25").
const batchSize = 20

// batchResult is one candidate's scoring, matching the schema the model is
// asked to return per spec.md §4.D step 2.
type batchResult struct {
	GuidelineID                string `json:"guideline_id"`
	Score                      int    `json:"score"`
	Rationale                  string `json:"rationale"`
	PreviouslyAppliedRationale string `json:"previously_applied_rationale"`
	StillNeedsAction           bool   `json:"still_needs_action"`
}

type batchResponse struct {
	Results []batchResult `json:"results"`
}

// Proposer scores candidate guidelines for applicability (spec.md §4.D).
type Proposer struct {
	LLM       *llmclient.Retry
	Threshold int
}

// NewProposer builds a Proposer at the default threshold.
func NewProposer(llm *llmclient.Retry) *Proposer {
	return &Proposer{LLM: llm, Threshold: DefaultThreshold}
}

// Propose scores candidates and returns those at or above the threshold,
// each with exactly one Proposition (spec.md §4.D step 4). Guidelines whose
// action was already satisfied (StillNeedsAction == false) are suppressed
// even if their score clears the threshold.
func (p *Proposer) Propose(ctx context.Context, st interaction.State, candidates []store.Guideline) ([]Proposition, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	batches := chunkGuidelines(candidates, batchSize)
	scored := make([][]batchResult, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			results, err := p.scoreBatch(gctx, st, batch)
			if err != nil {
				return fmt.Errorf("guideline: score batch %d: %w", i, err)
			}
			scored[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]store.Guideline, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	// Dedup by (condition, score): the source model must not rank
	// semantically identical conditions differently within one run
	// (spec.md §4.D step 3); if it does anyway, keep the first occurrence
	// and the input's stable order otherwise breaks ties.
	seenConditionScore := make(map[string]bool)
	var out []Proposition
	for _, batch := range scored {
		for _, r := range batch {
			g, ok := byID[r.GuidelineID]
			if !ok {
				slog.Warn("guideline: proposer returned unknown guideline id", "id", r.GuidelineID)
				continue
			}
			if r.Score < p.Threshold {
				continue
			}
			if !r.StillNeedsAction {
				continue
			}
			key := g.Content.Condition + "|" + itoa(r.Score)
			if seenConditionScore[key] {
				continue
			}
			seenConditionScore[key] = true

			out = append(out, Proposition{
				Guideline:                  g,
				Score:                      r.Score,
				Rationale:                  r.Rationale,
				PreviouslyAppliedRationale: r.PreviouslyAppliedRationale,
				ReApplicable:               r.StillNeedsAction,
			})
		}
	}
	return out, nil
}

func (p *Proposer) scoreBatch(ctx context.Context, st interaction.State, batch []store.Guideline) ([]batchResult, error) {
	prompt := buildProposerPrompt(st, batch)
	var resp batchResponse
	if err := p.LLM.CompleteInto(ctx, llmclient.Request{
		SystemInstruction: proposerSystemInstruction,
		Prompt:            prompt,
		ResponseSchema:    proposerResponseSchema,
	}, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

const proposerSystemInstruction = `You score whether each candidate guideline applies to the conversation right now.
Score each guideline 1-10 for relevance to the current turn; do not weigh guidelines against each other or resolve
conflicts between them -- coherence between guidelines is handled separately, at authoring time. If a guideline's
action has already been carried out earlier in the conversation, set still_needs_action to false even if the
guideline's condition remains true.`

var proposerResponseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"results": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"guideline_id":                  map[string]any{"type": "string"},
					"score":                         map[string]any{"type": "integer"},
					"rationale":                     map[string]any{"type": "string"},
					"previously_applied_rationale":  map[string]any{"type": "string"},
					"still_needs_action":            map[string]any{"type": "boolean"},
				},
				"required": []string{"guideline_id", "score", "rationale", "still_needs_action"},
			},
		},
	},
	"required": []string{"results"},
}

func buildProposerPrompt(st interaction.State, batch []store.Guideline) string {
	type promptGuideline struct {
		ID        string `json:"id"`
		Condition string `json:"condition"`
		Action    string `json:"action"`
	}
	candidates := make([]promptGuideline, len(batch))
	for i, g := range batch {
		candidates[i] = promptGuideline{ID: g.ID, Condition: g.Content.Condition, Action: g.Content.Action}
	}

	payload := struct {
		AgentDescription string            `json:"agent_description"`
		Terms            []store.Term      `json:"glossary_terms"`
		LastCustomerMsg  string            `json:"last_customer_message"`
		Candidates       []promptGuideline `json:"candidates"`
	}{
		AgentDescription: st.Agent.Description,
		Terms:            st.Terms,
		LastCustomerMsg:  st.LastCustomerMessage(),
		Candidates:       candidates,
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func chunkGuidelines(all []store.Guideline, size int) [][]store.Guideline {
	var out [][]store.Guideline
	for len(all) > 0 {
		n := size
		if n > len(all) {
			n = len(all)
		}
		out = append(out, all[:n])
		all = all[n:]
	}
	return out
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}

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

// Package toolcaller infers which tool calls to make for the active
// tool-enabled guidelines and executes them (spec.md §4.F).
package toolcaller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/conversa/event"
	"github.com/kadirpekel/conversa/guideline"
	"github.com/kadirpekel/conversa/interaction"
	"github.com/kadirpekel/conversa/llmclient"
	"github.com/kadirpekel/conversa/store"
	"github.com/kadirpekel/conversa/tool"
)

// ToolEnabled maps a proposition to the tools its association makes
// available while it's active.
type ToolEnabled struct {
	Proposition guideline.Proposition
	ToolIDs     []tool.ID
}

// Caller selects and executes tool calls for one iteration of the engine's
// preparation loop.
type Caller struct {
	LLM     *llmclient.Retry
	Invoker *tool.Invoker
}

// NewCaller builds a Caller over the given LLM client and invoker.
func NewCaller(llm *llmclient.Retry, invoker *tool.Invoker) *Caller {
	return &Caller{LLM: llm, Invoker: invoker}
}

type inferredCall struct {
	ToolService string         `json:"tool_service"`
	ToolName    string         `json:"tool_name"`
	Arguments   map[string]any `json:"arguments"`
	Skip        bool           `json:"skip"`
	SkipReason  string         `json:"skip_reason"`
}

type inferenceResponse struct {
	Calls []inferredCall `json:"calls"`
}

// Batch is the result of one inference+execution round: the tool event
// data to append, plus whether any call was actually executed (used by the
// engine to decide whether to iterate again, spec.md §4.H step 3b).
type Batch struct {
	ToolData event.ToolData
	AnyCalls bool
}

// Run infers and executes one batch of tool calls across all tool-enabled
// propositions (spec.md §4.F). Definitions are fetched from the invoker so
// the LLM sees each tool's real parameter schema.
func (c *Caller) Run(ctx context.Context, st interaction.State, enabled []ToolEnabled, tc tool.Context) (Batch, error) {
	if len(enabled) == 0 {
		return Batch{}, nil
	}

	defs, err := c.collectDefinitions(ctx, enabled)
	if err != nil {
		return Batch{}, err
	}

	prompt := buildCallerPrompt(st, enabled, defs)
	var resp inferenceResponse
	if err := c.LLM.CompleteInto(ctx, llmclient.Request{
		SystemInstruction: callerSystemInstruction,
		Prompt:            prompt,
		ResponseSchema:    callerResponseSchema,
	}, &resp); err != nil {
		return Batch{}, fmt.Errorf("toolcaller: infer calls: %w", err)
	}

	var toExecute []inferredCall
	var skipRecords []event.ToolCallRecord
	for _, call := range resp.Calls {
		if call.Skip {
			slog.Info("toolcaller: skipping inferred call", "tool", call.ToolName, "reason", call.SkipReason)
			skipRecords = append(skipRecords, toSkipRecord(call))
			continue
		}
		toExecute = append(toExecute, call)
	}
	if len(toExecute) == 0 {
		if len(skipRecords) == 0 {
			return Batch{}, nil
		}
		return Batch{ToolData: event.ToolData{ToolCalls: skipRecords}, AnyCalls: false}, nil
	}

	records := make([]event.ToolCallRecord, len(toExecute))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range toExecute {
		i, call := i, call
		g.Go(func() error {
			id := tool.ID{ServiceName: call.ToolService, ToolName: call.ToolName}
			result, callErr := c.Invoker.Call(gctx, id, tc, call.Arguments)
			records[i] = toRecord(id, call.Arguments, result, callErr)
			return nil // tool errors are recorded, not propagated (spec.md §4.C, §7)
		})
	}
	_ = g.Wait()

	records = append(skipRecords, records...)
	return Batch{ToolData: event.ToolData{ToolCalls: records}, AnyCalls: true}, nil
}

// toSkipRecord turns a skipped inference into a tool event entry carrying
// the rationale, so the reason a call wasn't made survives into the
// interaction trace rather than only a log line (spec.md §4.F).
func toSkipRecord(call inferredCall) event.ToolCallRecord {
	return event.ToolCallRecord{
		ToolID:    event.ToolID{ServiceName: call.ToolService, ToolName: call.ToolName},
		Arguments: call.Arguments,
		Result:    event.ToolResultData{Skipped: true, SkipReason: call.SkipReason},
	}
}

func toRecord(id tool.ID, args map[string]any, result tool.Result, callErr error) event.ToolCallRecord {
	rec := event.ToolCallRecord{
		ToolID:    event.ToolID{ServiceName: id.ServiceName, ToolName: id.ToolName},
		Arguments: args,
	}
	if callErr != nil {
		rec.Result = event.ToolResultData{Error: callErr.Error()}
		return rec
	}
	rec.Result = event.ToolResultData{Data: result.Data, Control: result.Control, Metadata: result.Metadata}
	return rec
}

func (c *Caller) collectDefinitions(ctx context.Context, enabled []ToolEnabled) (map[tool.ID]tool.Definition, error) {
	out := make(map[tool.ID]tool.Definition)
	for _, e := range enabled {
		for _, id := range e.ToolIDs {
			if _, ok := out[id]; ok {
				continue
			}
			def, err := c.Invoker.ReadTool(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("toolcaller: read tool %s: %w", id, err)
			}
			out[id] = def
		}
	}
	return out, nil
}

const callerSystemInstruction = `For each active guideline that has tools available, decide whether any tool call is needed right now
and with what arguments. Populate every required parameter; for enum parameters, use only a listed value.
If a required parameter cannot be inferred from the conversation, set skip=true and explain why in skip_reason
instead of guessing a value.`

var callerResponseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"calls": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"tool_service": map[string]any{"type": "string"},
					"tool_name":    map[string]any{"type": "string"},
					"arguments":    map[string]any{"type": "object"},
					"skip":         map[string]any{"type": "boolean"},
					"skip_reason":  map[string]any{"type": "string"},
				},
				"required": []string{"tool_service", "tool_name", "skip"},
			},
		},
	},
	"required": []string{"calls"},
}

func buildCallerPrompt(st interaction.State, enabled []ToolEnabled, defs map[tool.ID]tool.Definition) string {
	type promptTool struct {
		Service        string         `json:"service"`
		Name           string         `json:"name"`
		Description    string         `json:"description"`
		Parameters     map[string]any `json:"parameters"`
		RequiredParams []string       `json:"required_params"`
	}
	type promptGuideline struct {
		Action string       `json:"action"`
		Tools  []promptTool `json:"tools"`
	}

	guidelines := make([]promptGuideline, 0, len(enabled))
	for _, e := range enabled {
		var tools []promptTool
		for _, id := range e.ToolIDs {
			def := defs[id]
			tools = append(tools, promptTool{
				Service:        id.ServiceName,
				Name:           id.ToolName,
				Description:    def.Description,
				Parameters:     def.ParametersSchema,
				RequiredParams: def.RequiredParams,
			})
		}
		guidelines = append(guidelines, promptGuideline{Action: e.Proposition.Guideline.Content.Action, Tools: tools})
	}

	payload := struct {
		LastCustomerMsg string            `json:"last_customer_message"`
		Guidelines      []promptGuideline `json:"active_guidelines_with_tools"`
		Terms           []store.Term      `json:"glossary_terms"`
	}{
		LastCustomerMsg: st.LastCustomerMessage(),
		Guidelines:      guidelines,
		Terms:           st.Terms,
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

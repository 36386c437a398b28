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

// Package engine implements the preparation -> generation processing
// pipeline (spec.md §4.H): guideline proposition, connection expansion,
// tool-call inference/execution, and message generation, run under one
// correlation id with cooperative cancellation between phases. It's
// grounded on the teacher's pkg/runner.Runner, adapted from "one root
// agent over a session" to "one guideline-driven pipeline over a session".
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kadirpekel/conversa/event"
	"github.com/kadirpekel/conversa/guideline"
	"github.com/kadirpekel/conversa/message"
	"github.com/kadirpekel/conversa/observability"
	"github.com/kadirpekel/conversa/store"
	"github.com/kadirpekel/conversa/tool"
	"github.com/kadirpekel/conversa/toolcaller"
)

// Engine orchestrates one processing run per spec.md §4.H.
type Engine struct {
	Log       event.Log
	Stores    store.Stores
	Invoker   *tool.Invoker
	Proposer  *guideline.Proposer
	Expander  *guideline.Expander
	Caller    *toolcaller.Caller
	Generator *message.Generator
	Recorder  *Recorder // optional; see recorder.go (interaction replay)

	Tracer  *observability.Tracer // optional; nil disables span creation
	Metrics *observability.Metrics // optional; nil-safe methods, see observability/metrics.go
}

// RunContext is the per-run invocation context, built by the session
// controller before calling Process.
type RunContext struct {
	SessionID      string
	AgentID        string
	CustomerID     string
	TriggerOffset  int // the triggering customer event's offset, for the acknowledged status
	ManualMode     bool // true if the session is currently in manual mode (spec.md §4.H's manual-mode guard)
	Cancel         <-chan struct{}
	// OnManualDirective is invoked synchronously the moment a tool result
	// requests a manual handoff, so the session controller can flip the
	// session's mode before the engine emits its terminal ready status
	// (spec.md §4.I item 3).
	OnManualDirective func(ctx context.Context) error
}

// Result summarizes one completed run.
type Result struct {
	RepliedWithMessage bool
	Cancelled          bool
}

// Process runs the full pipeline for one triggering update. The returned
// Result's RepliedWithMessage is true iff a message event was emitted.
func (e *Engine) Process(ctx context.Context, rc RunContext) (result Result, err error) {
	if rc.ManualMode {
		return Result{}, nil
	}

	start := time.Now()
	iterations := 0
	ctx, span := e.Tracer.Start(ctx, observability.SpanEngineRun,
		attribute.String(observability.AttrSessionID, rc.SessionID),
		attribute.String(observability.AttrAgentID, rc.AgentID),
	)
	defer func() {
		status := "ready"
		switch {
		case err != nil:
			status = "error"
			e.Tracer.RecordError(span, err)
		case result.Cancelled:
			status = "cancelled"
		}
		span.End()
		e.Metrics.RecordRun(status, time.Since(start), iterations)
	}()

	correlationID := uuid.NewString()
	emit := func(status event.Status, data any) {
		sd := event.StatusData{Status: status, Data: data}
		if status == event.StatusAcknowledged {
			off := rc.TriggerOffset
			sd.AcknowledgedOffset = &off
		}
		if _, err := e.Log.Append(ctx, rc.SessionID, event.SourceSystem, event.KindStatus, correlationID, sd); err != nil {
			slog.Error("engine: failed to append status event", "status", status, "error", err)
		}
	}

	emit(event.StatusAcknowledged, nil)
	emit(event.StatusProcessing, nil)

	if cancelled(rc) {
		emit(event.StatusCancelled, nil)
		return Result{Cancelled: true}, nil
	}

	st, err := e.buildInteractionState(ctx, rc)
	if err != nil {
		emit(event.StatusError, err.Error())
		return Result{}, fmt.Errorf("engine: build interaction state: %w", err)
	}

	agent, err := e.Stores.ReadAgent(ctx, rc.AgentID)
	if err != nil {
		emit(event.StatusError, err.Error())
		return Result{}, fmt.Errorf("engine: read agent: %w", err)
	}

	maxIterations := agent.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 1 // spec.md §9: unspecified upstream, defined here as one iteration
	}

	var finalPropositions []guideline.Proposition
	for i := 0; i < maxIterations; i++ {
		iterations = i + 1
		if cancelled(rc) {
			emit(event.StatusCancelled, nil)
			return Result{Cancelled: true}, nil
		}

		propositions, err := e.proposeAndExpand(ctx, rc.AgentID, st)
		if err != nil {
			emit(event.StatusError, err.Error())
			return Result{}, fmt.Errorf("engine: propose guidelines: %w", err)
		}
		finalPropositions = propositions

		enabled, err := e.toolEnabled(ctx, propositions)
		if err != nil {
			emit(event.StatusError, err.Error())
			return Result{}, fmt.Errorf("engine: resolve tool associations: %w", err)
		}

		tc := tool.Context{
			AgentID:       rc.AgentID,
			SessionID:     rc.SessionID,
			CustomerID:    rc.CustomerID,
			CorrelationID: correlationID,
			Emitter:       logEmitter{log: e.Log, sessionID: rc.SessionID, correlationID: correlationID},
		}

		batch, err := e.Caller.Run(ctx, st, enabled, tc)
		if err != nil {
			emit(event.StatusError, err.Error())
			return Result{}, fmt.Errorf("engine: tool caller: %w", err)
		}

		if cancelled(rc) {
			// discard this batch's results without appending a tool event
			// (spec.md §5: outstanding tools aren't pre-emptively
			// cancelled, but their results are discarded on cancellation).
			emit(event.StatusCancelled, nil)
			return Result{Cancelled: true}, nil
		}

		if len(batch.ToolData.ToolCalls) > 0 {
			toolEvent, err := e.Log.Append(ctx, rc.SessionID, event.SourceAIAgent, event.KindTool, correlationID, batch.ToolData)
			if err != nil {
				emit(event.StatusError, err.Error())
				return Result{}, fmt.Errorf("engine: append tool event: %w", err)
			}
			st.StagedEvents = append(st.StagedEvents, toolEvent)

			if manual := manualDirectiveRequested(batch.ToolData); manual && rc.OnManualDirective != nil {
				if err := rc.OnManualDirective(ctx); err != nil {
					slog.Error("engine: failed to apply manual-mode directive", "error", err)
				}
			}
		}

		if e.Recorder != nil {
			e.Recorder.RecordIteration(correlationID, propositions, batch.ToolData, st.Terms, st.ContextVariables)
		}

		if !batch.AnyCalls {
			break // stop condition (a): no tool call was actually executed this iteration
		}
	}

	emit(event.StatusTyping, nil)

	if cancelled(rc) {
		emit(event.StatusCancelled, nil)
		return Result{Cancelled: true}, nil
	}

	reply, produced, err := e.Generator.Generate(ctx, st, finalPropositions)
	if err != nil {
		emit(event.StatusError, err.Error())
		return Result{}, fmt.Errorf("engine: message generator: %w", err)
	}

	if produced {
		_, err := e.Log.Append(ctx, rc.SessionID, event.SourceAIAgent, event.KindMessage, correlationID, event.MessageData{
			Message:     reply,
			Participant: event.Participant{DisplayName: agent.Name},
		})
		if err != nil {
			emit(event.StatusError, err.Error())
			return Result{}, fmt.Errorf("engine: append message event: %w", err)
		}
	}

	emit(event.StatusReady, nil)
	return Result{RepliedWithMessage: produced}, nil
}

func cancelled(rc RunContext) bool {
	if rc.Cancel == nil {
		return false
	}
	select {
	case <-rc.Cancel:
		return true
	default:
		return false
	}
}

func manualDirectiveRequested(data event.ToolData) bool {
	for _, call := range data.ToolCalls {
		if call.Result.Control != nil && call.Result.Control.Mode == "manual" {
			return true
		}
	}
	return false
}

// logEmitter adapts event.Log into tool.Emitter so tools can push
// intermediate message/status events under the run's correlation id
// (spec.md §4.C).
type logEmitter struct {
	log           event.Log
	sessionID     string
	correlationID string
}

func (l logEmitter) EmitMessage(ctx context.Context, text string) error {
	_, err := l.log.Append(ctx, l.sessionID, event.SourceAIAgent, event.KindMessage, l.correlationID, event.MessageData{Message: text})
	return err
}

func (l logEmitter) EmitStatus(ctx context.Context, status event.Status, data any) error {
	_, err := l.log.Append(ctx, l.sessionID, event.SourceSystem, event.KindStatus, l.correlationID, event.StatusData{Status: status, Data: data})
	return err
}

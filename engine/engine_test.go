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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/conversa/event"
	"github.com/kadirpekel/conversa/guideline"
	"github.com/kadirpekel/conversa/llmclient"
	"github.com/kadirpekel/conversa/message"
	"github.com/kadirpekel/conversa/store"
	"github.com/kadirpekel/conversa/tool"
	"github.com/kadirpekel/conversa/toolcaller"
)

// failingLLM errors on every call; none of the pipeline stages in these
// tests reach it because the fixtures have no guidelines (the proposer
// short-circuits on an empty candidate set) and no message events (the
// generator short-circuits when history holds no message and no
// propositions apply).
type failingLLM struct{}

func (failingLLM) Complete(ctx context.Context, req llmclient.Request) (json.RawMessage, error) {
	return nil, assertErr("unexpected LLM call")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func newTestEngine(t *testing.T) (*Engine, *store.MemStore, event.Log) {
	t.Helper()
	s := store.NewMemStore(nil)
	s.AddAgent(store.Agent{ID: "agent-1", Name: "Assistant", MaxIterations: 1})

	log := event.NewMemLog()
	llm := llmclient.NewRetry(failingLLM{})

	eng := &Engine{
		Log:       log,
		Stores:    s,
		Invoker:   tool.NewInvoker(),
		Proposer:  guideline.NewProposer(llm),
		Expander:  guideline.NewExpander(s, s),
		Caller:    toolcaller.NewCaller(llm, tool.NewInvoker()),
		Generator: message.NewGenerator(llm),
		Recorder:  NewRecorder(0),
	}
	return eng, s, log
}

func TestProcessEmitsLifecycleStatusesAndNoReplyWithoutHistory(t *testing.T) {
	eng, _, log := newTestEngine(t)

	result, err := eng.Process(context.Background(), RunContext{SessionID: "s1", AgentID: "agent-1"})
	require.NoError(t, err)
	assert.False(t, result.RepliedWithMessage)
	assert.False(t, result.Cancelled)

	events, err := log.List(context.Background(), "s1", event.Filters{})
	require.NoError(t, err)

	var statuses []event.Status
	for _, ev := range events {
		if ev.Kind == event.KindStatus {
			statuses = append(statuses, ev.Data.(event.StatusData).Status)
		}
	}
	assert.Equal(t, []event.Status{
		event.StatusAcknowledged,
		event.StatusProcessing,
		event.StatusTyping,
		event.StatusReady,
	}, statuses)
}

func TestProcessRecordsIterationEvenWithoutToolCalls(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	result, err := eng.Process(context.Background(), RunContext{SessionID: "s1", AgentID: "agent-1"})
	require.NoError(t, err)
	assert.False(t, result.RepliedWithMessage)

	correlationIDs := make([]string, 0, 1)
	for id := range eng.Recorder.byCorr {
		correlationIDs = append(correlationIDs, id)
	}
	require.Len(t, correlationIDs, 1, "a run with zero tool calls must still leave a recorded iteration behind")

	trace, ok := eng.Recorder.Trace(correlationIDs[0])
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(trace), 1)
}

func TestProcessManualModeSkipsEntirely(t *testing.T) {
	eng, _, log := newTestEngine(t)

	result, err := eng.Process(context.Background(), RunContext{SessionID: "s1", AgentID: "agent-1", ManualMode: true})
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)

	events, err := log.List(context.Background(), "s1", event.Filters{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestProcessCancelledBeforeStartEmitsCancelledStatus(t *testing.T) {
	eng, _, log := newTestEngine(t)

	cancel := make(chan struct{})
	close(cancel)

	result, err := eng.Process(context.Background(), RunContext{SessionID: "s1", AgentID: "agent-1", Cancel: cancel})
	require.NoError(t, err)
	assert.True(t, result.Cancelled)

	events, err := log.List(context.Background(), "s1", event.Filters{})
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, event.StatusCancelled, last.Data.(event.StatusData).Status)
}

func TestProcessUnknownAgentReturnsError(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	_, err := eng.Process(context.Background(), RunContext{SessionID: "s1", AgentID: "ghost"})
	assert.Error(t, err)
}

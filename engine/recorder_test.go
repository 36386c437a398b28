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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/conversa/event"
	"github.com/kadirpekel/conversa/store"
)

func TestRecorderTraceReturnsRecordedIterations(t *testing.T) {
	r := NewRecorder(0)
	r.RecordIteration("corr-1", nil, event.ToolData{}, nil, nil)
	r.RecordIteration("corr-1", nil, event.ToolData{}, nil, nil)

	trace, ok := r.Trace("corr-1")
	require.True(t, ok)
	assert.Len(t, trace, 2)
}

func TestRecorderRetainsTermsAndContextVariables(t *testing.T) {
	r := NewRecorder(0)
	terms := []store.Term{{Name: "ARR"}}
	vars := map[string]store.ContextVariableValue{"plan": {Data: "enterprise"}}
	r.RecordIteration("corr-1", nil, event.ToolData{}, terms, vars)

	trace, ok := r.Trace("corr-1")
	require.True(t, ok)
	require.Len(t, trace, 1)
	assert.Equal(t, terms, trace[0].Terms)
	assert.Equal(t, vars, trace[0].ContextVariables)
}

func TestRecorderTraceUnknownCorrelationIsNotOK(t *testing.T) {
	r := NewRecorder(0)
	_, ok := r.Trace("missing")
	assert.False(t, ok)
}

func TestRecorderDefaultsMaxRunsWhenNonPositive(t *testing.T) {
	r := NewRecorder(0)
	assert.Equal(t, 200, r.maxRuns)
}

func TestRecorderEvictsOldestCorrelationBeyondMaxRuns(t *testing.T) {
	r := NewRecorder(2)
	r.RecordIteration("a", nil, event.ToolData{}, nil, nil)
	r.RecordIteration("b", nil, event.ToolData{}, nil, nil)
	r.RecordIteration("c", nil, event.ToolData{}, nil, nil)

	_, ok := r.Trace("a")
	assert.False(t, ok, "oldest correlation id should have been evicted")

	_, ok = r.Trace("b")
	assert.True(t, ok)
	_, ok = r.Trace("c")
	assert.True(t, ok)
}

func TestRecorderConcurrentRecordIsSafe(t *testing.T) {
	r := NewRecorder(50)
	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func(i int) {
			r.RecordIteration(fmt.Sprintf("corr-%d", i), nil, event.ToolData{}, nil, nil)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 20; i++ {
		<-done
	}
	assert.Len(t, r.order, 20)
}

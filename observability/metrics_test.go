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

package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewMetricsDefaultsNamespace(t *testing.T) {
	m := NewMetrics("")
	assert.NotNil(t, m)
}

func TestMetricsRecordRunAndHandlerExposesIt(t *testing.T) {
	m := NewMetrics("testns")
	m.RecordRun("ready", 50*time.Millisecond, 2)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "testns_engine_runs_total")
}

func TestMetricsRecordToolCallTracksErrors(t *testing.T) {
	m := NewMetrics("testns")
	m.RecordToolCall("svc", "lookup", nil)
	m.RecordToolCall("svc", "lookup", errors.New("boom"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "testns_tool_errors_total")
}

func TestNilMetricsMethodsAreAllNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRun("ready", time.Second, 1)
		m.RecordProposal("direct")
		m.RecordToolCall("svc", "tool", errors.New("x"))
		m.SetSessionsInFlight("agent-1", 3)
	})
}

func TestNilMetricsHandlerReturnsServiceUnavailable(t *testing.T) {
	var m *Metrics
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

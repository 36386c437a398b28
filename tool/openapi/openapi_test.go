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

package openapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/conversa/tool"
)

func TestServiceCallSubstitutesPathAndReturnsBody(t *testing.T) {
	var gotPath, gotMethod, gotCorrelation string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotCorrelation = r.Header.Get("X-Correlation-ID")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer srv.Close()

	s := New(srv.URL, map[string]Operation{
		"getOrder": {
			Definition:   tool.Definition{ID: tool.ID{ServiceName: "openapi", ToolName: "getOrder"}},
			Method:       http.MethodGet,
			PathTemplate: "/orders/{id}",
		},
	})

	res, err := s.Call(context.Background(), "getOrder", tool.Context{CorrelationID: "corr-1"}, map[string]any{"id": "42"})
	require.NoError(t, err)
	assert.Equal(t, "/orders/42", gotPath)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "corr-1", gotCorrelation)
	assert.Equal(t, map[string]any{"status": "ok"}, res.Data)
}

func TestServiceCallSendsRemainingArgumentsAsBodyOnNonGet(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"created": true})
	}))
	defer srv.Close()

	s := New(srv.URL, map[string]Operation{
		"createOrder": {
			Definition:   tool.Definition{ID: tool.ID{ServiceName: "openapi", ToolName: "createOrder"}},
			Method:       http.MethodPost,
			PathTemplate: "/orders",
		},
	})

	_, err := s.Call(context.Background(), "createOrder", tool.Context{}, map[string]any{"item": "widget"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"item": "widget"}, gotBody)
}

func TestServiceCallUnknownToolErrors(t *testing.T) {
	s := New("http://example.invalid", nil)
	_, err := s.Call(context.Background(), "ghost", tool.Context{}, nil)
	assert.Error(t, err)
}

func TestServiceCallPropagatesHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "boom"})
	}))
	defer srv.Close()

	s := New(srv.URL, map[string]Operation{
		"fail": {Definition: tool.Definition{ID: tool.ID{ServiceName: "openapi", ToolName: "fail"}}, Method: http.MethodGet, PathTemplate: "/fail"},
	})

	_, err := s.Call(context.Background(), "fail", tool.Context{}, nil)
	assert.Error(t, err)
}

func TestReadToolAndListTools(t *testing.T) {
	def := tool.Definition{ID: tool.ID{ServiceName: "openapi", ToolName: "getOrder"}}
	s := New("http://example.invalid", map[string]Operation{"getOrder": {Definition: def, Method: http.MethodGet, PathTemplate: "/orders/{id}"}})

	got, err := s.ReadTool(context.Background(), "getOrder")
	require.NoError(t, err)
	assert.Equal(t, def, got)

	list, err := s.ListTools(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFillPathTemplateSeparatesPathFromBodyArguments(t *testing.T) {
	path, body := fillPathTemplate("/orders/{id}", map[string]any{"id": "7", "note": "urgent"})
	assert.Equal(t, "/orders/7", path)
	assert.Equal(t, map[string]any{"note": "urgent"}, body)
}
